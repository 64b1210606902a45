// Package openai adapts the OpenAI API to the textgen and embedding contracts.
package openai

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/lewisedginton/session_concierge/internal/textgen"
	"github.com/lewisedginton/session_concierge/pkg/logger"
)

// Options configures the OpenAI client.
type Options struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	Logger  logger.Logger
}

func newClient(opts Options) (*openai.Client, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	// Retries are left to the caller.
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.Timeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(opts.Timeout))
	}

	client := openai.NewClient(reqOpts...)
	return &client, nil
}

// Model is a streaming chat completion generator.
type Model struct {
	client    *openai.Client
	modelName string
	logger    logger.Logger
}

// New creates a new OpenAI model instance.
func New(modelName string, opts Options) (*Model, error) {
	if modelName == "" {
		return nil, fmt.Errorf("model name is required")
	}
	client, err := newClient(opts)
	if err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}

	return &Model{
		client:    client,
		modelName: modelName,
		logger:    opts.Logger.WithFields(logger.StringField("component", "openai_model"), logger.StringField("model", modelName)),
	}, nil
}

// Name returns the model name.
func (o *Model) Name() string {
	return o.modelName
}

func (o *Model) params(req textgen.Request) openai.ChatCompletionNewParams {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	maxTokens := int64(4096)
	if req.MaxTokens > 0 {
		maxTokens = int64(req.MaxTokens)
	}

	return openai.ChatCompletionNewParams{
		Model:       o.modelName,
		Messages:    messages,
		MaxTokens:   openai.Int(maxTokens),
		Temperature: openai.Float(0),
	}
}

// Generate streams a chat completion and returns the full text.
func (o *Model) Generate(ctx context.Context, req textgen.Request, onToken textgen.TokenFunc) (string, error) {
	stream := o.client.Chat.Completions.NewStreaming(ctx, o.params(req))
	defer func() { _ = stream.Close() }()

	acc := textgen.NewAccumulator(onToken)
	for stream.Next() {
		chunk := stream.Current()
		for _, choice := range chunk.Choices {
			acc.Add(choice.Delta.Content)
		}
	}
	if err := stream.Err(); err != nil {
		return "", fmt.Errorf("openai API error: %w", err)
	}

	o.logger.Debug("Completion stream finished", logger.IntField("tokens", acc.Tokens()))
	return acc.String(), nil
}
