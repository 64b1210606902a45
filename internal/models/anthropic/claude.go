// Package anthropic adapts Claude's streaming Messages API to the textgen contract.
package anthropic

import (
	"context"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/lewisedginton/session_concierge/internal/textgen"
	"github.com/lewisedginton/session_concierge/pkg/logger"
)

// ClaudeModel is a streaming generator backed by a Claude model
type ClaudeModel struct {
	client    anthropic.Client
	modelName string
	logger    logger.Logger
}

// Options configures the Anthropic client.
type Options struct {
	BaseURL string
	Timeout time.Duration
	Logger  logger.Logger
}

// NewClaudeModel creates a new Claude model instance
func NewClaudeModel(apiKey, modelName string, opts Options, reqOpts ...option.RequestOption) (*ClaudeModel, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	if modelName == "" {
		modelName = string(anthropic.ModelClaudeSonnet4_5_20250929)
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}

	base := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if opts.BaseURL != "" {
		base = append(base, option.WithBaseURL(opts.BaseURL))
	}
	if opts.Timeout > 0 {
		base = append(base, option.WithRequestTimeout(opts.Timeout))
	}
	client := anthropic.NewClient(append(base, reqOpts...)...)

	return &ClaudeModel{
		client:    client,
		modelName: modelName,
		logger:    opts.Logger.WithFields(logger.StringField("component", "claude_model"), logger.StringField("model", modelName)),
	}, nil
}

// Name returns the name of the model
func (c *ClaudeModel) Name() string {
	return c.modelName
}

func (c *ClaudeModel) params(req textgen.Request) anthropic.MessageNewParams {
	maxTokens := int64(4000)
	if req.MaxTokens > 0 {
		maxTokens = int64(req.MaxTokens)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.modelName),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
		Temperature: anthropic.Float(0),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	return params
}

// Generate streams a message and returns the concatenated text deltas.
func (c *ClaudeModel) Generate(ctx context.Context, req textgen.Request, onToken textgen.TokenFunc) (string, error) {
	stream := c.client.Messages.NewStreaming(ctx, c.params(req))
	defer func() { _ = stream.Close() }()

	acc := textgen.NewAccumulator(onToken)
	for stream.Next() {
		event := stream.Current()
		delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
		if !ok {
			continue
		}
		if text, ok := delta.Delta.AsAny().(anthropic.TextDelta); ok {
			acc.Add(text.Text)
		}
	}
	if err := stream.Err(); err != nil {
		return "", fmt.Errorf("claude api error: %w", err)
	}

	c.logger.Debug("Message stream finished", logger.IntField("tokens", acc.Tokens()))
	return acc.String(), nil
}
