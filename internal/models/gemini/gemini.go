// Package gemini adapts Google's genai client to the textgen and embedding contracts.
package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/lewisedginton/session_concierge/internal/embedding"
	"github.com/lewisedginton/session_concierge/internal/textgen"
	"github.com/lewisedginton/session_concierge/pkg/logger"
	"github.com/lewisedginton/session_concierge/pkg/utils"
)

// Options configures the genai client. Project and Location select Vertex AI.
type Options struct {
	APIKey   string
	Project  string
	Location string
	BaseURL  string
	Logger   logger.Logger
}

// NewClient creates a Gemini API or Vertex AI client.
func NewClient(ctx context.Context, opts Options) (*genai.Client, error) {
	cfg := &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.Project != "" && opts.Location != "" {
		cfg = &genai.ClientConfig{
			Project:  opts.Project,
			Location: opts.Location,
			Backend:  genai.BackendVertexAI,
		}
	} else if opts.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return client, nil
}

// Model streams content from a Gemini model.
type Model struct {
	client    *genai.Client
	modelName string
	logger    logger.Logger
}

// New wraps client as a generator for modelName.
func New(client *genai.Client, modelName string, log logger.Logger) (*Model, error) {
	if modelName == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Model{
		client:    client,
		modelName: modelName,
		logger:    log.WithFields(logger.StringField("component", "gemini_model"), logger.StringField("model", modelName)),
	}, nil
}

func (m *Model) Name() string {
	return m.modelName
}

func generateConfig(req textgen.Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature: utils.ToPtr[float32](0),
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	return cfg
}

func (m *Model) Generate(ctx context.Context, req textgen.Request, onToken textgen.TokenFunc) (string, error) {
	acc := textgen.NewAccumulator(onToken)
	for resp, err := range m.client.Models.GenerateContentStream(ctx, m.modelName, genai.Text(req.Prompt), generateConfig(req)) {
		if err != nil {
			return "", fmt.Errorf("gemini api error: %w", err)
		}
		acc.Add(resp.Text())
	}

	m.logger.Debug("Content stream finished", logger.IntField("tokens", acc.Tokens()))
	return acc.String(), nil
}

// Embedder calls EmbedContent with a fixed output dimensionality.
type Embedder struct {
	client    *genai.Client
	model     string
	dimension int
}

func NewEmbedder(client *genai.Client, model string, dimension int) (*Embedder, error) {
	if model == "" {
		return nil, fmt.Errorf("embedding model is required")
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive")
	}
	return &Embedder{client: client, model: model, dimension: dimension}, nil
}

func (e *Embedder) Model() string  { return e.model }
func (e *Embedder) Dimension() int { return e.dimension }

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	resp, err := e.client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
		OutputDimensionality: utils.ToPtr(int32(e.dimension)),
	})
	if err != nil {
		return nil, fmt.Errorf("gemini embeddings error: %w", err)
	}

	out := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if emb == nil {
			return nil, fmt.Errorf("gemini returned an empty embedding at %d", i)
		}
		out[i] = emb.Values
	}
	if err := embedding.CheckVectors(out, len(texts), e.dimension); err != nil {
		return nil, err
	}
	return out, nil
}
