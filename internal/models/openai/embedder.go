package openai

import (
	"context"
	"fmt"
	"sort"

	"github.com/openai/openai-go"

	"github.com/lewisedginton/session_concierge/internal/embedding"
)

// Embedder calls the embeddings endpoint.
type Embedder struct {
	client    *openai.Client
	model     string
	dimension int
}

// NewEmbedder creates an embedder producing vectors of the given dimension.
func NewEmbedder(model string, dimension int, opts Options) (*Embedder, error) {
	if model == "" {
		return nil, fmt.Errorf("embedding model is required")
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive")
	}
	client, err := newClient(opts)
	if err != nil {
		return nil, err
	}
	return &Embedder{client: client, model: model, dimension: dimension}, nil
}

func (e *Embedder) Model() string  { return e.model }
func (e *Embedder) Dimension() int { return e.dimension }

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input:          openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model:          openai.EmbeddingModel(e.model),
		Dimensions:     openai.Int(int64(e.dimension)),
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings error: %w", err)
	}

	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	out := make([][]float32, len(data))
	for i, d := range data {
		v := make([]float32, len(d.Embedding))
		for j, f := range d.Embedding {
			v[j] = float32(f)
		}
		out[i] = v
	}

	if err := embedding.CheckVectors(out, len(texts), e.dimension); err != nil {
		return nil, err
	}
	return out, nil
}
