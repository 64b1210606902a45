// Package embedding turns text into vectors and caches the results.
package embedding

import (
	"context"
	"errors"
	"fmt"
)

var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Embedder returns one vector per input text, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
	Dimension() int
}

// CheckVectors verifies a backend response against the request.
func CheckVectors(vectors [][]float32, inputs, dimension int) error {
	if len(vectors) != inputs {
		return fmt.Errorf("expected %d embeddings, got %d", inputs, len(vectors))
	}
	for i, v := range vectors {
		if len(v) != dimension {
			return fmt.Errorf("%w: embedding %d has %d dimensions, expected %d", ErrDimensionMismatch, i, len(v), dimension)
		}
	}
	return nil
}
