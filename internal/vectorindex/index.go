// Package vectorindex stores embedding vectors with metadata and answers
// nearest-neighbour queries by cosine similarity.
package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

var (
	ErrIndexNotFound     = errors.New("vector index not found")
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrInvalidIndexName  = errors.New("invalid index name")
)

var indexNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Hit is a single query match. Score is cosine similarity, higher is closer.
type Hit struct {
	ID       string
	Score    float64
	Metadata map[string]any
}

// Record is one vector to store.
type Record struct {
	ID       string
	Vector   []float32
	Metadata map[string]any
}

// Index is a named collection of vectors.
type Index interface {
	Query(ctx context.Context, indexName string, vector []float32, topK int) ([]Hit, error)
	Upsert(ctx context.Context, indexName string, records []Record) error
	CreateIndex(ctx context.Context, indexName string, dimension int) error
	DeleteIndex(ctx context.Context, indexName string) error
}

// ValidateName checks that name is usable as an index (and table) name.
func ValidateName(name string) error {
	if !indexNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidIndexName, name)
	}
	return nil
}
