package vectorindex

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

type memoryIndex struct {
	dimension int
	ids       []string
	records   map[string]Record
}

// MemoryIndex is a brute-force in-process Index.
type MemoryIndex struct {
	mu      sync.RWMutex
	indexes map[string]*memoryIndex
}

// NewMemoryIndex returns an empty in-memory index set.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{indexes: make(map[string]*memoryIndex)}
}

func (m *MemoryIndex) CreateIndex(_ context.Context, indexName string, dimension int) error {
	if err := ValidateName(indexName); err != nil {
		return err
	}
	if dimension <= 0 {
		return fmt.Errorf("dimension must be positive, got %d", dimension)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.indexes[indexName]; ok {
		if existing.dimension != dimension {
			return fmt.Errorf("%w: index %s has dimension %d, requested %d", ErrDimensionMismatch, indexName, existing.dimension, dimension)
		}
		return nil
	}
	m.indexes[indexName] = &memoryIndex{dimension: dimension, records: make(map[string]Record)}
	return nil
}

func (m *MemoryIndex) DeleteIndex(_ context.Context, indexName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.indexes[indexName]; !ok {
		return fmt.Errorf("%w: %s", ErrIndexNotFound, indexName)
	}
	delete(m.indexes, indexName)
	return nil
}

func (m *MemoryIndex) Upsert(_ context.Context, indexName string, records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, ok := m.indexes[indexName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrIndexNotFound, indexName)
	}
	for _, r := range records {
		if len(r.Vector) != idx.dimension {
			return fmt.Errorf("%w: record %s has %d dimensions, index %s expects %d", ErrDimensionMismatch, r.ID, len(r.Vector), indexName, idx.dimension)
		}
	}
	for _, r := range records {
		if _, exists := idx.records[r.ID]; !exists {
			idx.ids = append(idx.ids, r.ID)
		}
		idx.records[r.ID] = Record{
			ID:       r.ID,
			Vector:   append([]float32(nil), r.Vector...),
			Metadata: cloneMetadata(r.Metadata),
		}
	}
	return nil
}

func (m *MemoryIndex) Query(ctx context.Context, indexName string, vector []float32, topK int) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	idx, ok := m.indexes[indexName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, indexName)
	}
	if len(vector) != idx.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, index %s expects %d", ErrDimensionMismatch, len(vector), indexName, idx.dimension)
	}

	hits := make([]Hit, 0, len(idx.ids))
	for _, id := range idx.ids {
		r := idx.records[id]
		hits = append(hits, Hit{
			ID:       id,
			Score:    CosineSimilarity(vector, r.Vector),
			Metadata: cloneMetadata(r.Metadata),
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })

	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// Len reports how many records indexName holds, or -1 if it does not exist.
func (m *MemoryIndex) Len(indexName string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, ok := m.indexes[indexName]
	if !ok {
		return -1
	}
	return len(idx.ids)
}

// CosineSimilarity of a and b. Zero vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func cloneMetadata(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
