// Package retriever embeds a query, searches the vector index and returns the
// hits above the score threshold as ranked chunks.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/lewisedginton/session_concierge/internal/embedding"
	"github.com/lewisedginton/session_concierge/internal/vectorindex"
	"github.com/lewisedginton/session_concierge/pkg/logger"
	"github.com/lewisedginton/session_concierge/pkg/metrics"
)

// OverFetchFactor is how many index hits are requested per wanted match.
// Mixed indexes hold many auxiliary chunks that never resolve to a session.
const OverFetchFactor = 3

// Failure stages
const (
	StageEmbed = "embed"
	StageQuery = "query"
)

var (
	ErrEmptyQuery  = errors.New("query must not be empty")
	ErrInvalidTopK = errors.New("topK must be positive")
)

// RetrievalError reports a failed embedding or index call. It is never used
// for an empty result.
type RetrievalError struct {
	Stage string
	Cause error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval failed at %s: %v", e.Stage, e.Cause)
}

func (e *RetrievalError) Unwrap() error {
	return e.Cause
}

// ScoredChunk is one retained index hit.
type ScoredChunk struct {
	Rank                int     `json:"rank"`
	Text                string  `json:"text"`
	Source              string  `json:"source"`
	Score               float64 `json:"score"`
	SessionIndex        *int    `json:"sessionIndex,omitempty"`
	RelatedSessionTitle string  `json:"relatedSessionTitle,omitempty"`
	RelatedSessionIndex *int    `json:"relatedSessionIndex,omitempty"`
}

// Config holds the retriever settings.
type Config struct {
	IndexName string
	// Hits scoring at or below Threshold are discarded
	Threshold float64
}

// Retriever is safe for concurrent use; it holds no per-query state.
type Retriever struct {
	embedder embedding.Embedder
	index    vectorindex.Index
	cfg      Config
	metrics  *metrics.Metrics
	logger   logger.Logger
}

// New creates a Retriever. m may be nil.
func New(embedder embedding.Embedder, index vectorindex.Index, cfg Config, m *metrics.Metrics, log logger.Logger) *Retriever {
	if log == nil {
		log = logger.NewNop()
	}
	return &Retriever{
		embedder: embedder,
		index:    index,
		cfg:      cfg,
		metrics:  m,
		logger:   log.WithFields(logger.StringField("component", "retriever"), logger.StringField("index", cfg.IndexName)),
	}
}

// IndexName is the index this retriever searches.
func (r *Retriever) IndexName() string {
	return r.cfg.IndexName
}

// Retrieve returns the chunks for query ranked by descending score. Zero
// matches is an empty slice and a nil error.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]ScoredChunk, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if topK <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTopK, topK)
	}

	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err == nil && len(vectors) != 1 {
		err = fmt.Errorf("expected 1 embedding, got %d", len(vectors))
	}
	if err != nil {
		r.metrics.IncRetrievalFailure(StageEmbed)
		return nil, &RetrievalError{Stage: StageEmbed, Cause: err}
	}

	hits, err := r.index.Query(ctx, r.cfg.IndexName, vectors[0], topK*OverFetchFactor)
	if err != nil {
		r.metrics.IncRetrievalFailure(StageQuery)
		return nil, &RetrievalError{Stage: StageQuery, Cause: err}
	}

	chunks := Rank(hits, r.cfg.Threshold)
	r.logger.Debug("Retrieved chunks",
		logger.QueryField(query),
		logger.IntField("hits", len(hits)),
		logger.IntField("retained", len(chunks)),
		logger.Float64Field("threshold", r.cfg.Threshold),
	)
	return chunks, nil
}

// Rank drops hits scoring at or below threshold, orders the rest by
// descending score (stable) and numbers them from 1.
func Rank(hits []vectorindex.Hit, threshold float64) []ScoredChunk {
	kept := make([]vectorindex.Hit, 0, len(hits))
	for _, h := range hits {
		if h.Score > threshold {
			kept = append(kept, h)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Score > kept[j].Score })

	chunks := make([]ScoredChunk, len(kept))
	for i, h := range kept {
		chunks[i] = chunkFromMetadata(h.Metadata)
		chunks[i].Rank = i + 1
		chunks[i].Score = h.Score
	}
	return chunks
}

func chunkFromMetadata(md map[string]any) ScoredChunk {
	c := ScoredChunk{
		Text:                stringValue(md["text"]),
		Source:              stringValue(md["source"]),
		RelatedSessionTitle: stringValue(md["relatedSessionTitle"]),
	}
	if i, ok := intValue(md["sessionIndex"]); ok {
		c.SessionIndex = &i
	}
	if i, ok := intValue(md["relatedSessionIndex"]); ok {
		c.RelatedSessionIndex = &i
	}
	return c
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

// intValue accepts the numeric types produced by JSON decoding and by
// in-process metadata maps. Fractional values are rejected.
func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case float32:
		if float64(n) != math.Trunc(float64(n)) {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}
