// Package search runs the retrieval, matching and assembling pipeline behind
// every transport.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lewisedginton/session_concierge/internal/assembler"
	"github.com/lewisedginton/session_concierge/internal/catalog"
	"github.com/lewisedginton/session_concierge/internal/matcher"
	"github.com/lewisedginton/session_concierge/internal/retriever"
	"github.com/lewisedginton/session_concierge/internal/textgen"
	"github.com/lewisedginton/session_concierge/pkg/logger"
	"github.com/lewisedginton/session_concierge/pkg/metrics"
	"github.com/lewisedginton/session_concierge/pkg/prefixed_uuid"
)

// Defaults applied when Options leave them unset.
const (
	DefaultTopK    = 5
	DefaultMaxTopK = 20
)

// ChunkRetriever is the retrieval stage.
type ChunkRetriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]retriever.ScoredChunk, error)
}

// Request is one search.
type Request struct {
	Query string `json:"query"`
	// TopK of 0 selects the default; values above the maximum are clamped
	TopK int `json:"topK,omitempty"`
	// ThreadID scopes the result cache. Unscoped searches are never cached.
	ThreadID string `json:"threadId,omitempty"`
}

// Result is the assembled answer to a Request.
type Result struct {
	ID       string                   `json:"id"`
	Query    string                   `json:"query"`
	Sessions []catalog.MatchedSession `json:"sessions"`
	Chunks   []retriever.ScoredChunk  `json:"chunks"`
	Summary  string                   `json:"summary"`
	Cached   bool                     `json:"cached,omitempty"`
}

// Options configures a Service.
type Options struct {
	DefaultTopK int
	MaxTopK     int
	// Cache is optional
	Cache   *ResultCache
	Metrics *metrics.Metrics
	Logger  logger.Logger
}

// Service is safe for concurrent use.
type Service struct {
	retriever ChunkRetriever
	matcher   matcher.Matcher
	cache     *ResultCache
	topK      int
	maxTopK   int
	metrics   *metrics.Metrics
	logger    logger.Logger
}

// New creates a Service.
func New(r ChunkRetriever, m matcher.Matcher, opts Options) *Service {
	if opts.DefaultTopK <= 0 {
		opts.DefaultTopK = DefaultTopK
	}
	if opts.MaxTopK <= 0 {
		opts.MaxTopK = DefaultMaxTopK
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	return &Service{
		retriever: r,
		matcher:   m,
		cache:     opts.Cache,
		topK:      opts.DefaultTopK,
		maxTopK:   opts.MaxTopK,
		metrics:   opts.Metrics,
		logger:    opts.Logger.WithFields(logger.StringField("component", "search")),
	}
}

// Strategy is the matching strategy in use.
func (s *Service) Strategy() string {
	return s.matcher.Strategy()
}

// Search runs the pipeline. onToken, when non-nil and the matcher streams,
// receives model tokens as they arrive; the result is only produced once the
// whole response has been parsed.
func (s *Service) Search(ctx context.Context, req Request, onToken textgen.TokenFunc) (Result, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return Result{}, retriever.ErrEmptyQuery
	}
	topK, err := s.resolveTopK(req.TopK)
	if err != nil {
		return Result{}, err
	}

	start := time.Now()
	strategy := s.matcher.Strategy()
	id := prefixed_uuid.NewString(prefixed_uuid.PrefixSearch)
	log := s.logger.WithFields(logger.SearchIDField(id), logger.QueryField(query))

	key, cacheable := s.cacheKey(req.ThreadID, strategy, topK, query)
	if cacheable {
		if cached, hit := s.cache.Get(ctx, key); hit {
			s.metrics.IncCacheLookup(cacheName, true)
			cached.ID = id
			cached.Cached = true
			log.Debug("Served search from cache", logger.ThreadIDField(req.ThreadID))
			s.metrics.ObserveSearch(strategy, outcomeFor(cached), time.Since(start))
			return cached, nil
		}
		s.metrics.IncCacheLookup(cacheName, false)
	}

	chunks, err := s.retriever.Retrieve(ctx, query, topK)
	if err != nil {
		s.metrics.ObserveSearch(strategy, metrics.OutcomeRetrievalError, time.Since(start))
		log.Error("Retrieval failed", logger.ErrorField(err))
		return Result{}, err
	}

	var matches []catalog.MatchedSession
	if streamer, ok := s.matcher.(matcher.TokenStreamer); ok && onToken != nil {
		matches, err = streamer.MatchStream(ctx, chunks, query, onToken)
	} else {
		matches, err = s.matcher.Match(ctx, chunks, query)
	}
	if err != nil {
		var formatErr *matcher.ExtractionFormatError
		outcome := metrics.OutcomeError
		if errors.As(err, &formatErr) {
			outcome = metrics.OutcomeExtractionError
		}
		s.metrics.ObserveSearch(strategy, outcome, time.Since(start))
		log.Error("Matching failed", logger.StringField("strategy", strategy), logger.ErrorField(err))
		return Result{}, err
	}

	res := Result{
		ID:       id,
		Query:    query,
		Sessions: assembler.Assemble(matches),
		Chunks:   chunks,
		Summary:  Summary(len(chunks)),
	}
	if cacheable {
		s.cache.Set(ctx, key, res)
	}
	s.metrics.ObserveSearch(strategy, outcomeFor(res), time.Since(start))
	log.Info("Search completed",
		logger.StringField("strategy", strategy),
		logger.IntField("chunks", len(chunks)),
		logger.IntField("sessions", len(res.Sessions)),
		logger.DurationField("duration", time.Since(start)))
	return res, nil
}

// Summary describes how much evidence a search found.
func Summary(chunks int) string {
	return fmt.Sprintf("Found %d relevant document chunks", chunks)
}

// IsInvalidRequest reports whether err was caused by the request itself
// rather than a pipeline failure.
func IsInvalidRequest(err error) bool {
	return errors.Is(err, retriever.ErrEmptyQuery) || errors.Is(err, retriever.ErrInvalidTopK)
}

func (s *Service) resolveTopK(topK int) (int, error) {
	switch {
	case topK < 0:
		return 0, fmt.Errorf("%w: got %d", retriever.ErrInvalidTopK, topK)
	case topK == 0:
		return s.topK, nil
	case topK > s.maxTopK:
		return s.maxTopK, nil
	default:
		return topK, nil
	}
}

func (s *Service) cacheKey(threadID, strategy string, topK int, query string) (string, bool) {
	if s.cache == nil || threadID == "" {
		return "", false
	}
	return Key(threadID, strategy, topK, query), true
}

func outcomeFor(r Result) string {
	if len(r.Sessions) == 0 {
		return metrics.OutcomeEmpty
	}
	return metrics.OutcomeOK
}
