// Package matcher reconciles retrieved chunks with the session catalog.
//
// The direct strategy follows sessionIndex links and never calls a model. The
// assisted strategy hands the chunks and the full catalog to a text generator
// and keeps only the titles that exist in the catalog.
package matcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/lewisedginton/session_concierge/internal/catalog"
	"github.com/lewisedginton/session_concierge/internal/retriever"
	"github.com/lewisedginton/session_concierge/internal/textgen"
	"github.com/lewisedginton/session_concierge/pkg/logger"
	"github.com/lewisedginton/session_concierge/pkg/metrics"
)

// Strategies
const (
	StrategyDirect   = "direct"
	StrategyAssisted = "assisted"
)

var ErrUnknownStrategy = errors.New("unknown matching strategy")

// Matcher maps chunks to catalog sessions ordered by relevance. Results never
// repeat a title and never contain a session absent from the catalog.
type Matcher interface {
	Match(ctx context.Context, chunks []retriever.ScoredChunk, query string) ([]catalog.MatchedSession, error)
	Strategy() string
}

// TokenStreamer is implemented by matchers that can forward model tokens while
// they buffer the response.
type TokenStreamer interface {
	MatchStream(ctx context.Context, chunks []retriever.ScoredChunk, query string, onToken textgen.TokenFunc) ([]catalog.MatchedSession, error)
}

// Options are shared by both strategies.
type Options struct {
	Logger  logger.Logger
	Metrics *metrics.Metrics
	// MaxTokens bounds the assisted extraction response
	MaxTokens int
	// Instructions replaces the assisted system prompt when set
	Instructions string
}

// New builds the matcher for strategy. gen is only required for the assisted strategy.
func New(strategy string, cat *catalog.Catalog, gen textgen.Generator, opts Options) (Matcher, error) {
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	switch strategy {
	case StrategyDirect:
		return NewDirect(cat, opts), nil
	case StrategyAssisted:
		if gen == nil {
			return nil, fmt.Errorf("assisted strategy requires a text generator")
		}
		return NewAssisted(cat, gen, opts), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}
}
