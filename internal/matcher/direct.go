package matcher

import (
	"context"
	"fmt"

	"github.com/lewisedginton/session_concierge/internal/catalog"
	"github.com/lewisedginton/session_concierge/internal/retriever"
	"github.com/lewisedginton/session_concierge/pkg/logger"
)

// Direct resolves chunk sessionIndex links against the catalog.
type Direct struct {
	catalog *catalog.Catalog
	logger  logger.Logger
}

func NewDirect(cat *catalog.Catalog, opts Options) *Direct {
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	return &Direct{
		catalog: cat,
		logger:  opts.Logger.WithFields(logger.StringField("component", "matcher"), logger.StringField("strategy", StrategyDirect)),
	}
}

func (d *Direct) Strategy() string { return StrategyDirect }

// Match walks chunks in rank order. Chunks without a resolvable sessionIndex
// are dropped and the first chunk for a title wins.
func (d *Direct) Match(ctx context.Context, chunks []retriever.ScoredChunk, _ string) ([]catalog.MatchedSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]catalog.MatchedSession, 0, len(chunks))
	seen := make(map[string]bool, len(chunks))
	for _, c := range chunks {
		if c.SessionIndex == nil {
			continue
		}
		s, ok := d.catalog.At(*c.SessionIndex)
		if !ok {
			d.logger.Debug("Dropping chunk with out of range session index", logger.IntField("session_index", *c.SessionIndex))
			continue
		}
		if seen[s.Title] {
			continue
		}
		seen[s.Title] = true
		out = append(out, catalog.MatchedSession{
			Session:     s,
			MatchReason: fmt.Sprintf("Direct match from result #%d (score %.3f)", c.Rank, c.Score),
		})
	}
	return out, nil
}
