package matcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-json"

	"github.com/lewisedginton/session_concierge/internal/catalog"
	"github.com/lewisedginton/session_concierge/internal/retriever"
	"github.com/lewisedginton/session_concierge/internal/textgen"
	"github.com/lewisedginton/session_concierge/pkg/logger"
	"github.com/lewisedginton/session_concierge/pkg/metrics"
)

// ExtractionFormatError is returned when the model output is not a JSON array
// of {session, matchReason} objects. Raw holds the complete output.
type ExtractionFormatError struct {
	Raw   string
	Cause error
}

func (e *ExtractionFormatError) Error() string {
	return fmt.Sprintf("extraction output is not valid: %v", e.Cause)
}

func (e *ExtractionFormatError) Unwrap() error {
	return e.Cause
}

// Only the title is used; the rest of the model's session copy is discarded
// in favour of the catalog entry.
type extractedSession struct {
	Title string `json:"title"`
}

type extractedMatch struct {
	Session     *extractedSession `json:"session"`
	MatchReason string            `json:"matchReason"`
}

// parseExtraction decodes the buffered model output. Nothing is returned
// unless the whole text is one well formed array.
func parseExtraction(raw string) ([]extractedMatch, error) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "[") {
		return nil, errors.New("expected a JSON array")
	}

	var out []extractedMatch
	if err := json.Unmarshal([]byte(trimmed), &out); err != nil {
		return nil, err
	}

	for i, m := range out {
		if m.Session == nil {
			return nil, fmt.Errorf("element %d has no session object", i)
		}
		if strings.TrimSpace(m.Session.Title) == "" {
			return nil, fmt.Errorf("element %d has an empty session title", i)
		}
	}
	return out, nil
}

// Assisted asks a text generator to reconcile chunks with the catalog.
type Assisted struct {
	catalog      *catalog.Catalog
	generator    textgen.Generator
	instructions string
	maxTokens    int
	metrics      *metrics.Metrics
	logger       logger.Logger
}

func NewAssisted(cat *catalog.Catalog, gen textgen.Generator, opts Options) *Assisted {
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	if opts.Instructions == "" {
		opts.Instructions = extractionInstructions
	}
	return &Assisted{
		catalog:      cat,
		generator:    gen,
		instructions: opts.Instructions,
		maxTokens:    opts.MaxTokens,
		metrics:      opts.Metrics,
		logger: opts.Logger.WithFields(
			logger.StringField("component", "matcher"),
			logger.StringField("strategy", StrategyAssisted),
			logger.StringField("model", gen.Name()),
		),
	}
}

func (a *Assisted) Strategy() string { return StrategyAssisted }

func (a *Assisted) Match(ctx context.Context, chunks []retriever.ScoredChunk, query string) ([]catalog.MatchedSession, error) {
	return a.MatchStream(ctx, chunks, query, nil)
}

// MatchStream is Match with model tokens forwarded to onToken. Parsing starts
// only once the stream has completed.
func (a *Assisted) MatchStream(ctx context.Context, chunks []retriever.ScoredChunk, query string, onToken textgen.TokenFunc) ([]catalog.MatchedSession, error) {
	if len(chunks) == 0 {
		return []catalog.MatchedSession{}, nil
	}

	prompt, err := buildPrompt(a.catalog, chunks, query)
	if err != nil {
		return nil, err
	}

	raw, err := a.generator.Generate(ctx, textgen.Request{
		System:    a.instructions,
		Prompt:    prompt,
		MaxTokens: a.maxTokens,
	}, onToken)
	if err != nil {
		return nil, fmt.Errorf("text generation failed: %w", err)
	}

	extracted, err := parseExtraction(raw)
	if err != nil {
		a.metrics.IncExtractionFailure()
		a.logger.Warn("Extraction output rejected", logger.ErrorField(err), logger.IntField("raw_length", len(raw)))
		return nil, &ExtractionFormatError{Raw: raw, Cause: err}
	}

	return a.reconcile(extracted, chunks), nil
}

// reconcile keeps catalog titles only, dedupes them and orders by model
// position, then by the best rank of a chunk linked to the session.
func (a *Assisted) reconcile(extracted []extractedMatch, chunks []retriever.ScoredChunk) []catalog.MatchedSession {
	support := a.supportingRanks(chunks)

	type ranked struct {
		match    catalog.MatchedSession
		position int
		support  int
	}

	kept := make([]ranked, 0, len(extracted))
	seen := make(map[string]bool, len(extracted))
	fabricated := 0
	for pos, m := range extracted {
		s, ok := a.catalog.ByTitle(m.Session.Title)
		if !ok {
			fabricated++
			a.logger.Debug("Dropping session not in catalog", logger.StringField("title", m.Session.Title))
			continue
		}
		if seen[s.Title] {
			continue
		}
		seen[s.Title] = true

		rank, linked := support[s.Title]
		if !linked {
			rank = len(chunks) + 1
		}
		reason := strings.TrimSpace(m.MatchReason)
		if reason == "" {
			reason = fallbackReason(rank, linked)
		}
		kept = append(kept, ranked{
			match:    catalog.MatchedSession{Session: s, MatchReason: reason},
			position: pos,
			support:  rank,
		})
	}
	a.metrics.AddFabricatedTitles(fabricated)

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].position != kept[j].position {
			return kept[i].position < kept[j].position
		}
		return kept[i].support < kept[j].support
	})

	out := make([]catalog.MatchedSession, len(kept))
	for i, k := range kept {
		out[i] = k.match
	}
	return out
}

// supportingRanks maps a title to the lowest rank of a chunk that links to it
// through sessionIndex, relatedSessionIndex or relatedSessionTitle.
func (a *Assisted) supportingRanks(chunks []retriever.ScoredChunk) map[string]int {
	ranks := make(map[string]int)
	note := func(title string, rank int) {
		if title == "" {
			return
		}
		if r, ok := ranks[title]; !ok || rank < r {
			ranks[title] = rank
		}
	}
	for _, c := range chunks {
		for _, idx := range []*int{c.SessionIndex, c.RelatedSessionIndex} {
			if idx == nil {
				continue
			}
			if s, ok := a.catalog.At(*idx); ok {
				note(s.Title, c.Rank)
			}
		}
		if a.catalog.Contains(c.RelatedSessionTitle) {
			note(c.RelatedSessionTitle, c.Rank)
		}
	}
	return ranks
}

func fallbackReason(rank int, linked bool) string {
	if linked {
		return fmt.Sprintf("Linked to search result #%d", rank)
	}
	return "Selected by the assistant from the search results"
}
