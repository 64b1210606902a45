package matcher

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/lewisedginton/session_concierge/internal/catalog"
	"github.com/lewisedginton/session_concierge/internal/retriever"
)

const extractionInstructions = `You match search results from an event's documentation to sessions in the event catalog.

You receive the complete session catalog, a ranked list of search result chunks and the user's query.
Pick the catalog sessions the chunks are evidence for, most relevant first. Apply these rules in priority order:
1. A chunk with relatedSessionTitle, relatedSessionIndex or sessionIndex refers to that catalog session.
2. A chunk that names a speaker refers to that speaker's sessions.
3. A chunk that names a room refers to the sessions held in that room.
4. Otherwise match on topic or keyword overlap with a session's title or description.

Only return sessions that appear in the catalog, copying the title exactly.
Return a JSON array where each element is {"session": <the catalog session object without its index>, "matchReason": "<one sentence naming the evidence>"}.
Return [] when nothing matches.
Output raw JSON only. Do not use markdown code fences, comments or any text before or after the array.`

type indexedSession struct {
	Index int `json:"index"`
	catalog.Session
}

// buildPrompt renders the catalog, the chunk evidence and the query.
func buildPrompt(cat *catalog.Catalog, chunks []retriever.ScoredChunk, query string) (string, error) {
	sessions := cat.Sessions()
	indexed := make([]indexedSession, len(sessions))
	for i, s := range sessions {
		indexed[i] = indexedSession{Index: i, Session: s}
	}

	catalogJSON, err := json.Marshal(indexed)
	if err != nil {
		return "", fmt.Errorf("failed to encode catalog: %w", err)
	}
	chunksJSON, err := json.Marshal(chunks)
	if err != nil {
		return "", fmt.Errorf("failed to encode chunks: %w", err)
	}

	var b strings.Builder
	b.WriteString("Session catalog:\n")
	b.Write(catalogJSON)
	b.WriteString("\n\nSearch results:\n")
	b.Write(chunksJSON)
	b.WriteString("\n\nQuery: ")
	b.WriteString(query)
	b.WriteString("\n")
	return b.String(), nil
}
