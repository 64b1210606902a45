// Package assembler produces the final session list returned to callers.
package assembler

import "github.com/lewisedginton/session_concierge/internal/catalog"

// Assemble dedupes matches by title, keeping the first occurrence and the
// input order. The result is never nil and shares no memory with matches.
// Assemble(Assemble(x)) equals Assemble(x).
func Assemble(matches []catalog.MatchedSession) []catalog.MatchedSession {
	out := make([]catalog.MatchedSession, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		if _, dup := seen[m.Session.Title]; dup {
			continue
		}
		seen[m.Session.Title] = struct{}{}
		out = append(out, catalog.MatchedSession{
			Session:     m.Session.Clone(),
			MatchReason: m.MatchReason,
		})
	}
	return out
}

// Sessions strips the match reasons.
func Sessions(matches []catalog.MatchedSession) []catalog.Session {
	out := make([]catalog.Session, len(matches))
	for i, m := range matches {
		out[i] = m.Session.Clone()
	}
	return out
}
