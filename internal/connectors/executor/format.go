package executor

import (
	"fmt"
	"strings"

	"github.com/lewisedginton/session_concierge/internal/catalog"
	"github.com/lewisedginton/session_concierge/internal/search"
)

// Formatter renders a search result for a chat platform.
type Formatter interface {
	FormatResult(res search.Result) string
}

// PlainFormatter renders plain text that every platform displays as-is.
type PlainFormatter struct{}

func (PlainFormatter) FormatResult(res search.Result) string {
	if len(res.Sessions) == 0 {
		return fmt.Sprintf("I couldn't find any sessions matching %q.\n%s", res.Query, res.Summary)
	}

	var sb strings.Builder
	sb.WriteString(res.Summary)
	sb.WriteString("\n")
	for i, m := range res.Sessions {
		sb.WriteString(fmt.Sprintf("\n%d. %s\n", i+1, m.Session.Title))
		if line := ScheduleLine(m.Session); line != "" {
			sb.WriteString("   " + line + "\n")
		}
		if len(m.Session.Speakers) > 0 {
			sb.WriteString("   Speakers: " + strings.Join(m.Session.Speakers, ", ") + "\n")
		}
		if m.MatchReason != "" {
			sb.WriteString("   Why: " + m.MatchReason + "\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// ScheduleLine joins the time slot and room, skipping whichever is missing.
func ScheduleLine(s catalog.Session) string {
	var parts []string
	switch {
	case s.Time.Start != "" && s.Time.End != "":
		parts = append(parts, s.Time.Start+" - "+s.Time.End)
	case s.Time.Start != "":
		parts = append(parts, s.Time.Start)
	}
	if s.Room != "" {
		parts = append(parts, s.Room)
	}
	return strings.Join(parts, " · ")
}
