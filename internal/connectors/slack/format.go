package slack

import (
	"fmt"
	"strings"

	"github.com/lewisedginton/session_concierge/internal/connectors/executor"
	"github.com/lewisedginton/session_concierge/internal/search"
)

// Formatter renders results as Slack mrkdwn.
type Formatter struct{}

func (Formatter) FormatResult(res search.Result) string {
	if len(res.Sessions) == 0 {
		return fmt.Sprintf("I couldn't find any sessions matching _%s_.\n%s", escape(res.Query), res.Summary)
	}

	var sb strings.Builder
	sb.WriteString(res.Summary)
	sb.WriteString("\n")
	for i, m := range res.Sessions {
		sb.WriteString(fmt.Sprintf("\n*%d. %s*\n", i+1, escape(m.Session.Title)))
		if line := executor.ScheduleLine(m.Session); line != "" {
			sb.WriteString(":clock3: " + escape(line) + "\n")
		}
		if len(m.Session.Speakers) > 0 {
			sb.WriteString(":studio_microphone: " + escape(strings.Join(m.Session.Speakers, ", ")) + "\n")
		}
		if m.MatchReason != "" {
			sb.WriteString("> " + escape(m.MatchReason) + "\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

var mrkdwnEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// escape applies the three escapes Slack requires in message text.
func escape(s string) string {
	return mrkdwnEscaper.Replace(s)
}
