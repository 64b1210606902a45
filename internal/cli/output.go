package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/goccy/go-json"

	"github.com/lewisedginton/session_concierge/internal/connectors/executor"
	"github.com/lewisedginton/session_concierge/internal/messages"
	"github.com/lewisedginton/session_concierge/internal/search"
)

var (
	// Styles
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	idStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Italic(true)

	countStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	scheduleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	reasonStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("135")).
			Italic(true)

	roleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62"))
)

// terminalFormatter renders search results for a terminal.
type terminalFormatter struct{}

var _ executor.Formatter = terminalFormatter{}

func (terminalFormatter) FormatResult(res search.Result) string {
	var sb strings.Builder
	sb.WriteString(headerStyle.Render(fmt.Sprintf("Sessions for %q", res.Query)))
	sb.WriteString("\n")
	sb.WriteString(countStyle.Render(res.Summary))
	sb.WriteString("  ")
	sb.WriteString(idStyle.Render(res.ID))
	sb.WriteString("\n")

	if len(res.Sessions) == 0 {
		sb.WriteString("\nNo matching sessions.\n")
		return sb.String()
	}

	for i, m := range res.Sessions {
		fmt.Fprintf(&sb, "\n%2d. %s\n", i+1, titleStyle.Render(m.Session.Title))
		if line := executor.ScheduleLine(m.Session); line != "" {
			sb.WriteString("    " + scheduleStyle.Render(line) + "\n")
		}
		if len(m.Session.Speakers) > 0 {
			sb.WriteString("    " + strings.Join(m.Session.Speakers, ", ") + "\n")
		}
		if m.MatchReason != "" {
			sb.WriteString("    " + reasonStyle.Render(m.MatchReason) + "\n")
		}
	}
	return sb.String()
}

// writeHistory prints a thread's legacy messages, one block per message.
func writeHistory(w io.Writer, threadID string, msgs []messages.LegacyMessage) error {
	if _, err := fmt.Fprintln(w, headerStyle.Render("Thread "+threadID)); err != nil {
		return err
	}
	if len(msgs) == 0 {
		_, err := fmt.Fprintln(w, "No messages.")
		return err
	}

	for _, msg := range msgs {
		var line string
		switch m := msg.(type) {
		case messages.TextMessage:
			line = roleStyle.Render(string(m.Role)) + ": " + m.Content
		case messages.ActionExecutionMessage:
			args, _ := json.Marshal(m.Arguments)
			line = roleStyle.Render("action") + " " + m.Name + " " + idStyle.Render(string(args))
		case messages.ResultMessage:
			line = roleStyle.Render("result") + " " + m.ActionName + ": " + m.Result
		default:
			line = msg.LegacyType()
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
