package agents

import (
	"strings"

	"github.com/goccy/go-json"
	"google.golang.org/adk/session"
	"google.golang.org/genai"

	"github.com/lewisedginton/session_concierge/internal/messages"
)

const userAuthor = "user"

// eventMessage converts a completed event to the memory dialect. Function
// responses become a tool message, user turns a string message and anything
// else the model said an assistant message. ok is false for events with
// nothing to persist.
func eventMessage(ev *session.Event) (msg messages.MemoryMessage, ok bool, err error) {
	if ev.Content == nil {
		return msg, false, nil
	}

	var (
		texts   []string
		calls   []messages.Part
		results []messages.Part
	)
	for _, p := range ev.Content.Parts {
		switch {
		case p == nil || p.Thought:
			continue
		case p.FunctionCall != nil:
			args := p.FunctionCall.Args
			if args == nil {
				args = map[string]any{}
			}
			part, err := messages.ToolCallPart(p.FunctionCall.ID, p.FunctionCall.Name, args)
			if err != nil {
				return msg, false, err
			}
			calls = append(calls, part)
		case p.FunctionResponse != nil:
			part, err := messages.ToolResultPart(p.FunctionResponse.ID, p.FunctionResponse.Name, p.FunctionResponse.Response)
			if err != nil {
				return msg, false, err
			}
			results = append(results, part)
		case p.Text != "":
			texts = append(texts, p.Text)
		}
	}

	msg = messages.MemoryMessage{ID: ev.ID, CreatedAt: ev.Timestamp}
	switch {
	case len(results) > 0:
		msg.Role = messages.RoleTool
		msg.Content = messages.PartsContent(results...)
	case ev.Author == userAuthor:
		if len(texts) == 0 {
			return msg, false, nil
		}
		msg.Role = messages.RoleUser
		msg.Content = messages.StringContent(strings.Join(texts, "\n"))
	case len(calls) > 0:
		parts := make([]messages.Part, 0, len(texts)+len(calls))
		for _, t := range texts {
			parts = append(parts, messages.TextPart(t))
		}
		msg.Role = messages.RoleAssistant
		msg.Content = messages.PartsContent(append(parts, calls...)...)
	case len(texts) > 0:
		msg.Role = messages.RoleAssistant
		msg.Content = messages.StringContent(strings.Join(texts, ""))
	default:
		return msg, false, nil
	}
	return msg, true, nil
}

// historyEvents replays stored messages as session events authored by
// agentName. The window starts at the first user message so a truncated
// history never opens on a tool result, and tool calls without a stored
// result are dropped because providers reject unanswered calls.
func historyEvents(stored []messages.MemoryMessage, agentName string) []*session.Event {
	start := len(stored)
	for i, m := range stored {
		if m.Role == messages.RoleUser {
			start = i
			break
		}
	}
	stored = stored[start:]

	answered := map[string]bool{}
	for _, m := range stored {
		if m.Role != messages.RoleTool {
			continue
		}
		for _, p := range m.Content.Parts {
			if p.Type == messages.PartToolResult {
				answered[p.ToolCallID] = true
			}
		}
	}

	events := make([]*session.Event, 0, len(stored))
	for _, m := range stored {
		content := historyContent(m, answered)
		if content == nil {
			continue
		}
		ev := &session.Event{ID: m.ID, Timestamp: m.CreatedAt, Author: agentName}
		if m.Role == messages.RoleUser {
			ev.Author = userAuthor
		}
		ev.Content = content
		events = append(events, ev)
	}
	return events
}

func historyContent(m messages.MemoryMessage, answered map[string]bool) *genai.Content {
	switch m.Role {
	case messages.RoleUser:
		text := m.Content.PlainText()
		if text == "" {
			return nil
		}
		return genai.NewContentFromText(text, genai.RoleUser)

	case messages.RoleAssistant:
		if !m.Content.IsParts() {
			if m.Content.Text == "" {
				return nil
			}
			return genai.NewContentFromText(m.Content.Text, genai.RoleModel)
		}
		var parts []*genai.Part
		for _, p := range m.Content.Parts {
			switch {
			case p.Type == messages.PartText && p.Text != "":
				parts = append(parts, &genai.Part{Text: p.Text})
			case p.Type == messages.PartToolCall && answered[p.ToolCallID]:
				parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{
					ID:   p.ToolCallID,
					Name: p.ToolName,
					Args: decodeObject(p.Args),
				}})
			}
		}
		if len(parts) == 0 {
			return nil
		}
		return &genai.Content{Role: genai.RoleModel, Parts: parts}

	case messages.RoleTool:
		var parts []*genai.Part
		for _, p := range m.Content.Parts {
			if p.Type != messages.PartToolResult {
				continue
			}
			parts = append(parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       p.ToolCallID,
				Name:     p.ToolName,
				Response: decodeObject(p.Result),
			}})
		}
		if len(parts) == 0 {
			return nil
		}
		return &genai.Content{Role: genai.RoleUser, Parts: parts}
	}
	return nil
}

// decodeObject decodes raw as a JSON object. Other values are wrapped under
// "result" since function call arguments and responses must be objects.
func decodeObject(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return map[string]any{}
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return map[string]any{"result": string(raw)}
	}
	switch obj := v.(type) {
	case map[string]any:
		return obj
	case nil:
		return map[string]any{}
	default:
		return map[string]any{"result": obj}
	}
}
