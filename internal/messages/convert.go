package messages

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
)

// UnknownActionName is used when a result cannot be paired with its call.
const UnknownActionName = "unknown"

// ArgumentDecodeError reports tool-call arguments that are not valid JSON.
type ArgumentDecodeError struct {
	ToolCallID string
	Raw        string
	Cause      error
}

func (e *ArgumentDecodeError) Error() string {
	return fmt.Sprintf("tool call %q has undecodable arguments %q: %v", e.ToolCallID, e.Raw, e.Cause)
}

func (e *ArgumentDecodeError) Unwrap() error {
	return e.Cause
}

// MemoryToIntermediate flattens memory messages into single-purpose records.
// Assistant text comes before that message's tool calls, and every call is
// immediately followed by its result when one exists. Messages with an
// unrecognised role are skipped.
func MemoryToIntermediate(msgs []MemoryMessage) []IntermediateMessage {
	names := toolNames(msgs)

	out := make([]IntermediateMessage, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleUser, RoleSystem:
			out = append(out, IntermediateMessage{ID: m.ID, Role: m.Role, Content: m.Content.PlainText()})

		case RoleAssistant:
			if text, ok := m.Content.firstText(); ok {
				out = append(out, IntermediateMessage{ID: m.ID, Role: RoleAssistant, Content: text})
			}
			for _, p := range m.Content.Parts {
				if p.Type != PartToolCall {
					continue
				}
				out = append(out, IntermediateMessage{
					ID:   p.ToolCallID,
					Role: RoleAssistant,
					ToolCalls: []ToolCall{{
						ID:       p.ToolCallID,
						Type:     "function",
						Function: FunctionCall{Name: p.ToolName, Arguments: argumentsText(p.Args)},
					}},
					ParentMessageID: m.ID,
				})
			}

		case RoleTool:
			for _, p := range m.Content.Parts {
				if p.Type != PartToolResult {
					continue
				}
				name, ok := names[p.ToolCallID]
				if !ok {
					name = UnknownActionName
				}
				out = append(out, IntermediateMessage{
					ID:         m.ID + "-" + p.ToolCallID,
					Role:       RoleTool,
					Content:    resultText(p.Result),
					ToolCallID: p.ToolCallID,
					ActionName: name,
				})
			}
		}
	}

	return pairCallsWithResults(out)
}

// IntermediateToLegacy maps records onto the legacy display dialect. Text
// records with empty content are dropped.
func IntermediateToLegacy(msgs []IntermediateMessage) ([]LegacyMessage, error) {
	names := make(map[string]string)
	for _, m := range msgs {
		for _, tc := range m.ToolCalls {
			names[tc.ID] = tc.Function.Name
		}
	}

	out := make([]LegacyMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.Kind() == KindToolResult {
			name, ok := names[m.ToolCallID]
			if !ok {
				name = m.ActionName
			}
			if name == "" {
				name = UnknownActionName
			}
			out = append(out, ResultMessage{
				ID:                m.ID,
				Result:            m.Content,
				ActionExecutionID: m.ToolCallID,
				ActionName:        name,
			})
			continue
		}

		if m.Content != "" {
			out = append(out, TextMessage{ID: m.ID, Role: m.Role, Content: m.Content})
		}

		parent := m.ParentMessageID
		if parent == "" {
			parent = m.ID
		}
		for _, tc := range m.ToolCalls {
			args, err := decodeArguments(tc)
			if err != nil {
				return nil, err
			}
			out = append(out, ActionExecutionMessage{
				ID:              tc.ID,
				Name:            tc.Function.Name,
				Arguments:       args,
				ParentMessageID: parent,
			})
		}
	}
	return out, nil
}

// MemoryToLegacy composes MemoryToIntermediate and IntermediateToLegacy.
func MemoryToLegacy(msgs []MemoryMessage) ([]LegacyMessage, error) {
	return IntermediateToLegacy(MemoryToIntermediate(msgs))
}

func toolNames(msgs []MemoryMessage) map[string]string {
	names := make(map[string]string)
	for _, m := range msgs {
		if m.Role != RoleAssistant {
			continue
		}
		for _, p := range m.Content.Parts {
			if p.Type == PartToolCall {
				names[p.ToolCallID] = p.ToolName
			}
		}
	}
	return names
}

// pairCallsWithResults moves the first result of each call directly after
// it. Results without a matching call keep their position.
func pairCallsWithResults(records []IntermediateMessage) []IntermediateMessage {
	calls := make(map[string]bool)
	for _, r := range records {
		if r.Kind() == KindToolCall {
			for _, tc := range r.ToolCalls {
				calls[tc.ID] = true
			}
		}
	}

	paired := make(map[string]int)
	for i, r := range records {
		if r.Kind() != KindToolResult || !calls[r.ToolCallID] {
			continue
		}
		if _, seen := paired[r.ToolCallID]; !seen {
			paired[r.ToolCallID] = i
		}
	}

	out := make([]IntermediateMessage, 0, len(records))
	placed := make(map[int]bool)
	for i, r := range records {
		switch r.Kind() {
		case KindToolResult:
			if j, ok := paired[r.ToolCallID]; ok && j == i {
				continue
			}
			out = append(out, r)
		case KindToolCall:
			out = append(out, r)
			for _, tc := range r.ToolCalls {
				if j, ok := paired[tc.ID]; ok && !placed[j] {
					placed[j] = true
					out = append(out, records[j])
				}
			}
		default:
			out = append(out, r)
		}
	}
	return out
}

func argumentsText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "{}"
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// resultText keeps string results verbatim and encodes anything else as JSON.
func resultText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// decodeArguments only fails on malformed JSON. Any valid value is kept,
// with null read as an empty object.
func decodeArguments(tc ToolCall) (any, error) {
	var args any
	if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
		return nil, &ArgumentDecodeError{ToolCallID: tc.ID, Raw: tc.Function.Arguments, Cause: err}
	}
	if args == nil {
		return map[string]any{}, nil
	}
	return args, nil
}
