// Package messages converts persisted conversation history between the
// memory-store dialect, the flat intermediate dialect and the legacy display
// dialect consumed by chat clients.
package messages

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Role of a message author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// PartType tags a structured content part.
type PartType string

const (
	PartText       PartType = "text"
	PartToolCall   PartType = "tool-call"
	PartToolResult PartType = "tool-result"
)

// Part is one element of structured memory content. Which fields are set
// depends on Type.
type Part struct {
	Type       PartType        `json:"type"`
	Text       string          `json:"text,omitempty"`
	ToolCallID string          `json:"toolCallId,omitempty"`
	ToolName   string          `json:"toolName,omitempty"`
	Args       json.RawMessage `json:"args,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
}

// TextPart builds a text part.
func TextPart(text string) Part {
	return Part{Type: PartText, Text: text}
}

// ToolCallPart builds a tool-call part. args is encoded as JSON.
func ToolCallPart(id, name string, args any) (Part, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return Part{}, fmt.Errorf("failed to encode tool arguments: %w", err)
	}
	return Part{Type: PartToolCall, ToolCallID: id, ToolName: name, Args: raw}, nil
}

// ToolResultPart builds a tool-result part. result is encoded as JSON.
func ToolResultPart(id, name string, result any) (Part, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return Part{}, fmt.Errorf("failed to encode tool result: %w", err)
	}
	return Part{Type: PartToolResult, ToolCallID: id, ToolName: name, Result: raw}, nil
}

// Content is either a plain string or a sequence of parts.
type Content struct {
	Text  string
	Parts []Part
}

// StringContent wraps plain text.
func StringContent(s string) Content {
	return Content{Text: s}
}

// PartsContent wraps structured parts.
func PartsContent(parts ...Part) Content {
	if parts == nil {
		parts = []Part{}
	}
	return Content{Parts: parts}
}

// IsParts reports whether the content is structured.
func (c Content) IsParts() bool {
	return c.Parts != nil
}

// PlainText is the string content, or the text parts joined by newlines.
func (c Content) PlainText() string {
	if !c.IsParts() {
		return c.Text
	}
	var texts []string
	for _, p := range c.Parts {
		if p.Type == PartText {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// firstText returns the string content or the first text part.
func (c Content) firstText() (string, bool) {
	if !c.IsParts() {
		return c.Text, true
	}
	for _, p := range c.Parts {
		if p.Type == PartText {
			return p.Text, true
		}
	}
	return "", false
}

func (c Content) MarshalJSON() ([]byte, error) {
	if c.IsParts() {
		return json.Marshal(c.Parts)
	}
	return json.Marshal(c.Text)
}

func (c *Content) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*c = Content{}
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Content{Text: s}
		return nil
	case data[0] == '[':
		parts := []Part{}
		if err := json.Unmarshal(data, &parts); err != nil {
			return err
		}
		*c = Content{Parts: parts}
		return nil
	default:
		return fmt.Errorf("message content must be a string or an array of parts")
	}
}

// MemoryMessage is a message as persisted by the memory store.
type MemoryMessage struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   Content   `json:"content"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}
