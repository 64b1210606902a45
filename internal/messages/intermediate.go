package messages

// Kind classifies an intermediate record.
type Kind int

const (
	KindText Kind = iota
	KindToolCall
	KindToolResult
)

// FunctionCall names a function and its JSON-encoded arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCall is one function invocation.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// IntermediateMessage is a flat record carrying at most one tool call or
// result. Records produced by MemoryToIntermediate never nest.
type IntermediateMessage struct {
	ID              string     `json:"id"`
	Role            Role       `json:"role"`
	Content         string     `json:"content,omitempty"`
	ToolCalls       []ToolCall `json:"toolCalls,omitempty"`
	ToolCallID      string     `json:"toolCallId,omitempty"`
	ParentMessageID string     `json:"parentMessageId,omitempty"`
	ActionName      string     `json:"actionName,omitempty"`
}

// Kind reports which variant the record is.
func (m IntermediateMessage) Kind() Kind {
	switch {
	case m.Role == RoleTool:
		return KindToolResult
	case len(m.ToolCalls) > 0:
		return KindToolCall
	default:
		return KindText
	}
}
