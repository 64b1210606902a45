package agents

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/adk/session"
	"google.golang.org/genai"

	"github.com/lewisedginton/session_concierge/internal/messages"
)

func event(author string, parts ...*genai.Part) *session.Event {
	ev := &session.Event{ID: "ev-1", Author: author, Timestamp: time.Unix(1700000000, 0)}
	ev.Content = &genai.Content{Role: genai.RoleModel, Parts: parts}
	return ev
}

func TestEventMessage(t *testing.T) {
	t.Run("user text", func(t *testing.T) {
		msg, ok, err := eventMessage(event("user", &genai.Part{Text: "rust talks"}))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, messages.RoleUser, msg.Role)
		assert.Equal(t, messages.StringContent("rust talks"), msg.Content)
		assert.Equal(t, "ev-1", msg.ID)
	})

	t.Run("assistant text", func(t *testing.T) {
		msg, ok, err := eventMessage(event(AgentName, &genai.Part{Text: "Found "}, &genai.Part{Text: "2 sessions."}))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, messages.RoleAssistant, msg.Role)
		assert.Equal(t, "Found 2 sessions.", msg.Content.PlainText())
	})

	t.Run("tool call keeps id and arguments", func(t *testing.T) {
		msg, ok, err := eventMessage(event(AgentName,
			&genai.Part{Text: "Searching"},
			&genai.Part{FunctionCall: &genai.FunctionCall{ID: "c1", Name: SearchToolName, Args: map[string]any{"query": "rust"}}}))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, messages.RoleAssistant, msg.Role)
		require.Len(t, msg.Content.Parts, 2)
		assert.Equal(t, messages.PartText, msg.Content.Parts[0].Type)
		call := msg.Content.Parts[1]
		assert.Equal(t, messages.PartToolCall, call.Type)
		assert.Equal(t, "c1", call.ToolCallID)
		assert.JSONEq(t, `{"query":"rust"}`, string(call.Args))
	})

	t.Run("nil arguments become an object", func(t *testing.T) {
		msg, _, err := eventMessage(event(AgentName, &genai.Part{FunctionCall: &genai.FunctionCall{ID: "c1", Name: SearchToolName}}))
		require.NoError(t, err)
		assert.JSONEq(t, `{}`, string(msg.Content.Parts[0].Args))
	})

	t.Run("function response is a tool message", func(t *testing.T) {
		msg, ok, err := eventMessage(event(AgentName, &genai.Part{FunctionResponse: &genai.FunctionResponse{
			ID: "c1", Name: SearchToolName, Response: map[string]any{"count": 2},
		}}))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, messages.RoleTool, msg.Role)
		assert.Equal(t, "c1", msg.Content.Parts[0].ToolCallID)
		assert.JSONEq(t, `{"count":2}`, string(msg.Content.Parts[0].Result))
	})

	t.Run("nothing to persist", func(t *testing.T) {
		for name, ev := range map[string]*session.Event{
			"no content": {Author: AgentName},
			"thought":    event(AgentName, &genai.Part{Text: "hmm", Thought: true}),
			"empty user": event("user"),
		} {
			_, ok, err := eventMessage(ev)
			require.NoError(t, err, name)
			assert.False(t, ok, name)
		}
	})
}

func storedExchange(t *testing.T) []messages.MemoryMessage {
	t.Helper()
	call, err := messages.ToolCallPart("c1", SearchToolName, map[string]any{"query": "rust"})
	require.NoError(t, err)
	result, err := messages.ToolResultPart("c1", SearchToolName, map[string]any{"count": 1})
	require.NoError(t, err)
	return []messages.MemoryMessage{
		{ID: "m1", Role: messages.RoleUser, Content: messages.StringContent("rust talks")},
		{ID: "m2", Role: messages.RoleAssistant, Content: messages.PartsContent(call)},
		{ID: "m3", Role: messages.RoleTool, Content: messages.PartsContent(result)},
		{ID: "m4", Role: messages.RoleAssistant, Content: messages.StringContent("I found 1 session.")},
	}
}

func TestHistoryEvents(t *testing.T) {
	events := historyEvents(storedExchange(t), AgentName)
	require.Len(t, events, 4)

	assert.Equal(t, "user", events[0].Author)
	assert.Equal(t, genai.RoleUser, events[0].Content.Role)
	assert.Equal(t, "rust talks", events[0].Content.Parts[0].Text)

	call := events[1].Content.Parts[0].FunctionCall
	require.NotNil(t, call)
	assert.Equal(t, AgentName, events[1].Author)
	assert.Equal(t, genai.RoleModel, events[1].Content.Role)
	assert.Equal(t, "c1", call.ID)
	assert.Equal(t, map[string]any{"query": "rust"}, call.Args)

	resp := events[2].Content.Parts[0].FunctionResponse
	require.NotNil(t, resp)
	assert.Equal(t, genai.RoleUser, events[2].Content.Role)
	assert.Equal(t, map[string]any{"count": float64(1)}, resp.Response)

	assert.Equal(t, "I found 1 session.", events[3].Content.Parts[0].Text)
	assert.Equal(t, "m4", events[3].ID)
}

func TestHistoryEvents_WindowStartsAtUser(t *testing.T) {
	stored := storedExchange(t)
	events := historyEvents(stored[2:], AgentName)
	assert.Empty(t, events, "a window without a user turn replays nothing")

	system := messages.MemoryMessage{Role: messages.RoleSystem, Content: messages.StringContent("be nice")}
	events = historyEvents(append([]messages.MemoryMessage{stored[3], system}, stored...), AgentName)
	require.Len(t, events, 4)
	assert.Equal(t, "user", events[0].Author)
}

func TestHistoryEvents_DropsUnansweredCalls(t *testing.T) {
	stored := storedExchange(t)
	events := historyEvents(stored[:2], AgentName)
	require.Len(t, events, 1, "the call without a result is dropped")
	assert.Equal(t, "user", events[0].Author)
}

func TestDecodeObject(t *testing.T) {
	tests := []struct {
		raw  string
		want map[string]any
	}{
		{"", map[string]any{}},
		{"null", map[string]any{}},
		{`{"a":1}`, map[string]any{"a": float64(1)}},
		{`"2 sessions"`, map[string]any{"result": "2 sessions"}},
		{`[1]`, map[string]any{"result": []any{float64(1)}}},
		{`{broken`, map[string]any{"result": "{broken"}},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, decodeObject(json.RawMessage(tt.raw)))
		})
	}
}
