package conversation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/goccy/go-json"
	"github.com/lewisedginton/session_concierge/internal/catalog"
	"github.com/lewisedginton/session_concierge/internal/memory_store"
	"github.com/lewisedginton/session_concierge/internal/messages"
	"github.com/lewisedginton/session_concierge/internal/storage_manager"
	"github.com/lewisedginton/session_concierge/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T, limit int) (*Service, memory_store.Store) {
	t.Helper()
	log := logger.NewLogger(logger.Config{Level: logger.DebugLevel, Output: io.Discard})
	store := memory_store.NewFileStore(storage_manager.NewLocalFileProvider(t.TempDir()), log)
	return New(store, limit, log), store
}

type failingStore struct{ memory_store.Store }

func (failingStore) Query(context.Context, string, int) ([]messages.MemoryMessage, bool, error) {
	return nil, false, errors.New("disk on fire")
}

func TestLoadAgentState_NoHistory(t *testing.T) {
	svc, _ := newService(t, 0)

	state, err := svc.LoadAgentState(context.Background(), "fresh")
	require.NoError(t, err)
	assert.Equal(t, AgentState{ThreadID: "fresh", ThreadExists: false, State: "{}", Messages: "[]"}, state)

	msgs, err := svc.Messages(context.Background(), "fresh")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestLoadAgentState_EmptyThread(t *testing.T) {
	svc, store := newService(t, 0)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "t1"))
	state, err := svc.LoadAgentState(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, state.ThreadExists)
	assert.Equal(t, "[]", state.Messages)
}

// seedSearchTurn stores a turn the way the concierge agent records one.
func seedSearchTurn(t *testing.T, store memory_store.Store, threadID string) {
	t.Helper()

	call, err := messages.ToolCallPart("call-1", "find_sessions", map[string]any{"query": "sessions with a sea view", "topK": 5})
	require.NoError(t, err)
	result, err := messages.ToolResultPart("call-1", "find_sessions", map[string]any{
		"searchId": "search-123",
		"count":    1,
		"sessions": []catalog.MatchedSession{{Session: catalog.Session{Title: "Harbour Talks", Room: "Sea View Room"}}},
	})
	require.NoError(t, err)

	require.NoError(t, store.Append(context.Background(), threadID,
		messages.MemoryMessage{ID: "m1", Role: messages.RoleUser, Content: messages.StringContent("sessions with a sea view")},
		messages.MemoryMessage{ID: "m2", Role: messages.RoleAssistant, Content: messages.PartsContent(call)},
		messages.MemoryMessage{ID: "m3", Role: messages.RoleTool, Content: messages.PartsContent(result)},
		messages.MemoryMessage{ID: "m4", Role: messages.RoleAssistant, Content: messages.StringContent("I found 1 session for you.")},
	))
}

func TestMessages_SearchTurn(t *testing.T) {
	svc, store := newService(t, 0)
	ctx := context.Background()
	seedSearchTurn(t, store, "slack_U1_C1")

	msgs, err := svc.Messages(ctx, "slack_U1_C1")
	require.NoError(t, err)
	require.Len(t, msgs, 4)

	user := msgs[0].(messages.TextMessage)
	assert.Equal(t, messages.RoleUser, user.Role)
	assert.Equal(t, "sessions with a sea view", user.Content)

	action := msgs[1].(messages.ActionExecutionMessage)
	assert.Equal(t, "call-1", action.ID)
	assert.Equal(t, "find_sessions", action.Name)
	assert.Equal(t, map[string]any{"query": "sessions with a sea view", "topK": float64(5)}, action.Arguments)

	result := msgs[2].(messages.ResultMessage)
	assert.Equal(t, action.ID, result.ActionExecutionID)
	assert.Equal(t, "find_sessions", result.ActionName)
	var decoded struct {
		Sessions []catalog.MatchedSession `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal([]byte(result.Result), &decoded))
	assert.Equal(t, "Harbour Talks", decoded.Sessions[0].Session.Title)

	reply := msgs[3].(messages.TextMessage)
	assert.Equal(t, "I found 1 session for you.", reply.Content)
}

func TestLoadAgentState_SearchTurn(t *testing.T) {
	svc, store := newService(t, 0)
	ctx := context.Background()
	seedSearchTurn(t, store, "t")

	state, err := svc.LoadAgentState(ctx, "t")
	require.NoError(t, err)
	assert.True(t, state.ThreadExists)
	assert.Equal(t, "{}", state.State)

	var legacy []map[string]any
	require.NoError(t, json.Unmarshal([]byte(state.Messages), &legacy))
	require.Len(t, legacy, 4)
	assert.Equal(t, "ActionExecutionMessage", legacy[1]["type"])
	assert.Equal(t, "ResultMessage", legacy[2]["type"])
}

func TestMessages_HistoryWindow(t *testing.T) {
	svc, store := newService(t, 3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Append(ctx, "t", messages.MemoryMessage{
			ID: fmt.Sprintf("m%d", i), Role: messages.RoleUser, Content: messages.StringContent(fmt.Sprintf("msg %d", i)),
		}))
	}

	msgs, err := svc.Messages(ctx, "t")
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "m2", msgs[0].MessageID())
	assert.Equal(t, "m4", msgs[2].MessageID())
}

func TestMessages_StoreError(t *testing.T) {
	log := logger.NewLogger(logger.Config{Output: io.Discard})
	svc := New(failingStore{}, 0, log)

	_, err := svc.Messages(context.Background(), "t")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk on fire")
}

func TestNew_NilLogger(t *testing.T) {
	store := memory_store.NewFileStore(storage_manager.NewLocalFileProvider(t.TempDir()), logger.NewNop())
	svc := New(store, 0, nil)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "t1"))
	assert.NotPanics(t, func() {
		_, err := svc.Messages(ctx, "t1")
		assert.NoError(t, err)
	})
}
