package telegram

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/adk/model"

	"github.com/lewisedginton/session_concierge/internal/agents"
	"github.com/lewisedginton/session_concierge/internal/agents/agenttest"
	"github.com/lewisedginton/session_concierge/internal/catalog"
	"github.com/lewisedginton/session_concierge/internal/connectors/executor"
	"github.com/lewisedginton/session_concierge/internal/memory_store"
	"github.com/lewisedginton/session_concierge/internal/search"
	"github.com/lewisedginton/session_concierge/internal/storage_manager"
	"github.com/lewisedginton/session_concierge/internal/textgen"
	"github.com/lewisedginton/session_concierge/internal/thread_manager"
	"github.com/lewisedginton/session_concierge/pkg/logger"
)

type stubSearcher struct {
	err  error
	reqs []search.Request
}

func (s *stubSearcher) Search(_ context.Context, req search.Request, _ textgen.TokenFunc) (search.Result, error) {
	s.reqs = append(s.reqs, req)
	if s.err != nil {
		return search.Result{}, s.err
	}
	return search.Result{
		ID:    "search-1",
		Query: req.Query,
		Sessions: []catalog.MatchedSession{{
			Session: catalog.Session{Title: "Scaling Postgres", Speakers: []string{"Ada"}},
		}},
		Summary: "Found 1 relevant document chunks",
	}, nil
}

func newTestConnector(t *testing.T, searcher *stubSearcher, script ...*model.LLMResponse) (*Connector, memory_store.Store) {
	t.Helper()
	log := logger.NewLogger(logger.Config{Level: logger.ErrorLevel, Output: io.Discard})

	store := memory_store.NewFileStore(storage_manager.NewLocalFileProvider(t.TempDir()), log)
	sessions, err := agents.NewThreadSessionService(store, agents.SessionOptions{Logger: log})
	require.NoError(t, err)
	exec, err := executor.NewExecutor(agents.NewFactory(agenttest.NewScriptedModel(script...), searcher, ""), "concierge", sessions, log)
	require.NoError(t, err)

	threads, err := thread_manager.New(context.Background(), thread_manager.Config{
		FileProvider: storage_manager.NewLocalFileProvider(t.TempDir()),
		Logger:       log,
	})
	require.NoError(t, err)

	c, err := newConnector(log, exec, threads)
	require.NoError(t, err)
	return c, store
}

func searchTurn(query, reply string) []*model.LLMResponse {
	return []*model.LLMResponse{
		agenttest.CallTool("call-1", agents.SearchToolName, map[string]any{"query": query}),
		agenttest.Reply(reply),
	}
}

func textUpdate(userID, chatID int64, text string) *models.Update {
	return &models.Update{
		Message: &models.Message{
			From: &models.User{ID: userID, Username: "ada"},
			Chat: models.Chat{ID: chatID},
			Text: text,
		},
	}
}

func TestNewConnector_Validation(t *testing.T) {
	_, err := NewConnector(Config{}, nil, nil)
	assert.ErrorContains(t, err, "bot token")

	_, err = newConnector(nil, nil, nil)
	assert.ErrorContains(t, err, "executor")
}

func TestReply_Message(t *testing.T) {
	searcher := &stubSearcher{}
	c, store := newTestConnector(t, searcher, searchTurn("postgres performance", "I found 1 session.")...)

	reply := c.reply(context.Background(), textUpdate(42, -1001, "postgres performance"))

	assert.Equal(t, "I found 1 session.\n\nFound 1 relevant document chunks\n\n1. Scaling Postgres\n   Speakers: Ada", reply)
	require.Len(t, searcher.reqs, 1)
	assert.Equal(t, "telegram_42_-1001", searcher.reqs[0].ThreadID)
	assert.Equal(t, "postgres performance", searcher.reqs[0].Query)

	history, _, err := store.Query(context.Background(), "telegram_42_-1001", 0)
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, "postgres performance", history[0].Content.PlainText())
	assert.Equal(t, "I found 1 session.", history[3].Content.PlainText())
}

func TestReply_SmallTalk(t *testing.T) {
	searcher := &stubSearcher{}
	c, _ := newTestConnector(t, searcher, agenttest.Reply("Hi! Ask me about sessions."))

	assert.Equal(t, "Hi! Ask me about sessions.", c.reply(context.Background(), textUpdate(1, 1, "hello")))
	assert.Empty(t, searcher.reqs, "the agent decides when to search")
}

func TestReply_Ignored(t *testing.T) {
	searcher := &stubSearcher{}
	c, _ := newTestConnector(t, searcher)
	ctx := context.Background()

	botUpdate := textUpdate(7, 7, "hello")
	botUpdate.Message.From.IsBot = true

	assert.Empty(t, c.reply(ctx, nil))
	assert.Empty(t, c.reply(ctx, &models.Update{}))
	assert.Empty(t, c.reply(ctx, textUpdate(1, 1, "  ")))
	assert.Empty(t, c.reply(ctx, botUpdate))
	assert.Empty(t, searcher.reqs)
}

func TestReply_AgentFailure(t *testing.T) {
	searcher := &stubSearcher{err: errors.New("index down")}
	c, _ := newTestConnector(t, searcher,
		agenttest.CallTool("call-1", agents.SearchToolName, map[string]any{"query": "kafka"}),
		agenttest.Failure("UNAVAILABLE", "model overloaded"))

	assert.Equal(t, errorReply, c.reply(context.Background(), textUpdate(1, 2, "kafka")))
	assert.Len(t, searcher.reqs, 1)
}

func TestReply_Commands(t *testing.T) {
	searcher := &stubSearcher{}
	c, store := newTestConnector(t, searcher, searchTurn("observability", "I found 1 session.")...)
	ctx := context.Background()

	reply := c.reply(ctx, textUpdate(42, 5, "/new"))
	assert.Equal(t, "Started new conversation! (Thread: telegram_42_5)", reply)

	reply = c.reply(ctx, textUpdate(42, 5, "/new@concierge_bot"))
	assert.Equal(t, "Started new conversation! (Thread: telegram_42_5_2)", reply)
	for _, id := range []string{"telegram_42_5", "telegram_42_5_2"} {
		_, exists, err := store.Query(ctx, id, 0)
		require.NoError(t, err)
		assert.True(t, exists, id)
	}

	c.reply(ctx, textUpdate(42, 5, "/sessions observability"))
	require.Len(t, searcher.reqs, 1)
	assert.Equal(t, "observability", searcher.reqs[0].Query)
	assert.Equal(t, "telegram_42_5_2", searcher.reqs[0].ThreadID)

	assert.Contains(t, c.reply(ctx, textUpdate(42, 5, "/sessions")), "Usage")
	assert.Equal(t, helpText, c.reply(ctx, textUpdate(42, 5, "/help")))
	assert.Equal(t, helpText, c.reply(ctx, textUpdate(42, 5, "/start")))
	assert.Equal(t, "Unknown command: /nope", c.reply(ctx, textUpdate(42, 5, "/nope")))
}

func TestReady_NotPolling(t *testing.T) {
	c, _ := newTestConnector(t, &stubSearcher{})
	assert.Error(t, c.Ready())
}
