package memory_store //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lewisedginton/session_concierge/internal/config"
	"github.com/lewisedginton/session_concierge/internal/messages"
	"github.com/lewisedginton/session_concierge/internal/postgres"
	"github.com/lewisedginton/session_concierge/internal/storage_manager"
	"github.com/lewisedginton/session_concierge/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() logger.Logger {
	return logger.NewLogger(logger.Config{Level: logger.DebugLevel, Output: io.Discard})
}

func backends(t *testing.T) map[string]func(t *testing.T) Store {
	t.Helper()
	b := map[string]func(t *testing.T) Store{
		"sqlite": func(t *testing.T) Store {
			s, err := NewSQLiteStore(context.Background(), InMemorySQLite, testLogger())
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
		"file": func(t *testing.T) Store {
			return NewFileStore(storage_manager.NewLocalFileProvider(t.TempDir()), testLogger())
		},
	}

	if url := os.Getenv("TEST_DATABASE_URL"); url != "" {
		b["postgres"] = func(t *testing.T) Store {
			ctx := context.Background()
			pool, err := pgxpool.New(ctx, url)
			require.NoError(t, err)
			t.Cleanup(pool.Close)

			mm := postgres.NewMigrationManager(pool, testLogger())
			require.NoError(t, mm.Up(Migrations))
			_, err = pool.Exec(ctx, `TRUNCATE thread_messages, threads`)
			require.NoError(t, err)
			return NewPostgresStore(pool, testLogger())
		}
	}
	return b
}

func toolExchange(t *testing.T) []messages.MemoryMessage {
	t.Helper()
	call, err := messages.ToolCallPart("c1", "find_sessions", map[string]any{"query": "rust"})
	require.NoError(t, err)
	result, err := messages.ToolResultPart("c1", "find_sessions", "2 sessions")
	require.NoError(t, err)

	return []messages.MemoryMessage{
		{ID: "m1", Role: messages.RoleUser, Content: messages.StringContent("rust talks?")},
		{ID: "m2", Role: messages.RoleAssistant, Content: messages.PartsContent(messages.TextPart("Searching"), call)},
		{ID: "m3", Role: messages.RoleTool, Content: messages.PartsContent(result)},
		{ID: "m4", Role: messages.RoleAssistant, Content: messages.StringContent("Found 2")},
	}
}

func TestStores(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			t.Run("missing thread", func(t *testing.T) {
				s := open(t)
				msgs, exists, err := s.Query(ctx, "nobody", 50)
				require.NoError(t, err)
				assert.False(t, exists)
				assert.NotNil(t, msgs)
				assert.Empty(t, msgs)
			})

			t.Run("append then query keeps order", func(t *testing.T) {
				s := open(t)
				require.NoError(t, s.Append(ctx, "thread-1", toolExchange(t)...))

				msgs, exists, err := s.Query(ctx, "thread-1", 0)
				require.NoError(t, err)
				assert.True(t, exists)
				require.Len(t, msgs, 4)

				ids := []string{msgs[0].ID, msgs[1].ID, msgs[2].ID, msgs[3].ID}
				assert.Equal(t, []string{"m1", "m2", "m3", "m4"}, ids)
				assert.Equal(t, "rust talks?", msgs[0].Content.PlainText())
				require.True(t, msgs[1].Content.IsParts())
				assert.Equal(t, messages.PartToolCall, msgs[1].Content.Parts[1].Type)
				assert.False(t, msgs[0].CreatedAt.IsZero())
			})

			t.Run("last window", func(t *testing.T) {
				s := open(t)
				require.NoError(t, s.Append(ctx, "thread-2", toolExchange(t)...))
				require.NoError(t, s.Append(ctx, "thread-2", messages.MemoryMessage{Role: messages.RoleUser, Content: messages.StringContent("again")}))

				msgs, _, err := s.Query(ctx, "thread-2", 2)
				require.NoError(t, err)
				require.Len(t, msgs, 2)
				assert.Equal(t, "m4", msgs[0].ID)
				assert.Equal(t, "again", msgs[1].Content.PlainText())
				assert.NotEmpty(t, msgs[1].ID, "missing ids are generated")
			})

			t.Run("append without messages creates thread", func(t *testing.T) {
				s := open(t)
				require.NoError(t, s.Append(ctx, "empty"))

				msgs, exists, err := s.Query(ctx, "empty", 50)
				require.NoError(t, err)
				assert.True(t, exists)
				assert.Empty(t, msgs)
			})

			t.Run("threads are isolated", func(t *testing.T) {
				s := open(t)
				require.NoError(t, s.Append(ctx, "a", messages.MemoryMessage{ID: "x", Role: messages.RoleUser, Content: messages.StringContent("a")}))
				require.NoError(t, s.Append(ctx, "b", messages.MemoryMessage{ID: "y", Role: messages.RoleUser, Content: messages.StringContent("b")}))

				msgs, _, err := s.Query(ctx, "a", 0)
				require.NoError(t, err)
				require.Len(t, msgs, 1)
				assert.Equal(t, "x", msgs[0].ID)
			})

			t.Run("invalid thread id", func(t *testing.T) {
				s := open(t)
				_, _, err := s.Query(ctx, "../etc/passwd", 1)
				assert.ErrorIs(t, err, ErrInvalidThreadID)
				assert.ErrorIs(t, s.Append(ctx, ""), ErrInvalidThreadID)
			})
		})
	}
}

func TestFileStoreConcurrentAppends(t *testing.T) {
	s := NewFileStore(storage_manager.NewLocalFileProvider(t.TempDir()), testLogger())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			msg := messages.MemoryMessage{ID: fmt.Sprintf("m%d", i), Role: messages.RoleUser, Content: messages.StringContent("hi")}
			assert.NoError(t, s.Append(ctx, "busy", msg))
		}(i)
	}
	wg.Wait()

	msgs, _, err := s.Query(ctx, "busy", 0)
	require.NoError(t, err)
	assert.Len(t, msgs, 20)
}

func TestValidateThreadID(t *testing.T) {
	for _, id := range []string{"abc", "slack_U1_C2", "telegram_1_2", "3f2b-11", "thread.v1"} {
		assert.NoError(t, ValidateThreadID(id), id)
	}
	for _, id := range []string{"", "-lead", "a/b", "a..b", "with space"} {
		assert.ErrorIs(t, ValidateThreadID(id), ErrInvalidThreadID, id)
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, config.MemoryConfig{Backend: config.MemoryBackendSQLite, SQLitePath: InMemorySQLite}, nil, nil, testLogger())
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	s, err = Open(ctx, config.MemoryConfig{Backend: config.MemoryBackendFile}, nil, storage_manager.NewLocalFileProvider(t.TempDir()), testLogger())
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	_, err = Open(ctx, config.MemoryConfig{Backend: config.MemoryBackendPostgres}, nil, nil, testLogger())
	assert.Error(t, err)

	_, err = Open(ctx, config.MemoryConfig{Backend: "mongo"}, nil, nil, testLogger())
	assert.Error(t, err)
}

func TestTail(t *testing.T) {
	items := []int{1, 2, 3, 4}
	assert.Equal(t, []int{3, 4}, tail(items, 2))
	assert.Equal(t, items, tail(items, 0))
	assert.Equal(t, items, tail(items, 10))
}
