package thread_manager

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/session_concierge/internal/storage_manager"
	"github.com/lewisedginton/session_concierge/pkg/logger"
)

func testLogger() logger.Logger {
	return logger.NewLogger(logger.Config{Level: logger.InfoLevel, Format: "text", Output: io.Discard})
}

// fakeClock advances one second per call so LastActive ordering is deterministic.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func setupTestManager(t *testing.T, dir string) Manager {
	t.Helper()

	mgr, err := New(context.Background(), Config{
		FileProvider: storage_manager.NewLocalFileProvider(dir),
		Logger:       testLogger(),
	})
	require.NoError(t, err)

	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	mgr.(*threadManager).now = clock.Now
	return mgr
}

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
	}{
		{
			name: "valid config",
			config: Config{
				FileProvider: storage_manager.NewLocalFileProvider(t.TempDir()),
				Logger:       testLogger(),
			},
		},
		{
			name:        "missing file provider",
			config:      Config{Logger: testLogger()},
			expectError: true,
		},
		{
			name:        "missing logger",
			config:      Config{FileProvider: storage_manager.NewLocalFileProvider(t.TempDir())},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(context.Background(), tt.config)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCurrent_DefaultThread(t *testing.T) {
	mgr := setupTestManager(t, t.TempDir())
	ctx := context.Background()

	threadID, err := mgr.Current(ctx, "slack", "U12345", "D67890")
	require.NoError(t, err)
	assert.Equal(t, "slack_U12345_D67890", threadID)

	again, err := mgr.Current(ctx, "slack", "U12345", "D67890")
	require.NoError(t, err)
	assert.Equal(t, threadID, again)

	threads, err := mgr.List(ctx, "slack", "U12345", "D67890")
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Equal(t, "slack", threads[0].Connector)
	assert.Equal(t, "U12345", threads[0].UserID)
	assert.Equal(t, "D67890", threads[0].ChannelID)
}

func TestRotate(t *testing.T) {
	mgr := setupTestManager(t, t.TempDir())
	ctx := context.Background()

	first, err := mgr.Current(ctx, "telegram", "42", "-1001")
	require.NoError(t, err)
	assert.Equal(t, "telegram_42_-1001", first)

	second, err := mgr.Rotate(ctx, "telegram", "42", "-1001")
	require.NoError(t, err)
	assert.Equal(t, "telegram_42_-1001_2", second)

	current, err := mgr.Current(ctx, "telegram", "42", "-1001")
	require.NoError(t, err)
	assert.Equal(t, second, current)

	third, err := mgr.Rotate(ctx, "telegram", "42", "-1001")
	require.NoError(t, err)
	assert.Equal(t, "telegram_42_-1001_3", third)
}

func TestRotate_FirstThreadUsesDefaultID(t *testing.T) {
	mgr := setupTestManager(t, t.TempDir())

	threadID, err := mgr.Rotate(context.Background(), "slack", "U1", "C1")
	require.NoError(t, err)
	assert.Equal(t, DefaultThreadID("slack", "U1", "C1"), threadID)
}

func TestTouch(t *testing.T) {
	mgr := setupTestManager(t, t.TempDir())
	ctx := context.Background()

	first, err := mgr.Current(ctx, "slack", "U1", "C1")
	require.NoError(t, err)
	second, err := mgr.Rotate(ctx, "slack", "U1", "C1")
	require.NoError(t, err)

	threads, err := mgr.List(ctx, "slack", "U1", "C1")
	require.NoError(t, err)
	require.Len(t, threads, 2)
	assert.Equal(t, second, threads[0].ThreadID, "most recently active first")

	require.NoError(t, mgr.Touch(ctx, first))

	threads, err = mgr.List(ctx, "slack", "U1", "C1")
	require.NoError(t, err)
	assert.Equal(t, first, threads[0].ThreadID)

	// touching an old thread does not make it current
	current, err := mgr.Current(ctx, "slack", "U1", "C1")
	require.NoError(t, err)
	assert.Equal(t, second, current)

	assert.Error(t, mgr.Touch(ctx, "slack_nobody_nowhere"))
}

func TestList_Unknown(t *testing.T) {
	mgr := setupTestManager(t, t.TempDir())

	threads, err := mgr.List(context.Background(), "slack", "nobody", "nowhere")
	require.NoError(t, err)
	assert.Empty(t, threads)
}

func TestIsolation(t *testing.T) {
	mgr := setupTestManager(t, t.TempDir())
	ctx := context.Background()

	slackThread, err := mgr.Current(ctx, "slack", "U1", "C1")
	require.NoError(t, err)
	telegramThread, err := mgr.Current(ctx, "telegram", "U1", "C1")
	require.NoError(t, err)
	otherChannel, err := mgr.Current(ctx, "slack", "U1", "C2")
	require.NoError(t, err)

	assert.NotEqual(t, slackThread, telegramThread)
	assert.NotEqual(t, slackThread, otherChannel)

	_, err = mgr.Rotate(ctx, "slack", "U1", "C1")
	require.NoError(t, err)

	unchanged, err := mgr.Current(ctx, "slack", "U1", "C2")
	require.NoError(t, err)
	assert.Equal(t, otherChannel, unchanged)
}

func TestPersistenceAcrossRestarts(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	mgr1 := setupTestManager(t, dir)
	_, err := mgr1.Current(ctx, "slack", "U1", "C1")
	require.NoError(t, err)
	rotated, err := mgr1.Rotate(ctx, "slack", "U1", "C1")
	require.NoError(t, err)

	mgr2 := setupTestManager(t, dir)
	current, err := mgr2.Current(ctx, "slack", "U1", "C1")
	require.NoError(t, err)
	assert.Equal(t, rotated, current)

	threads, err := mgr2.List(ctx, "slack", "U1", "C1")
	require.NoError(t, err)
	assert.Len(t, threads, 2)
}

func TestCorruptMetadata(t *testing.T) {
	dir := t.TempDir()
	provider := storage_manager.NewLocalFileProvider(dir)
	require.NoError(t, provider.Write(context.Background(), DefaultMetadataFile, []byte("{not json")))

	_, err := New(context.Background(), Config{FileProvider: provider, Logger: testLogger()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse metadata JSON")
}

func TestConcurrentAccess(t *testing.T) {
	mgr := setupTestManager(t, t.TempDir())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := fmt.Sprintf("U%d", i)
			_, err := mgr.Current(ctx, "slack", user, "C1")
			assert.NoError(t, err)
			_, err = mgr.Rotate(ctx, "slack", user, "C1")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 10; i++ {
		threads, err := mgr.List(ctx, "slack", fmt.Sprintf("U%d", i), "C1")
		require.NoError(t, err)
		assert.Len(t, threads, 2)
	}
}
