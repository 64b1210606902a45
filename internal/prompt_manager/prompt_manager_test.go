package prompt_manager

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/session_concierge/internal/storage_manager"
)

func TestNew(t *testing.T) {
	t.Run("creates manager with valid provider", func(t *testing.T) {
		manager := New(storage_manager.NewLocalFileProvider(t.TempDir()))
		assert.NotNil(t, manager)
	})

	t.Run("panics with nil provider", func(t *testing.T) {
		assert.Panics(t, func() {
			New(nil)
		})
	})
}

func TestPromptManager_MatcherInstructions(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the stored override", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "matcher.md"), []byte("\nPick sessions.\n\n"), 0o600))

		result, err := New(storage_manager.NewLocalFileProvider(dir)).MatcherInstructions(ctx)

		require.NoError(t, err)
		assert.Equal(t, "Pick sessions.", result)
	})

	t.Run("returns empty without an override", func(t *testing.T) {
		result, err := New(storage_manager.NewLocalFileProvider(t.TempDir())).MatcherInstructions(ctx)

		require.NoError(t, err)
		assert.Empty(t, result)
	})
}

func TestPromptManager_AgentInstructions(t *testing.T) {
	dir := t.TempDir()
	manager := New(storage_manager.NewLocalFileProvider(dir))

	result, err := manager.AgentInstructions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "agent.md"), []byte("Only count the sessions.\n"), 0o600))
	result, err = manager.AgentInstructions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Only count the sessions.", result)
}
