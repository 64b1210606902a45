package thread_manager //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"fmt"

	"github.com/lewisedginton/session_concierge/internal/storage_manager"
	"github.com/lewisedginton/session_concierge/pkg/logger"
)

// loadMetadata loads the thread index from the metadata file
func (tm *threadManager) loadMetadata(ctx context.Context) error {
	tm.fileMutex.Lock()
	defer tm.fileMutex.Unlock()

	var store metadataStore
	found, err := storage_manager.ReadJSONIfExists(ctx, tm.config.FileProvider, tm.config.MetadataFile, &store)
	if err != nil {
		return fmt.Errorf("failed to load thread metadata: %w", err)
	}

	tm.index = store.Threads
	if tm.index == nil {
		tm.index = make(map[string]map[string][]ThreadInfo)
	}

	if !found {
		tm.config.Logger.Info("Thread metadata does not exist, starting with empty index")
		return nil
	}
	tm.config.Logger.Info("Loaded thread metadata", logger.StringField("file", tm.config.MetadataFile))
	return nil
}

// saveMetadata persists the thread index. Callers hold tm.mutex.
func (tm *threadManager) saveMetadata(ctx context.Context) error {
	tm.fileMutex.Lock()
	defer tm.fileMutex.Unlock()

	if err := storage_manager.WriteJSON(ctx, tm.config.FileProvider, tm.config.MetadataFile, metadataStore{Threads: tm.index}); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}

	return nil
}
