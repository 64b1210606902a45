// Package thread_manager tracks which conversation thread a chat user is
// currently talking in, so commands like /new can start a fresh history.
package thread_manager //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lewisedginton/session_concierge/pkg/logger"
)

// Manager provides thread tracking per connector, user and channel.
type Manager interface {
	// Current returns the active thread for the user in channelID, creating
	// the default thread the first time the pair is seen.
	Current(ctx context.Context, connector, userID, channelID string) (string, error)

	// Rotate always opens a new thread and makes it the active one (/new).
	Rotate(ctx context.Context, connector, userID, channelID string) (string, error)

	// Touch updates the last active timestamp for a thread
	Touch(ctx context.Context, threadID string) error

	// List returns the threads of a user in a channel, most recently active first
	List(ctx context.Context, connector, userID, channelID string) ([]ThreadInfo, error)
}

type threadManager struct {
	config    Config
	mutex     sync.RWMutex
	index     map[string]map[string][]ThreadInfo
	fileMutex sync.Mutex
	now       func() time.Time
}

// New creates a thread manager and loads any persisted index.
func New(ctx context.Context, config Config) (Manager, error) {
	if config.FileProvider == nil {
		return nil, fmt.Errorf("file provider is required")
	}
	if config.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if config.MetadataFile == "" {
		config.MetadataFile = DefaultMetadataFile
	}

	tm := &threadManager{
		config: config,
		index:  make(map[string]map[string][]ThreadInfo),
		now:    time.Now,
	}

	if err := tm.loadMetadata(ctx); err != nil {
		return nil, fmt.Errorf("failed to load metadata: %w", err)
	}

	return tm, nil
}

// DefaultThreadID is the thread a user starts in before any /new.
func DefaultThreadID(connector, userID, channelID string) string {
	return fmt.Sprintf("%s_%s_%s", connector, userID, channelID)
}

func conversationKey(userID, channelID string) string {
	return userID + "/" + channelID
}

func (tm *threadManager) Current(ctx context.Context, connector, userID, channelID string) (string, error) {
	tm.mutex.RLock()
	threads := tm.index[connector][conversationKey(userID, channelID)]
	var current string
	if len(threads) > 0 {
		current = threads[len(threads)-1].ThreadID
	}
	tm.mutex.RUnlock()

	if current != "" {
		return current, nil
	}
	return tm.open(ctx, connector, userID, channelID, true)
}

func (tm *threadManager) Rotate(ctx context.Context, connector, userID, channelID string) (string, error) {
	return tm.open(ctx, connector, userID, channelID, false)
}

// open appends a thread for the pair. The first one gets the default id.
// With reuse set, a thread opened concurrently since the caller looked wins.
func (tm *threadManager) open(ctx context.Context, connector, userID, channelID string, reuse bool) (string, error) {
	tm.mutex.Lock()
	defer tm.mutex.Unlock()

	if tm.index[connector] == nil {
		tm.index[connector] = make(map[string][]ThreadInfo)
	}
	key := conversationKey(userID, channelID)
	existing := tm.index[connector][key]
	if reuse && len(existing) > 0 {
		return existing[len(existing)-1].ThreadID, nil
	}

	threadID := DefaultThreadID(connector, userID, channelID)
	if len(existing) > 0 {
		threadID = fmt.Sprintf("%s_%d", threadID, len(existing)+1)
	}

	now := tm.now()
	tm.index[connector][key] = append(existing, ThreadInfo{
		ThreadID:   threadID,
		Connector:  connector,
		UserID:     userID,
		ChannelID:  channelID,
		CreatedAt:  now,
		LastActive: now,
	})

	if err := tm.saveMetadata(ctx); err != nil {
		// the thread still works for this process
		tm.config.Logger.Error("Failed to save metadata after opening thread",
			logger.ThreadIDField(threadID),
			logger.ErrorField(err))
	}

	tm.config.Logger.Info("Opened thread",
		logger.ThreadIDField(threadID),
		logger.StringField("connector", connector),
		logger.StringField("user_id", userID))

	return threadID, nil
}

func (tm *threadManager) Touch(ctx context.Context, threadID string) error {
	tm.mutex.Lock()
	defer tm.mutex.Unlock()

	found := false
	for _, conversations := range tm.index {
		for key, threads := range conversations {
			for i := range threads {
				if threads[i].ThreadID == threadID {
					conversations[key][i].LastActive = tm.now()
					found = true
					break
				}
			}
			if found {
				break
			}
		}
		if found {
			break
		}
	}

	if !found {
		return fmt.Errorf("thread not found: %s", threadID)
	}

	if err := tm.saveMetadata(ctx); err != nil {
		tm.config.Logger.Warn("Failed to save metadata after updating last active",
			logger.ThreadIDField(threadID),
			logger.ErrorField(err))
	}

	return nil
}

func (tm *threadManager) List(_ context.Context, connector, userID, channelID string) ([]ThreadInfo, error) {
	tm.mutex.RLock()
	defer tm.mutex.RUnlock()

	threads := tm.index[connector][conversationKey(userID, channelID)]
	result := make([]ThreadInfo, len(threads))
	copy(result, threads)

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].LastActive.After(result[j].LastActive)
	})

	return result, nil
}
