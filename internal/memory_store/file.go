package memory_store //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/lewisedginton/session_concierge/internal/messages"
	"github.com/lewisedginton/session_concierge/internal/storage_manager"
	"github.com/lewisedginton/session_concierge/pkg/logger"
)

// threadDocument is the on-disk form of one thread.
type threadDocument struct {
	ThreadID  string                   `json:"threadId"`
	CreatedAt time.Time                `json:"createdAt"`
	UpdatedAt time.Time                `json:"updatedAt"`
	Messages  []messages.MemoryMessage `json:"messages"`
}

// FileStore keeps one JSON document per thread under threads/ in a
// FileProvider, so history can live on local disk, S3 or in git.
type FileStore struct {
	files storage_manager.FileProvider
	log   logger.Logger

	threadLocks map[string]*sync.Mutex
	lockMux     sync.Mutex
}

// NewFileStore creates a file-backed store.
func NewFileStore(files storage_manager.FileProvider, log logger.Logger) *FileStore {
	if files == nil {
		panic("file provider cannot be nil")
	}
	return &FileStore{
		files:       files,
		log:         log,
		threadLocks: make(map[string]*sync.Mutex),
	}
}

func (s *FileStore) Query(ctx context.Context, threadID string, last int) ([]messages.MemoryMessage, bool, error) {
	if err := ValidateThreadID(threadID); err != nil {
		return nil, false, err
	}

	lock := s.threadLock(threadID)
	lock.Lock()
	defer lock.Unlock()

	doc, err := s.load(ctx, threadID)
	if err != nil {
		return nil, false, err
	}
	if doc == nil {
		return []messages.MemoryMessage{}, false, nil
	}

	window := tail(doc.Messages, last)
	out := make([]messages.MemoryMessage, len(window))
	copy(out, window)
	return out, true, nil
}

func (s *FileStore) Append(ctx context.Context, threadID string, msgs ...messages.MemoryMessage) error {
	if err := ValidateThreadID(threadID); err != nil {
		return err
	}

	lock := s.threadLock(threadID)
	lock.Lock()
	defer lock.Unlock()

	doc, err := s.load(ctx, threadID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if doc == nil {
		doc = &threadDocument{ThreadID: threadID, CreatedAt: now, Messages: []messages.MemoryMessage{}}
	}
	doc.UpdatedAt = now
	doc.Messages = append(doc.Messages, prepare(msgs, now)...)

	if err := storage_manager.WriteJSON(ctx, s.files, threadPath(threadID), doc); err != nil {
		return fmt.Errorf("failed to write thread: %w", err)
	}

	s.log.Debug("Appended thread messages",
		logger.ThreadIDField(threadID),
		logger.IntField("count", len(msgs)))
	return nil
}

func (s *FileStore) Close() error {
	return nil
}

// load returns nil when the thread has never been written.
func (s *FileStore) load(ctx context.Context, threadID string) (*threadDocument, error) {
	var doc threadDocument
	found, err := storage_manager.ReadJSONIfExists(ctx, s.files, threadPath(threadID), &doc)
	if err != nil {
		return nil, fmt.Errorf("failed to read thread %s: %w", threadID, err)
	}
	if !found {
		return nil, nil
	}
	return &doc, nil
}

func (s *FileStore) threadLock(threadID string) *sync.Mutex {
	s.lockMux.Lock()
	defer s.lockMux.Unlock()

	lock, ok := s.threadLocks[threadID]
	if !ok {
		lock = &sync.Mutex{}
		s.threadLocks[threadID] = lock
	}
	return lock
}

func threadPath(threadID string) string {
	return path.Join("threads", threadID+".json")
}
