// Package memory_store persists conversation threads in the memory dialect.
// Postgres, SQLite and file-provider backends share the Store contract.
package memory_store //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lewisedginton/session_concierge/internal/config"
	"github.com/lewisedginton/session_concierge/internal/messages"
	"github.com/lewisedginton/session_concierge/internal/storage_manager"
	"github.com/lewisedginton/session_concierge/pkg/logger"
	"github.com/lewisedginton/session_concierge/pkg/prefixed_uuid"
)

// ErrInvalidThreadID is returned for empty or path-unsafe thread ids.
var ErrInvalidThreadID = errors.New("invalid thread id")

var threadIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.:-]*$`)

// Store reads and appends thread history.
type Store interface {
	// Query returns the last `last` messages of a thread in chronological
	// order (all of them when last <= 0) and whether the thread exists.
	// A missing thread is not an error.
	Query(ctx context.Context, threadID string, last int) ([]messages.MemoryMessage, bool, error)

	// Append adds messages to a thread, creating it when needed. Calling it
	// without messages just creates the thread.
	Append(ctx context.Context, threadID string, msgs ...messages.MemoryMessage) error

	Close() error
}

// ValidateThreadID checks that id can be used as a key on every backend.
func ValidateThreadID(id string) error {
	if !threadIDPattern.MatchString(id) || strings.Contains(id, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidThreadID, id)
	}
	return nil
}

// prepare fills in missing ids and timestamps without touching the caller's slice.
func prepare(msgs []messages.MemoryMessage, now time.Time) []messages.MemoryMessage {
	out := make([]messages.MemoryMessage, len(msgs))
	for i, m := range msgs {
		if m.ID == "" {
			m.ID = prefixed_uuid.NewString(prefixed_uuid.PrefixMessage)
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		out[i] = m
	}
	return out
}

// tail returns the last n elements, or all of them when n <= 0.
func tail[T any](items []T, n int) []T {
	if n <= 0 || n >= len(items) {
		return items
	}
	return items[len(items)-n:]
}

func reverse[T any](items []T) {
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
}

// Open builds the backend cfg selects. pool is only needed for postgres and
// files only for the file backend.
func Open(ctx context.Context, cfg config.MemoryConfig, pool *pgxpool.Pool, files storage_manager.FileProvider, log logger.Logger) (Store, error) {
	switch cfg.Backend {
	case config.MemoryBackendPostgres:
		if pool == nil {
			return nil, fmt.Errorf("postgres memory backend requires a database pool")
		}
		return NewPostgresStore(pool, log), nil
	case config.MemoryBackendSQLite:
		return NewSQLiteStore(ctx, cfg.SQLitePath, log)
	case config.MemoryBackendFile:
		if files == nil {
			return nil, fmt.Errorf("file memory backend requires a file provider")
		}
		return NewFileStore(files, log), nil
	default:
		return nil, fmt.Errorf("unknown memory backend %q", cfg.Backend)
	}
}
