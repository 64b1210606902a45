package memory_store //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/lewisedginton/session_concierge/internal/messages"
	"github.com/lewisedginton/session_concierge/pkg/logger"
	_ "modernc.org/sqlite"
)

//go:embed schema/sqlite.sql
var sqliteSchema string

// InMemorySQLite opens a private database that lives as long as the store.
const InMemorySQLite = ":memory:"

// SQLiteStore keeps threads in a local SQLite file.
type SQLiteStore struct {
	db  *sql.DB
	log logger.Logger
}

// NewSQLiteStore opens (creating if needed) the database at path and applies
// the schema.
func NewSQLiteStore(ctx context.Context, path string, log logger.Logger) (*SQLiteStore, error) {
	if path != InMemorySQLite {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// One connection serialises writers and keeps :memory: databases alive.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply sqlite schema: %w", err)
	}

	log.Info("Opened sqlite memory store", logger.StringField("path", path))
	return &SQLiteStore{db: db, log: log}, nil
}

func (s *SQLiteStore) Query(ctx context.Context, threadID string, last int) ([]messages.MemoryMessage, bool, error) {
	if err := ValidateThreadID(threadID); err != nil {
		return nil, false, err
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM threads WHERE id = ?)`, threadID).Scan(&exists); err != nil {
		return nil, false, fmt.Errorf("failed to look up thread: %w", err)
	}
	if !exists {
		return []messages.MemoryMessage{}, false, nil
	}

	limit := -1
	if last > 0 {
		limit = last
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT message_id, role, content, created_at
		FROM thread_messages
		WHERE thread_id = ?
		ORDER BY seq DESC
		LIMIT ?`, threadID, limit)
	if err != nil {
		return nil, true, fmt.Errorf("failed to query thread messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []messages.MemoryMessage{}
	for rows.Next() {
		var (
			m                    messages.MemoryMessage
			role, content, stamp string
		)
		if err := rows.Scan(&m.ID, &role, &content, &stamp); err != nil {
			return nil, true, fmt.Errorf("failed to scan thread message: %w", err)
		}
		m.Role = messages.Role(role)
		if err := json.Unmarshal([]byte(content), &m.Content); err != nil {
			return nil, true, fmt.Errorf("message %s: %w", m.ID, err)
		}
		if m.CreatedAt, err = time.Parse(time.RFC3339Nano, stamp); err != nil {
			return nil, true, fmt.Errorf("message %s has bad timestamp: %w", m.ID, err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, true, fmt.Errorf("failed to read thread messages: %w", err)
	}

	reverse(out)
	return out, true, nil
}

func (s *SQLiteStore) Append(ctx context.Context, threadID string, msgs ...messages.MemoryMessage) error {
	if err := ValidateThreadID(threadID); err != nil {
		return err
	}
	now := time.Now().UTC()
	msgs = prepare(msgs, now)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stamp := now.Format(time.RFC3339Nano)
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO threads (id, created_at, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET updated_at = excluded.updated_at`, threadID, stamp, stamp); err != nil {
		return fmt.Errorf("failed to upsert thread: %w", err)
	}

	for _, m := range msgs {
		content, err := json.Marshal(m.Content)
		if err != nil {
			return fmt.Errorf("failed to encode message %s: %w", m.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO thread_messages (thread_id, message_id, role, content, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			threadID, m.ID, string(m.Role), string(content), m.CreatedAt.UTC().Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("failed to insert message %s: %w", m.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit thread messages: %w", err)
	}
	s.log.Debug("Appended thread messages",
		logger.ThreadIDField(threadID),
		logger.IntField("count", len(msgs)))
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
