package memory_store //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"embed"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lewisedginton/session_concierge/internal/messages"
	"github.com/lewisedginton/session_concierge/internal/postgres"
	"github.com/lewisedginton/session_concierge/pkg/logger"
)

//go:embed migrations/postgres/*.sql
var postgresMigrations embed.FS

// Migrations is the schema of the Postgres backend.
var Migrations = postgres.MigrationSet{
	Name:  "memory_store",
	FS:    postgresMigrations,
	Dir:   "migrations/postgres",
	Table: "schema_migrations_memory",
}

// PostgresStore keeps threads in Postgres with JSONB message content.
type PostgresStore struct {
	pool *pgxpool.Pool
	log  logger.Logger
}

// NewPostgresStore wraps an open pool. Migrations must already be applied.
func NewPostgresStore(pool *pgxpool.Pool, log logger.Logger) *PostgresStore {
	return &PostgresStore{pool: pool, log: log}
}

func (s *PostgresStore) Query(ctx context.Context, threadID string, last int) ([]messages.MemoryMessage, bool, error) {
	if err := ValidateThreadID(threadID); err != nil {
		return nil, false, err
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM threads WHERE id = $1)`, threadID).Scan(&exists); err != nil {
		return nil, false, fmt.Errorf("failed to look up thread: %w", err)
	}
	if !exists {
		return []messages.MemoryMessage{}, false, nil
	}

	limit := any(nil)
	if last > 0 {
		limit = last
	}
	rows, err := s.pool.Query(ctx, `
		SELECT message_id, role, content, created_at
		FROM thread_messages
		WHERE thread_id = $1
		ORDER BY seq DESC
		LIMIT $2`, threadID, limit)
	if err != nil {
		return nil, true, fmt.Errorf("failed to query thread messages: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (messages.MemoryMessage, error) {
		var (
			m       messages.MemoryMessage
			role    string
			content []byte
		)
		if err := row.Scan(&m.ID, &role, &content, &m.CreatedAt); err != nil {
			return m, err
		}
		m.Role = messages.Role(role)
		if err := json.Unmarshal(content, &m.Content); err != nil {
			return m, fmt.Errorf("message %s: %w", m.ID, err)
		}
		return m, nil
	})
	if err != nil {
		return nil, true, fmt.Errorf("failed to read thread messages: %w", err)
	}

	reverse(out)
	return out, true, nil
}

func (s *PostgresStore) Append(ctx context.Context, threadID string, msgs ...messages.MemoryMessage) error {
	if err := ValidateThreadID(threadID); err != nil {
		return err
	}
	now := time.Now().UTC()
	msgs = prepare(msgs, now)

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO threads (id, created_at, updated_at) VALUES ($1, $2, $2)
			ON CONFLICT (id) DO UPDATE SET updated_at = EXCLUDED.updated_at`, threadID, now); err != nil {
			return fmt.Errorf("failed to upsert thread: %w", err)
		}

		batch := &pgx.Batch{}
		for _, m := range msgs {
			content, err := json.Marshal(m.Content)
			if err != nil {
				return fmt.Errorf("failed to encode message %s: %w", m.ID, err)
			}
			batch.Queue(`
				INSERT INTO thread_messages (thread_id, message_id, role, content, created_at)
				VALUES ($1, $2, $3, $4, $5)`, threadID, m.ID, string(m.Role), content, m.CreatedAt)
		}
		if batch.Len() == 0 {
			return nil
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert thread messages: %w", err)
		}

		s.log.Debug("Appended thread messages",
			logger.ThreadIDField(threadID),
			logger.IntField("count", len(msgs)))
		return nil
	})
}

// Close is a no-op; the pool belongs to the caller.
func (s *PostgresStore) Close() error {
	return nil
}
