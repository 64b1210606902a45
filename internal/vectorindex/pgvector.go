package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lewisedginton/session_concierge/pkg/logger"
)

// undefined_table
const pgUndefinedTable = "42P01"

// PGVectorIndex stores each index in its own vec_<name> table and searches it
// with the pgvector cosine distance operator.
type PGVectorIndex struct {
	pool   *pgxpool.Pool
	logger logger.Logger
}

// NewPGVectorIndex creates an index backed by pool. Migrations must already be applied.
func NewPGVectorIndex(pool *pgxpool.Pool, log logger.Logger) *PGVectorIndex {
	return &PGVectorIndex{pool: pool, logger: log}
}

func tableName(indexName string) (string, error) {
	if err := ValidateName(indexName); err != nil {
		return "", err
	}
	return pgx.Identifier{"vec_" + indexName}.Sanitize(), nil
}

func (p *PGVectorIndex) CreateIndex(ctx context.Context, indexName string, dimension int) error {
	table, err := tableName(indexName)
	if err != nil {
		return err
	}
	if dimension <= 0 {
		return fmt.Errorf("dimension must be positive, got %d", dimension)
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var existing int
	err = tx.QueryRow(ctx, `SELECT dimension FROM vector_indexes WHERE name = $1`, indexName).Scan(&existing)
	switch {
	case err == nil:
		if existing != dimension {
			return fmt.Errorf("%w: index %s has dimension %d, requested %d", ErrDimensionMismatch, indexName, existing, dimension)
		}
		return nil
	case !errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("failed to look up index %s: %w", indexName, err)
	}

	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id         TEXT PRIMARY KEY,
			embedding  vector(%d) NOT NULL,
			metadata   JSONB NOT NULL DEFAULT '{}'::jsonb,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, table, dimension),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (embedding vector_cosine_ops)`,
			pgx.Identifier{"vec_" + indexName + "_hnsw"}.Sanitize(), table),
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create index %s: %w", indexName, err)
		}
	}
	if _, err := tx.Exec(ctx, `INSERT INTO vector_indexes (name, dimension) VALUES ($1, $2)`, indexName, dimension); err != nil {
		return fmt.Errorf("failed to register index %s: %w", indexName, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit index %s: %w", indexName, err)
	}

	p.logger.Info("Created vector index",
		logger.StringField("index", indexName),
		logger.IntField("dimension", dimension),
	)
	return nil
}

func (p *PGVectorIndex) DeleteIndex(ctx context.Context, indexName string) error {
	table, err := tableName(indexName)
	if err != nil {
		return err
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `DELETE FROM vector_indexes WHERE name = $1`, indexName)
	if err != nil {
		return fmt.Errorf("failed to unregister index %s: %w", indexName, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrIndexNotFound, indexName)
	}
	if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
		return fmt.Errorf("failed to drop index %s: %w", indexName, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit index deletion %s: %w", indexName, err)
	}

	p.logger.Info("Deleted vector index", logger.StringField("index", indexName))
	return nil
}

func (p *PGVectorIndex) Upsert(ctx context.Context, indexName string, records []Record) error {
	table, err := tableName(indexName)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	query := fmt.Sprintf(`INSERT INTO %s (id, embedding, metadata, updated_at)
		VALUES ($1, $2::vector, $3, NOW())
		ON CONFLICT (id) DO UPDATE
		SET embedding = EXCLUDED.embedding, metadata = EXCLUDED.metadata, updated_at = NOW()`, table)

	batch := &pgx.Batch{}
	for _, r := range records {
		metadata := r.Metadata
		if metadata == nil {
			metadata = map[string]any{}
		}
		batch.Queue(query, r.ID, VectorLiteral(r.Vector), metadata)
	}

	results := p.pool.SendBatch(ctx, batch)
	defer results.Close()
	for i := range records {
		if _, err := results.Exec(); err != nil {
			return mapTableError(indexName, fmt.Errorf("failed to upsert record %s: %w", records[i].ID, err))
		}
	}
	return nil
}

func (p *PGVectorIndex) Query(ctx context.Context, indexName string, vector []float32, topK int) ([]Hit, error) {
	table, err := tableName(indexName)
	if err != nil {
		return nil, err
	}
	if topK <= 0 {
		return []Hit{}, nil
	}

	query := fmt.Sprintf(`SELECT id, 1 - (embedding <=> $1::vector) AS score, metadata
		FROM %s
		ORDER BY embedding <=> $1::vector
		LIMIT $2`, table)

	rows, err := p.pool.Query(ctx, query, VectorLiteral(vector), topK)
	if err != nil {
		return nil, mapTableError(indexName, fmt.Errorf("failed to query index %s: %w", indexName, err))
	}
	defer rows.Close()

	hits := make([]Hit, 0, topK)
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.ID, &h.Score, &h.Metadata); err != nil {
			return nil, fmt.Errorf("failed to scan hit: %w", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, mapTableError(indexName, fmt.Errorf("failed to read hits: %w", err))
	}
	return hits, nil
}

func mapTableError(indexName string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTable {
		return fmt.Errorf("%w: %s: %w", ErrIndexNotFound, indexName, err)
	}
	return err
}

// VectorLiteral formats v in pgvector's text input form, e.g. "[0.1,0.2]".
func VectorLiteral(v []float32) string {
	var b strings.Builder
	b.Grow(len(v)*10 + 2)
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
