package checkers

import (
	"context"
	"fmt"
)

// Pinger is satisfied by *pgxpool.Pool and *sql.DB-like handles.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PostgresChecker pings a Postgres pool.
type PostgresChecker struct {
	pool Pinger
	name string
}

// NewPostgresChecker creates a checker over pool. An empty name defaults to "postgres".
func NewPostgresChecker(pool Pinger, name string) *PostgresChecker {
	if name == "" {
		name = "postgres"
	}
	return &PostgresChecker{pool: pool, name: name}
}

// Name returns the name of this health check.
func (p *PostgresChecker) Name() string {
	return p.name
}

// Check pings the database.
func (p *PostgresChecker) Check(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres ping failed: %w", err)
	}
	return nil
}
