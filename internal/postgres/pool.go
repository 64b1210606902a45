package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lewisedginton/session_concierge/pkg/config"
	"github.com/lewisedginton/session_concierge/pkg/logger"
)

// Open creates a pgx pool from cfg and verifies connectivity.
func Open(ctx context.Context, cfg config.DatabaseConfig, log logger.Logger) (*pgxpool.Pool, error) {
	connString, err := cfg.GetConnectionConfig()
	if err != nil {
		return nil, err
	}

	poolCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Info("Connected to Postgres",
		logger.StringField("host", poolCfg.ConnConfig.Host),
		logger.StringField("database", poolCfg.ConnConfig.Database),
		logger.IntField("max_conns", int(poolCfg.MaxConns)),
	)
	return pool, nil
}
