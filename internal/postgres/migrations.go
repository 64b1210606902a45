// Package postgres opens the shared pgx pool and applies the embedded schema
// migrations owned by the memory store and the vector index.
package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/lewisedginton/session_concierge/pkg/logger"
)

// MigrationSet is one component's migrations. Each set records its version in
// its own table so components migrate independently.
type MigrationSet struct {
	Name  string
	FS    fs.FS
	Dir   string
	Table string
}

// MigrationManager applies MigrationSets against a pool.
type MigrationManager struct {
	db     *sql.DB
	logger logger.Logger
}

// NewMigrationManager creates a migration manager from pgxpool.
func NewMigrationManager(pool *pgxpool.Pool, log logger.Logger) *MigrationManager {
	return &MigrationManager{
		db:     stdlib.OpenDBFromPool(pool),
		logger: log,
	}
}

// Up applies pending migrations for every set, in order.
func (m *MigrationManager) Up(sets ...MigrationSet) error {
	for _, set := range sets {
		if err := m.up(set); err != nil {
			return err
		}
	}
	return nil
}

func (m *MigrationManager) up(set MigrationSet) error {
	log := m.logger.WithFields(logger.StringField("migration_set", set.Name))

	migrator, err := m.createMigrator(set)
	if err != nil {
		return fmt.Errorf("create migrator for %s: %w", set.Name, err)
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	log.Info("Starting database migrations")

	err = migrator.Up()
	if err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("No new migrations to apply")
			return nil
		}
		log.Error("Failed to run migrations", logger.ErrorField(err))
		return fmt.Errorf("run %s migrations: %w", set.Name, err)
	}

	version, dirty, verr := migrator.Version()
	if verr == nil {
		log.Info("Successfully applied migrations",
			logger.IntField("version", int(version)),
			logger.BoolField("dirty", dirty),
		)
	}
	return nil
}

func (m *MigrationManager) createMigrator(set MigrationSet) (*migrate.Migrate, error) {
	sourceDriver, err := iofs.New(set.FS, set.Dir)
	if err != nil {
		return nil, fmt.Errorf("create embedded migration source: %w", err)
	}

	driver, err := migratepg.WithInstance(m.db, &migratepg.Config{MigrationsTable: set.Table})
	if err != nil {
		return nil, fmt.Errorf("create postgres driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}

	return migrator, nil
}

// Close releases the database/sql handle; the pool itself stays open.
func (m *MigrationManager) Close() error {
	return m.db.Close()
}
