package vectorindex

import (
	"embed"

	"github.com/lewisedginton/session_concierge/internal/postgres"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrations installs the pgvector extension and the index registry.
var Migrations = postgres.MigrationSet{
	Name:  "vectorindex",
	FS:    migrationFS,
	Dir:   "migrations",
	Table: "schema_migrations_vectorindex",
}
