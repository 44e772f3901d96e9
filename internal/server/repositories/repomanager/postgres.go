// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	"github.com/glyphlab/moji/internal/dbx"
	"github.com/glyphlab/moji/internal/server/migrations"
	"github.com/glyphlab/moji/internal/server/repositories/interpretations"
	"github.com/glyphlab/moji/internal/server/repositories/logs"
	"github.com/glyphlab/moji/internal/server/repositories/sessions"
	"github.com/glyphlab/moji/internal/server/repositories/users"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// and exposes a schema migration hook.
type PostgresRepositoryManager struct{}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager() *PostgresRepositoryManager {
	return &PostgresRepositoryManager{}
}

// Users returns a users.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

// Sessions returns a sessions.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Sessions(db dbx.DBTX) sessions.Repository {
	return sessions.NewPostgresRepository(db)
}

// Interpretations returns an interpretations.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Interpretations(db dbx.DBTX) interpretations.Repository {
	return interpretations.NewPostgresRepository(db)
}

// Logs returns a logs.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Logs(db dbx.DBTX) logs.Repository {
	return logs.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}
