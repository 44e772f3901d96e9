package repomanager

import (
	"context"
	"database/sql"

	"github.com/glyphlab/moji/internal/dbx"
	"github.com/glyphlab/moji/internal/server/repositories/interpretations"
	"github.com/glyphlab/moji/internal/server/repositories/logs"
	"github.com/glyphlab/moji/internal/server/repositories/sessions"
	"github.com/glyphlab/moji/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so services can hand
// the same repository family either the shared pool or an open transaction.
type RepositoryManager interface {
	RunMigrations(ctx context.Context, db *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Sessions(db dbx.DBTX) sessions.Repository
	Interpretations(db dbx.DBTX) interpretations.Repository
	Logs(db dbx.DBTX) logs.Repository
}
