package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/glyphlab/moji/internal/common"
	"github.com/glyphlab/moji/internal/dbx"
	"github.com/glyphlab/moji/internal/logging"
	"github.com/glyphlab/moji/internal/server/authz"
	"github.com/glyphlab/moji/internal/server/config"
	"github.com/glyphlab/moji/internal/server/models"
	"github.com/glyphlab/moji/internal/server/repositories/repomanager"
)

// AuditService appends and queries the audit trail. Record takes an explicit
// DBTX so mutating services fold the audit write into their own transaction;
// an audit failure then rolls the whole action back. Timestamps are assigned
// here from the service clock, never accepted from callers.
type AuditService struct {
	db      *sql.DB
	repos   repomanager.RepositoryManager
	logger  logging.Logger
	timeout time.Duration
	now     func() time.Time
}

// NewAuditService constructs an AuditService using repositories and config.
func NewAuditService(db *sql.DB, m repomanager.RepositoryManager, logger logging.Logger, cfg *config.Config) *AuditService {
	return &AuditService{
		db:      db,
		repos:   m,
		logger:  logger.With("component", "audit"),
		timeout: cfg.StorageTimeout,
		now:     time.Now,
	}
}

// Record appends one entry attributed to actorID. The handle may be the
// shared pool or an open transaction.
func (s *AuditService) Record(ctx context.Context, db dbx.DBTX, actorID int64, action string) (*models.LogEntry, error) {
	entry, err := s.repos.Logs(db).Append(ctx, actorID, action, s.now())
	if err != nil {
		s.logger.Error(ctx, "audit append failed", "action", action, "actor_id", actorID, "error", err)
		return nil, err
	}
	return entry, nil
}

// QueryByUser returns the full trail for one actor, oldest first.
// Only roles holding audit.read may call it.
func (s *AuditService) QueryByUser(ctx context.Context, actor *models.User, userID int64) ([]*models.LogEntry, error) {
	if !authz.Authorize(actor.Role, authz.ActionReadAuditLog) {
		return nil, common.ErrForbidden
	}
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	return s.repos.Logs(s.db).SelectByUser(ctx, userID)
}

// QueryByAction returns all entries with the given action, oldest first.
func (s *AuditService) QueryByAction(ctx context.Context, actor *models.User, action string) ([]*models.LogEntry, error) {
	if !authz.Authorize(actor.Role, authz.ActionReadAuditLog) {
		return nil, common.ErrForbidden
	}
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	return s.repos.Logs(s.db).SelectByAction(ctx, action)
}

// QueryByTimeRange returns entries with from <= timestamp < to, oldest first.
func (s *AuditService) QueryByTimeRange(ctx context.Context, actor *models.User, from, to time.Time) ([]*models.LogEntry, error) {
	if !authz.Authorize(actor.Role, authz.ActionReadAuditLog) {
		return nil, common.ErrForbidden
	}
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	return s.repos.Logs(s.db).SelectByTimeRange(ctx, from, to)
}

// Purge is the administrative deletion path: Admin-only, and the deletion
// itself leaves a log.purge entry in the same transaction.
func (s *AuditService) Purge(ctx context.Context, actor *models.User, logID int64) error {
	if !authz.Authorize(actor.Role, authz.ActionPurgeLog) {
		return common.ErrForbidden
	}
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repos.Logs(tx).Delete(ctx, logID); err != nil {
			return err
		}
		_, err := s.Record(ctx, tx, actor.ID, models.ActionLogPurge)
		return err
	})
}
