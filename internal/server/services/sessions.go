package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/glyphlab/moji/internal/common"
	"github.com/glyphlab/moji/internal/dbx"
	"github.com/glyphlab/moji/internal/logging"
	"github.com/glyphlab/moji/internal/server/config"
	"github.com/glyphlab/moji/internal/server/models"
	"github.com/glyphlab/moji/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// SessionService owns the session lifecycle. A session is effectively a
// one-way machine: active until its expiry passes, and revocation just moves
// the expiry into the past. All expiry comparisons use the service clock so
// a session cannot validate inconsistently across calls in one process.
type SessionService struct {
	db         *sql.DB
	repos      repomanager.RepositoryManager
	audit      *AuditService
	logger     logging.Logger
	ttlDefault time.Duration
	ttlMax     time.Duration
	timeout    time.Duration
	now        func() time.Time
}

// NewSessionService constructs a SessionService using repositories,
// the audit service, and server config.
func NewSessionService(db *sql.DB, m repomanager.RepositoryManager, audit *AuditService, logger logging.Logger, cfg *config.Config) *SessionService {
	return &SessionService{
		db:         db,
		repos:      m,
		audit:      audit,
		logger:     logger.With("component", "sessions"),
		ttlDefault: cfg.SessionTTLDefault,
		ttlMax:     cfg.SessionTTLMax,
		timeout:    cfg.StorageTimeout,
		now:        time.Now,
	}
}

// clampTTL applies the configured default and maximum.
func (s *SessionService) clampTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		ttl = s.ttlDefault
	}
	if s.ttlMax > 0 && ttl > s.ttlMax {
		ttl = s.ttlMax
	}
	return ttl
}

// Issue creates a session for an already-verified user and records the login.
func (s *SessionService) Issue(ctx context.Context, user *models.User, ttl time.Duration) (*models.Session, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	ttl = s.clampTTL(ttl)
	now := s.now()
	session := &models.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repos.Sessions(tx).Create(ctx, session); err != nil {
			return err
		}
		_, err := s.audit.Record(ctx, tx, user.ID, models.ActionUserLogin)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "session issued", "user_id", user.ID, "expires_at", session.ExpiresAt)
	return session, nil
}

// Validate resolves a session id to its owning user. It is the sole gate for
// "who is acting": the session must exist, be unexpired at the service clock,
// and belong to an active account.
func (s *SessionService) Validate(ctx context.Context, sessionID string) (*models.User, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	session, user, err := s.repos.Sessions(s.db).GetWithOwner(ctx, sessionID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrNoSuchSession
		}
		return nil, err
	}
	if !session.ActiveAt(s.now()) {
		return nil, common.ErrSessionExpired
	}
	if !user.Active {
		// A deactivated owner's sessions were force-expired; treat any
		// straggler the same way.
		return nil, common.ErrSessionExpired
	}
	return user, nil
}

// Revoke forces immediate expiry. Revoking an already-expired session is a
// no-op success; an unknown id is ErrNoSuchSession. The logout is audited
// only when a revocation actually happened.
func (s *SessionService) Revoke(ctx context.Context, sessionID string) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repos.Sessions(tx)

		session, err := repo.Get(ctx, sessionID)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return common.ErrNoSuchSession
			}
			return err
		}

		revoked, err := repo.Expire(ctx, sessionID, s.now())
		if err != nil {
			return err
		}
		if !revoked {
			return nil // already expired
		}
		_, err = s.audit.Record(ctx, tx, session.UserID, models.ActionUserLogout)
		return err
	})
}

// RevokeAllForUser force-expires every active session owned by userID.
func (s *SessionService) RevokeAllForUser(ctx context.Context, userID int64) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	return s.repos.Sessions(s.db).ExpireAllForUser(ctx, userID, s.now())
}
