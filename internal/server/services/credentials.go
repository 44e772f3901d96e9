package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glyphlab/moji/internal/common"
	"github.com/glyphlab/moji/internal/dbx"
	"github.com/glyphlab/moji/internal/logging"
	"github.com/glyphlab/moji/internal/server/authz"
	"github.com/glyphlab/moji/internal/server/config"
	"github.com/glyphlab/moji/internal/server/models"
	"github.com/glyphlab/moji/internal/server/repositories/repomanager"
	"golang.org/x/crypto/bcrypt"
)

// dummySecretHash is a valid bcrypt hash compared against when the email is
// unknown, so both failure paths cost one bcrypt verification and a caller
// cannot enumerate accounts through timing.
const dummySecretHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// CredentialService owns identity records: registration, credential
// verification, role changes, profile updates, and logical deactivation.
// Secrets are bcrypt-hashed before they reach a repository; plaintext is
// never stored or logged.
type CredentialService struct {
	db         *sql.DB
	repos      repomanager.RepositoryManager
	audit      *AuditService
	logger     logging.Logger
	bcryptCost int
	timeout    time.Duration
	now        func() time.Time
}

// NewCredentialService constructs a CredentialService using repositories,
// the audit service, and server config.
func NewCredentialService(db *sql.DB, m repomanager.RepositoryManager, audit *AuditService, logger logging.Logger, cfg *config.Config) *CredentialService {
	return &CredentialService{
		db:         db,
		repos:      m,
		audit:      audit,
		logger:     logger.With("component", "credentials"),
		bcryptCost: cfg.BcryptCost,
		timeout:    cfg.StorageTimeout,
		now:        time.Now,
	}
}

// normalizeEmail makes uniqueness case-insensitive: emails are stored and
// looked up lowercased.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a new user with the lowest-privilege role. A colliding
// email yields common.ErrDuplicateEmail.
func (s *CredentialService) Register(ctx context.Context, email, secret string) (*models.User, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hashing secret: %w", err)
	}

	user := &models.User{
		Email:        normalizeEmail(email),
		HashedSecret: string(hash),
		Role:         models.RoleUser,
		Active:       true,
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		created, err := s.repos.Users(tx).Create(ctx, user)
		if err != nil {
			return err
		}
		user = created
		_, err = s.audit.Record(ctx, tx, user.ID, models.ActionUserRegister)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "user registered", "user_id", user.ID)
	return user, nil
}

// Verify checks the presented secret against the stored hash. Unknown
// email, wrong secret, and deactivated account all fail identically with
// common.ErrInvalidCredentials.
func (s *CredentialService) Verify(ctx context.Context, email, secret string) (*models.User, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	user, err := s.repos.Users(s.db).GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			// Burn a comparison so the miss costs the same as a mismatch.
			_ = bcrypt.CompareHashAndPassword([]byte(dummySecretHash), []byte(secret))
			return nil, common.ErrInvalidCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.HashedSecret), []byte(secret)) != nil {
		return nil, common.ErrInvalidCredentials
	}
	if !user.Active {
		return nil, common.ErrInvalidCredentials
	}
	return user, nil
}

// ChangeRole sets another user's role. Only an Admin actor may call it, and
// no actor may change their own role, so there is no self-elevation path.
func (s *CredentialService) ChangeRole(ctx context.Context, actor *models.User, targetID int64, newRole models.Role) error {
	if !authz.Authorize(actor.Role, authz.ActionChangeRole) {
		return common.ErrForbidden
	}
	if actor.ID == targetID {
		return common.ErrForbidden
	}
	if !newRole.Valid() {
		return fmt.Errorf("unknown role %q", newRole)
	}
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repos.Users(tx).UpdateRole(ctx, targetID, newRole); err != nil {
			return err
		}
		_, err := s.audit.Record(ctx, tx, actor.ID, models.ActionUserChangeRole)
		return err
	})
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "role changed", "actor_id", actor.ID, "target_id", targetID, "role", newRole.String())
	return nil
}

// Get returns a user's profile and their most recent active session, if any.
// A non-Admin actor may only read their own record.
func (s *CredentialService) Get(ctx context.Context, actor *models.User, userID int64) (*models.User, *models.Session, error) {
	if !authz.Authorize(actor.Role, authz.ActionReadUser) {
		return nil, nil, common.ErrForbidden
	}
	if actor.ID != userID && actor.Role != models.RoleAdmin {
		return nil, nil, common.ErrForbidden
	}
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	user, err := s.repos.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	session, err := s.repos.Sessions(s.db).LatestActiveForUser(ctx, userID, s.now())
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return user, nil, nil
		}
		return nil, nil, err
	}
	return user, session, nil
}

// UpdateEmail changes the actor's own email address.
func (s *CredentialService) UpdateEmail(ctx context.Context, actor *models.User, newEmail string) error {
	if !authz.Authorize(actor.Role, authz.ActionUpdateUser) {
		return common.ErrForbidden
	}
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repos.Users(tx).UpdateEmail(ctx, actor.ID, normalizeEmail(newEmail)); err != nil {
			return err
		}
		_, err := s.audit.Record(ctx, tx, actor.ID, models.ActionUserUpdate)
		return err
	})
}

// UpdateSecret replaces the actor's own secret with a fresh hash.
func (s *CredentialService) UpdateSecret(ctx context.Context, actor *models.User, newSecret string) error {
	if !authz.Authorize(actor.Role, authz.ActionUpdateUser) {
		return common.ErrForbidden
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newSecret), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("hashing secret: %w", err)
	}
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repos.Users(tx).UpdateSecret(ctx, actor.ID, string(hash)); err != nil {
			return err
		}
		_, err := s.audit.Record(ctx, tx, actor.ID, models.ActionUserUpdate)
		return err
	})
}

// Deactivate logically deletes an account: the row stays (sessions, logs and
// interpretations reference it) but the user can no longer verify, and every
// open session is force-expired in the same transaction. Self or Admin.
func (s *CredentialService) Deactivate(ctx context.Context, actor *models.User, targetID int64) error {
	if actor.ID != targetID && actor.Role != models.RoleAdmin {
		return common.ErrForbidden
	}
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repos.Users(tx).SetActive(ctx, targetID, false); err != nil {
			return err
		}
		if err := s.repos.Sessions(tx).ExpireAllForUser(ctx, targetID, s.now()); err != nil {
			return err
		}
		_, err := s.audit.Record(ctx, tx, actor.ID, models.ActionUserDeactivate)
		return err
	})
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "user deactivated", "actor_id", actor.ID, "target_id", targetID)
	return nil
}
