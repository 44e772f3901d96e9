package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/glyphlab/moji/internal/common"
	"github.com/glyphlab/moji/internal/dbx"
	"github.com/glyphlab/moji/internal/server/models"
)

// PostgresRepository implements session storage over a dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO sessions (id, user_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := r.db.ExecContext(ctx, query,
		session.ID, session.UserID, session.CreatedAt, session.ExpiresAt); err != nil {
		if dbx.IsForeignKeyViolation(err) {
			return common.ErrNotFound
		}
		return fmt.Errorf("%w: %w", common.ErrStorage, err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Session, error) {
	query := `
		SELECT id, user_id, created_at, expires_at
		FROM sessions
		WHERE id = $1
	`
	s := &models.Session{}
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&s.ID, &s.UserID, &s.CreatedAt, &s.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %w", common.ErrStorage, err)
	}
	return s, nil
}

func (r *PostgresRepository) GetWithOwner(ctx context.Context, id string) (*models.Session, *models.User, error) {
	query := `
		SELECT s.id, s.user_id, s.created_at, s.expires_at,
		       u.id, u.email, u.hashed_secret, u.role, u.active, u.created_at
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.id = $1
	`
	s := &models.Session{}
	u := &models.User{}
	var role string
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&s.ID, &s.UserID, &s.CreatedAt, &s.ExpiresAt,
		&u.ID, &u.Email, &u.HashedSecret, &role, &u.Active, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, common.ErrNotFound
		}
		return nil, nil, fmt.Errorf("%w: %w", common.ErrStorage, err)
	}
	if u.Role, err = models.ParseRole(role); err != nil {
		return nil, nil, fmt.Errorf("stored role: %w", err)
	}
	return s, u, nil
}

// Expire is the single revocation primitive: one guarded UPDATE, so a
// concurrent validate sees either the old expiry or the new one, never a
// half-revoked state.
func (r *PostgresRepository) Expire(ctx context.Context, id string, at time.Time) (bool, error) {
	query := `
		UPDATE sessions SET expires_at = $2
		WHERE id = $1 AND expires_at > $2
	`
	res, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return false, fmt.Errorf("%w: %w", common.ErrStorage, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: rows affected: %w", common.ErrStorage, err)
	}
	return n > 0, nil
}

func (r *PostgresRepository) ExpireAllForUser(ctx context.Context, userID int64, at time.Time) error {
	query := `
		UPDATE sessions SET expires_at = $2
		WHERE user_id = $1 AND expires_at > $2
	`
	if _, err := r.db.ExecContext(ctx, query, userID, at); err != nil {
		return fmt.Errorf("%w: %w", common.ErrStorage, err)
	}
	return nil
}

func (r *PostgresRepository) LatestActiveForUser(ctx context.Context, userID int64, at time.Time) (*models.Session, error) {
	query := `
		SELECT id, user_id, created_at, expires_at
		FROM sessions
		WHERE user_id = $1 AND expires_at > $2
		ORDER BY created_at DESC
		LIMIT 1
	`
	s := &models.Session{}
	err := r.db.QueryRowContext(ctx, query, userID, at).
		Scan(&s.ID, &s.UserID, &s.CreatedAt, &s.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %w", common.ErrStorage, err)
	}
	return s, nil
}
