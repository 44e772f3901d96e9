package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/glyphlab/moji/internal/common"
	"github.com/glyphlab/moji/internal/dbx"
	"github.com/glyphlab/moji/internal/server/models"
)

// PostgresRepository implements user storage over a dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		INSERT INTO users (email, hashed_secret, role, active)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		user.Email, user.HashedSecret, user.Role.String(), user.Active).
		Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("%w: %w", common.ErrStorage, err)
	}
	return user, nil
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id, email, hashed_secret, role, active, created_at
		FROM users
		WHERE email = $1
	`
	return r.scanUser(r.db.QueryRowContext(ctx, query, email))
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `
		SELECT id, email, hashed_secret, role, active, created_at
		FROM users
		WHERE id = $1
	`
	return r.scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) UpdateRole(ctx context.Context, id int64, role models.Role) error {
	query := `UPDATE users SET role = $2 WHERE id = $1`
	return r.execExpectingRow(ctx, query, id, role.String())
}

func (r *PostgresRepository) UpdateEmail(ctx context.Context, id int64, email string) error {
	query := `UPDATE users SET email = $2 WHERE id = $1`
	err := r.execExpectingRow(ctx, query, id, email)
	if dbx.IsUniqueViolation(err) {
		return common.ErrDuplicateEmail
	}
	return err
}

func (r *PostgresRepository) UpdateSecret(ctx context.Context, id int64, hashedSecret string) error {
	query := `UPDATE users SET hashed_secret = $2 WHERE id = $1`
	return r.execExpectingRow(ctx, query, id, hashedSecret)
}

func (r *PostgresRepository) SetActive(ctx context.Context, id int64, active bool) error {
	query := `UPDATE users SET active = $2 WHERE id = $1`
	return r.execExpectingRow(ctx, query, id, active)
}

func (r *PostgresRepository) scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	var role string
	err := row.Scan(&user.ID, &user.Email, &user.HashedSecret, &role, &user.Active, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %w", common.ErrStorage, err)
	}
	user.Role, err = models.ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("stored role: %w", err)
	}
	return user, nil
}

func (r *PostgresRepository) execExpectingRow(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return err // caller maps to its typed error
		}
		return fmt.Errorf("%w: %w", common.ErrStorage, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected: %w", common.ErrStorage, err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}
