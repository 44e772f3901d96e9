package interpretations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/glyphlab/moji/internal/common"
	"github.com/glyphlab/moji/internal/dbx"
	"github.com/glyphlab/moji/internal/server/models"
)

// PostgresRepository implements interpretation storage over a dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, interp *models.Interpretation) (*models.Interpretation, error) {
	query := `
		INSERT INTO interpretations (key, explanation, created_by)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		interp.Key, interp.Explanation, interp.CreatedBy).Scan(&interp.ID)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrDuplicateKey
		}
		if dbx.IsForeignKeyViolation(err) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %w", common.ErrStorage, err)
	}
	return interp, nil
}

func (r *PostgresRepository) GetByKey(ctx context.Context, key string) (*models.Interpretation, error) {
	query := `
		SELECT id, key, explanation, created_by
		FROM interpretations
		WHERE key = $1
	`
	return r.scanInterpretation(r.db.QueryRowContext(ctx, query, key))
}

func (r *PostgresRepository) UpdateExplanation(ctx context.Context, key string, explanation string) (*models.Interpretation, error) {
	query := `
		UPDATE interpretations SET explanation = $2
		WHERE key = $1
		RETURNING id, key, explanation, created_by
	`
	return r.scanInterpretation(r.db.QueryRowContext(ctx, query, key, explanation))
}

func (r *PostgresRepository) Delete(ctx context.Context, key string) error {
	query := `DELETE FROM interpretations WHERE key = $1`
	res, err := r.db.ExecContext(ctx, query, key)
	if err != nil {
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

func (r *PostgresRepository) scanInterpretation(row *sql.Row) (*models.Interpretation, error) {
	interp := &models.Interpretation{}
	err := row.Scan(&interp.ID, &interp.Key, &interp.Explanation, &interp.CreatedBy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %w", common.ErrStorage, err)
	}
	return interp, nil
}
