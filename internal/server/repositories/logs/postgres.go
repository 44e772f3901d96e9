package logs

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

// PostgresRepository implements audit-log storage over a dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Append(ctx context.Context, userID int64, action string, at time.Time) (*models.LogEntry, error) {
	query := `
		INSERT INTO logs (action, created_at, user_id)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	entry := &models.LogEntry{Action: action, CreatedAt: at, UserID: userID}
	if err := r.db.QueryRowContext(ctx, query, action, at, userID).Scan(&entry.ID); err != nil {
		if dbx.IsForeignKeyViolation(err) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %w", common.ErrStorage, err)
	}
	return entry, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id int64) (*models.LogEntry, error) {
	query := `
		SELECT id, action, created_at, user_id
		FROM logs
		WHERE id = $1
	`
	entry := &models.LogEntry{}
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&entry.ID, &entry.Action, &entry.CreatedAt, &entry.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %w", common.ErrStorage, err)
	}
	return entry, nil
}

func (r *PostgresRepository) SelectByUser(ctx context.Context, userID int64) ([]*models.LogEntry, error) {
	query := `
		SELECT id, action, created_at, user_id
		FROM logs
		WHERE user_id = $1
		ORDER BY created_at ASC, id ASC
	`
	return r.selectEntries(ctx, query, userID)
}

func (r *PostgresRepository) SelectByAction(ctx context.Context, action string) ([]*models.LogEntry, error) {
	query := `
		SELECT id, action, created_at, user_id
		FROM logs
		WHERE action = $1
		ORDER BY created_at ASC, id ASC
	`
	return r.selectEntries(ctx, query, action)
}

func (r *PostgresRepository) SelectByTimeRange(ctx context.Context, from, to time.Time) ([]*models.LogEntry, error) {
	query := `
		SELECT id, action, created_at, user_id
		FROM logs
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at ASC, id ASC
	`
	return r.selectEntries(ctx, query, from, to)
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM logs WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
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

func (r *PostgresRepository) selectEntries(ctx context.Context, query string, args ...any) ([]*models.LogEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: select logs: %w", common.ErrStorage, err)
	}
	defer rows.Close()

	var result []*models.LogEntry
	for rows.Next() {
		var entry models.LogEntry
		if err := rows.Scan(&entry.ID, &entry.Action, &entry.CreatedAt, &entry.UserID); err != nil {
			return nil, fmt.Errorf("%w: %w", common.ErrStorage, err)
		}
		result = append(result, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrStorage, err)
	}
	return result, nil
}
