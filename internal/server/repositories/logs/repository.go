// Package logs declares the repository contract for the append-only audit
// trail. Entries are never updated; deletion exists only for the
// administrative purge path, which audits itself.
package logs

import (
	"context"
	"time"

	"github.com/glyphlab/moji/internal/server/models"
)

// Repository defines persistence operations for audit records. All Select
// queries order by timestamp ascending and are deterministic for a fixed log
// state, so re-running one restarts the sequence.
type Repository interface {
	// Append writes one entry with a server-assigned timestamp and returns it.
	// A missing actor yields common.ErrNotFound.
	Append(ctx context.Context, userID int64, action string, at time.Time) (*models.LogEntry, error)

	// Get returns the entry with the given id or common.ErrNotFound.
	Get(ctx context.Context, id int64) (*models.LogEntry, error)

	// SelectByUser returns all entries for one actor.
	SelectByUser(ctx context.Context, userID int64) ([]*models.LogEntry, error)

	// SelectByAction returns all entries with the given action string.
	SelectByAction(ctx context.Context, action string) ([]*models.LogEntry, error)

	// SelectByTimeRange returns entries with from <= created_at < to.
	SelectByTimeRange(ctx context.Context, from, to time.Time) ([]*models.LogEntry, error)

	// Delete removes one entry, or common.ErrNotFound.
	Delete(ctx context.Context, id int64) error
}
