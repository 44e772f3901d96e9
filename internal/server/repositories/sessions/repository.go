// Package sessions declares the repository contract for session rows.
package sessions

import (
	"context"
	"time"

	"github.com/glyphlab/moji/internal/server/models"
)

// Repository defines persistence operations for sessions. Rows are written
// once at issue; the only later mutation is forcing expiry.
type Repository interface {
	// Create inserts a session row. A missing owner yields common.ErrNotFound.
	Create(ctx context.Context, session *models.Session) error

	// Get returns the session with the given id or common.ErrNotFound.
	Get(ctx context.Context, id string) (*models.Session, error)

	// GetWithOwner returns the session and its owning user in a single read,
	// so a concurrent revocation cannot slip between two lookups.
	GetWithOwner(ctx context.Context, id string) (*models.Session, *models.User, error)

	// Expire moves the session's expiry to at, only when the session is still
	// active at that instant. Returns whether a row was updated.
	Expire(ctx context.Context, id string, at time.Time) (bool, error)

	// ExpireAllForUser force-expires every active session owned by userID.
	ExpireAllForUser(ctx context.Context, userID int64, at time.Time) error

	// LatestActiveForUser returns the newest session for userID still active
	// at the given instant, or common.ErrNotFound.
	LatestActiveForUser(ctx context.Context, userID int64, at time.Time) (*models.Session, error)
}
