// Package users declares the repository contract for identity records.
package users

import (
	"context"

	"github.com/glyphlab/moji/internal/server/models"
)

// Repository defines persistence operations for users. Implementations must
// translate datastore constraint violations into the common error taxonomy
// (duplicate email, missing row).
type Repository interface {
	// Create inserts a new user and returns it with ID and CreatedAt filled in.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// GetByEmail returns the user with the given email or common.ErrNotFound.
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// GetByID returns the user with the given id or common.ErrNotFound.
	GetByID(ctx context.Context, id int64) (*models.User, error)

	// UpdateRole sets the user's role.
	UpdateRole(ctx context.Context, id int64, role models.Role) error

	// UpdateEmail sets the user's email; a colliding email yields
	// common.ErrDuplicateEmail.
	UpdateEmail(ctx context.Context, id int64, email string) error

	// UpdateSecret replaces the stored secret hash.
	UpdateSecret(ctx context.Context, id int64, hashedSecret string) error

	// SetActive flips the logical-deletion flag.
	SetActive(ctx context.Context, id int64, active bool) error
}
