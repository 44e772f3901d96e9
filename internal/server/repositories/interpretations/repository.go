// Package interpretations declares the repository contract for the keyed
// explanation registry.
package interpretations

import (
	"context"

	"github.com/glyphlab/moji/internal/server/models"
)

// Repository defines persistence operations for interpretations. Key
// uniqueness is the datastore's job; Create surfaces a collision as
// common.ErrDuplicateKey so concurrent creates leave exactly one winner.
type Repository interface {
	// Create inserts a new interpretation and fills in its ID.
	Create(ctx context.Context, interp *models.Interpretation) (*models.Interpretation, error)

	// GetByKey returns the interpretation for key or common.ErrNotFound.
	GetByKey(ctx context.Context, key string) (*models.Interpretation, error)

	// UpdateExplanation replaces the explanation for key and returns the
	// updated row, or common.ErrNotFound.
	UpdateExplanation(ctx context.Context, key string, explanation string) (*models.Interpretation, error)

	// Delete removes the interpretation for key, or common.ErrNotFound.
	Delete(ctx context.Context, key string) error
}
