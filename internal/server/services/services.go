// Package services contains the behavioral core: credential management,
// session lifecycle, audit logging, and the interpretation registry. Services
// hold no mutable state of their own; every cross-request invariant rides on
// the datastore's transactions and constraints.
package services

import (
	"context"
	"time"
)

// withTimeout bounds a storage-touching operation with the configured
// per-call deadline. A zero duration leaves the ambient context alone.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
