// Package common defines the sentinel errors shared across the moji core.
// Callers should use errors.Is to match these values; repositories translate
// datastore constraint violations into them so that no raw driver error
// crosses a service boundary.
package common

import "errors"

var (
	// Credential store errors.
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Session lifecycle errors.
	ErrNoSuchSession  = errors.New("no such session")
	ErrSessionExpired = errors.New("session expired")

	// Authorization errors.
	ErrForbidden = errors.New("forbidden")

	// Registry errors.
	ErrDuplicateKey = errors.New("key already exists")

	// Generic repository-level errors.
	ErrNotFound = errors.New("not found")
	ErrStorage  = errors.New("storage failure")
)
