package models

import "time"

// User is an identity record. HashedSecret is an opaque bcrypt hash; the
// plaintext secret never touches this struct. Inactive users keep their rows
// (sessions, logs and interpretations reference them) but cannot verify.
type User struct {
	ID           int64
	Email        string
	HashedSecret string
	Role         Role
	Active       bool
	CreatedAt    time.Time
}
