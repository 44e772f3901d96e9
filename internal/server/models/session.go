package models

import "time"

// Session is a time-bounded proof of authentication. Rows are immutable after
// issue except for revocation, which moves ExpiresAt into the past.
type Session struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

// ActiveAt reports whether the session is still usable at the given instant.
func (s *Session) ActiveAt(t time.Time) bool {
	return t.Before(s.ExpiresAt)
}
