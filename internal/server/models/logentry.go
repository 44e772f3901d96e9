package models

import "time"

// LogEntry is one append-only audit record. CreatedAt is assigned by the
// server at write time, never by the caller.
type LogEntry struct {
	ID        int64
	Action    string
	CreatedAt time.Time
	UserID    int64
}

// Audit action vocabulary. Free-form strings are accepted by the log, but
// the core itself only writes these.
const (
	ActionUserRegister   = "user.register"
	ActionUserLogin      = "user.login"
	ActionUserLogout     = "user.logout"
	ActionUserChangeRole = "user.change_role"
	ActionUserUpdate     = "user.update"
	ActionUserDeactivate = "user.deactivate"
	ActionInterpCreate   = "interp.create"
	ActionInterpUpdate   = "interp.update"
	ActionInterpDelete   = "interp.delete"
	ActionInterpResolve  = "interp.interpret"
	ActionLogPurge       = "log.purge"
)
