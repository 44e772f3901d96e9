// Package authz implements the role/action policy. Authorize is a pure
// function: no I/O, no state, safe on every request path. The switch over
// Role is exhaustive so that adding a tier forces this table to be revisited;
// unknown roles and unknown actions are denied.
package authz

import "github.com/glyphlab/moji/internal/server/models"

// Action names an operation subject to the policy table.
type Action string

const (
	ActionReadInterpretation   Action = "interpretation.read"
	ActionCreateInterpretation Action = "interpretation.create"
	ActionUpdateInterpretation Action = "interpretation.update"
	ActionDeleteInterpretation Action = "interpretation.delete"
	ActionChangeRole           Action = "user.change_role"
	ActionReadUser             Action = "user.read"
	ActionUpdateUser           Action = "user.update"
	ActionReadAuditLog         Action = "audit.read"
	ActionPurgeLog             Action = "audit.purge"
)

// Authorize reports whether the role may perform the action. The answer is
// total and fail-closed. Self-scoping rules (a user reading or updating their
// own record) are enforced by the services on top of this table.
func Authorize(role models.Role, action Action) bool {
	switch role {
	case models.RoleAdmin:
		switch action {
		case ActionReadInterpretation, ActionCreateInterpretation,
			ActionUpdateInterpretation, ActionDeleteInterpretation,
			ActionChangeRole, ActionReadUser, ActionUpdateUser,
			ActionReadAuditLog, ActionPurgeLog:
			return true
		}
		return false
	case models.RoleAuditor:
		switch action {
		case ActionReadInterpretation, ActionReadUser, ActionUpdateUser,
			ActionReadAuditLog:
			return true
		}
		return false
	case models.RoleUser:
		switch action {
		case ActionReadInterpretation, ActionReadUser, ActionUpdateUser:
			return true
		}
		return false
	}
	return false
}
