package models

import "fmt"

// Role is the closed set of privilege tiers. Adding a value here must be
// accompanied by revisiting every switch over Role (the authz policy in
// particular), which is why Role is not a free-form string at the edges:
// ParseRole is the only way in.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleUser    Role = "user"
	RoleAuditor Role = "auditor"
)

// ParseRole converts a stored or supplied string into a Role.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleUser:
		return RoleUser, nil
	case RoleAuditor:
		return RoleAuditor, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Valid reports whether r is one of the defined tiers.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleUser, RoleAuditor:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }
