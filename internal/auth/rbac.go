package auth

import "strings"

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// NormalizeRole maps unknown roles to RoleUser.
func NormalizeRole(role string) Role {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case string(RoleAdmin):
		return RoleAdmin
	default:
		return RoleUser
	}
}

func IsAdmin(role string) bool {
	return NormalizeRole(role) == RoleAdmin
}

// CanActAs reports whether the token holder may operate on userID's
// private resources: their own, or anyone's for admins.
func (c *Claims) CanActAs(userID string) bool {
	if c == nil {
		return false
	}
	return c.Subject == userID || IsAdmin(c.Role)
}
