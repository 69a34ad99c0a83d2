// Package entity contains the core business objects of the project.
package entity

import "strings"

// Role represents the type of role a user can have in the system.
type Role string

const (
	// RoleUser indicates a regular user role.
	RoleUser Role = "user"
	// RoleNutritionist indicates a nutritionist role.
	RoleNutritionist Role = "nutritionist"
	// RoleAdmin indicates an administrator role.
	RoleAdmin Role = "admin"
)

// String returns the string representation of the Role.
func (r Role) String() string {
	return string(r)
}

// IsValid checks if the Role is a valid value.
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleNutritionist, RoleAdmin:
		return true
	default:
		return false
	}
}

// RoleFromString normalizes a role string into a Role. Unknown values are
// returned as-is so authorization can still log what the token carried.
func RoleFromString(s string) Role {
	return Role(strings.ToLower(strings.TrimSpace(s)))
}

// IsAllowed reports whether the role matches any entry in the allow-list.
// Comparison is case-insensitive; an empty role never matches.
func IsAllowed(role Role, allowed []Role) bool {
	if role == "" {
		return false
	}
	for _, a := range allowed {
		if strings.EqualFold(role.String(), a.String()) {
			return true
		}
	}

	return false
}
