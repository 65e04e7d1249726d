// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

// # User Roles

// UserRole represents the authorization level granted to an account.
type UserRole string

const (
	// Unrestricted system access, including user management
	RoleAdmin UserRole = "admin"

	// Read access to the user directory
	RoleModerator UserRole = "moderator"

	// Default role for standard registered users
	RoleUser UserRole = "user"
)

// ParseRole validates a raw role string.
func ParseRole(raw string) (UserRole, bool) {
	role := UserRole(raw)
	return role, role.level() > 0
}

// # Role Hierarchy

// AtLeast checks if the current role meets or exceeds the required target role.
func (r UserRole) AtLeast(target UserRole) bool {
	return r.level() >= target.level()
}

// HighestRole returns the most privileged known role in the set.
// Unknown entries are ignored; an empty set yields "".
func HighestRole(roles []string) UserRole {
	var highest UserRole
	for _, raw := range roles {
		role := UserRole(raw)
		if role.level() > highest.level() {
			highest = role
		}
	}
	return highest
}

// level maps a role to a numeric hierarchy level for comparison logic.
func (r UserRole) level() int {

	// Linear scale leaves room for intermediate roles
	switch r {
	case RoleAdmin:
		return 40
	case RoleModerator:
		return 30
	case RoleUser:
		return 10
	default:
		return 0
	}
}
