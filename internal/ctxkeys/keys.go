// Package ctxkeys defines typed context keys shared between middleware and handlers.
// This avoids import cycles: both middleware and handlers import this package,
// but neither imports the other for context key types.
package ctxkeys

import "context"

// Key is a typed string used as context key to prevent collisions.
type Key string

const (
	UserID   Key = "userID"
	UserRole Key = "userRole"
)

// Role names as stored in the users table.
const (
	RoleUser       = "user"
	RoleSupervisor = "supervisor"
	RoleAdmin      = "admin"
	RoleDev        = "dev"
)

// RoleLevel maps role names to permission levels.
// dev is the platform operator and outranks every tenant role.
var RoleLevel = map[string]int{
	RoleUser:       1,
	RoleSupervisor: 2,
	RoleAdmin:      3,
	RoleDev:        4,
}

// ValidRoles lists all valid role strings.
var ValidRoles = map[string]bool{
	RoleUser:       true,
	RoleSupervisor: true,
	RoleAdmin:      true,
	RoleDev:        true,
}

// GetUserID returns the authenticated user's ID, or "" when unauthenticated.
func GetUserID(ctx context.Context) string {
	id, _ := ctx.Value(UserID).(string)
	return id
}

// GetUserRole returns the authenticated user's role, or "" when unauthenticated.
func GetUserRole(ctx context.Context) string {
	role, _ := ctx.Value(UserRole).(string)
	return role
}
