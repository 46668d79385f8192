package access

import (
	"time"

	"procurement-backend/internal/ctxkeys"
)

// Context is the computed authorization snapshot for one identity. It is
// built in one resolve pass, never mutated afterwards, and shared between
// callers until the cache invalidates it: treat every field as read-only.
type Context struct {
	UserID    string
	CompanyID string
	Role      string

	IsAdmin      bool
	IsSupervisor bool
	IsUser       bool
	IsDev        bool

	// MemberProjectIDs and SupervisedProjectIDs keep the raw fetch results
	// for display; AccessibleProjects is the authoritative scope.
	MemberProjectIDs     []string
	SupervisedProjectIDs []string

	AccessibleProjects IDScope
	ManageableUsers    IDScope

	// ApprovalsByProject maps projectID -> userID -> requiresApproval.
	ApprovalsByProject map[string]map[string]bool

	ResolvedAt time.Time
}

// Privileged reports whether the identity may browse across tenants or
// impersonate another tenant's scope. Only platform operators qualify.
func (c *Context) Privileged() bool {
	return c.IsDev
}

// CanManageProjects reports whether the identity may create or edit projects.
func (c *Context) CanManageProjects() bool {
	return c.IsAdmin || c.IsSupervisor || c.IsDev
}

// CanApproveRequisitions reports whether the identity may approve or reject
// requisitions.
func (c *Context) CanApproveRequisitions() bool {
	return c.IsAdmin || c.IsSupervisor || c.IsDev
}

// RequiresApproval looks up the approval requirement recorded for the
// (project, user) pair. ok is false when no policy is recorded for the
// pair, which is distinct from an explicit false (approval waived).
func (c *Context) RequiresApproval(projectID, userID string) (value, ok bool) {
	if c == nil || projectID == "" || userID == "" {
		return false, false
	}
	inner, present := c.ApprovalsByProject[projectID]
	if !present {
		return false, false
	}
	value, ok = inner[userID]
	return value, ok
}

func roleFlags(role string) (isAdmin, isSupervisor, isUser, isDev bool) {
	switch role {
	case ctxkeys.RoleAdmin:
		isAdmin = true
	case ctxkeys.RoleSupervisor:
		isSupervisor = true
	case ctxkeys.RoleUser:
		isUser = true
	case ctxkeys.RoleDev:
		isDev = true
	}
	return
}
