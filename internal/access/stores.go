package access

import (
	"context"

	"procurement-backend/internal/models"
)

// Session identifies the authenticated caller.
type Session struct {
	UserID string
}

// Profile is the identity row the role branch decides on.
type Profile struct {
	CompanyID *string
	Role      string
}

// SessionProvider yields the active session, or ErrSessionInvalid when
// there is none.
type SessionProvider interface {
	Session(ctx context.Context) (Session, error)
}

// ProfileStore fetches the identity's profile row.
type ProfileStore interface {
	Profile(ctx context.Context, userID string) (Profile, error)
}

// MembershipStore fetches project membership rows.
type MembershipStore interface {
	// ListByUser returns all memberships of one user.
	ListByUser(ctx context.Context, userID string) ([]models.ProjectMembership, error)
	// ListByProjects returns all memberships across the given projects.
	ListByProjects(ctx context.Context, projectIDs []string) ([]models.ProjectMembership, error)
}

// ProjectStore fetches the projects supervised by a user.
type ProjectStore interface {
	ListSupervised(ctx context.Context, userID string) ([]string, error)
}
