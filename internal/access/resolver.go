package access

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"procurement-backend/internal/ctxkeys"
	"procurement-backend/internal/models"
)

// Resolver builds and caches the authorization snapshot for the active
// identity. All fetches go through the injected stores; a failure in any
// of them aborts the whole resolve and nothing partial is ever cached.
type Resolver struct {
	sessions    SessionProvider
	profiles    ProfileStore
	memberships MembershipStore
	projects    ProjectStore

	cache *contextCache
	sf    singleflight.Group
}

// NewResolver wires a Resolver with the given stores and cache TTL.
func NewResolver(sessions SessionProvider, profiles ProfileStore, memberships MembershipStore, projects ProjectStore, ttl time.Duration) *Resolver {
	return &Resolver{
		sessions:    sessions,
		profiles:    profiles,
		memberships: memberships,
		projects:    projects,
		cache:       newContextCache(ttl),
	}
}

// Resolve returns the access context for the active session, serving the
// cached snapshot while it is fresh. forceRefresh bypasses the cache.
// Concurrent callers for the same user share one in-flight build.
func (r *Resolver) Resolve(ctx context.Context, forceRefresh bool) (*Context, error) {
	sess, err := r.sessions.Session(ctx)
	if err != nil {
		return nil, err
	}

	if !forceRefresh {
		if cached := r.cache.get(sess.UserID); cached != nil {
			return cached, nil
		}
	}

	v, err, _ := r.sf.Do(sess.UserID, func() (interface{}, error) {
		// A concurrent caller may have filled the slot while we waited.
		if !forceRefresh {
			if cached := r.cache.get(sess.UserID); cached != nil {
				return cached, nil
			}
		}

		gen := r.cache.generation()
		ac, err := r.build(ctx, sess.UserID)
		if err != nil {
			return nil, err
		}
		r.cache.set(ac, gen)
		return ac, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*Context), nil
}

// Invalidate clears the cached snapshot. Called on every authentication
// state transition, tenant-scope transition, and permission mutation.
func (r *Resolver) Invalidate() {
	r.cache.invalidate()
}

// build performs the fetch-and-branch algorithm. The profile fetch must
// complete first: its role decides which further fetches are issued.
func (r *Resolver) build(ctx context.Context, userID string) (*Context, error) {
	profile, err := r.profiles.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}

	ac := &Context{
		UserID:     userID,
		Role:       profile.Role,
		ResolvedAt: time.Now(),
	}
	if profile.CompanyID != nil {
		ac.CompanyID = *profile.CompanyID
	}
	ac.IsAdmin, ac.IsSupervisor, ac.IsUser, ac.IsDev = roleFlags(profile.Role)

	ownRows, err := r.memberships.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMembershipFetch, err)
	}

	ac.MemberProjectIDs = uniqueProjectIDs(ownRows)
	ownApprovals := BuildApprovalMap(ownRows)

	switch profile.Role {
	case ctxkeys.RoleAdmin, ctxkeys.RoleDev:
		// Tenant admins and platform operators see everything; only their
		// own membership rows are carried in the approval matrix.
		ac.AccessibleProjects = UnrestrictedScope()
		ac.ManageableUsers = UnrestrictedScope()
		ac.ApprovalsByProject = ownApprovals

	case ctxkeys.RoleSupervisor:
		if err := r.buildSupervisor(ctx, ac, ownApprovals); err != nil {
			return nil, err
		}

	default:
		ac.AccessibleProjects = RestrictedScope(ac.MemberProjectIDs...)
		ac.ManageableUsers = RestrictedScope(userID)
		ac.ApprovalsByProject = ownApprovals
	}

	return ac, nil
}

// buildSupervisor unions supervised and member projects, then loads the
// full team membership across that union.
func (r *Resolver) buildSupervisor(ctx context.Context, ac *Context, ownApprovals map[string]map[string]bool) error {
	supervised, err := r.projects.ListSupervised(ctx, ac.UserID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSupervisedProjectFetch, err)
	}
	ac.SupervisedProjectIDs = supervised

	union := unionIDs(supervised, ac.MemberProjectIDs)

	if len(union) == 0 {
		// Explicit empty set: a query scoped by this context must return
		// zero rows, never fall open to everything.
		ac.AccessibleProjects = RestrictedScope()
		ac.ManageableUsers = RestrictedScope(ac.UserID)
		ac.ApprovalsByProject = ownApprovals
		return nil
	}

	teamRows, err := r.memberships.ListByProjects(ctx, union)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMembershipFetch, err)
	}

	approvals := BuildApprovalMap(teamRows)
	// A project only present in the own map keeps its approval data.
	for projectID, userMap := range ownApprovals {
		if _, ok := approvals[projectID]; !ok {
			approvals[projectID] = userMap
		}
	}
	// Every accessible project gets an entry, even with no members yet.
	for _, projectID := range union {
		if _, ok := approvals[projectID]; !ok {
			approvals[projectID] = map[string]bool{}
		}
	}

	manageable := make([]string, 0, len(teamRows)+1)
	for _, row := range teamRows {
		if row.UserID != "" {
			manageable = append(manageable, row.UserID)
		}
	}
	manageable = append(manageable, ac.UserID)

	ac.AccessibleProjects = RestrictedScope(union...)
	ac.ManageableUsers = RestrictedScope(manageable...)
	ac.ApprovalsByProject = approvals
	return nil
}

// uniqueProjectIDs extracts distinct project IDs preserving first-seen order.
func uniqueProjectIDs(rows []models.ProjectMembership) []string {
	seen := make(map[string]struct{}, len(rows))
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		if row.ProjectID == "" {
			continue
		}
		if _, ok := seen[row.ProjectID]; ok {
			continue
		}
		seen[row.ProjectID] = struct{}{}
		out = append(out, row.ProjectID)
	}
	return out
}

// unionIDs merges two ID lists, dropping duplicates and preserving
// first-seen order.
func unionIDs(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, id := range a {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for _, id := range b {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
