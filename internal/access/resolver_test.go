package access

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procurement-backend/internal/ctxkeys"
	"procurement-backend/internal/models"
)

// ── Fakes ──────────────────────────────────────────────────────

type fakeSessions struct {
	userID string
	err    error
}

func (f *fakeSessions) Session(ctx context.Context) (Session, error) {
	if f.err != nil {
		return Session{}, f.err
	}
	return Session{UserID: f.userID}, nil
}

type fakeProfiles struct {
	mu       sync.Mutex
	profiles map[string]Profile
	err      error
	calls    int
}

func (f *fakeProfiles) Profile(ctx context.Context, userID string) (Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return Profile{}, f.err
	}
	p, ok := f.profiles[userID]
	if !ok {
		return Profile{}, ErrProfileNotFound
	}
	return p, nil
}

type fakeMemberships struct {
	mu            sync.Mutex
	byUser        map[string][]models.ProjectMembership
	byProjects    []models.ProjectMembership
	userErr       error
	projectsErr   error
	byUserCalls   int
	byProjCalls   int
	lastProjected []string
}

func (f *fakeMemberships) ListByUser(ctx context.Context, userID string) ([]models.ProjectMembership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byUserCalls++
	if f.userErr != nil {
		return nil, f.userErr
	}
	return f.byUser[userID], nil
}

func (f *fakeMemberships) ListByProjects(ctx context.Context, projectIDs []string) ([]models.ProjectMembership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byProjCalls++
	f.lastProjected = projectIDs
	if f.projectsErr != nil {
		return nil, f.projectsErr
	}
	return f.byProjects, nil
}

type fakeProjects struct {
	supervised []string
	err        error
}

func (f *fakeProjects) ListSupervised(ctx context.Context, userID string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.supervised, nil
}

func strPtr(s string) *string { return &s }

func newTestResolver(userID, role string, memberships *fakeMemberships, projects *fakeProjects) (*Resolver, *fakeProfiles) {
	profiles := &fakeProfiles{profiles: map[string]Profile{
		userID: {Role: role, CompanyID: strPtr("co-1")},
	}}
	if memberships == nil {
		memberships = &fakeMemberships{}
	}
	if projects == nil {
		projects = &fakeProjects{}
	}
	r := NewResolver(&fakeSessions{userID: userID}, profiles, memberships, projects, 5*time.Second)
	return r, profiles
}

// ── Role branching ─────────────────────────────────────────────

func TestResolveAdminGetsUnrestrictedScopes(t *testing.T) {
	ms := &fakeMemberships{byUser: map[string][]models.ProjectMembership{
		"admin-1": {{ProjectID: "p1", UserID: "admin-1"}},
	}}
	r, _ := newTestResolver("admin-1", ctxkeys.RoleAdmin, ms, nil)

	acc, err := r.Resolve(context.Background(), false)
	require.NoError(t, err)

	assert.True(t, acc.IsAdmin)
	assert.False(t, acc.Privileged(), "admins stay inside their tenant")
	assert.True(t, acc.AccessibleProjects.Unrestricted())
	assert.True(t, acc.ManageableUsers.Unrestricted())
	assert.Equal(t, []string{"p1"}, acc.MemberProjectIDs)
	assert.Equal(t, 0, ms.byProjCalls, "admins never need the team fetch")
}

func TestResolveDevIsPrivileged(t *testing.T) {
	r, _ := newTestResolver("dev-1", ctxkeys.RoleDev, nil, nil)

	acc, err := r.Resolve(context.Background(), false)
	require.NoError(t, err)

	assert.True(t, acc.IsDev)
	assert.True(t, acc.Privileged())
	assert.True(t, acc.AccessibleProjects.Unrestricted())
}

func TestResolveUserRestrictedToMemberProjects(t *testing.T) {
	ms := &fakeMemberships{byUser: map[string][]models.ProjectMembership{
		"user-1": {
			{ProjectID: "p1", UserID: "user-1", RequiresApproval: boolPtr(false)},
			{ProjectID: "p2", UserID: "user-1"},
		},
	}}
	r, _ := newTestResolver("user-1", ctxkeys.RoleUser, ms, nil)

	acc, err := r.Resolve(context.Background(), false)
	require.NoError(t, err)

	assert.False(t, acc.AccessibleProjects.Unrestricted())
	assert.True(t, acc.AccessibleProjects.Contains("p1"))
	assert.True(t, acc.AccessibleProjects.Contains("p2"))
	assert.False(t, acc.AccessibleProjects.Contains("p3"))
	assert.Equal(t, []string{"user-1"}, acc.ManageableUsers.IDs())

	requires, ok := acc.RequiresApproval("p1", "user-1")
	require.True(t, ok)
	assert.False(t, requires, "explicit waiver survives")

	requires, ok = acc.RequiresApproval("p2", "user-1")
	require.True(t, ok)
	assert.True(t, requires, "unset flag reads as approval required")
}

func TestResolveSupervisorUnionsProjects(t *testing.T) {
	ms := &fakeMemberships{
		byUser: map[string][]models.ProjectMembership{
			"sup-1": {{ProjectID: "p2", UserID: "sup-1", RequiresApproval: boolPtr(false)}},
		},
		byProjects: []models.ProjectMembership{
			{ProjectID: "p1", UserID: "u1"},
			{ProjectID: "p1", UserID: "u2", RequiresApproval: boolPtr(false)},
			{ProjectID: "p2", UserID: "sup-1", RequiresApproval: boolPtr(false)},
		},
	}
	ps := &fakeProjects{supervised: []string{"p1", "p3"}}
	r, _ := newTestResolver("sup-1", ctxkeys.RoleSupervisor, ms, ps)

	acc, err := r.Resolve(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, []string{"p1", "p3"}, acc.SupervisedProjectIDs)
	assert.ElementsMatch(t, []string{"p1", "p2", "p3"}, acc.AccessibleProjects.IDs())
	assert.ElementsMatch(t, []string{"p1", "p2", "p3"}, ms.lastProjected)

	assert.ElementsMatch(t, []string{"u1", "u2", "sup-1"}, acc.ManageableUsers.IDs())

	// p3 has no members yet but still gets an approval entry.
	_, ok := acc.ApprovalsByProject["p3"]
	assert.True(t, ok)

	requires, ok := acc.RequiresApproval("p1", "u1")
	require.True(t, ok)
	assert.True(t, requires)
}

func TestResolveSupervisorWithNoProjectsFailsClosed(t *testing.T) {
	r, _ := newTestResolver("sup-1", ctxkeys.RoleSupervisor, nil, nil)

	acc, err := r.Resolve(context.Background(), false)
	require.NoError(t, err)

	assert.False(t, acc.AccessibleProjects.Unrestricted())
	assert.Equal(t, 0, acc.AccessibleProjects.Len())
	assert.NotNil(t, acc.AccessibleProjects.IDs(), "empty set, not unlimited")
	assert.Equal(t, []string{"sup-1"}, acc.ManageableUsers.IDs())
}

func TestResolveSupervisorKeepsOwnOnlyProjectApprovals(t *testing.T) {
	// The team fetch can race a concurrent membership change and miss a
	// project the own fetch saw. The own rows must survive the merge.
	ms := &fakeMemberships{
		byUser: map[string][]models.ProjectMembership{
			"sup-1": {{ProjectID: "p9", UserID: "sup-1", RequiresApproval: boolPtr(false)}},
		},
		byProjects: []models.ProjectMembership{
			{ProjectID: "p1", UserID: "u1"},
		},
	}
	ps := &fakeProjects{supervised: []string{"p1"}}
	r, _ := newTestResolver("sup-1", ctxkeys.RoleSupervisor, ms, ps)

	acc, err := r.Resolve(context.Background(), false)
	require.NoError(t, err)

	requires, ok := acc.RequiresApproval("p9", "sup-1")
	require.True(t, ok, "own-fetch approvals survive when missing from the team fetch")
	assert.False(t, requires)
}

// ── Fail-closed behavior ───────────────────────────────────────

func TestResolveNoSession(t *testing.T) {
	r := NewResolver(&fakeSessions{err: ErrSessionInvalid}, &fakeProfiles{}, &fakeMemberships{}, &fakeProjects{}, time.Second)

	_, err := r.Resolve(context.Background(), false)
	assert.ErrorIs(t, err, ErrSessionInvalid)
}

func TestResolveMissingProfile(t *testing.T) {
	r := NewResolver(&fakeSessions{userID: "ghost"}, &fakeProfiles{profiles: map[string]Profile{}}, &fakeMemberships{}, &fakeProjects{}, time.Second)

	_, err := r.Resolve(context.Background(), false)
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestResolveMembershipFetchFailureAborts(t *testing.T) {
	ms := &fakeMemberships{userErr: errors.New("db down")}
	r, _ := newTestResolver("user-1", ctxkeys.RoleUser, ms, nil)

	_, err := r.Resolve(context.Background(), false)
	assert.ErrorIs(t, err, ErrMembershipFetch)
}

func TestResolveSupervisedFetchFailureAborts(t *testing.T) {
	ps := &fakeProjects{err: errors.New("db down")}
	r, _ := newTestResolver("sup-1", ctxkeys.RoleSupervisor, nil, ps)

	_, err := r.Resolve(context.Background(), false)
	assert.ErrorIs(t, err, ErrSupervisedProjectFetch)
}

func TestResolveErrorIsNotCached(t *testing.T) {
	ms := &fakeMemberships{userErr: errors.New("db down")}
	r, profiles := newTestResolver("user-1", ctxkeys.RoleUser, ms, nil)

	_, err := r.Resolve(context.Background(), false)
	require.Error(t, err)

	ms.mu.Lock()
	ms.userErr = nil
	ms.mu.Unlock()

	acc, err := r.Resolve(context.Background(), false)
	require.NoError(t, err)
	assert.NotNil(t, acc)
	assert.Equal(t, 2, profiles.calls, "the failed attempt must not satisfy the retry")
}

// ── Caching ────────────────────────────────────────────────────

func TestResolveServesCachedSnapshot(t *testing.T) {
	r, profiles := newTestResolver("user-1", ctxkeys.RoleUser, nil, nil)

	first, err := r.Resolve(context.Background(), false)
	require.NoError(t, err)
	second, err := r.Resolve(context.Background(), false)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, profiles.calls)
}

func TestResolveForceRefreshBypassesCache(t *testing.T) {
	r, profiles := newTestResolver("user-1", ctxkeys.RoleUser, nil, nil)

	_, err := r.Resolve(context.Background(), false)
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), true)
	require.NoError(t, err)

	assert.Equal(t, 2, profiles.calls)
}

func TestInvalidateDropsCachedSnapshot(t *testing.T) {
	r, profiles := newTestResolver("user-1", ctxkeys.RoleUser, nil, nil)

	_, err := r.Resolve(context.Background(), false)
	require.NoError(t, err)

	r.Invalidate()

	_, err = r.Resolve(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, profiles.calls)
}

func TestResolveCacheMissForDifferentUser(t *testing.T) {
	sessions := &fakeSessions{userID: "alice"}
	profiles := &fakeProfiles{profiles: map[string]Profile{
		"alice": {Role: ctxkeys.RoleUser, CompanyID: strPtr("co-1")},
		"bob":   {Role: ctxkeys.RoleUser, CompanyID: strPtr("co-2")},
	}}
	r := NewResolver(sessions, profiles, &fakeMemberships{}, &fakeProjects{}, time.Minute)

	a, err := r.Resolve(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "alice", a.UserID)

	sessions.userID = "bob"
	b, err := r.Resolve(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "bob", b.UserID)
	assert.Equal(t, "co-2", b.CompanyID)
}

func TestResolveConcurrentCallersShareOneBuild(t *testing.T) {
	r, profiles := newTestResolver("user-1", ctxkeys.RoleUser, nil, nil)

	var wg sync.WaitGroup
	results := make([]*Context, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			acc, err := r.Resolve(context.Background(), false)
			assert.NoError(t, err)
			results[i] = acc
		}(i)
	}
	wg.Wait()

	for _, acc := range results {
		assert.Same(t, results[0], acc)
	}
	assert.Equal(t, 1, profiles.calls)
}
