package scope

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procurement-backend/internal/access"
	"procurement-backend/internal/models"
)

// ── Fakes ──────────────────────────────────────────────────────

type fakeCompanies struct {
	list    []models.Company
	listErr error
	getErr  error
}

func (f *fakeCompanies) ListAll(ctx context.Context) ([]models.Company, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.list, nil
}

func (f *fakeCompanies) Get(ctx context.Context, companyID string) (models.Company, error) {
	if f.getErr != nil {
		return models.Company{}, f.getErr
	}
	for _, c := range f.list {
		if c.ID == companyID {
			return c, nil
		}
	}
	return models.Company{}, errors.New("not found")
}

type fakePrefs struct {
	values  map[string]bool
	setErr  error
	deletes int
}

func newFakePrefs() *fakePrefs {
	return &fakePrefs{values: map[string]bool{}}
}

func (f *fakePrefs) GetBool(ctx context.Context, userID, key string) (bool, error) {
	return f.values[userID+"/"+key], nil
}

func (f *fakePrefs) SetBool(ctx context.Context, userID, key string, value bool) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.values[userID+"/"+key] = value
	return nil
}

func (f *fakePrefs) Delete(ctx context.Context, userID, key string) error {
	f.deletes++
	delete(f.values, userID+"/"+key)
	return nil
}

type countingInvalidator struct{ calls int }

func (c *countingInvalidator) Invalidate() { c.calls++ }

func userAccess(userID, companyID string) *access.Context {
	return &access.Context{UserID: userID, CompanyID: companyID, Role: "user", IsUser: true}
}

func devAccess(userID string) *access.Context {
	return &access.Context{UserID: userID, Role: "dev", IsDev: true}
}

func twoCompanies() []models.Company {
	return []models.Company{
		{ID: "co-1", Name: "Acme"},
		{ID: "co-2", Name: "Globex"},
	}
}

// ── Sign-in ────────────────────────────────────────────────────

func TestSignInRegularUserPinsOwnCompany(t *testing.T) {
	store := NewStore()
	prefs := newFakePrefs()
	inv := &countingInvalidator{}
	p := NewProvider(store, &fakeCompanies{list: twoCompanies()}, prefs, inv)

	require.NoError(t, p.HandleSignIn(context.Background(), userAccess("u1", "co-1")))

	snap := p.Snapshot()
	assert.Equal(t, StateSingleCompany, snap.State)
	assert.Equal(t, "co-1", snap.ActiveCompanyID)
	assert.False(t, snap.CanViewAllCompanies)
	require.Len(t, snap.Companies, 1)
	assert.Equal(t, "co-1", store.Override())
	assert.Equal(t, 1, prefs.deletes, "stale global-view preference is cleared")
	assert.Equal(t, 1, inv.calls)
}

func TestSignInRegularUserWithoutCompanyFailsClosed(t *testing.T) {
	store := NewStore()
	p := NewProvider(store, &fakeCompanies{}, newFakePrefs())

	require.NoError(t, p.HandleSignIn(context.Background(), userAccess("u1", "")))

	snap := p.Snapshot()
	assert.Equal(t, StateSingleCompany, snap.State)
	assert.Empty(t, snap.Companies)
	assert.Equal(t, "", store.Override(), "no override means scoped queries fail closed")
}

func TestSignInPrivilegedSelectsFirstCompany(t *testing.T) {
	store := NewStore()
	p := NewProvider(store, &fakeCompanies{list: twoCompanies()}, newFakePrefs())

	require.NoError(t, p.HandleSignIn(context.Background(), devAccess("dev-1")))

	snap := p.Snapshot()
	assert.Equal(t, StateMultiSelected, snap.State)
	assert.Equal(t, "co-1", snap.ActiveCompanyID)
	assert.True(t, snap.CanViewAllCompanies)
	assert.Len(t, snap.Companies, 2)
	assert.Equal(t, "co-1", store.Override())
}

func TestSignInPrivilegedRestoresGlobalPreference(t *testing.T) {
	store := NewStore()
	prefs := newFakePrefs()
	prefs.values["dev-1/"+GlobalViewPreferenceKey] = true
	p := NewProvider(store, &fakeCompanies{list: twoCompanies()}, prefs)

	require.NoError(t, p.HandleSignIn(context.Background(), devAccess("dev-1")))

	snap := p.Snapshot()
	assert.Equal(t, StateMultiGlobal, snap.State)
	assert.True(t, snap.IsGlobalView)
	assert.Empty(t, snap.ActiveCompanyID)
	assert.Equal(t, Global, store.Override())
}

func TestSignInPrivilegedDeduplicatesList(t *testing.T) {
	companies := []models.Company{
		{ID: "co-1", Name: "Acme"},
		{ID: "co-2", Name: "[OLD] Acme"},
		{ID: "co-3", Name: "Globex"},
	}
	p := NewProvider(NewStore(), &fakeCompanies{list: companies}, newFakePrefs())

	require.NoError(t, p.HandleSignIn(context.Background(), devAccess("dev-1")))

	snap := p.Snapshot()
	require.Len(t, snap.Companies, 2)
	assert.Equal(t, "Acme", snap.Companies[0].Name)
}

func TestSignInListFailureSurfacesError(t *testing.T) {
	p := NewProvider(NewStore(), &fakeCompanies{listErr: errors.New("db down")}, newFakePrefs())

	err := p.HandleSignIn(context.Background(), devAccess("dev-1"))
	assert.Error(t, err)
}

// ── Selection and global view ──────────────────────────────────

func TestSetActiveCompanySwitchesOverrideAndInvalidates(t *testing.T) {
	store := NewStore()
	inv := &countingInvalidator{}
	p := NewProvider(store, &fakeCompanies{list: twoCompanies()}, newFakePrefs(), inv)
	require.NoError(t, p.HandleSignIn(context.Background(), devAccess("dev-1")))

	before := inv.calls
	require.NoError(t, p.SetActiveCompany("co-2"))

	assert.Equal(t, "co-2", store.Override())
	assert.Equal(t, StateMultiSelected, p.Snapshot().State)
	assert.Equal(t, before+1, inv.calls)
}

func TestSetActiveCompanyUnknownIDRejected(t *testing.T) {
	p := NewProvider(NewStore(), &fakeCompanies{list: twoCompanies()}, newFakePrefs())
	require.NoError(t, p.HandleSignIn(context.Background(), devAccess("dev-1")))

	assert.Error(t, p.SetActiveCompany("co-nope"))
	assert.Equal(t, "co-1", p.Snapshot().ActiveCompanyID, "state unchanged after rejection")
}

func TestSetActiveCompanyEmptyMeansGlobal(t *testing.T) {
	store := NewStore()
	p := NewProvider(store, &fakeCompanies{list: twoCompanies()}, newFakePrefs())
	require.NoError(t, p.HandleSignIn(context.Background(), devAccess("dev-1")))

	require.NoError(t, p.SetActiveCompany(""))

	assert.Equal(t, StateMultiGlobal, p.Snapshot().State)
	assert.Equal(t, Global, store.Override())
}

func TestSetActiveCompanyIgnoredForRegularUsers(t *testing.T) {
	store := NewStore()
	p := NewProvider(store, &fakeCompanies{list: twoCompanies()}, newFakePrefs())
	require.NoError(t, p.HandleSignIn(context.Background(), userAccess("u1", "co-1")))

	require.NoError(t, p.SetActiveCompany("co-2"))

	assert.Equal(t, "co-1", store.Override(), "regular users cannot repoint their scope")
}

func TestSetGlobalViewPersistsPreference(t *testing.T) {
	store := NewStore()
	prefs := newFakePrefs()
	p := NewProvider(store, &fakeCompanies{list: twoCompanies()}, prefs)
	require.NoError(t, p.HandleSignIn(context.Background(), devAccess("dev-1")))

	require.NoError(t, p.SetGlobalView(context.Background(), true))

	assert.True(t, prefs.values["dev-1/"+GlobalViewPreferenceKey])
	assert.Equal(t, Global, store.Override())

	require.NoError(t, p.SetGlobalView(context.Background(), false))

	assert.False(t, prefs.values["dev-1/"+GlobalViewPreferenceKey])
	assert.Equal(t, "co-1", store.Override(), "leaving global restores the previous selection")
}

func TestSetGlobalViewSurvivesPersistenceFailure(t *testing.T) {
	store := NewStore()
	prefs := newFakePrefs()
	prefs.setErr = errors.New("db down")
	p := NewProvider(store, &fakeCompanies{list: twoCompanies()}, prefs)
	require.NoError(t, p.HandleSignIn(context.Background(), devAccess("dev-1")))

	require.NoError(t, p.SetGlobalView(context.Background(), true))

	assert.Equal(t, Global, store.Override(), "the live toggle applies even when the write fails")
}

func TestSetGlobalViewIgnoredForRegularUsers(t *testing.T) {
	store := NewStore()
	prefs := newFakePrefs()
	p := NewProvider(store, &fakeCompanies{list: twoCompanies()}, prefs)
	require.NoError(t, p.HandleSignIn(context.Background(), userAccess("u1", "co-1")))

	require.NoError(t, p.SetGlobalView(context.Background(), true))

	assert.Equal(t, "co-1", store.Override())
	assert.Empty(t, prefs.values, "no preference write for regular users")
}

// ── Sign-out and invalidation ──────────────────────────────────

func TestSignOutClearsOverride(t *testing.T) {
	store := NewStore()
	p := NewProvider(store, &fakeCompanies{list: twoCompanies()}, newFakePrefs())
	require.NoError(t, p.HandleSignIn(context.Background(), devAccess("dev-1")))

	p.HandleSignOut()

	snap := p.Snapshot()
	assert.Equal(t, StateUninitialized, snap.State)
	assert.Empty(t, snap.Companies)
	assert.Equal(t, "", store.Override())
	assert.Equal(t, "", p.CurrentUser())
}

func TestNoInvalidationWhenNothingChanged(t *testing.T) {
	inv := &countingInvalidator{}
	p := NewProvider(NewStore(), &fakeCompanies{list: twoCompanies()}, newFakePrefs(), inv)
	require.NoError(t, p.HandleSignIn(context.Background(), devAccess("dev-1")))

	before := inv.calls
	require.NoError(t, p.SetActiveCompany("co-1"))

	assert.Equal(t, before, inv.calls, "re-selecting the active company is a no-op")
}

func TestCurrentUserTracksSignIn(t *testing.T) {
	p := NewProvider(NewStore(), &fakeCompanies{list: twoCompanies()}, newFakePrefs())
	assert.Equal(t, "", p.CurrentUser())

	require.NoError(t, p.HandleSignIn(context.Background(), devAccess("dev-1")))
	assert.Equal(t, "dev-1", p.CurrentUser())
}
