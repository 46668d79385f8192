package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procurement-backend/internal/access"
)

func regularContext(companyID string) *access.Context {
	return &access.Context{
		UserID:             "user-1",
		CompanyID:          companyID,
		Role:               "user",
		IsUser:             true,
		AccessibleProjects: access.RestrictedScope("p1", "p2"),
	}
}

func devContext() *access.Context {
	return &access.Context{
		UserID:             "dev-1",
		Role:               "dev",
		IsDev:              true,
		AccessibleProjects: access.UnrestrictedScope(),
	}
}

func TestAppendCompanyFilterOwnCompany(t *testing.T) {
	a := NewAdapter(NewStore())

	where, args, argIdx, err := a.AppendCompanyFilter("WHERE 1=1", nil, 1, "t.company_id", regularContext("co-1"), "")
	require.NoError(t, err)

	assert.Equal(t, "WHERE 1=1 AND t.company_id = $1", where)
	assert.Equal(t, []interface{}{"co-1"}, args)
	assert.Equal(t, 2, argIdx)
}

func TestAppendCompanyFilterNoCompanyFailsClosed(t *testing.T) {
	a := NewAdapter(NewStore())

	_, _, _, err := a.AppendCompanyFilter("WHERE 1=1", nil, 1, "t.company_id", regularContext(""), "")
	assert.ErrorIs(t, err, ErrNoCompanyResolved)
}

func TestAppendCompanyFilterExplicitWinsForPrivileged(t *testing.T) {
	store := NewStore()
	store.SetOverride("co-override")
	a := NewAdapter(store)

	where, args, _, err := a.AppendCompanyFilter("WHERE 1=1", nil, 1, "t.company_id", devContext(), "co-explicit")
	require.NoError(t, err)

	assert.Contains(t, where, "t.company_id = $1")
	assert.Equal(t, []interface{}{"co-explicit"}, args)
}

func TestAppendCompanyFilterGlobalOverrideIsUnfiltered(t *testing.T) {
	store := NewStore()
	store.SetOverride(Global)
	a := NewAdapter(store)

	where, args, argIdx, err := a.AppendCompanyFilter("WHERE 1=1", nil, 1, "t.company_id", devContext(), "")
	require.NoError(t, err)

	assert.Equal(t, "WHERE 1=1", where)
	assert.Empty(t, args)
	assert.Equal(t, 1, argIdx)
}

func TestAppendCompanyFilterUnsetOverrideIsUnfilteredForPrivileged(t *testing.T) {
	a := NewAdapter(NewStore())

	where, _, _, err := a.AppendCompanyFilter("WHERE 1=1", nil, 1, "t.company_id", devContext(), "")
	require.NoError(t, err)
	assert.Equal(t, "WHERE 1=1", where)
}

func TestAppendCompanyFilterSpecificOverridePinsPrivileged(t *testing.T) {
	store := NewStore()
	store.SetOverride("co-7")
	a := NewAdapter(store)

	_, args, _, err := a.AppendCompanyFilter("WHERE 1=1", nil, 1, "t.company_id", devContext(), "")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"co-7"}, args)
}

func TestAppendCompanyFilterOverrideIgnoredForRegularUsers(t *testing.T) {
	store := NewStore()
	store.SetOverride("co-other")
	a := NewAdapter(store)

	_, args, _, err := a.AppendCompanyFilter("WHERE 1=1", nil, 1, "t.company_id", regularContext("co-own"), "")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"co-own"}, args, "the override never widens a regular user's scope")
}

func TestAppendCompanyFilterExplicitIgnoredForRegularUsers(t *testing.T) {
	a := NewAdapter(NewStore())

	_, args, _, err := a.AppendCompanyFilter("WHERE 1=1", nil, 1, "t.company_id", regularContext("co-own"), "co-other")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"co-own"}, args, "a request parameter never repoints a regular user's tenant")
}

func TestAppendCompanyFilterExplicitIgnoredForTenantAdmins(t *testing.T) {
	a := NewAdapter(NewStore())
	admin := &access.Context{
		UserID:             "admin-1",
		CompanyID:          "co-own",
		Role:               "admin",
		IsAdmin:            true,
		AccessibleProjects: access.UnrestrictedScope(),
	}

	where, args, _, err := a.AppendCompanyFilter("WHERE 1=1", nil, 1, "t.company_id", admin, "co-other")
	require.NoError(t, err)
	assert.Equal(t, "WHERE 1=1 AND t.company_id = $1", where)
	assert.Equal(t, []interface{}{"co-own"}, args, "admins stay inside their own tenant")
}

func TestAppendCompanyFilterReadsOverrideFresh(t *testing.T) {
	store := NewStore()
	a := NewAdapter(store)

	where, _, _, err := a.AppendCompanyFilter("WHERE 1=1", nil, 1, "t.company_id", devContext(), "")
	require.NoError(t, err)
	assert.Equal(t, "WHERE 1=1", where)

	store.SetOverride("co-3")

	_, args, _, err := a.AppendCompanyFilter("WHERE 1=1", nil, 1, "t.company_id", devContext(), "")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"co-3"}, args, "each call consults the current override")
}

func TestAppendProjectFilterUnrestrictedAddsNothing(t *testing.T) {
	a := NewAdapter(NewStore())

	where, args, argIdx := a.AppendProjectFilter("WHERE 1=1", nil, 1, "t.project_id", devContext())
	assert.Equal(t, "WHERE 1=1", where)
	assert.Empty(t, args)
	assert.Equal(t, 1, argIdx)
}

func TestAppendProjectFilterRestricted(t *testing.T) {
	a := NewAdapter(NewStore())

	where, args, argIdx := a.AppendProjectFilter("WHERE 1=1", nil, 1, "t.project_id", regularContext("co-1"))
	assert.Equal(t, "WHERE 1=1 AND t.project_id = ANY($1)", where)
	require.Len(t, args, 1)
	assert.Equal(t, []string{"p1", "p2"}, args[0])
	assert.Equal(t, 2, argIdx)
}

func TestAppendProjectFilterEmptyScopeMatchesNothing(t *testing.T) {
	a := NewAdapter(NewStore())
	acc := &access.Context{
		UserID:             "sup-1",
		AccessibleProjects: access.RestrictedScope(),
	}

	where, args, _ := a.AppendProjectFilter("WHERE 1=1", nil, 1, "t.project_id", acc)
	assert.Contains(t, where, "= ANY($1)")
	require.Len(t, args, 1)
	assert.Empty(t, args[0], "an empty list predicate matches zero rows, never all")
}
