package scope

import (
	"errors"
	"fmt"

	"procurement-backend/internal/access"
)

// ErrNoCompanyResolved means no tenant filter could be determined for a
// non-privileged identity. The query must not run unfiltered.
var ErrNoCompanyResolved = errors.New("no company resolved for scope filter")

// Adapter appends tenant predicates to SQL WHERE clauses under
// construction. The override is read from the store on every call: it can
// change mid-session, so the result is never cached.
type Adapter struct {
	store *Store
}

// NewAdapter returns an Adapter consulting the given store.
func NewAdapter(store *Store) *Adapter {
	return &Adapter{store: store}
}

// Override exposes the current raw override value for callers that need
// to reason about it directly (e.g. record-level access checks).
func (a *Adapter) Override() string {
	return a.store.Override()
}

// AppendCompanyFilter appends a company predicate on column (a SQL column
// expression, e.g. "p.company_id") to a dynamic WHERE clause.
//
// Resolution order:
//  1. privileged caller with an explicit company: filter by it
//  2. privileged caller under the global override: no filter
//  3. privileged caller under a specific override: filter by the override
//  4. everyone else: filter by their own company; ErrNoCompanyResolved
//     when the identity has none
//
// An explicit company never widens a non-privileged caller's scope. There
// is no row-level backstop behind these queries, so the filter always pins
// to the identity's own tenant regardless of what the request asked for.
func (a *Adapter) AppendCompanyFilter(where string, args []interface{}, argIdx int, column string, acc *access.Context, explicitCompanyID string) (string, []interface{}, int, error) {
	if acc == nil {
		return where, args, argIdx, ErrNoCompanyResolved
	}

	if acc.Privileged() {
		if explicitCompanyID != "" {
			return appendEq(where, args, argIdx, column, explicitCompanyID)
		}
		override := a.store.Override()
		if override == "" || override == Global {
			return where, args, argIdx, nil
		}
		return appendEq(where, args, argIdx, column, override)
	}

	if acc.CompanyID == "" {
		return where, args, argIdx, ErrNoCompanyResolved
	}
	return appendEq(where, args, argIdx, column, acc.CompanyID)
}

// AppendProjectFilter restricts column to the context's accessible
// projects. Unrestricted scopes add nothing; a restricted empty scope adds
// a predicate matching zero rows, never falling open.
func (a *Adapter) AppendProjectFilter(where string, args []interface{}, argIdx int, column string, acc *access.Context) (string, []interface{}, int) {
	if acc == nil || acc.AccessibleProjects.Unrestricted() {
		return where, args, argIdx
	}
	where += fmt.Sprintf(" AND %s = ANY($%d)", column, argIdx)
	args = append(args, acc.AccessibleProjects.IDs())
	return where, args, argIdx + 1
}

func appendEq(where string, args []interface{}, argIdx int, column, value string) (string, []interface{}, int, error) {
	where += fmt.Sprintf(" AND %s = $%d", column, argIdx)
	args = append(args, value)
	return where, args, argIdx + 1, nil
}
