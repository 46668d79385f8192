package handlers

import (
	"errors"
	"net/http"

	"procurement-backend/internal/access"
	"procurement-backend/internal/logger"
	"procurement-backend/internal/scope"
)

// resolveAccess resolves the caller's access context and translates engine
// errors into HTTP responses. Returns (nil, false) after writing the error.
func resolveAccess(w http.ResponseWriter, r *http.Request, resolver *access.Resolver) (*access.Context, bool) {
	acc, err := resolver.Resolve(r.Context(), false)
	if err != nil {
		writeAccessError(w, err)
		return nil, false
	}
	return acc, true
}

// writeAccessError maps engine errors to actionable HTTP responses. Raw
// internal errors are never assumed display-safe.
func writeAccessError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, access.ErrSessionInvalid):
		JSONError(w, http.StatusUnauthorized, "Session invalid. Please sign in again.")
	case errors.Is(err, access.ErrProfileNotFound):
		JSONError(w, http.StatusForbidden, "No profile found for this account")
	case errors.Is(err, scope.ErrNoCompanyResolved):
		JSONError(w, http.StatusConflict, "No active company could be determined. Please select a company.")
	default:
		logger.Errorf("Failed to resolve access context: %v", err)
		JSONError(w, http.StatusInternalServerError, "Failed to resolve permissions")
	}
}

// appendCompanyScope adds the tenant filter for the current caller to a
// dynamic WHERE clause. colExpr is the SQL column expression to filter on
// (e.g. "p.company_id", "c.id"). Wrong or missing scope never falls open:
// the error is written and ok is false.
func appendCompanyScope(w http.ResponseWriter, adapter *scope.Adapter, where string, args []interface{}, argIdx int, colExpr string, acc *access.Context, explicitCompanyID string) (string, []interface{}, int, bool) {
	where, args, argIdx, err := adapter.AppendCompanyFilter(where, args, argIdx, colExpr, acc, explicitCompanyID)
	if err != nil {
		writeAccessError(w, err)
		return where, args, argIdx, false
	}
	return where, args, argIdx, true
}

// checkCompanyAccess verifies that the given company is within the
// caller's current scope: privileged identities pass for any company
// unless pinned to a different one by an override.
func checkCompanyAccess(adapter *scope.Adapter, acc *access.Context, companyID string) bool {
	if acc == nil || companyID == "" {
		return false
	}
	if acc.Privileged() {
		override := adapter.Override()
		return override == "" || override == scope.Global || override == companyID
	}
	return acc.CompanyID == companyID
}
