package handlers

import (
	"encoding/json"
	"net/http"

	"procurement-backend/internal/access"
	"procurement-backend/internal/logger"
	"procurement-backend/internal/scope"
)

// ScopeHandler exposes the company-scope switcher: which tenant the
// current session is pinned to, and the privileged-only global view.
type ScopeHandler struct {
	resolver *access.Resolver
	provider *scope.Provider
}

// NewScopeHandler creates a ScopeHandler.
func NewScopeHandler(resolver *access.Resolver, provider *scope.Provider) *ScopeHandler {
	return &ScopeHandler{resolver: resolver, provider: provider}
}

// ensureProvider lazily (re)initializes the provider when the session
// identity changed since the last sign-in, e.g. after a server restart
// with a still-valid token.
func (h *ScopeHandler) ensureProvider(w http.ResponseWriter, r *http.Request) (*access.Context, bool) {
	acc, ok := resolveAccess(w, r, h.resolver)
	if !ok {
		return nil, false
	}

	if h.provider.CurrentUser() != acc.UserID {
		if err := h.provider.HandleSignIn(r.Context(), acc); err != nil {
			logger.Errorf("Failed to initialize company scope for %s: %v", acc.UserID, err)
			JSONError(w, http.StatusInternalServerError, "Failed to load company scope")
			return nil, false
		}
	}
	return acc, true
}

// Get handles GET /api/scope.
func (h *ScopeHandler) Get(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.ensureProvider(w, r); !ok {
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"data": h.provider.Snapshot()})
}

// SetActiveCompany handles PUT /api/scope/company.
// A null companyId switches a privileged session to the global view.
func (h *ScopeHandler) SetActiveCompany(w http.ResponseWriter, r *http.Request) {
	acc, ok := h.ensureProvider(w, r)
	if !ok {
		return
	}

	var req struct {
		CompanyID *string `json:"companyId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		JSONError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if !acc.Privileged() {
		JSONError(w, http.StatusForbidden, "Only platform operators can switch companies")
		return
	}

	companyID := ""
	if req.CompanyID != nil {
		companyID = *req.CompanyID
	}

	if err := h.provider.SetActiveCompany(companyID); err != nil {
		JSONError(w, http.StatusUnprocessableEntity, "Unknown company")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{"data": h.provider.Snapshot()})
}

// SetGlobalView handles PUT /api/scope/global-view. The preference is
// persisted and restored on the next privileged sign-in.
func (h *ScopeHandler) SetGlobalView(w http.ResponseWriter, r *http.Request) {
	acc, ok := h.ensureProvider(w, r)
	if !ok {
		return
	}

	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		JSONError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if !acc.Privileged() {
		JSONError(w, http.StatusForbidden, "Only platform operators can toggle the global view")
		return
	}

	if err := h.provider.SetGlobalView(r.Context(), req.Enabled); err != nil {
		logger.Errorf("Failed to toggle global view for %s: %v", acc.UserID, err)
		JSONError(w, http.StatusInternalServerError, "Failed to update global view")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{"data": h.provider.Snapshot()})
}
