package handlers

import (
	"net/http"

	"procurement-backend/internal/access"
)

// AccessHandler exposes the resolved access context to the frontend.
type AccessHandler struct {
	resolver *access.Resolver
}

// NewAccessHandler creates an AccessHandler.
func NewAccessHandler(resolver *access.Resolver) *AccessHandler {
	return &AccessHandler{resolver: resolver}
}

// accessContextResponse mirrors the snapshot the UI consumes. A null
// accessibleProjectIds / manageableUserIds means unrestricted; an empty
// array means access to nothing.
type accessContextResponse struct {
	UserID               string                     `json:"userId"`
	CompanyID            string                     `json:"companyId,omitempty"`
	Role                 string                     `json:"role"`
	IsAdmin              bool                       `json:"isAdmin"`
	IsSupervisor         bool                       `json:"isSupervisor"`
	IsUser               bool                       `json:"isUser"`
	IsDev                bool                       `json:"isDev"`
	MemberProjectIDs     []string                   `json:"memberProjectIds"`
	SupervisedProjectIDs []string                   `json:"supervisedProjectIds"`
	AccessibleProjectIDs []string                   `json:"accessibleProjectIds"`
	ManageableUserIDs    []string                   `json:"manageableUserIds"`
	ApprovalsByProject   map[string]map[string]bool `json:"approvalsByProject"`
	ResolvedAt           string                     `json:"resolvedAt"`
}

// Get handles GET /api/access-context. Pass ?refresh=1 to bypass the
// cache after a permission change.
func (h *AccessHandler) Get(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("refresh") == "1"

	acc, err := h.resolver.Resolve(r.Context(), force)
	if err != nil {
		writeAccessError(w, err)
		return
	}

	resp := accessContextResponse{
		UserID:               acc.UserID,
		CompanyID:            acc.CompanyID,
		Role:                 acc.Role,
		IsAdmin:              acc.IsAdmin,
		IsSupervisor:         acc.IsSupervisor,
		IsUser:               acc.IsUser,
		IsDev:                acc.IsDev,
		MemberProjectIDs:     emptyIfNil(acc.MemberProjectIDs),
		SupervisedProjectIDs: emptyIfNil(acc.SupervisedProjectIDs),
		AccessibleProjectIDs: acc.AccessibleProjects.IDs(),
		ManageableUserIDs:    acc.ManageableUsers.IDs(),
		ApprovalsByProject:   acc.ApprovalsByProject,
		ResolvedAt:           acc.ResolvedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}

	JSON(w, http.StatusOK, map[string]interface{}{"data": resp})
}

func emptyIfNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
