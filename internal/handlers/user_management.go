package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"procurement-backend/internal/access"
	"procurement-backend/internal/ctxkeys"
	"procurement-backend/internal/database"
	"procurement-backend/internal/logger"
	"procurement-backend/internal/models"
	"procurement-backend/internal/scope"
)

// UserManagementHandler provides user listing, role changes, and deletion.
// Role changes invalidate the access-context cache so the target's next
// resolve reflects the new role.
type UserManagementHandler struct {
	db       database.Service
	resolver *access.Resolver
	adapter  *scope.Adapter
}

func NewUserManagementHandler(db database.Service, resolver *access.Resolver, adapter *scope.Adapter) *UserManagementHandler {
	return &UserManagementHandler{db: db, resolver: resolver, adapter: adapter}
}

// List returns the users visible to the caller. Admins see their own
// company; platform operators see whatever their scope override selects.
// Supervisors see only the members of their projects.
func (h *UserManagementHandler) List(w http.ResponseWriter, r *http.Request) {
	acc, ok := resolveAccess(w, r, h.resolver)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	pool := h.db.GetPool()

	where := "WHERE 1=1"
	args := []interface{}{}
	argIdx := 1

	where, args, argIdx, ok = appendCompanyScope(w, h.adapter, where, args, argIdx, "u.company_id", acc, "")
	if !ok {
		return
	}

	if !acc.ManageableUsers.Unrestricted() {
		where += fmt.Sprintf(" AND u.id = ANY($%d)", argIdx)
		args = append(args, acc.ManageableUsers.IDs())
		argIdx++
	}

	rows, err := pool.Query(ctx, `
		SELECT u.id, u.email, u.name, u.role, u.company_id::text,
			u.created_at::text, u.updated_at::text
		FROM users u
		`+where+`
		ORDER BY u.created_at DESC
	`, args...)
	if err != nil {
		logger.Errorf("Failed to list users: %v", err)
		JSONError(w, http.StatusInternalServerError, "Failed to fetch users")
		return
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.CompanyID, &u.CreatedAt, &u.UpdatedAt); err != nil {
			logger.Errorf("Failed to scan user row: %v", err)
			continue
		}
		users = append(users, u)
	}

	JSON(w, http.StatusOK, map[string]interface{}{"data": users})
}

// UpdateRole changes a user's role with hierarchical restrictions: nobody
// assigns a role above their own, and only platform operators touch other
// admins or operators.
func (h *UserManagementHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	targetID := chi.URLParam(r, "id")

	acc, ok := resolveAccess(w, r, h.resolver)
	if !ok {
		return
	}

	if targetID == acc.UserID {
		JSONError(w, http.StatusBadRequest, "Cannot change your own role")
		return
	}

	var req models.UpdateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		JSONError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		JSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":   "Validation failed",
			"details": errs,
		})
		return
	}

	if ctxkeys.RoleLevel[req.Role] > ctxkeys.RoleLevel[acc.Role] {
		JSONError(w, http.StatusForbidden, "Cannot assign a role above your own")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	pool := h.db.GetPool()

	var targetRole string
	var targetCompanyID *string
	if err := pool.QueryRow(ctx,
		"SELECT role, company_id::text FROM users WHERE id = $1", targetID,
	).Scan(&targetRole, &targetCompanyID); err != nil {
		JSONError(w, http.StatusNotFound, "User not found")
		return
	}

	if !acc.Privileged() {
		if ctxkeys.RoleLevel[targetRole] >= ctxkeys.RoleLevel[ctxkeys.RoleAdmin] {
			JSONError(w, http.StatusForbidden, "Cannot modify admin or dev users")
			return
		}
		if targetCompanyID == nil || *targetCompanyID != acc.CompanyID {
			JSONError(w, http.StatusForbidden, "Access denied to this user")
			return
		}
	}

	var user models.User
	err := pool.QueryRow(ctx, `
		UPDATE users SET role = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING id, email, name, role, company_id::text, created_at::text, updated_at::text
	`, req.Role, targetID).Scan(
		&user.ID, &user.Email, &user.Name, &user.Role, &user.CompanyID,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		JSONError(w, http.StatusNotFound, "User not found")
		return
	}

	// The target's cached context carries the old role.
	h.resolver.Invalidate()

	go logActivity(pool, acc.UserID, "updated_role", "user", targetID, map[string]interface{}{
		"newRole": req.Role,
		"email":   user.Email,
	})

	JSON(w, http.StatusOK, map[string]interface{}{
		"data":    user,
		"message": "Role updated successfully",
	})
}

// Delete removes a user with hierarchical restrictions.
func (h *UserManagementHandler) Delete(w http.ResponseWriter, r *http.Request) {
	targetID := chi.URLParam(r, "id")

	acc, ok := resolveAccess(w, r, h.resolver)
	if !ok {
		return
	}

	if targetID == acc.UserID {
		JSONError(w, http.StatusBadRequest, "Cannot delete your own account")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	pool := h.db.GetPool()

	var email, targetRole string
	var targetCompanyID *string
	err := pool.QueryRow(ctx,
		"SELECT email, role, company_id::text FROM users WHERE id = $1", targetID,
	).Scan(&email, &targetRole, &targetCompanyID)
	if err != nil {
		JSONError(w, http.StatusNotFound, "User not found")
		return
	}

	if !acc.Privileged() {
		if ctxkeys.RoleLevel[targetRole] >= ctxkeys.RoleLevel[ctxkeys.RoleAdmin] {
			JSONError(w, http.StatusForbidden, "Cannot delete admin or dev users")
			return
		}
		if targetCompanyID == nil || *targetCompanyID != acc.CompanyID {
			JSONError(w, http.StatusForbidden, "Access denied to this user")
			return
		}
	}

	tag, err := pool.Exec(ctx, "DELETE FROM users WHERE id = $1", targetID)
	if err != nil {
		logger.Errorf("Failed to delete user: %v", err)
		JSONError(w, http.StatusInternalServerError, "Failed to delete user")
		return
	}

	if tag.RowsAffected() == 0 {
		JSONError(w, http.StatusNotFound, "User not found")
		return
	}

	// Memberships referencing the user went with the cascade.
	h.resolver.Invalidate()

	go logActivity(pool, acc.UserID, "deleted", "user", targetID, map[string]interface{}{
		"email": email,
	})

	JSON(w, http.StatusOK, map[string]interface{}{"message": "User deleted successfully"})
}
