package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"procurement-backend/internal/access"
	"procurement-backend/internal/ctxkeys"
	"procurement-backend/internal/database"
	"procurement-backend/internal/logger"
	"procurement-backend/internal/models"
	"procurement-backend/internal/scope"
)

// ProjectHandler handles project and membership HTTP requests. Every
// membership mutation invalidates the access-context cache so the next
// resolve sees the new permission set.
type ProjectHandler struct {
	db       database.Service
	resolver *access.Resolver
	adapter  *scope.Adapter
}

// NewProjectHandler creates a new ProjectHandler.
func NewProjectHandler(db database.Service, resolver *access.Resolver, adapter *scope.Adapter) *ProjectHandler {
	return &ProjectHandler{db: db, resolver: resolver, adapter: adapter}
}

// ── Columns ────────────────────────────────────────────────────
// Central column lists keep Create/GetByID/List all in sync.
// Aliased version (for SELECT with FROM clause):
const projectCols = `p.id, p.company_id, p.name, p.description, p.status,
	p.supervisor_id, p.created_at::text, p.updated_at::text`

// Unaliased version (for INSERT/UPDATE RETURNING):
const projectRetCols = `id, company_id, name, description, status,
	supervisor_id, created_at::text, updated_at::text`

// ── Scan Helpers ───────────────────────────────────────────────

func scanProject(scanner interface {
	Scan(dest ...interface{}) error
}, p *models.Project) error {
	return scanner.Scan(
		&p.ID, &p.CompanyID, &p.Name, &p.Description, &p.Status,
		&p.SupervisorID, &p.CreatedAt, &p.UpdatedAt,
	)
}

// canTouchProject reports whether the caller may mutate the given project:
// admins and platform operators always, supervisors only for projects they
// supervise.
func canTouchProject(acc *access.Context, projectID string) bool {
	if acc.IsAdmin || acc.IsDev {
		return true
	}
	if !acc.IsSupervisor {
		return false
	}
	for _, id := range acc.SupervisedProjectIDs {
		if id == projectID {
			return true
		}
	}
	return false
}

// ── Create ─────────────────────────────────────────────────────

// Create handles POST /api/projects
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	acc, ok := resolveAccess(w, r, h.resolver)
	if !ok {
		return
	}
	if !acc.IsAdmin && !acc.IsDev {
		JSONError(w, http.StatusForbidden, "Only admins can create projects")
		return
	}

	var req models.CreateProjectRequest
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

	// Default status to "active" if not provided
	if req.Status == "" {
		req.Status = "active"
	}

	if !checkCompanyAccess(h.adapter, acc, req.CompanyID) {
		JSONError(w, http.StatusForbidden, "Access denied to this company")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	pool := h.db.GetPool()

	var project models.Project
	err := pool.QueryRow(ctx, `
		INSERT INTO projects (company_id, name, description, status, supervisor_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+projectRetCols,
		req.CompanyID, req.Name, req.Description, req.Status, req.SupervisorID,
	).Scan(
		&project.ID, &project.CompanyID, &project.Name,
		&project.Description, &project.Status, &project.SupervisorID,
		&project.CreatedAt, &project.UpdatedAt,
	)
	if err != nil {
		logger.Errorf("Error creating project: %v", err)
		JSONError(w, http.StatusInternalServerError, "Failed to create project")
		return
	}

	// A new supervisor assignment changes someone's project scope.
	if req.SupervisorID != nil {
		h.resolver.Invalidate()
	}

	userID, _ := r.Context().Value(ctxkeys.UserID).(string)
	logActivity(pool, userID, "created", "project", project.ID, map[string]interface{}{
		"name": project.Name, "companyId": project.CompanyID,
	})

	JSON(w, http.StatusCreated, map[string]interface{}{
		"data":    project,
		"message": "Project created successfully",
	})
}

// ── List ───────────────────────────────────────────────────────

// List handles GET /api/projects
// Results are scoped twice: to the caller's company scope and, for
// non-admin callers, to the projects they can actually access.
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	acc, ok := resolveAccess(w, r, h.resolver)
	if !ok {
		return
	}

	q := r.URL.Query()

	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset := (page - 1) * limit

	companyID := q.Get("company_id")
	status := q.Get("status")
	search := q.Get("search")

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	pool := h.db.GetPool()

	// Build dynamic WHERE clause
	where := "WHERE 1=1"
	args := []interface{}{}
	argIdx := 1

	where, args, argIdx, ok = appendCompanyScope(w, h.adapter, where, args, argIdx, "p.company_id", acc, companyID)
	if !ok {
		return
	}
	where, args, argIdx = h.adapter.AppendProjectFilter(where, args, argIdx, "p.id", acc)

	if status != "" {
		where += fmt.Sprintf(" AND p.status = $%d", argIdx)
		args = append(args, status)
		argIdx++
	}
	if search != "" {
		where += fmt.Sprintf(" AND p.name ILIKE $%d", argIdx)
		args = append(args, "%"+search+"%")
		argIdx++
	}

	// Count total for pagination
	var total int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM projects p "+where, args...).Scan(&total); err != nil {
		logger.Errorf("Error counting projects: %v", err)
		JSONError(w, http.StatusInternalServerError, "Failed to fetch projects")
		return
	}

	query := fmt.Sprintf(`
		SELECT
			%s,
			c.name AS company_name,
			s.name AS supervisor_name,
			(SELECT COUNT(*) FROM project_members pm WHERE pm.project_id = p.id) AS member_count
		FROM projects p
		JOIN companies c ON p.company_id = c.id
		LEFT JOIN users s ON p.supervisor_id = s.id
		%s
		ORDER BY p.name ASC
		LIMIT $%d OFFSET $%d
	`, projectCols, where, argIdx, argIdx+1)

	args = append(args, limit, offset)

	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		logger.Errorf("Error querying projects: %v", err)
		JSONError(w, http.StatusInternalServerError, "Failed to fetch projects")
		return
	}
	defer rows.Close()

	type ProjectWithDetails struct {
		models.Project
		CompanyName    string  `json:"companyName"`
		SupervisorName *string `json:"supervisorName,omitempty"`
		MemberCount    int     `json:"memberCount"`
	}

	projects := []ProjectWithDetails{}
	for rows.Next() {
		var p ProjectWithDetails
		if err := rows.Scan(
			&p.ID, &p.CompanyID, &p.Name, &p.Description, &p.Status,
			&p.SupervisorID, &p.CreatedAt, &p.UpdatedAt,
			&p.CompanyName, &p.SupervisorName, &p.MemberCount,
		); err != nil {
			logger.Errorf("Error scanning project: %v", err)
			continue
		}
		projects = append(projects, p)
	}

	JSON(w, http.StatusOK, PaginatedResponse{
		Data: projects,
		Pagination: PaginationMeta{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: int(math.Ceil(float64(total) / float64(limit))),
		},
	})
}

// ── GetByID ────────────────────────────────────────────────────

// GetByID handles GET /api/projects/{id}
// Returns the project with its member list.
func (h *ProjectHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		JSONError(w, http.StatusBadRequest, "Project ID is required")
		return
	}

	acc, ok := resolveAccess(w, r, h.resolver)
	if !ok {
		return
	}

	if !acc.AccessibleProjects.Unrestricted() && !acc.AccessibleProjects.Contains(id) {
		JSONError(w, http.StatusForbidden, "Access denied to this project")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	pool := h.db.GetPool()

	var project models.Project
	if err := scanProject(pool.QueryRow(ctx, `
		SELECT `+projectCols+`
		FROM projects p
		WHERE p.id = $1
	`, id), &project); err != nil {
		JSONError(w, http.StatusNotFound, "Project not found")
		return
	}

	if !checkCompanyAccess(h.adapter, acc, project.CompanyID) {
		JSONError(w, http.StatusForbidden, "Access denied to this project")
		return
	}

	members, err := h.fetchMembers(ctx, id)
	if err != nil {
		logger.Errorf("Error fetching members for project %s: %v", id, err)
		JSONError(w, http.StatusInternalServerError, "Failed to fetch project")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"project": project,
			"members": members,
		},
	})
}

// ── Update ─────────────────────────────────────────────────────

// Update handles PUT /api/projects/{id}
func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		JSONError(w, http.StatusBadRequest, "Project ID is required")
		return
	}

	acc, ok := resolveAccess(w, r, h.resolver)
	if !ok {
		return
	}
	if !canTouchProject(acc, id) {
		JSONError(w, http.StatusForbidden, "Access denied to this project")
		return
	}

	var req struct {
		Name         *string `json:"name"`
		Description  *string `json:"description"`
		Status       *string `json:"status"`
		SupervisorID *string `json:"supervisorId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		JSONError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	pool := h.db.GetPool()

	// Build dynamic SET clause: only update provided fields
	setClauses := []string{}
	args := []interface{}{}
	argIdx := 1

	addField := func(col string, val interface{}) {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", col, argIdx))
		args = append(args, val)
		argIdx++
	}

	supervisorChanged := false
	if req.Name != nil {
		addField("name", *req.Name)
	}
	if req.Description != nil {
		addField("description", *req.Description)
	}
	if req.Status != nil {
		valid := map[string]bool{"active": true, "on_hold": true, "completed": true, "archived": true}
		if !valid[*req.Status] {
			JSONError(w, http.StatusUnprocessableEntity, "Status must be 'active', 'on_hold', 'completed', or 'archived'")
			return
		}
		addField("status", *req.Status)
	}
	if req.SupervisorID != nil {
		addField("supervisor_id", nilIfEmpty(*req.SupervisorID))
		supervisorChanged = true
	}

	if len(setClauses) == 0 {
		JSONError(w, http.StatusBadRequest, "No fields to update")
		return
	}

	// Always update updated_at
	setClauses = append(setClauses, "updated_at = NOW()")

	query := fmt.Sprintf(`
		UPDATE projects SET %s
		WHERE id = $%d
		RETURNING %s
	`, strings.Join(setClauses, ", "), argIdx, projectRetCols)
	args = append(args, id)

	var project models.Project
	if err := scanProject(pool.QueryRow(ctx, query, args...), &project); err != nil {
		logger.Errorf("Error updating project %s: %v", id, err)
		JSONError(w, http.StatusNotFound, "Project not found")
		return
	}

	if supervisorChanged {
		h.resolver.Invalidate()
	}

	userID, _ := r.Context().Value(ctxkeys.UserID).(string)
	logActivity(pool, userID, "updated", "project", project.ID, map[string]interface{}{
		"name": project.Name,
	})

	JSON(w, http.StatusOK, map[string]interface{}{
		"data":    project,
		"message": "Project updated successfully",
	})
}

// ── Delete ─────────────────────────────────────────────────────

// Delete handles DELETE /api/projects/{id}
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		JSONError(w, http.StatusBadRequest, "Project ID is required")
		return
	}

	acc, ok := resolveAccess(w, r, h.resolver)
	if !ok {
		return
	}
	if !acc.IsAdmin && !acc.IsDev {
		JSONError(w, http.StatusForbidden, "Only admins can delete projects")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	pool := h.db.GetPool()

	tag, err := pool.Exec(ctx, "DELETE FROM projects WHERE id = $1", id)
	if err != nil {
		logger.Errorf("Error deleting project %s: %v", id, err)
		JSONError(w, http.StatusInternalServerError, "Failed to delete project")
		return
	}

	if tag.RowsAffected() == 0 {
		JSONError(w, http.StatusNotFound, "Project not found")
		return
	}

	// Memberships went with the cascade.
	h.resolver.Invalidate()

	userID, _ := r.Context().Value(ctxkeys.UserID).(string)
	logActivity(pool, userID, "deleted", "project", id, nil)

	JSON(w, http.StatusOK, map[string]string{
		"message": "Project deleted successfully",
	})
}

// ── Members ────────────────────────────────────────────────────

// ListMembers handles GET /api/projects/{id}/members
func (h *ProjectHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		JSONError(w, http.StatusBadRequest, "Project ID is required")
		return
	}

	acc, ok := resolveAccess(w, r, h.resolver)
	if !ok {
		return
	}
	if !acc.AccessibleProjects.Unrestricted() && !acc.AccessibleProjects.Contains(id) {
		JSONError(w, http.StatusForbidden, "Access denied to this project")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	members, err := h.fetchMembers(ctx, id)
	if err != nil {
		logger.Errorf("Error fetching members for project %s: %v", id, err)
		JSONError(w, http.StatusInternalServerError, "Failed to fetch members")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{"data": members})
}

// AddMember handles POST /api/projects/{id}/members
// A missing requiresApproval leaves the column NULL; the access engine
// reads NULL as "approval required".
func (h *ProjectHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		JSONError(w, http.StatusBadRequest, "Project ID is required")
		return
	}

	acc, ok := resolveAccess(w, r, h.resolver)
	if !ok {
		return
	}
	if !canTouchProject(acc, id) {
		JSONError(w, http.StatusForbidden, "Access denied to this project")
		return
	}

	var req models.AddMemberRequest
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

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	pool := h.db.GetPool()

	_, err := pool.Exec(ctx, `
		INSERT INTO project_members (project_id, user_id, requires_approval)
		VALUES ($1, $2, $3)
	`, id, req.UserID, req.RequiresApproval)
	if err != nil {
		if isDuplicateKeyError(err) {
			JSONError(w, http.StatusConflict, "User is already a member of this project")
			return
		}
		logger.Errorf("Error adding member to project %s: %v", id, err)
		JSONError(w, http.StatusInternalServerError, "Failed to add member")
		return
	}

	// The new member's next resolve must see this project.
	h.resolver.Invalidate()

	userID, _ := r.Context().Value(ctxkeys.UserID).(string)
	logActivity(pool, userID, "added_member", "project", id, map[string]interface{}{
		"memberId": req.UserID,
	})

	JSON(w, http.StatusCreated, map[string]string{
		"message": "Member added successfully",
	})
}

// UpdateMember handles PATCH /api/projects/{id}/members/{userId}
// Toggles the per-member approval requirement.
func (h *ProjectHandler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	memberID := chi.URLParam(r, "userId")
	if id == "" || memberID == "" {
		JSONError(w, http.StatusBadRequest, "Project ID and user ID are required")
		return
	}

	acc, ok := resolveAccess(w, r, h.resolver)
	if !ok {
		return
	}
	if !canTouchProject(acc, id) {
		JSONError(w, http.StatusForbidden, "Access denied to this project")
		return
	}

	var req struct {
		RequiresApproval *bool `json:"requiresApproval"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		JSONError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.RequiresApproval == nil {
		JSONError(w, http.StatusUnprocessableEntity, "requiresApproval is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	pool := h.db.GetPool()

	tag, err := pool.Exec(ctx, `
		UPDATE project_members SET requires_approval = $1
		WHERE project_id = $2 AND user_id = $3
	`, *req.RequiresApproval, id, memberID)
	if err != nil {
		logger.Errorf("Error updating member %s on project %s: %v", memberID, id, err)
		JSONError(w, http.StatusInternalServerError, "Failed to update member")
		return
	}
	if tag.RowsAffected() == 0 {
		JSONError(w, http.StatusNotFound, "Membership not found")
		return
	}

	h.resolver.Invalidate()

	userID, _ := r.Context().Value(ctxkeys.UserID).(string)
	logActivity(pool, userID, "updated_member", "project", id, map[string]interface{}{
		"memberId":         memberID,
		"requiresApproval": *req.RequiresApproval,
	})

	JSON(w, http.StatusOK, map[string]string{
		"message": "Member updated successfully",
	})
}

// RemoveMember handles DELETE /api/projects/{id}/members/{userId}
func (h *ProjectHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	memberID := chi.URLParam(r, "userId")
	if id == "" || memberID == "" {
		JSONError(w, http.StatusBadRequest, "Project ID and user ID are required")
		return
	}

	acc, ok := resolveAccess(w, r, h.resolver)
	if !ok {
		return
	}
	if !canTouchProject(acc, id) {
		JSONError(w, http.StatusForbidden, "Access denied to this project")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	pool := h.db.GetPool()

	tag, err := pool.Exec(ctx, `
		DELETE FROM project_members WHERE project_id = $1 AND user_id = $2
	`, id, memberID)
	if err != nil {
		logger.Errorf("Error removing member %s from project %s: %v", memberID, id, err)
		JSONError(w, http.StatusInternalServerError, "Failed to remove member")
		return
	}
	if tag.RowsAffected() == 0 {
		JSONError(w, http.StatusNotFound, "Membership not found")
		return
	}

	h.resolver.Invalidate()

	userID, _ := r.Context().Value(ctxkeys.UserID).(string)
	logActivity(pool, userID, "removed_member", "project", id, map[string]interface{}{
		"memberId": memberID,
	})

	JSON(w, http.StatusOK, map[string]string{
		"message": "Member removed successfully",
	})
}

// ── Helpers ────────────────────────────────────────────────────

func (h *ProjectHandler) fetchMembers(ctx context.Context, projectID string) ([]models.ProjectMember, error) {
	rows, err := h.db.GetPool().Query(ctx, `
		SELECT pm.project_id, pm.user_id, u.name, u.email, pm.requires_approval
		FROM project_members pm
		JOIN users u ON pm.user_id = u.id
		WHERE pm.project_id = $1
		ORDER BY u.name ASC
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := []models.ProjectMember{}
	for rows.Next() {
		var m models.ProjectMember
		if err := rows.Scan(&m.ProjectID, &m.UserID, &m.UserName, &m.UserEmail, &m.RequiresApproval); err != nil {
			logger.Errorf("Error scanning project member: %v", err)
			continue
		}
		members = append(members, m)
	}
	return members, nil
}
