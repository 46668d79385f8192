package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"procurement-backend/internal/access"
	"procurement-backend/internal/ctxkeys"
	"procurement-backend/internal/database"
	"procurement-backend/internal/logger"
	"procurement-backend/internal/models"
	"procurement-backend/internal/scope"
)

// RequisitionHandler handles purchase requisition HTTP requests. The
// creator's per-project approval requirement decides whether a new
// requisition starts pending or pre-approved.
type RequisitionHandler struct {
	db       database.Service
	resolver *access.Resolver
	adapter  *scope.Adapter
}

// NewRequisitionHandler creates a new RequisitionHandler.
func NewRequisitionHandler(db database.Service, resolver *access.Resolver, adapter *scope.Adapter) *RequisitionHandler {
	return &RequisitionHandler{db: db, resolver: resolver, adapter: adapter}
}

// ── Columns ────────────────────────────────────────────────────
const requisitionCols = `r.id, r.internal_folio, r.company_id, r.project_id,
	r.created_by, r.approved_by, r.total_amount, r.business_status, r.notes,
	r.created_at::text, r.updated_at::text`

const requisitionRetCols = `id, internal_folio, company_id, project_id,
	created_by, approved_by, total_amount, business_status, notes,
	created_at::text, updated_at::text`

// ── Scan Helpers ───────────────────────────────────────────────

func scanRequisition(scanner interface {
	Scan(dest ...interface{}) error
}, req *models.Requisition) error {
	return scanner.Scan(
		&req.ID, &req.InternalFolio, &req.CompanyID, &req.ProjectID,
		&req.CreatedBy, &req.ApprovedBy, &req.TotalAmount,
		&req.BusinessStatus, &req.Notes,
		&req.CreatedAt, &req.UpdatedAt,
	)
}

// ── Create ─────────────────────────────────────────────────────

// Create handles POST /api/requisitions
// The initial status comes from the creator's membership flag: members
// whose approval requirement is waived get an immediately approved
// requisition; everyone else starts pending. An unrecorded flag counts as
// "approval required".
func (h *RequisitionHandler) Create(w http.ResponseWriter, r *http.Request) {
	acc, ok := resolveAccess(w, r, h.resolver)
	if !ok {
		return
	}

	var req models.CreateRequisitionRequest
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

	if !acc.AccessibleProjects.Unrestricted() && !acc.AccessibleProjects.Contains(req.ProjectID) {
		JSONError(w, http.StatusForbidden, "Access denied to this project")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	pool := h.db.GetPool()

	var companyID string
	if err := pool.QueryRow(ctx,
		"SELECT company_id FROM projects WHERE id = $1", req.ProjectID,
	).Scan(&companyID); err != nil {
		JSONError(w, http.StatusNotFound, "Project not found")
		return
	}

	if !checkCompanyAccess(h.adapter, acc, companyID) {
		JSONError(w, http.StatusForbidden, "Access denied to this company")
		return
	}

	status := models.RequisitionPending
	var approvedBy *string
	if requires, recorded := acc.RequiresApproval(req.ProjectID, acc.UserID); recorded && !requires {
		status = models.RequisitionApproved
		approvedBy = &acc.UserID
	}

	folio := "REQ-" + uuid.NewString()[:8]

	var requisition models.Requisition
	err := pool.QueryRow(ctx, `
		INSERT INTO requisitions (
			internal_folio, company_id, project_id, created_by,
			approved_by, total_amount, business_status, notes
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+requisitionRetCols,
		folio, companyID, req.ProjectID, acc.UserID,
		approvedBy, req.TotalAmount, status, req.Notes,
	).Scan(
		&requisition.ID, &requisition.InternalFolio,
		&requisition.CompanyID, &requisition.ProjectID,
		&requisition.CreatedBy, &requisition.ApprovedBy,
		&requisition.TotalAmount, &requisition.BusinessStatus,
		&requisition.Notes, &requisition.CreatedAt, &requisition.UpdatedAt,
	)
	if err != nil {
		logger.Errorf("Error creating requisition: %v", err)
		JSONError(w, http.StatusInternalServerError, "Failed to create requisition")
		return
	}

	logActivity(pool, acc.UserID, "created", "requisition", requisition.ID, map[string]interface{}{
		"folio": requisition.InternalFolio, "status": requisition.BusinessStatus,
	})

	JSON(w, http.StatusCreated, map[string]interface{}{
		"data":    requisition,
		"message": "Requisition created successfully",
	})
}

// ── List ───────────────────────────────────────────────────────

// List handles GET /api/requisitions
func (h *RequisitionHandler) List(w http.ResponseWriter, r *http.Request) {
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
	projectID := q.Get("project_id")
	status := q.Get("status")

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	pool := h.db.GetPool()

	where := "WHERE 1=1"
	args := []interface{}{}
	argIdx := 1

	where, args, argIdx, ok = appendCompanyScope(w, h.adapter, where, args, argIdx, "r.company_id", acc, companyID)
	if !ok {
		return
	}
	where, args, argIdx = h.adapter.AppendProjectFilter(where, args, argIdx, "r.project_id", acc)

	if projectID != "" {
		where += fmt.Sprintf(" AND r.project_id = $%d", argIdx)
		args = append(args, projectID)
		argIdx++
	}
	if status != "" {
		where += fmt.Sprintf(" AND r.business_status = $%d", argIdx)
		args = append(args, status)
		argIdx++
	}

	var total int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM requisitions r "+where, args...).Scan(&total); err != nil {
		logger.Errorf("Error counting requisitions: %v", err)
		JSONError(w, http.StatusInternalServerError, "Failed to fetch requisitions")
		return
	}

	query := fmt.Sprintf(`
		SELECT
			%s,
			p.name AS project_name,
			u.name AS creator_name
		FROM requisitions r
		JOIN projects p ON r.project_id = p.id
		JOIN users u ON r.created_by = u.id
		%s
		ORDER BY r.created_at DESC
		LIMIT $%d OFFSET $%d
	`, requisitionCols, where, argIdx, argIdx+1)

	args = append(args, limit, offset)

	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		logger.Errorf("Error querying requisitions: %v", err)
		JSONError(w, http.StatusInternalServerError, "Failed to fetch requisitions")
		return
	}
	defer rows.Close()

	type RequisitionWithDetails struct {
		models.Requisition
		ProjectName string `json:"projectName"`
		CreatorName string `json:"creatorName"`
	}

	requisitions := []RequisitionWithDetails{}
	for rows.Next() {
		var rq RequisitionWithDetails
		if err := rows.Scan(
			&rq.ID, &rq.InternalFolio, &rq.CompanyID, &rq.ProjectID,
			&rq.CreatedBy, &rq.ApprovedBy, &rq.TotalAmount,
			&rq.BusinessStatus, &rq.Notes,
			&rq.CreatedAt, &rq.UpdatedAt,
			&rq.ProjectName, &rq.CreatorName,
		); err != nil {
			logger.Errorf("Error scanning requisition: %v", err)
			continue
		}
		requisitions = append(requisitions, rq)
	}

	JSON(w, http.StatusOK, PaginatedResponse{
		Data: requisitions,
		Pagination: PaginationMeta{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: int(math.Ceil(float64(total) / float64(limit))),
		},
	})
}

// ── GetByID ────────────────────────────────────────────────────

// GetByID handles GET /api/requisitions/{id}
func (h *RequisitionHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		JSONError(w, http.StatusBadRequest, "Requisition ID is required")
		return
	}

	acc, ok := resolveAccess(w, r, h.resolver)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	pool := h.db.GetPool()

	var requisition models.Requisition
	if err := scanRequisition(pool.QueryRow(ctx, `
		SELECT `+requisitionCols+`
		FROM requisitions r
		WHERE r.id = $1
	`, id), &requisition); err != nil {
		JSONError(w, http.StatusNotFound, "Requisition not found")
		return
	}

	if !acc.AccessibleProjects.Unrestricted() && !acc.AccessibleProjects.Contains(requisition.ProjectID) {
		JSONError(w, http.StatusForbidden, "Access denied to this requisition")
		return
	}
	if !checkCompanyAccess(h.adapter, acc, requisition.CompanyID) {
		JSONError(w, http.StatusForbidden, "Access denied to this requisition")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{"data": requisition})
}

// ── UpdateStatus ───────────────────────────────────────────────

// UpdateStatus handles PATCH /api/requisitions/{id}/status
// Approves or rejects a pending requisition. Only supervisors, admins,
// and platform operators with access to the project may decide.
func (h *RequisitionHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		JSONError(w, http.StatusBadRequest, "Requisition ID is required")
		return
	}

	acc, ok := resolveAccess(w, r, h.resolver)
	if !ok {
		return
	}
	if !acc.CanApproveRequisitions() {
		JSONError(w, http.StatusForbidden, "Not allowed to approve requisitions")
		return
	}

	var req models.UpdateRequisitionStatusRequest
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

	var projectID, companyID, currentStatus string
	if err := pool.QueryRow(ctx, `
		SELECT project_id, company_id, business_status
		FROM requisitions WHERE id = $1
	`, id).Scan(&projectID, &companyID, &currentStatus); err != nil {
		JSONError(w, http.StatusNotFound, "Requisition not found")
		return
	}

	if !acc.AccessibleProjects.Unrestricted() && !acc.AccessibleProjects.Contains(projectID) {
		JSONError(w, http.StatusForbidden, "Access denied to this requisition")
		return
	}
	if !checkCompanyAccess(h.adapter, acc, companyID) {
		JSONError(w, http.StatusForbidden, "Access denied to this requisition")
		return
	}
	if currentStatus != models.RequisitionPending {
		JSONError(w, http.StatusConflict, "Only pending requisitions can be decided")
		return
	}

	var requisition models.Requisition
	if err := scanRequisition(pool.QueryRow(ctx, `
		UPDATE requisitions SET
			business_status = $1, approved_by = $2,
			notes = COALESCE($3, notes),
			updated_at = NOW()
		WHERE id = $4 AND business_status = $5
		RETURNING `+requisitionRetCols,
		req.Status, acc.UserID, req.Notes, id, models.RequisitionPending,
	), &requisition); err != nil {
		// Lost a race with a concurrent decision.
		JSONError(w, http.StatusConflict, "Requisition was already decided")
		return
	}

	userID, _ := r.Context().Value(ctxkeys.UserID).(string)
	logActivity(pool, userID, req.Status, "requisition", id, map[string]interface{}{
		"folio": requisition.InternalFolio,
	})

	JSON(w, http.StatusOK, map[string]interface{}{
		"data":    requisition,
		"message": "Requisition " + req.Status,
	})
}

// ── Delete ─────────────────────────────────────────────────────

// Delete handles DELETE /api/requisitions/{id}
// Creators can withdraw their own pending requisitions; admins and
// platform operators can delete any.
func (h *RequisitionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		JSONError(w, http.StatusBadRequest, "Requisition ID is required")
		return
	}

	acc, ok := resolveAccess(w, r, h.resolver)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	pool := h.db.GetPool()

	var createdBy, currentStatus string
	if err := pool.QueryRow(ctx, `
		SELECT created_by, business_status FROM requisitions WHERE id = $1
	`, id).Scan(&createdBy, &currentStatus); err != nil {
		JSONError(w, http.StatusNotFound, "Requisition not found")
		return
	}

	if !acc.IsAdmin && !acc.IsDev {
		if createdBy != acc.UserID || currentStatus != models.RequisitionPending {
			JSONError(w, http.StatusForbidden, "Only your own pending requisitions can be withdrawn")
			return
		}
	}

	tag, err := pool.Exec(ctx, "DELETE FROM requisitions WHERE id = $1", id)
	if err != nil {
		logger.Errorf("Error deleting requisition %s: %v", id, err)
		JSONError(w, http.StatusInternalServerError, "Failed to delete requisition")
		return
	}
	if tag.RowsAffected() == 0 {
		JSONError(w, http.StatusNotFound, "Requisition not found")
		return
	}

	logActivity(pool, acc.UserID, "deleted", "requisition", id, nil)

	JSON(w, http.StatusOK, map[string]string{
		"message": "Requisition deleted successfully",
	})
}
