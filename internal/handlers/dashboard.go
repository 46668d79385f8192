package handlers

import (
	"context"
	"net/http"
	"time"

	"procurement-backend/internal/access"
	"procurement-backend/internal/database"
	"procurement-backend/internal/logger"
	"procurement-backend/internal/models"
	"procurement-backend/internal/scope"
)

// DashboardHandler handles dashboard-related HTTP requests. All numbers
// are computed inside the caller's current company scope, so a platform
// operator pinned to one tenant sees only that tenant's figures.
type DashboardHandler struct {
	db       database.Service
	resolver *access.Resolver
	adapter  *scope.Adapter
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(db database.Service, resolver *access.Resolver, adapter *scope.Adapter) *DashboardHandler {
	return &DashboardHandler{db: db, resolver: resolver, adapter: adapter}
}

// ── GetMetrics ─────────────────────────────────────────────────

// GetMetrics handles GET /api/dashboard/metrics
func (h *DashboardHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	acc, ok := resolveAccess(w, r, h.resolver)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	pool := h.db.GetPool()
	metrics := models.DashboardMetrics{}

	pWhere := "WHERE 1=1"
	pArgs := []interface{}{}
	pWhere, pArgs, _, ok = appendCompanyScope(w, h.adapter, pWhere, pArgs, 1, "p.company_id", acc, "")
	if !ok {
		return
	}

	err := pool.QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE p.status = 'active')
		FROM projects p `+pWhere, pArgs...,
	).Scan(&metrics.TotalProjects, &metrics.ActiveProjects)
	if err != nil {
		logger.Errorf("Error querying project metrics: %v", err)
		JSONError(w, http.StatusInternalServerError, "Failed to fetch metrics")
		return
	}

	uWhere := "WHERE 1=1"
	uArgs := []interface{}{}
	uWhere, uArgs, _, ok = appendCompanyScope(w, h.adapter, uWhere, uArgs, 1, "u.company_id", acc, "")
	if !ok {
		return
	}

	err = pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM users u "+uWhere, uArgs...,
	).Scan(&metrics.TotalUsers)
	if err != nil {
		logger.Errorf("Error querying user metrics: %v", err)
		JSONError(w, http.StatusInternalServerError, "Failed to fetch metrics")
		return
	}

	rWhere := "WHERE 1=1"
	rArgs := []interface{}{}
	rWhere, rArgs, rIdx, ok := appendCompanyScope(w, h.adapter, rWhere, rArgs, 1, "r.company_id", acc, "")
	if !ok {
		return
	}
	rWhere, rArgs, _ = h.adapter.AppendProjectFilter(rWhere, rArgs, rIdx, "r.project_id", acc)

	err = pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE r.business_status = 'pending_approval'),
			COUNT(*) FILTER (WHERE r.business_status = 'approved'),
			COUNT(*) FILTER (WHERE r.business_status = 'rejected'),
			COALESCE(SUM(r.total_amount) FILTER (WHERE r.business_status = 'approved'), 0),
			COALESCE(SUM(r.total_amount) FILTER (WHERE r.business_status = 'pending_approval'), 0)
		FROM requisitions r `+rWhere, rArgs...,
	).Scan(
		&metrics.PendingRequisitions, &metrics.ApprovedRequisitions,
		&metrics.RejectedRequisitions,
		&metrics.ApprovedAmount, &metrics.PendingAmount,
	)
	if err != nil {
		logger.Errorf("Error querying requisition metrics: %v", err)
		JSONError(w, http.StatusInternalServerError, "Failed to fetch metrics")
		return
	}

	JSON(w, http.StatusOK, metrics)
}

// ── GetCompanySummary ──────────────────────────────────────────

// GetCompanySummary handles GET /api/dashboard/company-summary
func (h *DashboardHandler) GetCompanySummary(w http.ResponseWriter, r *http.Request) {
	acc, ok := resolveAccess(w, r, h.resolver)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	pool := h.db.GetPool()

	where := "WHERE 1=1"
	args := []interface{}{}
	where, args, _, ok = appendCompanyScope(w, h.adapter, where, args, 1, "c.id", acc, "")
	if !ok {
		return
	}

	rows, err := pool.Query(ctx, `
		SELECT c.id, c.name,
			(SELECT COUNT(*) FROM projects p WHERE p.company_id = c.id) AS project_count,
			(SELECT COUNT(*) FROM users u WHERE u.company_id = c.id) AS user_count,
			(SELECT COUNT(*) FROM requisitions rq
				WHERE rq.company_id = c.id AND rq.business_status = 'pending_approval') AS pending_requisitions,
			(SELECT COALESCE(SUM(rq.total_amount), 0) FROM requisitions rq
				WHERE rq.company_id = c.id AND rq.business_status = 'approved') AS approved_amount
		FROM companies c
		`+where+`
		ORDER BY c.name ASC
	`, args...)
	if err != nil {
		logger.Errorf("Error fetching company summary: %v", err)
		JSONError(w, http.StatusInternalServerError, "Failed to fetch summary")
		return
	}
	defer rows.Close()

	summaries := []models.CompanySummary{}
	for rows.Next() {
		var s models.CompanySummary
		if err := rows.Scan(
			&s.ID, &s.Name, &s.ProjectCount, &s.UserCount,
			&s.PendingRequisitions, &s.ApprovedAmount,
		); err != nil {
			logger.Errorf("Error scanning company summary: %v", err)
			continue
		}
		summaries = append(summaries, s)
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"data": summaries,
	})
}

// ── GetProjectSpend ────────────────────────────────────────────

// GetProjectSpend handles GET /api/dashboard/project-spend
// Returns per-project requisition totals for the projects the caller can
// see, most spend first.
func (h *DashboardHandler) GetProjectSpend(w http.ResponseWriter, r *http.Request) {
	acc, ok := resolveAccess(w, r, h.resolver)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	pool := h.db.GetPool()

	where := "WHERE 1=1"
	args := []interface{}{}
	where, args, argIdx, ok := appendCompanyScope(w, h.adapter, where, args, 1, "p.company_id", acc, "")
	if !ok {
		return
	}
	where, args, _ = h.adapter.AppendProjectFilter(where, args, argIdx, "p.id", acc)

	rows, err := pool.Query(ctx, `
		SELECT p.id, p.name, c.name,
			COALESCE(SUM(rq.total_amount) FILTER (WHERE rq.business_status = 'approved'), 0) AS approved_amount,
			COALESCE(SUM(rq.total_amount) FILTER (WHERE rq.business_status = 'pending_approval'), 0) AS pending_amount,
			COUNT(rq.id) FILTER (WHERE rq.business_status = 'pending_approval')::int AS pending_count
		FROM projects p
		JOIN companies c ON p.company_id = c.id
		LEFT JOIN requisitions rq ON rq.project_id = p.id
		`+where+`
		GROUP BY p.id, p.name, c.name
		ORDER BY approved_amount DESC, p.name ASC
	`, args...)
	if err != nil {
		logger.Errorf("Error fetching project spend: %v", err)
		JSONError(w, http.StatusInternalServerError, "Failed to fetch project spend")
		return
	}
	defer rows.Close()

	spend := []models.ProjectSpend{}
	for rows.Next() {
		var s models.ProjectSpend
		if err := rows.Scan(
			&s.ProjectID, &s.ProjectName, &s.CompanyName,
			&s.ApprovedAmount, &s.PendingAmount, &s.PendingCount,
		); err != nil {
			logger.Errorf("Error scanning project spend: %v", err)
			continue
		}
		spend = append(spend, s)
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"data": spend,
	})
}
