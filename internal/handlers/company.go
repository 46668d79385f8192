package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"procurement-backend/internal/access"
	"procurement-backend/internal/database"
	"procurement-backend/internal/logger"
	"procurement-backend/internal/models"
	"procurement-backend/internal/scope"
)

// CompanyHandler handles company-related HTTP requests. Reads are scoped
// through the tenant adapter; writes are restricted to platform operators
// at the routing layer.
type CompanyHandler struct {
	db       database.Service
	resolver *access.Resolver
	adapter  *scope.Adapter
}

// NewCompanyHandler creates a new CompanyHandler.
func NewCompanyHandler(db database.Service, resolver *access.Resolver, adapter *scope.Adapter) *CompanyHandler {
	return &CompanyHandler{db: db, resolver: resolver, adapter: adapter}
}

// ── List ───────────────────────────────────────────────────────

// List returns the companies visible to the caller, ordered alphabetically
// with the project count per company.
func (h *CompanyHandler) List(w http.ResponseWriter, r *http.Request) {
	acc, ok := resolveAccess(w, r, h.resolver)
	if !ok {
		return
	}

	where := "WHERE 1=1"
	args := []interface{}{}
	argIdx := 1

	where, args, argIdx, ok = appendCompanyScope(w, h.adapter, where, args, argIdx, "c.id", acc, "")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	pool := h.db.GetPool()

	rows, err := pool.Query(ctx, `
		SELECT c.id, c.name, c.bind_location_id, c.bind_price_list_id,
			c.created_at::text, c.updated_at::text,
			COUNT(p.id) AS project_count
		FROM companies c
		LEFT JOIN projects p ON p.company_id = c.id
		`+where+`
		GROUP BY c.id, c.name, c.bind_location_id, c.bind_price_list_id,
			c.created_at, c.updated_at
		ORDER BY c.name ASC
	`, args...)
	if err != nil {
		logger.Errorf("Error fetching companies: %v", err)
		JSONError(w, http.StatusInternalServerError, "Failed to fetch companies")
		return
	}
	defer rows.Close()

	type CompanyWithCount struct {
		models.Company
		ProjectCount int `json:"projectCount"`
	}

	companies := []CompanyWithCount{}
	for rows.Next() {
		var c CompanyWithCount
		if err := rows.Scan(
			&c.ID, &c.Name, &c.BindLocationID, &c.BindPriceListID,
			&c.CreatedAt, &c.UpdatedAt,
			&c.ProjectCount,
		); err != nil {
			logger.Errorf("Error scanning company: %v", err)
			continue
		}
		companies = append(companies, c)
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"data": companies,
	})
}

// ── Create ─────────────────────────────────────────────────────

// Create adds a new company (platform operators only).
func (h *CompanyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateCompanyRequest
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

	var company models.Company
	err := pool.QueryRow(ctx, `
		INSERT INTO companies (name, bind_location_id, bind_price_list_id)
		VALUES ($1, $2, $3)
		RETURNING id, name, bind_location_id, bind_price_list_id,
			created_at::text, updated_at::text
	`, req.Name, req.BindLocationID, req.BindPriceListID,
	).Scan(
		&company.ID, &company.Name,
		&company.BindLocationID, &company.BindPriceListID,
		&company.CreatedAt, &company.UpdatedAt,
	)

	if err != nil {
		if isDuplicateKeyError(err) {
			JSONError(w, http.StatusConflict, "A company with this name already exists")
			return
		}
		logger.Errorf("Error creating company: %v", err)
		JSONError(w, http.StatusInternalServerError, "Failed to create company")
		return
	}

	JSON(w, http.StatusCreated, map[string]interface{}{
		"data":    company,
		"message": "Company created successfully",
	})
}

// ── Update ─────────────────────────────────────────────────────

// Update modifies a company's details (platform operators only).
func (h *CompanyHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req models.CreateCompanyRequest
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

	var company models.Company
	err := pool.QueryRow(ctx, `
		UPDATE companies SET
			name = $1, bind_location_id = $2, bind_price_list_id = $3,
			updated_at = NOW()
		WHERE id = $4
		RETURNING id, name, bind_location_id, bind_price_list_id,
			created_at::text, updated_at::text
	`, req.Name, req.BindLocationID, req.BindPriceListID, id,
	).Scan(
		&company.ID, &company.Name,
		&company.BindLocationID, &company.BindPriceListID,
		&company.CreatedAt, &company.UpdatedAt,
	)

	if err != nil {
		if isDuplicateKeyError(err) {
			JSONError(w, http.StatusConflict, "A company with this name already exists")
			return
		}
		JSONError(w, http.StatusNotFound, "Company not found")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"data":    company,
		"message": "Company updated successfully",
	})
}

// ── Delete ─────────────────────────────────────────────────────

// Delete removes a company and cascades to its projects and requisitions
// (platform operators only).
func (h *CompanyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	pool := h.db.GetPool()

	result, err := pool.Exec(ctx, "DELETE FROM companies WHERE id = $1", id)
	if err != nil {
		logger.Errorf("Error deleting company: %v", err)
		JSONError(w, http.StatusInternalServerError, "Failed to delete company")
		return
	}

	if result.RowsAffected() == 0 {
		JSONError(w, http.StatusNotFound, "Company not found")
		return
	}

	// Memberships may have gone with the cascade.
	h.resolver.Invalidate()

	JSON(w, http.StatusOK, map[string]interface{}{
		"message": "Company deleted successfully",
	})
}
