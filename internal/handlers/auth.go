package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"procurement-backend/internal/access"
	"procurement-backend/internal/ctxkeys"
	"procurement-backend/internal/database"
	"procurement-backend/internal/logger"
	"procurement-backend/internal/models"
	"procurement-backend/internal/scope"
)

// AuthHandler manages registration, login, logout, and profile retrieval.
// Login and logout are authentication-state transitions: both invalidate
// the access-context cache and drive the company-scope provider so no
// stale-permission window opens.
type AuthHandler struct {
	db        database.Service
	jwtSecret []byte
	resolver  *access.Resolver
	provider  *scope.Provider
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(db database.Service, jwtSecret string, resolver *access.Resolver, provider *scope.Provider) *AuthHandler {
	return &AuthHandler{
		db:        db,
		jwtSecret: []byte(jwtSecret),
		resolver:  resolver,
		provider:  provider,
	}
}

// Register creates a new user account pinned to a company.
// Hashes the password with bcrypt and returns a JWT token on success.
// New users get the base "user" role; higher roles are granted by admins.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
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

	// Hash the password (cost 12 balances security and speed)
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), 12)
	if err != nil {
		logger.Errorf("Failed to hash password: %v", err)
		JSONError(w, http.StatusInternalServerError, "Failed to create account")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	pool := h.db.GetPool()

	// Insert user: UNIQUE constraint on email prevents duplicates
	var user models.User
	err = pool.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, name, role, company_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, email, name, role, company_id::text, created_at::text, updated_at::text
	`, req.Email, string(hashedPassword), req.Name, ctxkeys.RoleUser, req.CompanyID,
	).Scan(
		&user.ID, &user.Email, &user.Name,
		&user.Role, &user.CompanyID, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			JSONError(w, http.StatusConflict, "An account with this email already exists")
			return
		}
		logger.Errorf("Failed to create user: %v", err)
		JSONError(w, http.StatusInternalServerError, "Failed to create account")
		return
	}

	// Generate JWT token for immediate login after registration
	token, err := h.generateToken(user.ID, user.Role)
	if err != nil {
		logger.Errorf("Failed to generate token: %v", err)
		JSONError(w, http.StatusInternalServerError, "Account created but login failed")
		return
	}

	h.onSignIn(r, user.ID, user.Role)

	JSON(w, http.StatusCreated, models.AuthResponse{
		Token: token,
		User:  user,
	})
}

// Login authenticates a user with email + password and returns a JWT token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
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

	// Fetch user by email (including password hash for verification)
	var user models.User
	err := pool.QueryRow(ctx, `
		SELECT id, email, password_hash, name, role, company_id::text,
			created_at::text, updated_at::text
		FROM users WHERE email = $1
	`, req.Email,
	).Scan(
		&user.ID, &user.Email, &user.PasswordHash,
		&user.Name, &user.Role, &user.CompanyID,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		// Generic message to prevent email enumeration attacks
		JSONError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	// Compare password against stored hash
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		JSONError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	token, err := h.generateToken(user.ID, user.Role)
	if err != nil {
		logger.Errorf("Failed to generate token: %v", err)
		JSONError(w, http.StatusInternalServerError, "Login failed")
		return
	}

	h.onSignIn(r, user.ID, user.Role)

	JSON(w, http.StatusOK, models.AuthResponse{
		Token: token,
		User:  user,
	})
}

// Logout clears the tenant-scope override and the cached access context.
// The JWT itself stays valid until expiry; this endpoint exists to close
// the permission window server-side.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.resolver.Invalidate()
	h.provider.HandleSignOut()

	JSON(w, http.StatusOK, map[string]string{"message": "Signed out"})
}

// GetMe returns the profile of the currently authenticated user along
// with the permission booleans the frontend gates on.
func (h *AuthHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	acc, ok := resolveAccess(w, r, h.resolver)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	pool := h.db.GetPool()

	var user models.User
	err := pool.QueryRow(ctx, `
		SELECT id, email, name, role, company_id::text,
			created_at::text, updated_at::text
		FROM users WHERE id = $1
	`, acc.UserID,
	).Scan(
		&user.ID, &user.Email, &user.Name,
		&user.Role, &user.CompanyID, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		JSONError(w, http.StatusNotFound, "User not found")
		return
	}

	type MeResponse struct {
		models.User
		IsAdmin                bool `json:"isAdmin"`
		IsSupervisor           bool `json:"isSupervisor"`
		IsUser                 bool `json:"isUser"`
		CanViewAllCompanies    bool `json:"canViewAllCompanies"`
		CanManageProjects      bool `json:"canManageProjects"`
		CanApproveRequisitions bool `json:"canApproveRequisitions"`
	}

	JSON(w, http.StatusOK, MeResponse{
		User:                   user,
		IsAdmin:                acc.IsAdmin,
		IsSupervisor:           acc.IsSupervisor,
		IsUser:                 acc.IsUser,
		CanViewAllCompanies:    acc.Privileged(),
		CanManageProjects:      acc.CanManageProjects(),
		CanApproveRequisitions: acc.CanApproveRequisitions(),
	})
}

// onSignIn runs the authentication-state transition: drop any cached
// context, resolve a fresh one for the new identity, and initialize the
// company-scope provider with it. Failures are logged, not fatal: the
// provider initializes lazily on the first scope request instead.
func (h *AuthHandler) onSignIn(r *http.Request, userID, role string) {
	h.resolver.Invalidate()

	ctx := context.WithValue(r.Context(), ctxkeys.UserID, userID)
	ctx = context.WithValue(ctx, ctxkeys.UserRole, role)

	acc, err := h.resolver.Resolve(ctx, true)
	if err != nil {
		logger.Warnf("Failed to resolve access context at sign-in for %s: %v", userID, err)
		return
	}
	if err := h.provider.HandleSignIn(ctx, acc); err != nil {
		logger.Warnf("Failed to initialize company scope at sign-in for %s: %v", userID, err)
	}
}

// generateToken creates a signed JWT with user ID and role as claims.
// Tokens expire after 7 days.
func (h *AuthHandler) generateToken(userID, role string) (string, error) {
	claims := jwt.MapClaims{
		"userId": userID,
		"role":   role,
		"exp":    time.Now().Add(7 * 24 * time.Hour).Unix(),
		"iat":    time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(h.jwtSecret)
}

// isDuplicateKeyError checks if a PostgreSQL error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "23505")
}
