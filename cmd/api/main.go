package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	"procurement-backend/internal/access"
	"procurement-backend/internal/config"
	"procurement-backend/internal/ctxkeys"
	"procurement-backend/internal/database"
	"procurement-backend/internal/handlers"
	"procurement-backend/internal/logger"
	"procurement-backend/internal/middleware"
	"procurement-backend/internal/scope"
)

func main() {
	// 1. Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Log.Level, cfg.Log.Mode)

	// 2. Connect to PostgreSQL
	db := database.New(&cfg.DB)
	defer db.Close()
	pool := db.GetPool()

	// 3. Build the access engine: session/profile/membership stores feed
	// the resolver; the scope store carries the tenant override the query
	// adapter reads on every scoped query.
	resolver := access.NewResolver(
		access.CtxSessionProvider{},
		&access.PGProfileStore{Pool: pool},
		&access.PGMembershipStore{Pool: pool},
		&access.PGProjectStore{Pool: pool},
		cfg.AccessCacheTTL,
	)

	scopeStore := scope.NewStore()
	adapter := scope.NewAdapter(scopeStore)
	provider := scope.NewProvider(
		scopeStore,
		&scope.PGCompanyStore{Pool: pool},
		&scope.PGPreferenceStore{Pool: pool},
		resolver,
	)

	// 4. Set up router with global middleware
	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// 5. Initialize handlers with their dependencies
	authHandler := handlers.NewAuthHandler(db, cfg.JWTSecret, resolver, provider)
	accessHandler := handlers.NewAccessHandler(resolver)
	scopeHandler := handlers.NewScopeHandler(resolver, provider)
	companyHandler := handlers.NewCompanyHandler(db, resolver, adapter)
	projectHandler := handlers.NewProjectHandler(db, resolver, adapter)
	requisitionHandler := handlers.NewRequisitionHandler(db, resolver, adapter)
	dashboardHandler := handlers.NewDashboardHandler(db, resolver, adapter)
	userHandler := handlers.NewUserManagementHandler(db, resolver, adapter)

	// 6. Public routes (no authentication required)
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Procurement API"))
	})
	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(db.Health())
	})

	// Auth routes: public, rate limited per IP against credential stuffing
	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(rate.Every(time.Second), 5))
		r.Post("/api/auth/register", authHandler.Register)
		r.Post("/api/auth/login", authHandler.Login)
	})

	// 7. Protected routes (require valid JWT)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))

		// Current user profile and resolved permissions
		r.Get("/api/auth/me", authHandler.GetMe)
		r.Post("/api/auth/logout", authHandler.Logout)
		r.Get("/api/access-context", accessHandler.Get)

		// Company scope switcher
		r.Get("/api/scope", scopeHandler.Get)
		r.Put("/api/scope/company", scopeHandler.SetActiveCompany)
		r.Put("/api/scope/global-view", scopeHandler.SetGlobalView)

		// Dashboard (read-only: accessible to all authenticated users)
		r.Get("/api/dashboard/metrics", dashboardHandler.GetMetrics)
		r.Get("/api/dashboard/company-summary", dashboardHandler.GetCompanySummary)
		r.Get("/api/dashboard/project-spend", dashboardHandler.GetProjectSpend)

		// Companies: list is read-only for all roles
		r.Get("/api/companies", companyHandler.List)

		// Projects: reads for all roles, scoped inside the handlers
		r.Get("/api/projects", projectHandler.List)
		r.Route("/api/projects/{id}", func(r chi.Router) {
			r.Get("/", projectHandler.GetByID)
			r.Get("/members", projectHandler.ListMembers)

			// Membership writes: supervisors for their own projects,
			// admins anywhere; enforced inside the handlers
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireMinRole(ctxkeys.RoleSupervisor))
				r.Post("/members", projectHandler.AddMember)
				r.Patch("/members/{userId}", projectHandler.UpdateMember)
				r.Delete("/members/{userId}", projectHandler.RemoveMember)
				r.Put("/", projectHandler.Update)
			})
		})

		// Requisitions
		r.Post("/api/requisitions", requisitionHandler.Create)
		r.Get("/api/requisitions", requisitionHandler.List)
		r.Get("/api/requisitions/{id}", requisitionHandler.GetByID)
		r.Delete("/api/requisitions/{id}", requisitionHandler.Delete)
		r.With(middleware.RequireMinRole(ctxkeys.RoleSupervisor)).
			Patch("/api/requisitions/{id}/status", requisitionHandler.UpdateStatus)

		// Users: supervisors see their team, admins their company
		r.With(middleware.RequireMinRole(ctxkeys.RoleSupervisor)).
			Get("/api/users", userHandler.List)

		// Write operations restricted to admin role
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireMinRole(ctxkeys.RoleAdmin))

			// Project lifecycle
			r.Post("/api/projects", projectHandler.Create)
			r.Delete("/api/projects/{id}", projectHandler.Delete)

			// User management
			r.Patch("/api/users/{id}/role", userHandler.UpdateRole)
			r.Delete("/api/users/{id}", userHandler.Delete)
		})

		// Company write operations: platform operators only
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireMinRole(ctxkeys.RoleDev))

			r.Post("/api/companies", companyHandler.Create)
			r.Put("/api/companies/{id}", companyHandler.Update)
			r.Delete("/api/companies/{id}", companyHandler.Delete)
		})
	})

	// 8. Start server with graceful shutdown
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: r,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Infof("Server started on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-done
	logger.Infof("Server stopping")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Infof("Server exited properly")
}
