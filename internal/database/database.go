// Package database manages the PostgreSQL connection pool used by the
// whole service. Handlers receive the Service interface so tests can
// substitute a stub.
package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"procurement-backend/internal/config"
	"procurement-backend/internal/logger"
)

// Service exposes the shared connection pool and lifecycle hooks.
type Service interface {
	GetPool() *pgxpool.Pool
	Health() map[string]string
	Close()
}

type service struct {
	pool *pgxpool.Pool
}

// New connects to PostgreSQL using the given configuration and returns
// a Service. The process cannot run without a database, so failures
// are fatal.
func New(cfg *config.DBConfig) Service {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		logger.Fatalf("Invalid database URL: %v", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		logger.Fatalf("Failed to create connection pool: %v", err)
	}

	if err := pool.Ping(ctx); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}

	logger.Infof("Connected to PostgreSQL")
	return &service{pool: pool}
}

// GetPool returns the underlying pgx pool.
func (s *service) GetPool() *pgxpool.Pool {
	return s.pool
}

// Health reports whether the database is reachable.
func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := s.pool.Ping(ctx); err != nil {
		return map[string]string{"status": "down", "error": err.Error()}
	}
	return map[string]string{"status": "up"}
}

// Close releases the connection pool.
func (s *service) Close() {
	s.pool.Close()
}
