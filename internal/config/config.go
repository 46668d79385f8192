// Package config loads service configuration from the environment.
// A .env file is honored in development; real environments set the
// variables directly.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
)

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	URL             string        `env:"DATABASE_URL,required"`
	MaxConns        int32         `env:"DB_MAX_CONNS" envDefault:"10"`
	MinConns        int32         `env:"DB_MIN_CONNS" envDefault:"2"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string `env:"LOG_LEVEL" envDefault:"info"`
	Mode  string `env:"LOG_MODE" envDefault:"development"`
}

// Config is the root configuration for the API server.
type Config struct {
	Port           string        `env:"PORT" envDefault:"8080"`
	JWTSecret      string        `env:"JWT_SECRET,required"`
	AllowedOrigins []string      `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://localhost:3001"`
	AccessCacheTTL time.Duration `env:"ACCESS_CACHE_TTL" envDefault:"5s"`

	DB  DBConfig
	Log LogConfig
}

// Load reads the optional .env file and parses the environment into a Config.
func Load() (*Config, error) {
	// Missing .env is fine: production sets real environment variables.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	return cfg, nil
}
