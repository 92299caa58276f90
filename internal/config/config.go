// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"time"
)

// Supported database backends.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ListenAddr  string
	DBBackend   string
	DBPath      string
	DatabaseURL string
	JWTSecret   string
	TokenTTL    time.Duration
}

// Load reads configuration from environment variables and returns a validated Config.
// BANKCORE_JWT_SECRET is required. Optional variables with defaults:
// BANKCORE_LISTEN_ADDR (127.0.0.1:8080), BANKCORE_DB_BACKEND (sqlite),
// BANKCORE_DB_PATH (bankcore.db), BANKCORE_TOKEN_TTL (1h).
// BANKCORE_DATABASE_URL is required when the backend is postgres.
func Load() (*Config, error) {
	secret := os.Getenv("BANKCORE_JWT_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("BANKCORE_JWT_SECRET environment variable is required")
	}

	listenAddr := "127.0.0.1:8080"
	if v, ok := os.LookupEnv("BANKCORE_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	backend := BackendSQLite
	if v, ok := os.LookupEnv("BANKCORE_DB_BACKEND"); ok && v != "" {
		if v != BackendSQLite && v != BackendPostgres {
			return nil, fmt.Errorf("BANKCORE_DB_BACKEND must be %q or %q, got %q", BackendSQLite, BackendPostgres, v)
		}
		backend = v
	}

	dbPath := "bankcore.db"
	if v, ok := os.LookupEnv("BANKCORE_DB_PATH"); ok {
		dbPath = v
	}

	databaseURL := os.Getenv("BANKCORE_DATABASE_URL")
	if backend == BackendPostgres && databaseURL == "" {
		return nil, fmt.Errorf("BANKCORE_DATABASE_URL is required when BANKCORE_DB_BACKEND=%s", BackendPostgres)
	}

	tokenTTL := time.Hour
	if v, ok := os.LookupEnv("BANKCORE_TOKEN_TTL"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("BANKCORE_TOKEN_TTL has invalid duration %q: %w", v, err)
		}
		tokenTTL = parsed
	}

	return &Config{
		ListenAddr:  listenAddr,
		DBBackend:   backend,
		DBPath:      dbPath,
		DatabaseURL: databaseURL,
		JWTSecret:   secret,
		TokenTTL:    tokenTTL,
	}, nil
}
