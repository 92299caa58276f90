// Package postgres implements the driven storage ports against PostgreSQL.
// It is interchangeable with the sqlite adapter: the same conditional
// single-statement updates carry the engine's atomicity guarantees, with
// row-level locking provided by the server.
package postgres

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// DB wraps a PostgreSQL connection pool.
type DB struct {
	Pool *sql.DB
}

// NewDB opens a connection pool for the given connection string
// (postgres:// URL or key=value DSN) and verifies connectivity.
func NewDB(connStr string) (*DB, error) {
	pool, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	pool.SetMaxOpenConns(10)
	pool.SetMaxIdleConns(5)
	pool.SetConnMaxLifetime(30 * time.Minute)

	if err := pool.Ping(); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.Pool.Close()
}
