package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const (
	maxOpenConns    = 10
	maxIdleConns    = 5
	connMaxLifetime = 5 * time.Minute
)

// DB is the Postgres pool. The auth flow never touches it; it exists so
// readiness reflects the database the deployment was configured with.
type DB struct {
	conn *sqlx.DB
}

// Open creates a pool for url. The connection is established lazily, so
// an unreachable database shows up in Healthy rather than here.
func Open(url string) (*DB, error) {
	if url == "" {
		return nil, errors.New("database URL is empty")
	}

	conn, err := sqlx.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	conn.SetMaxOpenConns(maxOpenConns)
	conn.SetMaxIdleConns(maxIdleConns)
	conn.SetConnMaxLifetime(connMaxLifetime)

	return New(conn), nil
}

// New wraps an existing pool.
func New(conn *sqlx.DB) *DB {
	return &DB{conn: conn}
}

// Healthy runs a trivial query through the pool.
func (db *DB) Healthy(ctx context.Context) error {
	var one int
	if err := db.conn.GetContext(ctx, &one, "SELECT 1"); err != nil {
		return fmt.Errorf("database unhealthy: %w", err)
	}
	return nil
}

// Close releases every pooled connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
