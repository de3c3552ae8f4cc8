package db

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLiteClient manages the single connection to a SQLite database
type SQLiteClient struct {
	db *sql.DB
}

// NewSQLiteClient opens path with the build's SQLite driver
func NewSQLiteClient(ctx context.Context, path string) (*SQLiteClient, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Reconciliation owns exactly one connection; this also keeps
	// ":memory:" databases from splitting across pooled connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteClient{db: db}, nil
}

// Close closes the database connection
func (c *SQLiteClient) Close() error {
	return c.db.Close()
}

// GetDB returns the underlying database connection
func (c *SQLiteClient) GetDB() *sql.DB {
	return c.db
}

// DriverName reports which SQLite driver the binary was built with
func DriverName() string {
	return driverName + " (" + driverPackage + ")"
}
