package db

import (
	"context"
	"fmt"
	"time"

	"github.com/tordrt/schemasync/internal/schema"
)

const defaultPostgresSchema = "public"

// PostgresTuning holds session settings applied before reconciliation
type PostgresTuning struct {
	// LockTimeout bounds how long DDL waits for table locks
	LockTimeout      time.Duration
	StatementTimeout time.Duration
}

// PostgresStore executes DDL and introspects one PostgreSQL schema
type PostgresStore struct {
	client *PostgresClient
	schema string
	tuning PostgresTuning
}

// NewPostgresStore creates a store scoped to schemaName ("public" if empty)
func NewPostgresStore(client *PostgresClient, schemaName string, tuning PostgresTuning) *PostgresStore {
	if schemaName == "" {
		schemaName = defaultPostgresSchema
	}
	return &PostgresStore{
		client: client,
		schema: schemaName,
		tuning: tuning,
	}
}

// Dialect returns schema.Postgres
func (s *PostgresStore) Dialect() schema.Dialect {
	return schema.Postgres
}

// Exec runs a single statement
func (s *PostgresStore) Exec(ctx context.Context, stmt string) error {
	_, err := s.client.GetConnection().Exec(ctx, stmt)
	return err
}

// Tune applies the configured session timeouts
func (s *PostgresStore) Tune(ctx context.Context) error {
	var settings []string
	if s.tuning.LockTimeout > 0 {
		settings = append(settings, fmt.Sprintf("SET lock_timeout = %d", s.tuning.LockTimeout.Milliseconds()))
	}
	if s.tuning.StatementTimeout > 0 {
		settings = append(settings, fmt.Sprintf("SET statement_timeout = %d", s.tuning.StatementTimeout.Milliseconds()))
	}

	for _, stmt := range settings {
		if err := s.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply %q: %w", stmt, err)
		}
	}
	return nil
}

// TableExists reports whether a base table exists in the store's schema.
// Unquoted DDL lowercases names, so lookups are lowercased too.
func (s *PostgresStore) TableExists(ctx context.Context, tableName string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM information_schema.tables
			WHERE table_schema = $1 AND table_name = $2 AND table_type = 'BASE TABLE'
		)
	`

	var exists bool
	if err := s.client.GetConnection().QueryRow(ctx, query, s.schema, schema.FoldName(tableName)).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// TableNames lists base tables in the store's schema
func (s *PostgresStore) TableNames(ctx context.Context) ([]string, error) {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`

	rows, err := s.client.GetConnection().Query(ctx, query, s.schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, err
		}
		tables = append(tables, tableName)
	}

	return tables, rows.Err()
}

// Columns lists a table's columns in ordinal order
func (s *PostgresStore) Columns(ctx context.Context, tableName string) ([]schema.LiveColumn, error) {
	query := `
		SELECT
			c.column_name,
			c.data_type,
			c.is_nullable,
			EXISTS (
				SELECT 1 FROM information_schema.table_constraints tc
				JOIN information_schema.key_column_usage kcu
					ON tc.constraint_name = kcu.constraint_name
					AND tc.table_schema = kcu.table_schema
					AND tc.table_name = kcu.table_name
				WHERE tc.table_schema = $1
					AND tc.table_name = $2
					AND tc.constraint_type = 'PRIMARY KEY'
					AND kcu.column_name = c.column_name
			) AS is_primary_key
		FROM information_schema.columns c
		WHERE c.table_schema = $1 AND c.table_name = $2
		ORDER BY c.ordinal_position
	`

	rows, err := s.client.GetConnection().Query(ctx, query, s.schema, schema.FoldName(tableName))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []schema.LiveColumn
	for rows.Next() {
		var col schema.LiveColumn
		var dataType, nullable string

		if err := rows.Scan(&col.Name, &dataType, &nullable, &col.PrimaryKey); err != nil {
			return nil, err
		}

		col.Type = normalizePostgresType(dataType)
		col.NotNull = nullable == "NO"
		columns = append(columns, col)
	}

	return columns, rows.Err()
}

// normalizePostgresType maps verbose SQL type names to commonly-used PostgreSQL equivalents
func normalizePostgresType(dataType string) string {
	switch dataType {
	case "timestamp with time zone":
		return "timestamptz"
	case "timestamp without time zone":
		return "timestamp"
	case "character varying":
		return "varchar"
	case "double precision":
		return "float8"
	default:
		return dataType
	}
}

// Indexes lists every index on a table, including the primary key index
func (s *PostgresStore) Indexes(ctx context.Context, tableName string) ([]schema.LiveIndex, error) {
	query := `
		SELECT indexname
		FROM pg_indexes
		WHERE schemaname = $1 AND tablename = $2
		ORDER BY indexname
	`

	rows, err := s.client.GetConnection().Query(ctx, query, s.schema, schema.FoldName(tableName))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var indexes []schema.LiveIndex
	for rows.Next() {
		var idx schema.LiveIndex
		if err := rows.Scan(&idx.Name); err != nil {
			return nil, err
		}
		indexes = append(indexes, idx)
	}

	return indexes, rows.Err()
}
