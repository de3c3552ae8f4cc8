package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/tordrt/schemasync/internal/schema"
)

// SQLiteTuning holds the PRAGMA settings applied before reconciliation.
// Zero values leave the corresponding PRAGMA untouched.
type SQLiteTuning struct {
	JournalMode  string        // e.g. WAL
	Synchronous  string        // e.g. NORMAL
	ForeignKeys  bool          // PRAGMA foreign_keys = ON
	BusyTimeout  time.Duration // PRAGMA busy_timeout
	CacheSizeKiB int           // PRAGMA cache_size = -N
}

// SQLiteStore executes DDL and introspects a SQLite database
type SQLiteStore struct {
	client *SQLiteClient
	tuning SQLiteTuning
}

// NewSQLiteStore creates a store over an open client
func NewSQLiteStore(client *SQLiteClient, tuning SQLiteTuning) *SQLiteStore {
	return &SQLiteStore{
		client: client,
		tuning: tuning,
	}
}

// Dialect returns schema.SQLite
func (s *SQLiteStore) Dialect() schema.Dialect {
	return schema.SQLite
}

// Exec runs a single statement
func (s *SQLiteStore) Exec(ctx context.Context, stmt string) error {
	_, err := s.client.GetDB().ExecContext(ctx, stmt)
	return err
}

// Tune applies the configured PRAGMA directives
func (s *SQLiteStore) Tune(ctx context.Context) error {
	for _, pragma := range s.pragmas() {
		if err := s.Exec(ctx, pragma); err != nil {
			return fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	return nil
}

func (s *SQLiteStore) pragmas() []string {
	var pragmas []string
	if s.tuning.JournalMode != "" {
		pragmas = append(pragmas, "PRAGMA journal_mode = "+s.tuning.JournalMode)
	}
	if s.tuning.Synchronous != "" {
		pragmas = append(pragmas, "PRAGMA synchronous = "+s.tuning.Synchronous)
	}
	if s.tuning.ForeignKeys {
		pragmas = append(pragmas, "PRAGMA foreign_keys = ON")
	}
	if s.tuning.BusyTimeout > 0 {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA busy_timeout = %d", s.tuning.BusyTimeout.Milliseconds()))
	}
	if s.tuning.CacheSizeKiB > 0 {
		// Negative cache_size is in KiB rather than pages
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA cache_size = -%d", s.tuning.CacheSizeKiB))
	}
	return pragmas
}

// TableExists reports whether a table with the given name exists. SQLite
// identifiers are case-insensitive, so the name is matched that way.
func (s *SQLiteStore) TableExists(ctx context.Context, tableName string) (bool, error) {
	query := `
		SELECT COUNT(*)
		FROM sqlite_master
		WHERE type = 'table' AND name = ? COLLATE NOCASE
	`

	var count int
	if err := s.client.GetDB().QueryRowContext(ctx, query, tableName).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// TableNames lists user tables in the database
func (s *SQLiteStore) TableNames(ctx context.Context) ([]string, error) {
	query := `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`

	rows, err := s.client.GetDB().QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tableList []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, err
		}
		tableList = append(tableList, tableName)
	}

	return tableList, rows.Err()
}

// Columns lists a table's columns in ordinal order
func (s *SQLiteStore) Columns(ctx context.Context, tableName string) ([]schema.LiveColumn, error) {
	query := fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(tableName))

	rows, err := s.client.GetDB().QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []schema.LiveColumn
	for rows.Next() {
		var cid int
		var name, colType string
		var notNull, pk int
		var defaultValue sql.NullString

		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultValue, &pk); err != nil {
			return nil, err
		}

		columns = append(columns, schema.LiveColumn{
			Name:       name,
			Type:       colType,
			NotNull:    notNull != 0,
			PrimaryKey: pk > 0,
		})
	}

	return columns, rows.Err()
}

// Indexes lists the named indexes attached to a table
func (s *SQLiteStore) Indexes(ctx context.Context, tableName string) ([]schema.LiveIndex, error) {
	query := fmt.Sprintf("PRAGMA index_list(%s)", quoteIdent(tableName))

	rows, err := s.client.GetDB().QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var indexes []schema.LiveIndex
	for rows.Next() {
		var seq int
		var name, origin string
		var unique, partial int

		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			return nil, err
		}

		// Skip auto-generated primary key / UNIQUE indexes
		if strings.HasPrefix(name, "sqlite_autoindex") {
			continue
		}

		indexes = append(indexes, schema.LiveIndex{Name: name})
	}

	return indexes, rows.Err()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
