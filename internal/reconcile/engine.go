// Package reconcile applies a declared schema to a live store, diffs the
// declaration against what the store reports, and additively repairs the
// gaps it can fix safely.
//
// The engine is bound to one store connection and runs every statement
// sequentially. Callers serialize reconciliation calls and own timeouts
// through the context they pass in.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tordrt/schemasync/internal/logging"
	"github.com/tordrt/schemasync/internal/schema"
)

// ErrApplyFailed indicates a DDL statement the store rejected
var ErrApplyFailed = errors.New("apply failed")

// ApplyFailedError carries the statement that failed and the store's error
type ApplyFailedError struct {
	Statement string
	Err       error
}

func (e *ApplyFailedError) Error() string {
	return fmt.Sprintf("apply failed: %s: %v", e.Statement, e.Err)
}

// Unwrap returns both the sentinel and the cause so errors.Is matches either.
func (e *ApplyFailedError) Unwrap() []error {
	return []error{ErrApplyFailed, e.Err}
}

// Store is the live database the engine reconciles against
type Store interface {
	Dialect() schema.Dialect
	Exec(ctx context.Context, stmt string) error
	TableExists(ctx context.Context, name string) (bool, error)
	TableNames(ctx context.Context) ([]string, error)
	Columns(ctx context.Context, table string) ([]schema.LiveColumn, error)
	Indexes(ctx context.Context, table string) ([]schema.LiveIndex, error)
	// Tune applies store-level durability and cache settings
	Tune(ctx context.Context) error
}

// Engine reconciles declared schemas against one Store
type Engine struct {
	store   Store
	dialect schema.Dialect
	logger  *slog.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the logger; the default discards everything
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine binds an engine to store
func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		dialect: store.Dialect(),
		logger:  logging.Discard(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Dialect returns the dialect statements are compiled for
func (e *Engine) Dialect() schema.Dialect {
	return e.dialect
}

// exec runs one statement, wrapping failures as *ApplyFailedError
func (e *Engine) exec(ctx context.Context, logger *slog.Logger, stmt string) error {
	logger.Debug("executing statement", "statement", stmt)
	if err := e.store.Exec(ctx, stmt); err != nil {
		logger.Error("statement failed", "statement", stmt, "error", err)
		return &ApplyFailedError{Statement: stmt, Err: err}
	}
	return nil
}

// ApplySchema executes the schema's create statements, tables then indexes.
// The first failure aborts; statements already executed are not undone.
func (e *Engine) ApplySchema(ctx context.Context, spec *schema.SchemaSpec) error {
	return e.applySchema(ctx, e.logger, spec)
}

func (e *Engine) applySchema(ctx context.Context, logger *slog.Logger, spec *schema.SchemaSpec) error {
	stmts := spec.CompileDDL(e.dialect)
	for _, stmt := range stmts {
		if err := e.exec(ctx, logger, stmt); err != nil {
			return err
		}
	}
	logger.Debug("schema applied", "statements", len(stmts))
	return nil
}

// IntrospectTable reports whether the table exists
func (e *Engine) IntrospectTable(ctx context.Context, name string) (bool, error) {
	exists, err := e.store.TableExists(ctx, name)
	if err != nil {
		return false, fmt.Errorf("failed to introspect table %s: %w", name, err)
	}
	return exists, nil
}

// IntrospectColumns lists the table's live columns in ordinal order
func (e *Engine) IntrospectColumns(ctx context.Context, name string) ([]schema.LiveColumn, error) {
	columns, err := e.store.Columns(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to introspect columns of %s: %w", name, err)
	}
	return columns, nil
}

// IntrospectIndexes lists the table's live indexes
func (e *Engine) IntrospectIndexes(ctx context.Context, name string) ([]schema.LiveIndex, error) {
	indexes, err := e.store.Indexes(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to introspect indexes of %s: %w", name, err)
	}
	return indexes, nil
}

// Describe introspects every table declared in spec
func (e *Engine) Describe(ctx context.Context, spec *schema.SchemaSpec) ([]schema.LiveTable, error) {
	var tables []schema.LiveTable
	for _, t := range spec.Tables() {
		live := schema.LiveTable{Name: t.Name}

		exists, err := e.IntrospectTable(ctx, t.Name)
		if err != nil {
			return nil, err
		}
		live.Exists = exists

		if exists {
			if live.Columns, err = e.IntrospectColumns(ctx, t.Name); err != nil {
				return nil, err
			}
			if live.Indexes, err = e.IntrospectIndexes(ctx, t.Name); err != nil {
				return nil, err
			}
		}
		tables = append(tables, live)
	}
	return tables, nil
}

// UndeclaredTables lists live tables that spec does not declare. They are
// never discrepancies; callers may report them for information.
func (e *Engine) UndeclaredTables(ctx context.Context, spec *schema.SchemaSpec) ([]string, error) {
	names, err := e.store.TableNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	var extra []string
	for _, name := range names {
		if _, declared := spec.Table(name); !declared {
			extra = append(extra, name)
		}
	}
	return extra, nil
}
