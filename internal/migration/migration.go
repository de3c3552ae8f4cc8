// Package migration models incremental, ordered schema changes between two
// schema versions. Migrations compile to DDL on demand; nothing in the boot
// path selects or applies them automatically.
package migration

import (
	"errors"
	"fmt"

	"github.com/tordrt/schemasync/internal/schema"
)

// Kind identifies a change operation
type Kind string

const (
	AddColumn    Kind = "add_column"
	DropColumn   Kind = "drop_column"
	RenameColumn Kind = "rename_column"
	AddIndex     Kind = "add_index"
	DropIndex    Kind = "drop_index"
	CreateTable  Kind = "create_table"
	DropTable    Kind = "drop_table"
)

var (
	// ErrUnknownOperation indicates an operation kind the compiler does not recognize
	ErrUnknownOperation = errors.New("unknown migration operation")
	// ErrInvalidOperation indicates an operation missing a required field
	ErrInvalidOperation = errors.New("invalid migration operation")
)

// UnknownOperationError reports an unrecognized operation kind
type UnknownOperationError struct {
	Kind     Kind
	Position int // index into Spec.Operations
}

func (e *UnknownOperationError) Error() string {
	return fmt.Sprintf("unknown migration operation %q at position %d", e.Kind, e.Position)
}

func (e *UnknownOperationError) Unwrap() error {
	return ErrUnknownOperation
}

// InvalidOperationError reports a recognized operation that lacks data
type InvalidOperationError struct {
	Kind     Kind
	Position int
	Message  string
}

func (e *InvalidOperationError) Error() string {
	return fmt.Sprintf("invalid %s operation at position %d: %s", e.Kind, e.Position, e.Message)
}

func (e *InvalidOperationError) Unwrap() error {
	return ErrInvalidOperation
}

// Operation is one change. Which fields are used depends on Kind.
type Operation struct {
	Kind       Kind
	Table      string
	Column     *schema.ColumnSpec // add_column
	ColumnName string             // drop_column, rename_column (old name)
	NewName    string             // rename_column
	Index      *schema.IndexSpec  // add_index, drop_index (Name only)
	TableSpec  *schema.TableSpec  // create_table
}

// Spec is an ordered change-set from one schema version to the next
type Spec struct {
	From       int
	To         int
	Operations []Operation
}

// CompileDDL maps each operation to exactly one statement, in order.
// Any unrecognized or incomplete operation fails the whole compilation.
func (m *Spec) CompileDDL(d schema.Dialect) ([]string, error) {
	stmts := make([]string, 0, len(m.Operations))
	for i, op := range m.Operations {
		stmt, err := compileOperation(d, i, op)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	return stmts, nil
}

// IsDestructive reports whether applying the migration can lose data
func (m *Spec) IsDestructive() bool {
	for _, op := range m.Operations {
		switch op.Kind {
		case DropColumn, RenameColumn, DropTable:
			return true
		}
	}
	return false
}

func compileOperation(d schema.Dialect, pos int, op Operation) (string, error) {
	missing := func(msg string) error {
		return &InvalidOperationError{Kind: op.Kind, Position: pos, Message: msg}
	}

	switch op.Kind {
	case AddColumn:
		if op.Table == "" || op.Column == nil {
			return "", missing("table and column are required")
		}
		return schema.AddColumnDDL(d, op.Table, *op.Column), nil

	case DropColumn:
		if op.Table == "" || op.ColumnName == "" {
			return "", missing("table and column name are required")
		}
		return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", op.Table, op.ColumnName), nil

	case RenameColumn:
		if op.Table == "" || op.ColumnName == "" || op.NewName == "" {
			return "", missing("table, column name and new name are required")
		}
		return fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s", op.Table, op.ColumnName, op.NewName), nil

	case AddIndex:
		if op.Table == "" || op.Index == nil || len(op.Index.Columns) == 0 {
			return "", missing("table and index columns are required")
		}
		return schema.CompileIndex(op.Table, *op.Index), nil

	case DropIndex:
		if op.Index == nil || op.Index.Name == "" {
			return "", missing("index name is required")
		}
		return fmt.Sprintf("DROP INDEX IF EXISTS %s", op.Index.Name), nil

	case CreateTable:
		if op.TableSpec == nil {
			return "", missing("table spec is required")
		}
		return op.TableSpec.CompileDDL(d), nil

	case DropTable:
		if op.Table == "" {
			return "", missing("table is required")
		}
		return fmt.Sprintf("DROP TABLE IF EXISTS %s", op.Table), nil

	default:
		return "", &UnknownOperationError{Kind: op.Kind, Position: pos}
	}
}
