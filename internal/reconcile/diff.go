package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tordrt/schemasync/internal/schema"
)

// DiscrepancyKind classifies a gap between declared and live state
type DiscrepancyKind string

const (
	MissingTable       DiscrepancyKind = "missing_table"
	MissingColumn      DiscrepancyKind = "missing_column"
	TypeMismatch       DiscrepancyKind = "type_mismatch"
	ConstraintMismatch DiscrepancyKind = "constraint_mismatch"
	MissingIndex       DiscrepancyKind = "missing_index"
)

// Discrepancy is one detected difference. Column or Index is set depending on Kind.
type Discrepancy struct {
	Kind     DiscrepancyKind
	Table    string
	Column   string
	Index    string
	Expected string
	Actual   string

	// set for a missing column the store cannot add in place
	needsMigration bool
}

func (d Discrepancy) String() string {
	switch d.Kind {
	case MissingTable:
		return fmt.Sprintf("%s(%s)", d.Kind, d.Table)
	case MissingIndex:
		return fmt.Sprintf("%s(%s, %s)", d.Kind, d.Table, d.Index)
	case TypeMismatch, ConstraintMismatch:
		return fmt.Sprintf("%s(%s.%s: want %s, have %s)", d.Kind, d.Table, d.Column, d.Expected, d.Actual)
	default:
		return fmt.Sprintf("%s(%s.%s)", d.Kind, d.Table, d.Column)
	}
}

// Repairable reports whether Repair acts on this discrepancy
func (d Discrepancy) Repairable() bool {
	if d.needsMigration {
		return false
	}
	switch d.Kind {
	case MissingTable, MissingColumn, MissingIndex:
		return true
	default:
		return false
	}
}

// Diff compares every declared table with the live store. Objects present
// in the store but not declared are never reported.
func (e *Engine) Diff(ctx context.Context, spec *schema.SchemaSpec) ([]Discrepancy, error) {
	return e.diff(ctx, e.logger, spec)
}

func (e *Engine) diff(ctx context.Context, logger *slog.Logger, spec *schema.SchemaSpec) ([]Discrepancy, error) {
	var issues []Discrepancy

	for _, table := range spec.Tables() {
		exists, err := e.IntrospectTable(ctx, table.Name)
		if err != nil {
			return nil, err
		}
		if !exists {
			issues = append(issues, Discrepancy{Kind: MissingTable, Table: table.Name})
			continue
		}

		columnIssues, err := e.diffColumns(ctx, table)
		if err != nil {
			return nil, err
		}
		issues = append(issues, columnIssues...)

		indexIssues, err := e.diffIndexes(ctx, table)
		if err != nil {
			return nil, err
		}
		issues = append(issues, indexIssues...)
	}

	logger.Debug("diff complete", "schema", spec.Name, "discrepancies", len(issues))
	return issues, nil
}

func (e *Engine) diffColumns(ctx context.Context, table *schema.TableSpec) ([]Discrepancy, error) {
	columns, err := e.IntrospectColumns(ctx, table.Name)
	if err != nil {
		return nil, err
	}
	live := make(map[string]schema.LiveColumn, len(columns))
	for _, c := range columns {
		live[schema.FoldName(c.Name)] = c
	}

	var issues []Discrepancy
	for _, col := range table.Columns {
		actual, ok := live[schema.FoldName(col.Name)]
		if !ok {
			_, addable := schema.AddColumnStatements(e.dialect, table.Name, col)
			issues = append(issues, Discrepancy{
				Kind:           MissingColumn,
				Table:          table.Name,
				Column:         col.Name,
				needsMigration: !addable,
			})
			continue
		}

		wantType := e.dialect.TypeName(col.Type)
		if haveType := e.dialect.NormalizeType(actual.Type); haveType != wantType {
			issues = append(issues, Discrepancy{
				Kind:     TypeMismatch,
				Table:    table.Name,
				Column:   col.Name,
				Expected: wantType,
				Actual:   haveType,
			})
		}

		// Stores differ on whether a primary key column reports NOT NULL
		// (SQLite does not); PrimaryKey implies NotNull on both sides.
		liveNotNull := actual.NotNull || actual.PrimaryKey
		if liveNotNull != col.IsNotNull() || actual.PrimaryKey != col.IsPrimaryKey() {
			issues = append(issues, Discrepancy{
				Kind:     ConstraintMismatch,
				Table:    table.Name,
				Column:   col.Name,
				Expected: describeFlags(col.IsNotNull(), col.IsPrimaryKey()),
				Actual:   describeFlags(liveNotNull, actual.PrimaryKey),
			})
		}
	}
	return issues, nil
}

func (e *Engine) diffIndexes(ctx context.Context, table *schema.TableSpec) ([]Discrepancy, error) {
	if len(table.Indexes) == 0 {
		return nil, nil
	}

	indexes, err := e.IntrospectIndexes(ctx, table.Name)
	if err != nil {
		return nil, err
	}
	live := make(map[string]bool, len(indexes))
	for _, idx := range indexes {
		live[schema.FoldName(idx.Name)] = true
	}

	var issues []Discrepancy
	for _, idx := range table.Indexes {
		if !live[schema.FoldName(idx.Name)] {
			issues = append(issues, Discrepancy{Kind: MissingIndex, Table: table.Name, Index: idx.Name})
		}
	}
	return issues, nil
}

func describeFlags(notNull, primaryKey bool) string {
	var parts []string
	if primaryKey {
		parts = append(parts, "PRIMARY KEY")
	}
	if notNull {
		parts = append(parts, "NOT NULL")
	}
	if len(parts) == 0 {
		return "NULL"
	}
	return strings.Join(parts, " ")
}
