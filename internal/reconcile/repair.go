package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tordrt/schemasync/internal/schema"
)

// RepairKind classifies an applied fix
type RepairKind string

const (
	CreatedTable RepairKind = "created_table"
	AddedColumn  RepairKind = "added_column"
	AddedIndex   RepairKind = "added_index"
)

// RepairAction is one statement Repair executed
type RepairAction struct {
	Kind      RepairKind
	Table     string
	Column    string
	Index     string
	Statement string
}

func (a RepairAction) String() string {
	switch a.Kind {
	case AddedColumn:
		return fmt.Sprintf("%s(%s.%s)", a.Kind, a.Table, a.Column)
	case AddedIndex:
		return fmt.Sprintf("%s(%s)", a.Kind, a.Index)
	default:
		return fmt.Sprintf("%s(%s)", a.Kind, a.Table)
	}
}

// Repair walks the declaration like Diff but creates what is missing:
// tables (with their indexes), columns and indexes. Type and constraint
// mismatches are logged and left alone. Every action is derived from
// introspection done in this call, so an ADD COLUMN is never re-issued
// for a column that already exists.
func (e *Engine) Repair(ctx context.Context, spec *schema.SchemaSpec) ([]RepairAction, error) {
	return e.repair(ctx, e.logger, spec)
}

func (e *Engine) repair(ctx context.Context, logger *slog.Logger, spec *schema.SchemaSpec) ([]RepairAction, error) {
	var actions []RepairAction

	for _, table := range spec.Tables() {
		exists, err := e.IntrospectTable(ctx, table.Name)
		if err != nil {
			return actions, err
		}

		if !exists {
			created, err := e.createTable(ctx, logger, table)
			actions = append(actions, created...)
			if err != nil {
				return actions, err
			}
			continue
		}

		added, err := e.repairColumns(ctx, logger, table)
		actions = append(actions, added...)
		if err != nil {
			return actions, err
		}

		added, err = e.repairIndexes(ctx, logger, table)
		actions = append(actions, added...)
		if err != nil {
			return actions, err
		}
	}

	return actions, nil
}

// createTable creates a missing table and all of its declared indexes
func (e *Engine) createTable(ctx context.Context, logger *slog.Logger, table *schema.TableSpec) ([]RepairAction, error) {
	var actions []RepairAction

	stmt := table.CompileDDL(e.dialect)
	if err := e.exec(ctx, logger, stmt); err != nil {
		return actions, err
	}
	logger.Info("created missing table", "table", table.Name)
	actions = append(actions, RepairAction{Kind: CreatedTable, Table: table.Name, Statement: stmt})

	for _, idx := range table.Indexes {
		stmt := schema.CompileIndex(table.Name, idx)
		if err := e.exec(ctx, logger, stmt); err != nil {
			return actions, err
		}
		logger.Info("created index on new table", "table", table.Name, "index", idx.Name)
		actions = append(actions, RepairAction{Kind: AddedIndex, Table: table.Name, Index: idx.Name, Statement: stmt})
	}

	return actions, nil
}

func (e *Engine) repairColumns(ctx context.Context, logger *slog.Logger, table *schema.TableSpec) ([]RepairAction, error) {
	issues, err := e.diffColumns(ctx, table)
	if err != nil {
		return nil, err
	}

	var actions []RepairAction
	for _, issue := range issues {
		if !issue.Repairable() {
			logger.Warn("column drift requires a migration",
				"table", issue.Table,
				"column", issue.Column,
				"kind", string(issue.Kind),
				"expected", issue.Expected,
				"actual", issue.Actual,
			)
			continue
		}

		col, _ := table.Column(issue.Column)
		stmts, _ := schema.AddColumnStatements(e.dialect, table.Name, col)
		for i, stmt := range stmts {
			if err := e.exec(ctx, logger, stmt); err != nil {
				return actions, err
			}
			if i == 0 {
				logger.Info("added missing column", "table", table.Name, "column", col.Name)
				actions = append(actions, RepairAction{Kind: AddedColumn, Table: table.Name, Column: col.Name, Statement: stmt})
				continue
			}
			index := schema.UniqueColumnIndex(table.Name, col.Name)
			logger.Info("added unique index for new column", "table", table.Name, "index", index)
			actions = append(actions, RepairAction{Kind: AddedIndex, Table: table.Name, Index: index, Statement: stmt})
		}
	}
	return actions, nil
}

func (e *Engine) repairIndexes(ctx context.Context, logger *slog.Logger, table *schema.TableSpec) ([]RepairAction, error) {
	issues, err := e.diffIndexes(ctx, table)
	if err != nil {
		return nil, err
	}

	var actions []RepairAction
	for _, issue := range issues {
		idx, ok := findIndex(table, issue.Index)
		if !ok {
			continue
		}
		stmt := schema.CompileIndex(table.Name, idx)
		if err := e.exec(ctx, logger, stmt); err != nil {
			return actions, err
		}
		logger.Info("added missing index", "table", table.Name, "index", idx.Name)
		actions = append(actions, RepairAction{Kind: AddedIndex, Table: table.Name, Index: idx.Name, Statement: stmt})
	}
	return actions, nil
}

func findIndex(table *schema.TableSpec, name string) (schema.IndexSpec, bool) {
	for _, idx := range table.Indexes {
		if idx.Name == name {
			return idx, true
		}
	}
	return schema.IndexSpec{}, false
}
