package migration

import (
	"fmt"

	"github.com/tordrt/schemasync/internal/schema"
)

// Builder assembles the operations of a Spec in order
type Builder struct {
	spec *Spec
	err  error
}

// AddColumn appends an add_column operation
func (b *Builder) AddColumn(table, name string, typ schema.LogicalType, opts ...schema.ColumnOption) *Builder {
	if b.err != nil {
		return b
	}
	col, err := schema.NewColumn(name, typ, opts...)
	if err != nil {
		b.err = err
		return b
	}
	return b.Append(Operation{Kind: AddColumn, Table: table, Column: &col})
}

// DropColumn appends a drop_column operation
func (b *Builder) DropColumn(table, column string) *Builder {
	return b.Append(Operation{Kind: DropColumn, Table: table, ColumnName: column})
}

// RenameColumn appends a rename_column operation
func (b *Builder) RenameColumn(table, from, to string) *Builder {
	return b.Append(Operation{Kind: RenameColumn, Table: table, ColumnName: from, NewName: to})
}

// AddIndex appends an add_index operation with the derived index name
func (b *Builder) AddIndex(table string, unique bool, columns ...string) *Builder {
	return b.Append(Operation{Kind: AddIndex, Table: table, Index: &schema.IndexSpec{
		Name:    schema.IndexName(table, columns...),
		Columns: append([]string(nil), columns...),
		Unique:  unique,
	}})
}

// DropIndex appends a drop_index operation
func (b *Builder) DropIndex(name string) *Builder {
	return b.Append(Operation{Kind: DropIndex, Index: &schema.IndexSpec{Name: name}})
}

// CreateTable appends a create_table operation. The table's own indexes are
// not part of the statement; declare them with AddIndex.
func (b *Builder) CreateTable(name string, fn func(t *schema.TableBuilder)) *Builder {
	if b.err != nil {
		return b
	}
	t, err := schema.NewTable(name, fn)
	if err != nil {
		b.err = err
		return b
	}
	return b.Append(Operation{Kind: CreateTable, Table: name, TableSpec: t})
}

// DropTable appends a drop_table operation
func (b *Builder) DropTable(name string) *Builder {
	return b.Append(Operation{Kind: DropTable, Table: name})
}

// Append adds a raw operation without validation
func (b *Builder) Append(op Operation) *Builder {
	if b.err == nil {
		b.spec.Operations = append(b.spec.Operations, op)
	}
	return b
}

// New builds a migration from version from to version to via fn
func New(from, to int, fn func(b *Builder)) (*Spec, error) {
	if to <= from {
		return nil, fmt.Errorf("migration %d->%d: target version must be greater than source", from, to)
	}
	b := &Builder{spec: &Spec{From: from, To: to}}
	if fn != nil {
		fn(b)
	}
	if b.err != nil {
		return nil, fmt.Errorf("migration %d->%d: %w", from, to, b.err)
	}
	return b.spec, nil
}
