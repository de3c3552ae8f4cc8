package schema

import (
	"fmt"
	"strings"
)

// IndexSpec declares one index
type IndexSpec struct {
	Name    string
	Columns []string
	Unique  bool
}

// IndexName derives the default index name idx_<table>_<cols>
func IndexName(table string, columns ...string) string {
	return "idx_" + table + "_" + strings.Join(columns, "_")
}

// TableSpec declares one table: ordered columns plus indexes
type TableSpec struct {
	Name    string
	Columns []ColumnSpec
	Indexes []IndexSpec
}

// Column returns the declared column with the given name
func (t *TableSpec) Column(name string) (ColumnSpec, bool) {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return ColumnSpec{}, false
}

// CompileDDL returns the CREATE TABLE IF NOT EXISTS statement for the table
func (t *TableSpec) CompileDDL(d Dialect) string {
	clauses := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		clauses[i] = CompileColumn(d, c)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", t.Name, strings.Join(clauses, ", "))
}

// CompileIndexDDL returns one CREATE INDEX IF NOT EXISTS statement per index
func (t *TableSpec) CompileIndexDDL(d Dialect) []string {
	stmts := make([]string, 0, len(t.Indexes))
	for _, idx := range t.Indexes {
		stmts = append(stmts, CompileIndex(t.Name, idx))
	}
	return stmts
}

// CompileIndex renders the create statement for an index on table
func CompileIndex(table string, idx IndexSpec) string {
	unique := ""
	if idx.Unique {
		unique = "UNIQUE "
	}
	return fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS %s ON %s(%s)", unique, idx.Name, table, strings.Join(idx.Columns, ", "))
}

// AddColumnDDL returns the ALTER TABLE ... ADD COLUMN statement for col.
// A NOT NULL column without a declared default gets the dialect's zero
// literal so the statement succeeds on tables that already have rows.
func AddColumnDDL(d Dialect, table string, col ColumnSpec) string {
	def := col.Default
	if def == nil && col.Constraints.Has(NotNull) && !col.IsPrimaryKey() {
		zero := d.ZeroLiteral(col.Type)
		def = &zero
	}
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", table, compileColumn(d, col, def))
}

// UniqueColumnIndex names the index that enforces UNIQUE for a column
// added to an existing table
func UniqueColumnIndex(table, column string) string {
	return "uq_" + table + "_" + column
}

// AddColumnStatements returns the statements that add col to an existing,
// possibly populated table. ok is false when no in-place form exists: a
// primary key, a default the dialect refuses in ADD COLUMN, or a UNIQUE
// column whose backfilled value would repeat across rows. A nullable
// UNIQUE column is added plain and then given a unique index.
func AddColumnStatements(d Dialect, table string, col ColumnSpec) (stmts []string, ok bool) {
	if col.IsPrimaryKey() {
		return nil, false
	}
	if col.Default != nil && !d.AddColumnDefault(*col.Default) {
		return nil, false
	}
	if !col.Constraints.Has(Unique) {
		return []string{AddColumnDDL(d, table, col)}, true
	}
	if col.IsNotNull() || col.Default != nil {
		return nil, false
	}

	plain := col
	plain.Constraints &^= Unique
	return []string{
		AddColumnDDL(d, table, plain),
		CompileIndex(table, IndexSpec{
			Name:    UniqueColumnIndex(table, col.Name),
			Columns: []string{col.Name},
			Unique:  true,
		}),
	}, true
}

// TableBuilder assembles a TableSpec
type TableBuilder struct {
	table TableSpec
}

// Column declares the next column in order
func (b *TableBuilder) Column(name string, typ LogicalType, opts ...ColumnOption) *TableBuilder {
	col := ColumnSpec{Name: name, Type: typ}
	for _, opt := range opts {
		opt.apply(&col)
	}
	col.normalize()
	b.table.Columns = append(b.table.Columns, col)
	return b
}

// Index declares a non-unique index with the derived name
func (b *TableBuilder) Index(columns ...string) *TableBuilder {
	return b.NamedIndex(IndexName(b.table.Name, columns...), false, columns...)
}

// UniqueIndex declares a unique index with the derived name
func (b *TableBuilder) UniqueIndex(columns ...string) *TableBuilder {
	return b.NamedIndex(IndexName(b.table.Name, columns...), true, columns...)
}

// NamedIndex declares an index with an explicit name
func (b *TableBuilder) NamedIndex(name string, unique bool, columns ...string) *TableBuilder {
	b.table.Indexes = append(b.table.Indexes, IndexSpec{
		Name:    name,
		Columns: append([]string(nil), columns...),
		Unique:  unique,
	})
	return b
}

// NewTable builds a table via fn and validates the result
func NewTable(name string, fn func(t *TableBuilder)) (*TableSpec, error) {
	b := &TableBuilder{table: TableSpec{Name: name}}
	if fn != nil {
		fn(b)
	}
	if err := b.table.Validate(); err != nil {
		return nil, err
	}
	t := b.table
	return &t, nil
}

// Validate checks the table-level invariants
func (t *TableSpec) Validate() error {
	object := "table " + t.Name
	if !identifierPattern.MatchString(t.Name) {
		return invalid(object, "invalid identifier %q", t.Name)
	}
	if len(t.Columns) == 0 {
		return invalid(object, "at least one column is required")
	}

	columns := make(map[string]bool, len(t.Columns))
	primaryKeys := 0
	for _, c := range t.Columns {
		if err := c.validate(t.Name); err != nil {
			return err
		}
		if columns[FoldName(c.Name)] {
			return invalid(object, "duplicate column %s", c.Name)
		}
		columns[FoldName(c.Name)] = true
		if c.IsPrimaryKey() {
			primaryKeys++
		}
	}
	if primaryKeys > 1 {
		return invalid(object, "more than one PRIMARY KEY column")
	}

	indexes := make(map[string]bool, len(t.Indexes))
	for _, idx := range t.Indexes {
		if !identifierPattern.MatchString(idx.Name) {
			return invalid("index "+idx.Name, "invalid identifier %q", idx.Name)
		}
		if indexes[FoldName(idx.Name)] {
			return invalid(object, "duplicate index %s", idx.Name)
		}
		indexes[FoldName(idx.Name)] = true
		if len(idx.Columns) == 0 {
			return invalid("index "+idx.Name, "no columns")
		}
		for _, col := range idx.Columns {
			if !columns[FoldName(col)] {
				return invalid("index "+idx.Name, "unknown column %s", col)
			}
		}
	}

	return nil
}
