package schema

import (
	"regexp"
	"strings"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// FoldName returns the form stores compare unquoted identifiers in.
// SQLite matches them case-insensitively and PostgreSQL lowercases them.
func FoldName(name string) string {
	return strings.ToLower(name)
}

// ColumnSpec declares one table column
type ColumnSpec struct {
	Name        string
	Type        LogicalType
	Constraints Constraint
	Default     *Literal
}

// ColumnOption configures a ColumnSpec. Constraint values are options.
type ColumnOption interface {
	apply(col *ColumnSpec)
}

type defaultOption Literal

func (d defaultOption) apply(col *ColumnSpec) {
	lit := Literal(d)
	col.Default = &lit
}

// Default sets the column's DEFAULT literal
func Default(lit Literal) ColumnOption {
	return defaultOption(lit)
}

// NewColumn builds and validates a column declaration
func NewColumn(name string, typ LogicalType, opts ...ColumnOption) (ColumnSpec, error) {
	col := ColumnSpec{Name: name, Type: typ}
	for _, opt := range opts {
		opt.apply(&col)
	}
	col.normalize()
	if err := col.validate(""); err != nil {
		return ColumnSpec{}, err
	}
	return col, nil
}

// IsNotNull reports whether the column rejects NULL. PrimaryKey implies NotNull.
func (c ColumnSpec) IsNotNull() bool {
	return c.Constraints.Has(NotNull) || c.Constraints.Has(PrimaryKey)
}

// IsPrimaryKey reports whether the column is the table's primary key
func (c ColumnSpec) IsPrimaryKey() bool {
	return c.Constraints.Has(PrimaryKey)
}

// normalize drops NotNull when PrimaryKey already implies it
func (c *ColumnSpec) normalize() {
	if c.Constraints.Has(PrimaryKey) {
		c.Constraints &^= NotNull
	}
}

func (c ColumnSpec) validate(table string) error {
	object := "column " + c.Name
	if table != "" {
		object = "column " + table + "." + c.Name
	}
	if !identifierPattern.MatchString(c.Name) {
		return invalid(object, "invalid identifier %q", c.Name)
	}
	if !c.Type.valid() {
		return invalid(object, "unknown logical type %s", c.Type)
	}
	if c.Constraints.Has(AutoIncrement) {
		if !c.Constraints.Has(PrimaryKey) || c.Type.Storage() != Integer {
			return invalid(object, "AUTOINCREMENT requires an INTEGER PRIMARY KEY")
		}
	}
	if c.Default != nil && c.Default.SQL() == "" {
		return invalid(object, "empty DEFAULT literal")
	}
	return nil
}

// CompileColumn renders a column clause: <name> <TYPE> [constraints] [DEFAULT <lit>]
func CompileColumn(d Dialect, c ColumnSpec) string {
	return compileColumn(d, c, c.Default)
}

func compileColumn(d Dialect, c ColumnSpec, def *Literal) string {
	parts := []string{c.Name, d.TypeName(c.Type)}

	if c.Constraints.Has(PrimaryKey) {
		parts = append(parts, "PRIMARY KEY")
		if c.Constraints.Has(AutoIncrement) {
			parts = append(parts, d.AutoIncrementClause())
		}
	} else if c.Constraints.Has(NotNull) {
		parts = append(parts, "NOT NULL")
	}

	if c.Constraints.Has(Unique) && !c.Constraints.Has(PrimaryKey) {
		parts = append(parts, "UNIQUE")
	}

	if def != nil {
		parts = append(parts, "DEFAULT "+def.SQL())
	}

	return strings.Join(parts, " ")
}
