// Package schema declares tables, columns and indexes as data and compiles
// them to idempotent DDL for a Dialect.
//
// Schemas are built once through NewSchema/NewTable and are not
// modified afterwards:
//
//	spec, err := schema.NewSchema("arena", 1, func(s *schema.SchemaBuilder) {
//		s.Table("widgets", func(t *schema.TableBuilder) {
//			t.Column("id", schema.Integer, schema.PrimaryKey)
//			t.Column("name", schema.Text, schema.NotNull)
//			t.Index("name")
//		})
//	})
package schema

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// SchemaSpec is a named, versioned set of tables: the desired state
type SchemaSpec struct {
	Name    string
	Version int

	tables []*TableSpec
	byName map[string]*TableSpec
}

// Tables returns the tables in declaration order
func (s *SchemaSpec) Tables() []*TableSpec {
	return s.tables
}

// Table looks up a declared table by name. Identifiers are compiled
// unquoted, so the lookup ignores case the way both stores do.
func (s *SchemaSpec) Table(name string) (*TableSpec, bool) {
	t, ok := s.byName[FoldName(name)]
	return t, ok
}

// CompileDDL returns every table statement followed by every index
// statement, each group in declaration order.
func (s *SchemaSpec) CompileDDL(d Dialect) []string {
	var stmts []string
	for _, t := range s.tables {
		stmts = append(stmts, t.CompileDDL(d))
	}
	for _, t := range s.tables {
		stmts = append(stmts, t.CompileIndexDDL(d)...)
	}
	return stmts
}

// Fingerprint is a hex BLAKE3 digest of the compiled DDL for d
func (s *SchemaSpec) Fingerprint(d Dialect) string {
	h := blake3.New()
	for _, stmt := range s.CompileDDL(d) {
		_, _ = h.Write([]byte(stmt))
		_, _ = h.Write([]byte{';', '\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// SchemaBuilder assembles a SchemaSpec
type SchemaBuilder struct {
	spec *SchemaSpec
	err  error
}

// Table declares a table. The first invalid table is reported by NewSchema.
func (b *SchemaBuilder) Table(name string, fn func(t *TableBuilder)) *SchemaBuilder {
	if b.err != nil {
		return b
	}
	t, err := NewTable(name, fn)
	if err != nil {
		b.err = err
		return b
	}
	return b.AddTable(t)
}

// AddTable adds an already built table
func (b *SchemaBuilder) AddTable(t *TableSpec) *SchemaBuilder {
	if b.err != nil {
		return b
	}
	if _, exists := b.spec.byName[FoldName(t.Name)]; exists {
		b.err = invalid("schema "+b.spec.Name, "duplicate table %s", t.Name)
		return b
	}
	b.spec.tables = append(b.spec.tables, t)
	b.spec.byName[FoldName(t.Name)] = t
	return b
}

// NewSchema builds a SchemaSpec via fn
func NewSchema(name string, version int, fn func(s *SchemaBuilder)) (*SchemaSpec, error) {
	if name == "" {
		return nil, invalid("schema", "name is required")
	}
	b := &SchemaBuilder{spec: &SchemaSpec{
		Name:    name,
		Version: version,
		byName:  make(map[string]*TableSpec),
	}}
	if fn != nil {
		fn(b)
	}
	if b.err != nil {
		return nil, fmt.Errorf("schema %s v%d: %w", name, version, b.err)
	}
	return b.spec, nil
}
