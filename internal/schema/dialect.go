package schema

import "strings"

// Dialect renders logical types and clauses for a specific store
type Dialect interface {
	// Name identifies the dialect in logs and errors
	Name() string
	// TypeName returns the column type keyword for a logical type
	TypeName(t LogicalType) string
	// AutoIncrementClause is emitted after PRIMARY KEY for AutoIncrement columns
	AutoIncrementClause() string
	// ZeroLiteral is the default used when adding a NOT NULL column to a populated table
	ZeroLiteral(t LogicalType) Literal
	// NormalizeType maps an introspected type into TypeName's vocabulary
	NormalizeType(reported string) string
	// AddColumnDefault reports whether ALTER TABLE ADD COLUMN accepts lit
	AddColumnDefault(lit Literal) bool
}

// SQLite is the dialect for SQLite stores
var SQLite Dialect = sqliteDialect{}

// Postgres is the dialect for PostgreSQL stores
var Postgres Dialect = postgresDialect{}

type sqliteDialect struct{}

func (sqliteDialect) Name() string { return "sqlite" }

func (sqliteDialect) TypeName(t LogicalType) string {
	switch t.Storage() {
	case Integer:
		return "INTEGER"
	case Real:
		return "REAL"
	case Blob:
		return "BLOB"
	default:
		return "TEXT"
	}
}

func (sqliteDialect) AutoIncrementClause() string { return "AUTOINCREMENT" }

func (sqliteDialect) ZeroLiteral(t LogicalType) Literal {
	switch t.Storage() {
	case Integer:
		return IntLiteral(0)
	case Real:
		return RealLiteral(0)
	case Blob:
		return Expr("X''")
	default:
		return TextLiteral("")
	}
}

// SQLite refuses ADD COLUMN with a non-constant default
func (sqliteDialect) AddColumnDefault(lit Literal) bool { return lit.Constant() }

// SQLite reports the declared type text verbatim, so only case and spacing vary.
func (sqliteDialect) NormalizeType(reported string) string {
	return strings.ToUpper(strings.TrimSpace(reported))
}

type postgresDialect struct{}

func (postgresDialect) Name() string { return "postgres" }

func (postgresDialect) TypeName(t LogicalType) string {
	switch t.Storage() {
	case Integer:
		return "INTEGER"
	case Real:
		return "REAL"
	case Blob:
		return "BYTEA"
	default:
		return "TEXT"
	}
}

func (postgresDialect) AutoIncrementClause() string { return "GENERATED BY DEFAULT AS IDENTITY" }

func (postgresDialect) ZeroLiteral(t LogicalType) Literal {
	switch t.Storage() {
	case Integer:
		return IntLiteral(0)
	case Real:
		return RealLiteral(0)
	case Blob:
		return Expr("''::bytea")
	default:
		return TextLiteral("")
	}
}

func (postgresDialect) AddColumnDefault(Literal) bool { return true }

// NormalizeType maps information_schema data_type names onto TypeName output
func (postgresDialect) NormalizeType(reported string) string {
	switch t := strings.ToLower(strings.TrimSpace(reported)); t {
	case "int", "int4":
		return "INTEGER"
	case "float4":
		return "REAL"
	default:
		return strings.ToUpper(t)
	}
}
