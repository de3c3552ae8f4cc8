package schema

import (
	"math"
	"strconv"
	"strings"
)

// LogicalType is a column type independent of any store
type LogicalType int

const (
	Text LogicalType = iota
	Integer
	Real
	Blob
	// Boolean is stored as Integer (0/1).
	Boolean
	// Datetime is stored as Text.
	Datetime
	// JSON is stored as Text.
	JSON
)

var logicalTypeNames = map[LogicalType]string{
	Text:     "text",
	Integer:  "integer",
	Real:     "real",
	Blob:     "blob",
	Boolean:  "boolean",
	Datetime: "datetime",
	JSON:     "json",
}

func (t LogicalType) String() string {
	if name, ok := logicalTypeNames[t]; ok {
		return name
	}
	return "LogicalType(" + strconv.Itoa(int(t)) + ")"
}

// Storage returns the base type a semantic alias is stored as
func (t LogicalType) Storage() LogicalType {
	switch t {
	case Boolean:
		return Integer
	case Datetime, JSON:
		return Text
	default:
		return t
	}
}

func (t LogicalType) valid() bool {
	_, ok := logicalTypeNames[t]
	return ok
}

// Constraint is a set of structural column constraints
type Constraint uint8

const (
	PrimaryKey Constraint = 1 << iota
	NotNull
	Unique
	AutoIncrement
)

// Has reports whether every constraint in c is present in s
func (s Constraint) Has(c Constraint) bool {
	return s&c == c
}

func (s Constraint) apply(col *ColumnSpec) {
	col.Constraints |= s
}

// Literal is a rendered DEFAULT value
type Literal struct {
	sql  string
	expr bool
}

// TextLiteral returns a single-quoted string literal
func TextLiteral(s string) Literal {
	return Literal{sql: "'" + strings.ReplaceAll(s, "'", "''") + "'"}
}

// IntLiteral returns an integer literal
func IntLiteral(n int64) Literal {
	return Literal{sql: strconv.FormatInt(n, 10)}
}

// RealLiteral returns a floating point literal. NaN and infinities have no
// SQL literal form; a column defaulting to one fails validation.
func RealLiteral(f float64) Literal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Literal{}
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return Literal{sql: s}
}

// BoolLiteral returns 1 or 0, matching Boolean's Integer storage
func BoolLiteral(b bool) Literal {
	if b {
		return Literal{sql: "1"}
	}
	return Literal{sql: "0"}
}

// Expr returns a raw SQL expression such as CURRENT_TIMESTAMP
func Expr(expr string) Literal {
	return Literal{sql: expr, expr: true}
}

// Constant reports whether the literal is a fixed value rather than an
// expression evaluated when a row is written.
func (l Literal) Constant() bool {
	if !l.expr {
		return true
	}
	switch e := strings.ToUpper(strings.TrimSpace(l.sql)); {
	case e == "CURRENT_TIME", e == "CURRENT_DATE", e == "CURRENT_TIMESTAMP":
		return false
	case strings.HasPrefix(e, "("):
		return false
	default:
		return true
	}
}

// SQL returns the literal as it appears after DEFAULT
func (l Literal) SQL() string {
	return l.sql
}
