// Package formatter renders reconciliation reports and live table
// descriptions as compact text or markdown.
package formatter

import (
	"fmt"
	"io"

	"github.com/tordrt/schemasync/internal/reconcile"
	"github.com/tordrt/schemasync/internal/schema"
)

const (
	formatMarkdown = "markdown"
	formatText     = "text"
)

// Formatter renders engine output to a writer
type Formatter interface {
	FormatResult(r *reconcile.Result) error
	FormatDiscrepancies(issues []reconcile.Discrepancy) error
	FormatRepairs(actions []reconcile.RepairAction) error
	FormatTables(tables []schema.LiveTable) error
	FormatStatements(title string, stmts []string) error
}

// New returns the formatter for format ("text" or "markdown")
func New(format string, w io.Writer) (Formatter, error) {
	switch canonicalFormat(format) {
	case formatText:
		return NewTextFormatter(w), nil
	case formatMarkdown:
		return NewMarkdownFormatter(w), nil
	default:
		return nil, fmt.Errorf("unsupported format: %s (use text or markdown)", format)
	}
}

// canonicalFormat resolves the accepted aliases; unknown names pass through
func canonicalFormat(format string) string {
	switch format {
	case "":
		return formatText
	case "md":
		return formatMarkdown
	default:
		return format
	}
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}

func columnFlags(col schema.LiveColumn) []string {
	var flags []string
	if col.PrimaryKey {
		flags = append(flags, "PK")
	}
	if col.NotNull && !col.PrimaryKey {
		flags = append(flags, "NOT NULL")
	}
	return flags
}
