package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/tordrt/schemasync/internal/reconcile"
	"github.com/tordrt/schemasync/internal/schema"
)

// TextFormatter formats reports as compact text
type TextFormatter struct {
	writer io.Writer
}

// NewTextFormatter creates a new text formatter
func NewTextFormatter(w io.Writer) *TextFormatter {
	return &TextFormatter{writer: w}
}

// FormatResult writes a reconciliation run summary
func (f *TextFormatter) FormatResult(r *reconcile.Result) error {
	_, _ = fmt.Fprintf(f.writer, "RUN %s\n", r.RunID)
	_, _ = fmt.Fprintf(f.writer, "SCHEMA %s v%d (fingerprint %s)\n", r.Schema, r.Version, shortFingerprint(r.Fingerprint))
	_, _ = fmt.Fprintf(f.writer, "STATUS %s\n", r.Status)

	f.section("ISSUES", len(r.Issues), func() {
		for _, d := range r.Issues {
			_, _ = fmt.Fprintf(f.writer, "  %s\n", d)
		}
	})
	f.section("REPAIRS", len(r.Repairs), func() {
		for _, a := range r.Repairs {
			_, _ = fmt.Fprintf(f.writer, "  %s\n", a)
		}
	})
	f.section("RESIDUAL", len(r.Residual), func() {
		for _, d := range r.Residual {
			_, _ = fmt.Fprintf(f.writer, "  %s\n", d)
		}
	})
	return nil
}

// FormatDiscrepancies writes one discrepancy per line
func (f *TextFormatter) FormatDiscrepancies(issues []reconcile.Discrepancy) error {
	if len(issues) == 0 {
		_, _ = fmt.Fprintln(f.writer, "NO DISCREPANCIES")
		return nil
	}
	for _, d := range issues {
		repairable := ""
		if !d.Repairable() {
			repairable = " (needs migration)"
		}
		_, _ = fmt.Fprintf(f.writer, "%s%s\n", d, repairable)
	}
	return nil
}

// FormatRepairs writes each repair with the statement it executed
func (f *TextFormatter) FormatRepairs(actions []reconcile.RepairAction) error {
	if len(actions) == 0 {
		_, _ = fmt.Fprintln(f.writer, "NO REPAIRS")
		return nil
	}
	for _, a := range actions {
		_, _ = fmt.Fprintf(f.writer, "%s\n  %s\n", a, a.Statement)
	}
	return nil
}

// FormatTables writes the live state of each table
func (f *TextFormatter) FormatTables(tables []schema.LiveTable) error {
	for i, table := range tables {
		if i > 0 {
			_, _ = fmt.Fprintln(f.writer) // Blank line between tables
		}
		f.formatTable(table)
	}
	return nil
}

// FormatStatements writes a titled list of SQL statements
func (f *TextFormatter) FormatStatements(title string, stmts []string) error {
	if title != "" {
		_, _ = fmt.Fprintf(f.writer, "-- %s\n", title)
	}
	for _, stmt := range stmts {
		_, _ = fmt.Fprintf(f.writer, "%s;\n", stmt)
	}
	return nil
}

func (f *TextFormatter) section(title string, n int, body func()) {
	if n == 0 {
		return
	}
	_, _ = fmt.Fprintln(f.writer)
	_, _ = fmt.Fprintf(f.writer, "%s:\n", title)
	body()
}

func (f *TextFormatter) formatTable(table schema.LiveTable) {
	if !table.Exists {
		_, _ = fmt.Fprintf(f.writer, "TABLE %s (missing)\n", table.Name)
		return
	}
	_, _ = fmt.Fprintf(f.writer, "TABLE %s\n", table.Name)

	for _, col := range table.Columns {
		_, _ = fmt.Fprintf(f.writer, "  %s\n", f.formatColumn(col))
	}

	if len(table.Indexes) > 0 {
		_, _ = fmt.Fprintln(f.writer)
		_, _ = fmt.Fprintln(f.writer, "  INDEXES:")
		for _, idx := range table.Indexes {
			_, _ = fmt.Fprintf(f.writer, "    %s\n", idx.Name)
		}
	}
}

func (f *TextFormatter) formatColumn(col schema.LiveColumn) string {
	parts := append([]string{col.Name + ":", col.Type}, columnFlags(col)...)
	return strings.Join(parts, " ")
}
