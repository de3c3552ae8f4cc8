package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/tordrt/schemasync/internal/reconcile"
	"github.com/tordrt/schemasync/internal/schema"
)

// MarkdownFormatter formats reports as markdown
type MarkdownFormatter struct {
	writer io.Writer
}

// NewMarkdownFormatter creates a new markdown formatter
func NewMarkdownFormatter(w io.Writer) *MarkdownFormatter {
	return &MarkdownFormatter{writer: w}
}

// FormatResult writes a reconciliation run summary
func (f *MarkdownFormatter) FormatResult(r *reconcile.Result) error {
	_, _ = fmt.Fprintf(f.writer, "# Reconciliation: %s v%d\n\n", r.Schema, r.Version)
	_, _ = fmt.Fprintf(f.writer, "- **Run:** `%s`\n", r.RunID)
	_, _ = fmt.Fprintf(f.writer, "- **Fingerprint:** `%s`\n", shortFingerprint(r.Fingerprint))
	_, _ = fmt.Fprintf(f.writer, "- **Status:** %s\n\n", r.Status)

	if len(r.Issues) > 0 {
		_, _ = fmt.Fprintln(f.writer, "## Issues")
		_, _ = fmt.Fprintln(f.writer)
		f.discrepancyList(r.Issues)
	}
	if len(r.Repairs) > 0 {
		_, _ = fmt.Fprintln(f.writer, "## Repairs")
		_, _ = fmt.Fprintln(f.writer)
		f.repairList(r.Repairs)
	}
	if len(r.Residual) > 0 {
		_, _ = fmt.Fprintln(f.writer, "## Residual")
		_, _ = fmt.Fprintln(f.writer)
		f.discrepancyList(r.Residual)
	}
	return nil
}

// FormatDiscrepancies writes discrepancies as a table
func (f *MarkdownFormatter) FormatDiscrepancies(issues []reconcile.Discrepancy) error {
	_, _ = fmt.Fprintln(f.writer, "## Discrepancies")
	_, _ = fmt.Fprintln(f.writer)
	if len(issues) == 0 {
		_, _ = fmt.Fprintln(f.writer, "None.")
		return nil
	}
	f.discrepancyList(issues)
	return nil
}

// FormatRepairs writes the executed repairs
func (f *MarkdownFormatter) FormatRepairs(actions []reconcile.RepairAction) error {
	_, _ = fmt.Fprintln(f.writer, "## Repairs")
	_, _ = fmt.Fprintln(f.writer)
	if len(actions) == 0 {
		_, _ = fmt.Fprintln(f.writer, "None.")
		return nil
	}
	f.repairList(actions)
	return nil
}

// FormatTables writes the live state of each table
func (f *MarkdownFormatter) FormatTables(tables []schema.LiveTable) error {
	_, _ = fmt.Fprintln(f.writer, "# Live Schema")
	_, _ = fmt.Fprintln(f.writer)

	for _, table := range tables {
		f.formatTable(table)
	}
	return nil
}

// FormatStatements writes statements in a sql code block
func (f *MarkdownFormatter) FormatStatements(title string, stmts []string) error {
	if title != "" {
		_, _ = fmt.Fprintf(f.writer, "## %s\n\n", title)
	}
	_, _ = fmt.Fprintln(f.writer, "```sql")
	for _, stmt := range stmts {
		_, _ = fmt.Fprintf(f.writer, "%s;\n", stmt)
	}
	_, _ = fmt.Fprintln(f.writer, "```")
	return nil
}

func (f *MarkdownFormatter) discrepancyList(issues []reconcile.Discrepancy) {
	_, _ = fmt.Fprintln(f.writer, "| Kind | Object | Expected | Actual |")
	_, _ = fmt.Fprintln(f.writer, "|---|---|---|---|")
	for _, d := range issues {
		object := d.Table
		switch {
		case d.Column != "":
			object = d.Table + "." + d.Column
		case d.Index != "":
			object = d.Index
		}
		_, _ = fmt.Fprintf(f.writer, "| %s | %s | %s | %s |\n", d.Kind, object, d.Expected, d.Actual)
	}
	_, _ = fmt.Fprintln(f.writer)
}

func (f *MarkdownFormatter) repairList(actions []reconcile.RepairAction) {
	for _, a := range actions {
		_, _ = fmt.Fprintf(f.writer, "- %s: `%s`\n", a, a.Statement)
	}
	_, _ = fmt.Fprintln(f.writer)
}

func (f *MarkdownFormatter) formatTable(table schema.LiveTable) {
	_, _ = fmt.Fprintf(f.writer, "## %s\n\n", table.Name)
	if !table.Exists {
		_, _ = fmt.Fprintln(f.writer, "_Table does not exist._")
		_, _ = fmt.Fprintln(f.writer)
		return
	}

	_, _ = fmt.Fprintln(f.writer, "### Columns")
	_, _ = fmt.Fprintln(f.writer)
	for _, col := range table.Columns {
		if flags := columnFlags(col); len(flags) > 0 {
			_, _ = fmt.Fprintf(f.writer, "- **%s:** %s, %s\n", col.Name, col.Type, strings.Join(flags, ", "))
		} else {
			_, _ = fmt.Fprintf(f.writer, "- **%s:** %s\n", col.Name, col.Type)
		}
	}
	_, _ = fmt.Fprintln(f.writer)

	if len(table.Indexes) > 0 {
		_, _ = fmt.Fprintln(f.writer, "### Idx")
		_, _ = fmt.Fprintln(f.writer)
		for _, idx := range table.Indexes {
			_, _ = fmt.Fprintf(f.writer, "- %s\n", idx.Name)
		}
		_, _ = fmt.Fprintln(f.writer)
	}
}
