package formatter

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/tordrt/schemasync/internal/schema"
)

// MultiFileFormatter writes a live table description to a directory:
// an overview plus one file per table
type MultiFileFormatter struct {
	OutputDir    string
	OutputFormat string // "text" or "markdown"
}

// NewMultiFileFormatter creates a new multi-file formatter
func NewMultiFileFormatter(outputDir, format string) *MultiFileFormatter {
	return &MultiFileFormatter{
		OutputDir:    outputDir,
		OutputFormat: canonicalFormat(format),
	}
}

// FormatTables writes the overview and per-table files
func (f *MultiFileFormatter) FormatTables(tables []schema.LiveTable) error {
	if err := os.MkdirAll(f.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := f.writeOverview(tables); err != nil {
		return fmt.Errorf("failed to write overview: %w", err)
	}

	for _, table := range tables {
		if err := f.writeTableFile(table); err != nil {
			return fmt.Errorf("failed to write table file for %s: %w", table.Name, err)
		}
	}

	return nil
}

func (f *MultiFileFormatter) writeOverview(tables []schema.LiveTable) error {
	file, err := os.Create(filepath.Join(f.OutputDir, "_overview"+f.getFileExtension()))
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	sorted := make([]schema.LiveTable, len(tables))
	copy(sorted, tables)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})

	if f.OutputFormat == formatMarkdown {
		_, _ = fmt.Fprintf(file, "# Schema Overview\n\n")
		_, _ = fmt.Fprintf(file, "Each table has a corresponding file: `<table_name>%s`\n\n", f.getFileExtension())
		_, _ = fmt.Fprintf(file, "## Tables\n\n")
		for _, table := range sorted {
			_, _ = fmt.Fprintf(file, "- **%s**%s\n", table.Name, overviewNote(table))
		}
		return nil
	}

	_, _ = fmt.Fprintf(file, "SCHEMA OVERVIEW\n")
	_, _ = fmt.Fprintf(file, "Each table has a file: <table_name>%s\n\n", f.getFileExtension())
	for _, table := range sorted {
		_, _ = fmt.Fprintf(file, "%s%s\n", table.Name, overviewNote(table))
	}
	return nil
}

func overviewNote(table schema.LiveTable) string {
	if !table.Exists {
		return " (missing)"
	}
	return fmt.Sprintf(" (%d columns, %d indexes)", len(table.Columns), len(table.Indexes))
}

// writeTableFile writes a single table to its own file
func (f *MultiFileFormatter) writeTableFile(table schema.LiveTable) error {
	file, err := os.Create(filepath.Join(f.OutputDir, table.Name+f.getFileExtension()))
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	if f.OutputFormat == formatMarkdown {
		NewMarkdownFormatter(file).formatTable(table)
		return nil
	}
	NewTextFormatter(file).formatTable(table)
	return nil
}

func (f *MultiFileFormatter) getFileExtension() string {
	if f.OutputFormat == formatMarkdown {
		return ".md"
	}
	return ".txt"
}
