package formatter

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/tordrt/schemadrift/internal/reconcile"
)

const overviewFile = "_overview.md"

// MultiFileFormatter writes a report to multiple markdown files in a directory
type MultiFileFormatter struct {
	OutputDir string
}

// NewMultiFileFormatter creates a new multi-file formatter
func NewMultiFileFormatter(outputDir string) *MultiFileFormatter {
	return &MultiFileFormatter{OutputDir: outputDir}
}

// Format writes _overview.md plus one <table>.md per table with issues.
// Enum and routine issues are listed in the overview.
func (f *MultiFileFormatter) Format(r *reconcile.Report) error {
	// Create output directory if it doesn't exist
	if err := os.MkdirAll(f.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	byTable := make(map[string][]reconcile.Issue)
	var other []reconcile.Issue
	for _, i := range r.Issues {
		if i.Table != "" {
			byTable[i.Table] = append(byTable[i.Table], i)
		} else {
			other = append(other, i)
		}
	}

	if err := f.writeOverview(r, byTable, other); err != nil {
		return fmt.Errorf("failed to write overview: %w", err)
	}

	for table, issues := range byTable {
		if err := f.writeTableFile(table, issues); err != nil {
			return fmt.Errorf("failed to write table file for %s: %w", table, err)
		}
	}
	return nil
}

func (f *MultiFileFormatter) writeOverview(r *reconcile.Report, byTable map[string][]reconcile.Issue, other []reconcile.Issue) error {
	file, err := os.Create(filepath.Join(f.OutputDir, overviewFile))
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	md := NewMarkdownFormatter(file)
	_, _ = fmt.Fprintf(file, "# Database Integrity Overview\n\n")
	md.formatHeader(r)

	if len(byTable) > 0 {
		_, _ = fmt.Fprintf(file, "Each table with issues has a corresponding file: `<table_name>.md`\n\n")
		_, _ = fmt.Fprintf(file, "## Tables\n\n")

		tables := make([]string, 0, len(byTable))
		for t := range byTable {
			tables = append(tables, t)
		}
		sort.Strings(tables)

		for _, t := range tables {
			s := reconcile.Summarize(byTable[t])
			_, _ = fmt.Fprintf(file, "- **%s** (%d errors, %d warnings)\n", t, s.Errors, s.Warnings)
		}
		_, _ = fmt.Fprintln(file)
	}

	for _, g := range groupByScope(other) {
		_, _ = fmt.Fprintf(file, "## %s\n\n", g.scope)
		md.FormatIssues(g.issues)
	}
	return nil
}

// writeTableFile writes the issues of a single table to its own file
func (f *MultiFileFormatter) writeTableFile(table string, issues []reconcile.Issue) error {
	file, err := os.Create(filepath.Join(f.OutputDir, table+".md"))
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	_, _ = fmt.Fprintf(file, "## %s\n\n", table)
	NewMarkdownFormatter(file).FormatIssues(issues)
	return nil
}
