package formatter

import (
	"fmt"
	"io"
	"time"

	"github.com/tordrt/schemadrift/internal/reconcile"
)

// MarkdownFormatter formats a report as markdown
type MarkdownFormatter struct {
	writer io.Writer
}

// NewMarkdownFormatter creates a new markdown formatter
func NewMarkdownFormatter(w io.Writer) *MarkdownFormatter {
	return &MarkdownFormatter{writer: w}
}

// Format writes the report with one section per table, then enums and
// routines.
func (f *MarkdownFormatter) Format(r *reconcile.Report) error {
	_, _ = fmt.Fprintln(f.writer, "# Database Integrity Report")
	_, _ = fmt.Fprintln(f.writer)
	f.formatHeader(r)

	if len(r.Issues) == 0 {
		_, _ = fmt.Fprintln(f.writer, "No integrity issues found.")
		return nil
	}

	for _, g := range groupByScope(r.Issues) {
		_, _ = fmt.Fprintf(f.writer, "## %s\n\n", g.scope)
		f.FormatIssues(g.issues)
	}
	return nil
}

func (f *MarkdownFormatter) formatHeader(r *reconcile.Report) {
	_, _ = fmt.Fprintf(f.writer, "- **Run:** %s\n", r.RunID)
	_, _ = fmt.Fprintf(f.writer, "- **Generated:** %s\n", r.Timestamp.Format(time.RFC3339))
	_, _ = fmt.Fprintf(f.writer, "- **Summary:** %s\n\n", summaryLine(r.Summary))
}

// FormatIssues writes one bullet per issue (exported for use by the
// multifile formatter)
func (f *MarkdownFormatter) FormatIssues(issues []reconcile.Issue) {
	for _, i := range issues {
		_, _ = fmt.Fprintf(f.writer, "- **%s** `%s` %s", i.Severity, i.Kind, i.Message)
		if detail := details(i); detail != "" {
			_, _ = fmt.Fprintf(f.writer, " (%s)", detail)
		}
		_, _ = fmt.Fprintln(f.writer)
	}
	_, _ = fmt.Fprintln(f.writer)
}

func details(i reconcile.Issue) string {
	switch {
	case i.Expected != "" && i.Actual != "":
		return fmt.Sprintf("expected %s, found %s", i.Expected, i.Actual)
	case i.Count > 0:
		return fmt.Sprintf("%d definitions", i.Count)
	}
	return ""
}

type issueGroup struct {
	scope  string
	issues []reconcile.Issue
}

// groupByScope keeps the report order: groups appear in the order of their
// first issue.
func groupByScope(issues []reconcile.Issue) []issueGroup {
	var groups []issueGroup
	index := make(map[string]int)
	for _, i := range issues {
		s := scope(i)
		n, ok := index[s]
		if !ok {
			n = len(groups)
			index[s] = n
			groups = append(groups, issueGroup{scope: s})
		}
		groups[n].issues = append(groups[n].issues, i)
	}
	return groups
}
