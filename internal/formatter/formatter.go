package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/tordrt/schemadrift/internal/reconcile"
)

// Output formats accepted by New.
const (
	FormatText     = "text"
	FormatJSON     = "json"
	FormatYAML     = "yaml"
	FormatMarkdown = "markdown"
)

// Formatter renders a reconciliation report
type Formatter interface {
	Format(r *reconcile.Report) error
}

// New returns the single-stream formatter for format.
func New(format string, w io.Writer) (Formatter, error) {
	switch format {
	case FormatText, "":
		return NewTextFormatter(w), nil
	case FormatJSON:
		return NewJSONFormatter(w), nil
	case FormatYAML:
		return NewYAMLFormatter(w), nil
	case FormatMarkdown:
		return NewMarkdownFormatter(w), nil
	default:
		return nil, fmt.Errorf("invalid format: %s (must be 'text', 'json', 'yaml' or 'markdown')", format)
	}
}

// location names the object an issue is about, e.g. "users.email".
func location(i reconcile.Issue) string {
	switch {
	case i.Table != "" && i.Column != "":
		return i.Table + "." + i.Column
	case i.Table != "" && len(i.Columns) > 0:
		return fmt.Sprintf("%s(%s)", i.Table, strings.Join(i.Columns, ", "))
	case i.Table != "":
		return i.Table
	case i.Enum != "" && i.Value != "":
		return i.Enum + "." + i.Value
	case i.Enum != "":
		return i.Enum
	case i.Function != "":
		return i.Function + "()"
	}
	return ""
}

// scope groups issues for per-section output: the table when there is one,
// otherwise the enum or routine category.
func scope(i reconcile.Issue) string {
	switch {
	case i.Table != "":
		return i.Table
	case i.Enum != "":
		return "Enums"
	case i.Function != "":
		return "Routines"
	}
	return "Other"
}

func summaryLine(s reconcile.Summary) string {
	return fmt.Sprintf("%d issues: %d errors, %d warnings", s.Total, s.Errors, s.Warnings)
}
