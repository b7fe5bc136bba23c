package formatter

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/tordrt/schemadrift/internal/reconcile"
)

var (
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

// TextFormatter renders issues as a terminal table
type TextFormatter struct {
	writer io.Writer
	color  bool
}

// NewTextFormatter creates a new text formatter. Colour is off until
// WithColor is called.
func NewTextFormatter(w io.Writer) *TextFormatter {
	return &TextFormatter{writer: w}
}

// WithColor toggles severity colouring.
func (f *TextFormatter) WithColor(on bool) *TextFormatter {
	f.color = on
	return f
}

// Format writes the issue table followed by the summary line
func (f *TextFormatter) Format(r *reconcile.Report) error {
	if len(r.Issues) == 0 {
		_, _ = fmt.Fprintln(f.writer, f.style(okStyle, "No integrity issues found"))
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(f.writer)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Severity", "Kind", "Location", "Message"})

	for _, i := range r.Issues {
		t.AppendRow(table.Row{f.severity(i.Severity), string(i.Kind), location(i), i.Message})
	}
	t.Render()

	_, _ = fmt.Fprintln(f.writer, summaryLine(r.Summary))
	return nil
}

func (f *TextFormatter) severity(s reconcile.Severity) string {
	switch s {
	case reconcile.SeverityError:
		return f.style(errorStyle, string(s))
	case reconcile.SeverityWarning:
		return f.style(warningStyle, string(s))
	default:
		return string(s)
	}
}

func (f *TextFormatter) style(s lipgloss.Style, text string) string {
	if !f.color {
		return text
	}
	return s.Render(text)
}
