package formatter

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/tordrt/schemadrift/internal/reconcile"
)

// JSONFormatter writes the report in its persisted JSON form
type JSONFormatter struct {
	writer io.Writer
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter(w io.Writer) *JSONFormatter {
	return &JSONFormatter{writer: w}
}

// Format writes the report as indented JSON
func (f *JSONFormatter) Format(r *reconcile.Report) error {
	return r.Write(f.writer)
}

// YAMLFormatter writes the report as YAML
type YAMLFormatter struct {
	writer io.Writer
}

// NewYAMLFormatter creates a new YAML formatter
func NewYAMLFormatter(w io.Writer) *YAMLFormatter {
	return &YAMLFormatter{writer: w}
}

// Format writes the report as YAML
func (f *YAMLFormatter) Format(r *reconcile.Report) error {
	enc := yaml.NewEncoder(f.writer)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return enc.Close()
}
