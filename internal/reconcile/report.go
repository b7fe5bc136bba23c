package reconcile

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
)

// Summary counts issues by severity.
type Summary struct {
	Total    int `json:"total" yaml:"total"`
	Errors   int `json:"errors" yaml:"errors"`
	Warnings int `json:"warnings" yaml:"warnings"`
}

// Report is the persisted result of one reconciliation run.
type Report struct {
	RunID     string    `json:"run_id" yaml:"run_id"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Issues    []Issue   `json:"issues" yaml:"issues"`
	Summary   Summary   `json:"summary" yaml:"summary"`
}

// NewReport wraps issues with a fresh run id, the current UTC time and a
// severity summary.
func NewReport(issues []Issue) *Report {
	if issues == nil {
		issues = []Issue{}
	}
	return &Report{
		RunID:     uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Issues:    issues,
		Summary:   Summarize(issues),
	}
}

// Summarize counts issues by severity.
func Summarize(issues []Issue) Summary {
	s := Summary{Total: len(issues)}
	for _, i := range issues {
		switch i.Severity {
		case SeverityError:
			s.Errors++
		case SeverityWarning:
			s.Warnings++
		}
	}
	return s
}

// HasErrors reports whether any issue has error severity.
func (r *Report) HasErrors() bool {
	return r.Summary.Errors > 0
}

// Write encodes the report as indented JSON.
func (r *Report) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteFile saves the report as JSON at path.
func (r *Report) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	if err := r.Write(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	return f.Close()
}

// ReadReport decodes a JSON report.
func ReadReport(rd io.Reader) (*Report, error) {
	var r Report
	if err := json.NewDecoder(rd).Decode(&r); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}
	if r.Issues == nil {
		r.Issues = []Issue{}
	}
	return &r, nil
}

// LoadReport reads a JSON report saved by WriteFile.
func LoadReport(path string) (*Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open report: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ReadReport(f)
}
