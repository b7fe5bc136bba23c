// Package reconcile compares parsed definitions with a catalog snapshot and
// classifies every discrepancy as an Issue.
package reconcile

// Kind identifies the category of a discrepancy.
type Kind string

const (
	KindMissingTable        Kind = "MissingTable"
	KindExtraTable          Kind = "ExtraTable"
	KindMissingColumn       Kind = "MissingColumn"
	KindExtraColumn         Kind = "ExtraColumn"
	KindTypeMismatch        Kind = "TypeMismatch"
	KindNullabilityMismatch Kind = "NullabilityMismatch"
	KindMissingEnum         Kind = "MissingEnum"
	KindExtraEnum           Kind = "ExtraEnum"
	KindMissingEnumValue    Kind = "MissingEnumValue"
	KindDuplicateRoutine    Kind = "DuplicateRoutine"
	KindMissingIndex        Kind = "MissingIndex"
)

// Severity is a property of a finding, not of the run that produced it.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

var severities = map[Kind]Severity{
	KindMissingTable:        SeverityError,
	KindExtraTable:          SeverityWarning,
	KindMissingColumn:       SeverityError,
	KindExtraColumn:         SeverityWarning,
	KindTypeMismatch:        SeverityError,
	KindNullabilityMismatch: SeverityWarning,
	KindMissingEnum:         SeverityError,
	KindExtraEnum:           SeverityWarning,
	KindMissingEnumValue:    SeverityError,
	KindDuplicateRoutine:    SeverityWarning,
	KindMissingIndex:        SeverityWarning,
}

// Severity returns the fixed severity of k.
func (k Kind) Severity() Severity {
	if s, ok := severities[k]; ok {
		return s
	}
	return SeverityWarning
}

// Issue is one classified discrepancy. Only the fields relevant to Kind are set.
type Issue struct {
	Kind     Kind     `json:"kind" yaml:"kind"`
	Severity Severity `json:"severity" yaml:"severity"`
	Message  string   `json:"message" yaml:"message"`

	Model    string   `json:"model,omitempty" yaml:"model,omitempty"`
	Table    string   `json:"table,omitempty" yaml:"table,omitempty"`
	Field    string   `json:"field,omitempty" yaml:"field,omitempty"`
	Column   string   `json:"column,omitempty" yaml:"column,omitempty"`
	Columns  []string `json:"columns,omitempty" yaml:"columns,omitempty"`
	Enum     string   `json:"enum,omitempty" yaml:"enum,omitempty"`
	Value    string   `json:"value,omitempty" yaml:"value,omitempty"`
	Values   []string `json:"values,omitempty" yaml:"values,omitempty"`
	Expected string   `json:"expected,omitempty" yaml:"expected,omitempty"`
	Actual   string   `json:"actual,omitempty" yaml:"actual,omitempty"`
	// Hint carries the @db native type hint of the declared field.
	Hint     string `json:"hint,omitempty" yaml:"hint,omitempty"`
	Function string `json:"function,omitempty" yaml:"function,omitempty"`
	Count    int    `json:"count,omitempty" yaml:"count,omitempty"`
}

func newIssue(kind Kind, msg string) Issue {
	return Issue{Kind: kind, Severity: kind.Severity(), Message: msg}
}
