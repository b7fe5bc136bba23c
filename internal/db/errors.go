package db

import (
	"errors"
	"fmt"
)

// ErrCatalogUnreachable matches every IntrospectionError with errors.Is.
var ErrCatalogUnreachable = errors.New("catalog unreachable")

// IntrospectionError reports a failed catalog query or connection attempt.
// No partial snapshot accompanies it.
type IntrospectionError struct {
	// Query names the failed step: connect, tables, columns, enums, routines
	// or indexes.
	Query string
	Err   error
}

func (e *IntrospectionError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrCatalogUnreachable, e.Query, e.Err)
}

func (e *IntrospectionError) Unwrap() []error {
	return []error{ErrCatalogUnreachable, e.Err}
}
