package db

import (
	"context"
	"database/sql"
)

// Querier runs read-only catalog queries. Implementations must be safe for
// concurrent use: the introspector issues its queries in parallel.
type Querier interface {
	Query(ctx context.Context, query string, args ...any) (Rows, error)
}

// Rows is the subset of pgx.Rows and *sql.Rows the introspector needs.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// SQLQuerier adapts a *sql.DB to Querier.
type SQLQuerier struct {
	db *sql.DB
}

// NewSQLQuerier wraps db.
func NewSQLQuerier(db *sql.DB) *SQLQuerier {
	return &SQLQuerier{db: db}
}

// Query implements Querier.
func (q *SQLQuerier) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return sqlRows{rows}, nil
}

type sqlRows struct {
	rows *sql.Rows
}

func (r sqlRows) Next() bool             { return r.rows.Next() }
func (r sqlRows) Scan(dest ...any) error { return r.rows.Scan(dest...) }
func (r sqlRows) Err() error             { return r.rows.Err() }
func (r sqlRows) Close()                 { _ = r.rows.Close() }
