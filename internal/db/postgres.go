package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
)

// PostgresClient manages a connection pool to PostgreSQL
type PostgresClient struct {
	pool *pgxpool.Pool
}

// NewPostgresClient creates a new PostgreSQL client. The pool is pinged once,
// so an unreachable server fails here instead of on the first catalog query.
func NewPostgresClient(ctx context.Context, connString string) (*PostgresClient, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, &IntrospectionError{Query: "connect", Err: fmt.Errorf("failed to connect to database: %w", err)}
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, &IntrospectionError{Query: "connect", Err: fmt.Errorf("failed to ping database: %w", err)}
	}

	return &PostgresClient{pool: pool}, nil
}

// Query implements Querier.
func (c *PostgresClient) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	rows, err := c.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Close closes every pooled connection
func (c *PostgresClient) Close() {
	c.pool.Close()
}

// Pool returns the underlying pool
func (c *PostgresClient) Pool() *pgxpool.Pool {
	return c.pool
}

// OpenDB opens a database/sql handle backed by the pgx driver.
func OpenDB(ctx context.Context, connString string) (*sql.DB, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, &IntrospectionError{Query: "connect", Err: fmt.Errorf("failed to open database: %w", err)}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, &IntrospectionError{Query: "connect", Err: fmt.Errorf("failed to ping database: %w", err)}
	}
	return db, nil
}
