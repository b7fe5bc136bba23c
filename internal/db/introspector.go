package db

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tordrt/schemadrift/internal/schema"
)

// Defaults applied by NewIntrospector to zero-valued Options.
const (
	DefaultSchema         = "public"
	DefaultQueryTimeout   = 10 * time.Second
	DefaultInternalPrefix = "_"
)

// Options configures an Introspector.
type Options struct {
	Schema  string
	Timeout time.Duration
	// InternalPrefix marks migration-tool bookkeeping tables, e.g.
	// _prisma_migrations. They never appear in a Snapshot.
	InternalPrefix string
	ExcludeTables  []string
	Logger         *slog.Logger
}

// Introspector builds catalog snapshots
type Introspector struct {
	q      Querier
	opts   Options
	logger *slog.Logger
}

// NewIntrospector creates a new catalog introspector
func NewIntrospector(q Querier, opts Options) *Introspector {
	if opts.Schema == "" {
		opts.Schema = DefaultSchema
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultQueryTimeout
	}
	if opts.InternalPrefix == "" {
		opts.InternalPrefix = DefaultInternalPrefix
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Introspector{q: q, opts: opts, logger: logger}
}

const (
	tablesQuery = `
		SELECT table_name::text
		FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`

	columnsQuery = `
		SELECT
			c.table_name::text,
			c.column_name::text,
			c.data_type::text,
			c.udt_name::text,
			c.is_nullable::text,
			c.column_default::text
		FROM information_schema.columns c
		WHERE c.table_schema = $1
		ORDER BY c.table_name, c.ordinal_position
	`

	enumsQuery = `
		SELECT t.typname::text, e.enumlabel::text
		FROM pg_type t
		JOIN pg_enum e ON t.oid = e.enumtypid
		JOIN pg_namespace n ON t.typnamespace = n.oid
		WHERE n.nspname = $1
		ORDER BY t.typname, e.enumsortorder
	`

	routinesQuery = `
		SELECT routine_name::text, COALESCE(routine_type, 'FUNCTION')::text
		FROM information_schema.routines
		WHERE routine_schema = $1
		ORDER BY routine_name
	`

	indexesQuery = `
		SELECT
			t.relname::text AS table_name,
			i.relname::text AS index_name,
			ix.indisunique,
			ix.indisprimary,
			string_agg(a.attname::text, ',' ORDER BY array_position(ix.indkey::int2[], a.attnum)) AS column_names
		FROM pg_class t
		JOIN pg_index ix ON t.oid = ix.indrelid
		JOIN pg_class i ON i.oid = ix.indexrelid
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
		JOIN pg_namespace n ON n.oid = t.relnamespace
		WHERE t.relkind = 'r' AND n.nspname = $1
		GROUP BY t.relname, i.relname, ix.indisunique, ix.indisprimary
		ORDER BY t.relname, i.relname
	`
)

// Snapshot queries the catalog. The five catalog queries run concurrently
// under one timeout; any failure aborts the whole snapshot with an
// *IntrospectionError.
func (i *Introspector) Snapshot(ctx context.Context) (*schema.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, i.opts.Timeout)
	defer cancel()

	var (
		tables   []string
		columns  map[string][]schema.ColumnInfo
		enums    map[string][]string
		routines []schema.RoutineInfo
		indexes  map[string][]schema.IndexInfo
	)

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		tables, err = i.tables(gctx)
		return wrap("tables", err)
	})
	g.Go(func() (err error) {
		columns, err = i.columns(gctx)
		return wrap("columns", err)
	})
	g.Go(func() (err error) {
		enums, err = i.enums(gctx)
		return wrap("enums", err)
	})
	g.Go(func() (err error) {
		routines, err = i.routines(gctx)
		return wrap("routines", err)
	})
	g.Go(func() (err error) {
		indexes, err = i.indexes(gctx)
		return wrap("indexes", err)
	})
	if err := g.Wait(); err != nil {
		i.logger.Debug("catalog introspection failed", "schema", i.opts.Schema, "error", err)
		return nil, err
	}

	snap := schema.NewSnapshot()
	for _, t := range tables {
		if i.excluded(t) {
			continue
		}
		snap.Tables = append(snap.Tables, t)
		if cols, ok := columns[t]; ok {
			snap.Columns[t] = cols
		}
		if idx, ok := indexes[t]; ok {
			snap.Indexes[t] = idx
		}
	}
	slices.Sort(snap.Tables)
	snap.Enums = enums
	snap.Routines = routines

	i.logger.Debug("catalog introspected",
		"schema", i.opts.Schema,
		"tables", len(snap.Tables),
		"enums", len(snap.Enums),
		"routines", len(snap.Routines),
		"duration", time.Since(start),
	)
	return snap, nil
}

func (i *Introspector) excluded(table string) bool {
	if strings.HasPrefix(table, i.opts.InternalPrefix) {
		return true
	}
	return slices.Contains(i.opts.ExcludeTables, table)
}

func wrap(query string, err error) error {
	if err == nil {
		return nil
	}
	return &IntrospectionError{Query: query, Err: err}
}

func (i *Introspector) tables(ctx context.Context) ([]string, error) {
	rows, err := i.q.Query(ctx, tablesQuery, i.opts.Schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// columns fetches every column of the schema in one query and groups them by
// table, keeping ordinal order within each table.
func (i *Introspector) columns(ctx context.Context) (map[string][]schema.ColumnInfo, error) {
	rows, err := i.q.Query(ctx, columnsQuery, i.opts.Schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string][]schema.ColumnInfo)
	for rows.Next() {
		var (
			table    string
			col      schema.ColumnInfo
			nullable string
		)
		if err := rows.Scan(&table, &col.Name, &col.DataType, &col.UDTName, &nullable, &col.Default); err != nil {
			return nil, err
		}
		col.IsNullable = nullable == "YES"
		result[table] = append(result[table], col)
	}
	return result, rows.Err()
}

func (i *Introspector) enums(ctx context.Context) (map[string][]string, error) {
	rows, err := i.q.Query(ctx, enumsQuery, i.opts.Schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string][]string)
	for rows.Next() {
		var typName, label string
		if err := rows.Scan(&typName, &label); err != nil {
			return nil, err
		}
		result[typName] = append(result[typName], label)
	}
	return result, rows.Err()
}

func (i *Introspector) routines(ctx context.Context) ([]schema.RoutineInfo, error) {
	rows, err := i.q.Query(ctx, routinesQuery, i.opts.Schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var routines []schema.RoutineInfo
	for rows.Next() {
		var r schema.RoutineInfo
		if err := rows.Scan(&r.Name, &r.Kind); err != nil {
			return nil, err
		}
		routines = append(routines, r)
	}
	return routines, rows.Err()
}

func (i *Introspector) indexes(ctx context.Context) (map[string][]schema.IndexInfo, error) {
	rows, err := i.q.Query(ctx, indexesQuery, i.opts.Schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string][]schema.IndexInfo)
	for rows.Next() {
		var (
			table string
			cols  string
			idx   schema.IndexInfo
		)
		if err := rows.Scan(&table, &idx.Name, &idx.IsUnique, &idx.IsPrimary, &cols); err != nil {
			return nil, err
		}
		idx.Columns = strings.Split(cols, ",")
		result[table] = append(result[table], idx)
	}
	return result, rows.Err()
}
