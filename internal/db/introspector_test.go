package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/schemadrift/internal/schema"
	"github.com/tordrt/schemadrift/internal/testutil"
)

func newMock(t *testing.T) (*SQLQuerier, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.MatchExpectationsInOrder(false)
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLQuerier(db), mock
}

func expectTables(mock sqlmock.Sqlmock, names ...string) *sqlmock.ExpectedQuery {
	rows := sqlmock.NewRows([]string{"table_name"})
	for _, n := range names {
		rows.AddRow(n)
	}
	return mock.ExpectQuery(`FROM information_schema\.tables`).WithArgs("public").WillReturnRows(rows)
}

func expectColumns(mock sqlmock.Sqlmock) *sqlmock.ExpectedQuery {
	rows := sqlmock.NewRows([]string{"table_name", "column_name", "data_type", "udt_name", "is_nullable", "column_default"}).
		AddRow("_prisma_migrations", "id", "character varying", "varchar", "NO", nil).
		AddRow("audit_log", "id", "integer", "int4", "NO", nil).
		AddRow("cot_session", "id", "uuid", "uuid", "NO", "gen_random_uuid()").
		AddRow("cot_session", "status", "USER-DEFINED", "session_status", "NO", nil).
		AddRow("cot_session", "tags", "ARRAY", "_text", "YES", nil).
		AddRow("users", "id", "text", "text", "NO", nil).
		AddRow("users", "name", "text", "text", "YES", nil).
		AddRow("v_stats", "total", "bigint", "int8", "YES", nil)
	return mock.ExpectQuery(`FROM information_schema\.columns`).WithArgs("public").WillReturnRows(rows)
}

func expectEnums(mock sqlmock.Sqlmock) *sqlmock.ExpectedQuery {
	rows := sqlmock.NewRows([]string{"typname", "enumlabel"}).
		AddRow("role", "ADMIN").
		AddRow("role", "USER").
		AddRow("session_status", "PENDING")
	return mock.ExpectQuery(`JOIN pg_enum`).WithArgs("public").WillReturnRows(rows)
}

func expectRoutines(mock sqlmock.Sqlmock) *sqlmock.ExpectedQuery {
	rows := sqlmock.NewRows([]string{"routine_name", "routine_type"}).
		AddRow("touch_updated_at", "FUNCTION").
		AddRow("touch_updated_at", "FUNCTION").
		AddRow("rebuild_stats", "PROCEDURE")
	return mock.ExpectQuery(`FROM information_schema\.routines`).WithArgs("public").WillReturnRows(rows)
}

func expectIndexes(mock sqlmock.Sqlmock) *sqlmock.ExpectedQuery {
	rows := sqlmock.NewRows([]string{"table_name", "index_name", "indisunique", "indisprimary", "column_names"}).
		AddRow("audit_log", "audit_log_pkey", true, true, "id").
		AddRow("cot_session", "cot_session_user_id_updated_at_idx", false, false, "user_id,updated_at").
		AddRow("users", "users_pkey", true, true, "id")
	return mock.ExpectQuery(`JOIN pg_index`).WithArgs("public").WillReturnRows(rows)
}

func TestIntrospector_Snapshot(t *testing.T) {
	q, mock := newMock(t)
	expectTables(mock, "_prisma_migrations", "audit_log", "cot_session", "users")
	expectColumns(mock)
	expectEnums(mock)
	expectRoutines(mock)
	expectIndexes(mock)

	in := NewIntrospector(q, Options{
		ExcludeTables: []string{"audit_log"},
		Logger:        testutil.NewTestLogger(t),
	})
	snap, err := in.Snapshot(context.Background())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, []string{"cot_session", "users"}, snap.Tables)
	assert.True(t, snap.HasTable("users"))
	assert.False(t, snap.HasTable("_prisma_migrations"))
	assert.False(t, snap.HasTable("audit_log"))

	assert.Len(t, snap.Columns, 2, "columns of excluded tables and views are dropped")
	require.Len(t, snap.Columns["cot_session"], 3)
	assert.Equal(t, []string{"id", "status", "tags"}, columnNames(snap.Columns["cot_session"]))

	id, ok := snap.Column("cot_session", "id")
	require.True(t, ok)
	require.NotNil(t, id.Default)
	assert.Equal(t, "gen_random_uuid()", *id.Default)
	assert.False(t, id.IsNullable)

	tags, _ := snap.Column("cot_session", "tags")
	assert.True(t, tags.IsNullable)
	assert.Nil(t, tags.Default)
	assert.Equal(t, "text", tags.ElementType())

	assert.Equal(t, map[string][]string{
		"role":           {"ADMIN", "USER"},
		"session_status": {"PENDING"},
	}, snap.Enums)
	assert.Equal(t, []string{"role", "session_status"}, snap.EnumNames())

	assert.Equal(t, map[string]int{"touch_updated_at": 2, "rebuild_stats": 1}, snap.RoutineCounts())

	assert.NotContains(t, snap.Indexes, "audit_log")
	assert.Equal(t, []schema.IndexInfo{{
		Name:    "cot_session_user_id_updated_at_idx",
		Columns: []string{"user_id", "updated_at"},
	}}, snap.Indexes["cot_session"])
}

func TestIntrospector_EmptyCatalog(t *testing.T) {
	q, mock := newMock(t)
	expectTables(mock)
	mock.ExpectQuery(`FROM information_schema\.columns`).WillReturnRows(sqlmock.NewRows([]string{"a", "b", "c", "d", "e", "f"}))
	mock.ExpectQuery(`JOIN pg_enum`).WillReturnRows(sqlmock.NewRows([]string{"a", "b"}))
	mock.ExpectQuery(`FROM information_schema\.routines`).WillReturnRows(sqlmock.NewRows([]string{"a", "b"}))
	mock.ExpectQuery(`JOIN pg_index`).WillReturnRows(sqlmock.NewRows([]string{"a", "b", "c", "d", "e"}))

	snap, err := NewIntrospector(q, Options{}).Snapshot(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Tables)
	assert.Empty(t, snap.Enums)
	assert.Empty(t, snap.Routines)
}

func TestIntrospector_QueryFailure(t *testing.T) {
	tests := []struct {
		name      string
		failQuery string
		setup     func(mock sqlmock.Sqlmock)
	}{
		{
			name:      "enums",
			failQuery: "enums",
			setup: func(mock sqlmock.Sqlmock) {
				expectTables(mock, "users")
				expectColumns(mock)
				mock.ExpectQuery(`JOIN pg_enum`).WillReturnError(errors.New("permission denied for pg_enum"))
				expectRoutines(mock)
				expectIndexes(mock)
			},
		},
		{
			name:      "tables",
			failQuery: "tables",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`FROM information_schema\.tables`).WillReturnError(errors.New("connection reset by peer"))
				expectColumns(mock)
				expectEnums(mock)
				expectRoutines(mock)
				expectIndexes(mock)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, mock := newMock(t)
			tt.setup(mock)

			snap, err := NewIntrospector(q, Options{}).Snapshot(context.Background())
			require.Error(t, err)
			assert.Nil(t, snap)
			assert.True(t, errors.Is(err, ErrCatalogUnreachable))

			var ie *IntrospectionError
			require.True(t, errors.As(err, &ie))
			assert.Equal(t, tt.failQuery, ie.Query)
		})
	}
}

func TestIntrospector_Timeout(t *testing.T) {
	q, mock := newMock(t)
	expectTables(mock, "users").WillDelayFor(time.Second)
	expectColumns(mock)
	expectEnums(mock)
	expectRoutines(mock)
	expectIndexes(mock)

	_, err := NewIntrospector(q, Options{Timeout: 20 * time.Millisecond}).Snapshot(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCatalogUnreachable))
}

func TestNewIntrospector_Defaults(t *testing.T) {
	in := NewIntrospector(nil, Options{})
	assert.Equal(t, DefaultSchema, in.opts.Schema)
	assert.Equal(t, DefaultQueryTimeout, in.opts.Timeout)
	assert.Equal(t, DefaultInternalPrefix, in.opts.InternalPrefix)
	assert.NotNil(t, in.logger)

	in = NewIntrospector(nil, Options{Schema: "app", Timeout: time.Second, InternalPrefix: "pg_"})
	assert.Equal(t, "app", in.opts.Schema)
	assert.Equal(t, time.Second, in.opts.Timeout)
	assert.True(t, in.excluded("pg_stat"))
	assert.False(t, in.excluded("_prisma_migrations"))
}

func TestIntrospectionError(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := error(&IntrospectionError{Query: "connect", Err: cause})

	assert.True(t, errors.Is(err, ErrCatalogUnreachable))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "catalog unreachable: connect: dial tcp: connection refused", err.Error())
}

func columnNames(cols []schema.ColumnInfo) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}
