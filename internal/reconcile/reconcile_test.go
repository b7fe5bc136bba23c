package reconcile

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/schemadrift/internal/definition"
	"github.com/tordrt/schemadrift/internal/schema"
	"github.com/tordrt/schemadrift/internal/typemap"
)

func parse(t *testing.T, src string, opts ...definition.Option) *definition.Schema {
	t.Helper()
	s, err := definition.Parse(src, opts...)
	require.NoError(t, err)
	return s
}

func col(name, dataType string, nullable bool) schema.ColumnInfo {
	return schema.ColumnInfo{Name: name, DataType: dataType, UDTName: dataType, IsNullable: nullable}
}

func arrayCol(name, udt string, nullable bool) schema.ColumnInfo {
	return schema.ColumnInfo{Name: name, DataType: "ARRAY", UDTName: "_" + udt, IsNullable: nullable}
}

func snapshot(tables map[string][]schema.ColumnInfo) *schema.Snapshot {
	snap := schema.NewSnapshot()
	for name, cols := range tables {
		snap.Tables = append(snap.Tables, name)
		snap.Columns[name] = cols
	}
	sort.Strings(snap.Tables)
	return snap
}

func kinds(issues []Issue) []Kind {
	out := make([]Kind, len(issues))
	for i, is := range issues {
		out[i] = is.Kind
	}
	return out
}

var usersTable = definition.WithNaming(definition.Naming{TableOverrides: map[string]string{"User": "users"}})

const userModel = `model User { id String @id, email String @unique, name String? }`

func TestReconcile_ScenarioA_NoDrift(t *testing.T) {
	s := parse(t, userModel, usersTable)
	snap := snapshot(map[string][]schema.ColumnInfo{
		"users": {col("id", "text", false), col("email", "text", false), col("name", "text", true)},
	})

	assert.Empty(t, Reconcile(s, snap, Options{}))
}

func TestReconcile_ScenarioB_MissingColumn(t *testing.T) {
	s := parse(t, userModel, usersTable)
	snap := snapshot(map[string][]schema.ColumnInfo{
		"users": {col("id", "text", false), col("name", "text", true)},
	})

	issues := Reconcile(s, snap, Options{})
	require.Len(t, issues, 1)
	assert.Equal(t, KindMissingColumn, issues[0].Kind)
	assert.Equal(t, SeverityError, issues[0].Severity)
	assert.Equal(t, "email", issues[0].Field)
	assert.Equal(t, "email", issues[0].Column)
	assert.Equal(t, "users", issues[0].Table)
	assert.Equal(t, "String", issues[0].Expected)
}

func TestReconcile_ScenarioC_MissingEnumValue(t *testing.T) {
	s := parse(t, `enum Role { ADMIN USER }`)
	snap := snapshot(nil)
	snap.Enums["role"] = []string{"ADMIN"}

	issues := Reconcile(s, snap, Options{})
	require.Len(t, issues, 1)
	assert.Equal(t, KindMissingEnumValue, issues[0].Kind)
	assert.Equal(t, SeverityError, issues[0].Severity)
	assert.Equal(t, "role", issues[0].Enum)
	assert.Equal(t, "USER", issues[0].Value)
}

func TestReconcile_ScenarioD_DuplicateRoutine(t *testing.T) {
	s := parse(t, ``)
	snap := snapshot(nil)
	snap.Routines = []schema.RoutineInfo{
		{Name: "update_timestamp", Kind: "FUNCTION"},
		{Name: "refresh_stats", Kind: "PROCEDURE"},
		{Name: "update_timestamp", Kind: "FUNCTION"},
	}

	issues := Reconcile(s, snap, Options{})
	require.Len(t, issues, 1)
	assert.Equal(t, KindDuplicateRoutine, issues[0].Kind)
	assert.Equal(t, SeverityWarning, issues[0].Severity)
	assert.Equal(t, "update_timestamp", issues[0].Function)
	assert.Equal(t, 2, issues[0].Count)
}

func TestReconcile_ScenarioE_MissingTableShortCircuits(t *testing.T) {
	s := parse(t, `
model CotSession {
  id        String   @id
  userId    String
  createdAt DateTime @default(now())

  @@index([userId])
  @@map("cot_sessions")
}
`)
	issues := Reconcile(s, snapshot(nil), Options{})
	require.Len(t, issues, 1)
	assert.Equal(t, KindMissingTable, issues[0].Kind)
	assert.Equal(t, "cot_sessions", issues[0].Table)
	assert.Equal(t, "CotSession", issues[0].Model)
}

func TestReconcile_Idempotent(t *testing.T) {
	s := parse(t, `
model User {
  id    String @id
  email Int
  tags  String[]
}
enum Role { ADMIN USER }
enum Kind { A }
`)
	snap := snapshot(map[string][]schema.ColumnInfo{
		"user":  {col("id", "text", false), col("email", "text", true), col("legacy", "text", true)},
		"zeta":  nil,
		"alpha": nil,
	})
	snap.Enums["role"] = []string{"USER"}
	snap.Enums["mood"] = []string{"HAPPY"}
	snap.Routines = []schema.RoutineInfo{{Name: "b"}, {Name: "a"}, {Name: "b"}, {Name: "a"}}

	first := Reconcile(s, snap, Options{})
	second := Reconcile(s, snap, Options{})
	require.NotEmpty(t, first)
	assert.Equal(t, first, second)
}

func TestReconcile_Ordering(t *testing.T) {
	s := parse(t, `
model User {
  id     String @id
  email  String
  role   Role
  posts  Post[]
  nick   String?
  @@index([email])
  @@map("users")
}

model Post {
  id Int @id
}

enum Role { ADMIN USER }
enum Status { OPEN }
`)
	snap := snapshot(map[string][]schema.ColumnInfo{
		"users":     {col("id", "text", false), col("legacy", "text", true), col("email", "integer", false)},
		"zeta":      nil,
		"audit_log": nil,
	})
	snap.Enums["role"] = []string{"ADMIN"}
	snap.Enums["old_kind"] = []string{"X"}
	snap.Routines = []schema.RoutineInfo{{Name: "z_fn"}, {Name: "a_fn"}, {Name: "z_fn"}, {Name: "a_fn"}}

	issues := Reconcile(s, snap, Options{})
	assert.Equal(t, []Kind{
		KindExtraTable,   // audit_log
		KindExtraTable,   // zeta
		KindMissingTable, // post
		KindExtraColumn,  // users.legacy
		KindTypeMismatch, // email
		KindMissingColumn,
		KindMissingColumn,
		KindMissingIndex,
		KindExtraEnum,
		KindMissingEnumValue,
		KindMissingEnum,
		KindDuplicateRoutine,
		KindDuplicateRoutine,
	}, kinds(issues))

	assert.Equal(t, "audit_log", issues[0].Table)
	assert.Equal(t, "zeta", issues[1].Table)
	assert.Equal(t, "post", issues[2].Table)
	assert.Equal(t, "legacy", issues[3].Column)
	assert.Equal(t, "role", issues[5].Field)
	assert.Equal(t, "role", issues[5].Enum, "enum-typed missing column carries the enum type")
	assert.Equal(t, "nick", issues[6].Field)
	assert.Equal(t, []string{"email"}, issues[7].Columns)
	assert.Equal(t, "old_kind", issues[8].Enum)
	assert.Equal(t, []string{"X"}, issues[8].Values)
	assert.Equal(t, "USER", issues[9].Value)
	assert.Equal(t, "status", issues[10].Enum)
	assert.Equal(t, []string{"OPEN"}, issues[10].Values)
	assert.Equal(t, "a_fn", issues[11].Function)
	assert.Equal(t, "z_fn", issues[12].Function)
}

func TestReconcile_Nullability(t *testing.T) {
	tests := []struct {
		name     string
		field    string
		nullable bool
		want     bool
	}{
		{name: "required vs not null", field: "status String", nullable: false},
		{name: "optional vs nullable", field: "status String?", nullable: true},
		{name: "required vs nullable", field: "status String", nullable: true, want: true},
		{name: "optional vs not null", field: "status String?", nullable: false, want: true},
		{name: "default suppresses", field: `status String @default("new")`, nullable: true},
		{name: "primary key suppresses", field: "status String @id", nullable: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := parse(t, "model Job {\n"+tt.field+"\n}")
			snap := snapshot(map[string][]schema.ColumnInfo{"job": {col("status", "text", tt.nullable)}})

			issues := Reconcile(s, snap, Options{})
			if !tt.want {
				assert.Empty(t, issues)
				return
			}
			require.Len(t, issues, 1)
			assert.Equal(t, KindNullabilityMismatch, issues[0].Kind)
			assert.Equal(t, SeverityWarning, issues[0].Severity)
		})
	}
}

func TestReconcile_TypeRoundTrip(t *testing.T) {
	for _, lt := range typemap.All {
		for _, native := range typemap.Accepted(lt) {
			t.Run(string(lt)+"/"+native, func(t *testing.T) {
				s := parse(t, "model T {\n v "+string(lt)+"\n}")
				snap := snapshot(map[string][]schema.ColumnInfo{"t": {col("v", native, false)}})
				assert.Empty(t, Reconcile(s, snap, Options{}))
			})
		}
	}

	foreign := []struct {
		lt     typemap.LogicalType
		native string
	}{
		{typemap.String, "uuid"},
		{typemap.Int, "bigint"},
		{typemap.Boolean, "integer"},
		{typemap.DateTime, "date"},
		{typemap.Json, "text"},
		{typemap.Bytes, "text"},
	}
	for _, tt := range foreign {
		t.Run(string(tt.lt)+"/"+tt.native+"/mismatch", func(t *testing.T) {
			s := parse(t, "model T {\n v "+string(tt.lt)+"\n}")
			snap := snapshot(map[string][]schema.ColumnInfo{"t": {col("v", tt.native, false)}})
			issues := Reconcile(s, snap, Options{})
			require.Len(t, issues, 1)
			assert.Equal(t, KindTypeMismatch, issues[0].Kind)
			assert.Equal(t, string(tt.lt), issues[0].Expected)
			assert.Equal(t, tt.native, issues[0].Actual)
		})
	}
}

func TestReconcile_TypeChecks(t *testing.T) {
	tests := []struct {
		name     string
		field    string
		column   schema.ColumnInfo
		mismatch bool
	}{
		{name: "native hint accepted", field: "v String @db.Uuid", column: col("v", "uuid", false)},
		{name: "array of text", field: "v String[]", column: arrayCol("v", "text", false)},
		{name: "array of int4", field: "v Int[]", column: arrayCol("v", "int4", false)},
		{name: "array element mismatch", field: "v Int[]", column: arrayCol("v", "text", false), mismatch: true},
		{name: "array field on scalar column", field: "v String[]", column: col("v", "text", false), mismatch: true},
		{name: "scalar field on array column", field: "v String", column: arrayCol("v", "text", false), mismatch: true},
		{name: "enum typed field", field: "v Mood", column: col("v", "USER-DEFINED", false)},
		{name: "unsupported", field: `v Unsupported("tsvector")`, column: col("v", "tsvector", false)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := parse(t, "enum Mood { OK }\nmodel T {\n"+tt.field+"\n}")
			snap := snapshot(map[string][]schema.ColumnInfo{"t": {tt.column}})
			snap.Enums["mood"] = []string{"OK"}

			issues := Reconcile(s, snap, Options{})
			if !tt.mismatch {
				assert.Empty(t, issues)
				return
			}
			require.Len(t, issues, 1)
			assert.Equal(t, KindTypeMismatch, issues[0].Kind)
		})
	}
}

func TestReconcile_ColumnMatching(t *testing.T) {
	s := parse(t, `
model Session {
  id        String   @id
  userId    String
  createdAt DateTime @map("created")
  owner     User
}
`)
	snap := snapshot(map[string][]schema.ColumnInfo{
		"session": {
			col("id", "text", false),
			col("userId", "text", false), // raw field name
			col("created", "timestamp without time zone", false),
			col("_peerdb_synced_at", "timestamp without time zone", true),
			col("tenant_id", "text", true),
			col("owner", "text", true),
		},
	})

	issues := Reconcile(s, snap, Options{SystemColumns: []string{"tenant_id"}})
	require.Len(t, issues, 1, "relation fields never match a column")
	assert.Equal(t, KindExtraColumn, issues[0].Kind)
	assert.Equal(t, "owner", issues[0].Column)
}

func TestReconcile_Indexes(t *testing.T) {
	s := parse(t, `
model Task {
  id        Int      @id
  ownerId   Int
  updatedAt DateTime
  @@index([ownerId, updatedAt])
  @@index([updatedAt])
}
`)
	snap := snapshot(map[string][]schema.ColumnInfo{
		"task": {col("id", "integer", false), col("owner_id", "integer", false), col("updated_at", "timestamp", false)},
	})
	snap.Indexes["task"] = []schema.IndexInfo{
		{Name: "task_pkey", Columns: []string{"id"}, IsUnique: true, IsPrimary: true},
		{Name: "task_owner_id_updated_at_idx", Columns: []string{"owner_id", "updated_at"}},
	}

	issues := Reconcile(s, snap, Options{})
	require.Len(t, issues, 1)
	assert.Equal(t, KindMissingIndex, issues[0].Kind)
	assert.Equal(t, []string{"updated_at"}, issues[0].Columns)
}

func TestKind_Severity(t *testing.T) {
	errs := []Kind{KindMissingTable, KindMissingColumn, KindTypeMismatch, KindMissingEnum, KindMissingEnumValue}
	warns := []Kind{KindExtraTable, KindExtraColumn, KindNullabilityMismatch, KindExtraEnum, KindDuplicateRoutine, KindMissingIndex}
	for _, k := range errs {
		assert.Equal(t, SeverityError, k.Severity(), k)
	}
	for _, k := range warns {
		assert.Equal(t, SeverityWarning, k.Severity(), k)
	}
}
