package reconcile

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/tordrt/schemadrift/internal/definition"
	"github.com/tordrt/schemadrift/internal/schema"
	"github.com/tordrt/schemadrift/internal/typemap"
)

// DefaultSystemPrefix marks columns owned by tooling rather than the model.
const DefaultSystemPrefix = "_"

// Options tunes which catalog objects are tolerated without a declaration.
type Options struct {
	// SystemColumns are column names never reported as ExtraColumn.
	SystemColumns []string
	// SystemPrefix exempts every column starting with it from ExtraColumn.
	SystemPrefix string
}

// Reconcile returns the ordered issue list for s against snap: tables, then
// per-table columns and indexes in declaration order, then enums, then
// routines. The result only depends on its inputs.
func Reconcile(s *definition.Schema, snap *schema.Snapshot, opts Options) []Issue {
	if opts.SystemPrefix == "" {
		opts.SystemPrefix = DefaultSystemPrefix
	}
	r := &reconciler{def: s, snap: snap, opts: opts}

	r.checkTables()
	for _, m := range s.Models {
		if snap.HasTable(m.TableName) {
			r.checkColumns(m)
			r.checkIndexes(m)
		}
	}
	r.checkEnums()
	r.checkRoutines()

	return r.issues
}

type reconciler struct {
	def    *definition.Schema
	snap   *schema.Snapshot
	opts   Options
	issues []Issue
}

func (r *reconciler) add(i Issue) {
	r.issues = append(r.issues, i)
}

func (r *reconciler) checkTables() {
	for _, table := range r.snap.Tables {
		if _, ok := r.def.ModelByTable(table); ok {
			continue
		}
		i := newIssue(KindExtraTable, fmt.Sprintf("Table '%s' exists in database but not in schema", table))
		i.Table = table
		r.add(i)
	}

	for _, m := range r.def.Models {
		if r.snap.HasTable(m.TableName) {
			continue
		}
		i := newIssue(KindMissingTable, fmt.Sprintf("Table '%s' is defined in schema but missing in database", m.TableName))
		i.Model = m.Name
		i.Table = m.TableName
		r.add(i)
	}
}

func (r *reconciler) checkColumns(m *definition.ModelDefinition) {
	fields := m.ScalarFields()
	columns := r.snap.Columns[m.TableName]

	for _, col := range columns {
		if r.systemColumn(col.Name) || matchesAny(fields, col.Name) {
			continue
		}
		i := newIssue(KindExtraColumn, fmt.Sprintf("Column '%s' exists in table '%s' but not in model '%s'", col.Name, m.TableName, m.Name))
		i.Model = m.Name
		i.Table = m.TableName
		i.Column = col.Name
		r.add(i)
	}

	for _, f := range fields {
		col, ok := r.lookupColumn(m.TableName, f)
		if !ok {
			i := newIssue(KindMissingColumn, fmt.Sprintf("Column '%s' is defined in model '%s' but missing in table '%s'", f.ColumnName, m.Name, m.TableName))
			i.Model = m.Name
			i.Table = m.TableName
			i.Field = f.Name
			i.Column = f.ColumnName
			i.Expected = f.TypeString()
			i.Hint = f.DBTypeHint
			if e, ok := r.def.Enum(f.DeclaredType); ok {
				i.Enum = e.DBName
			}
			r.add(i)
			continue
		}
		r.checkType(m, f, col)
		r.checkNullability(m, f, col)
	}
}

// lookupColumn finds the catalog column of f by resolved column name, then
// by raw field name for columns created without a naming convention.
func (r *reconciler) lookupColumn(table string, f *definition.FieldDefinition) (schema.ColumnInfo, bool) {
	if col, ok := r.snap.Column(table, f.ColumnName); ok {
		return col, true
	}
	return r.snap.Column(table, f.Name)
}

func matchesAny(fields []*definition.FieldDefinition, column string) bool {
	for _, f := range fields {
		if f.ColumnName == column || f.Name == column {
			return true
		}
	}
	return false
}

func (r *reconciler) systemColumn(name string) bool {
	return strings.HasPrefix(name, r.opts.SystemPrefix) || slices.Contains(r.opts.SystemColumns, name)
}

// checkType compares a logical field type with the catalog type. Enum and
// unknown types are not checked. Array fields compare against the element
// type of an ARRAY column.
func (r *reconciler) checkType(m *definition.ModelDefinition, f *definition.FieldDefinition, col schema.ColumnInfo) {
	lt, ok := typemap.Parse(f.DeclaredType)
	if !ok {
		return
	}

	isArray := col.DataType == "ARRAY"
	native := col.DataType
	if isArray {
		native = col.ElementType()
	}

	if f.IsArray == isArray && typemap.Compatible(lt, native, f.DBTypeHint) {
		return
	}

	actual := col.DataType
	if isArray {
		actual = native + "[]"
	}
	i := newIssue(KindTypeMismatch, fmt.Sprintf("Type mismatch for '%s' in '%s': expected %s but found %s", f.Name, m.Name, f.TypeString(), actual))
	i.Model = m.Name
	i.Table = m.TableName
	i.Field = f.Name
	i.Column = col.Name
	i.Expected = f.TypeString()
	i.Actual = actual
	i.Hint = f.DBTypeHint
	r.add(i)
}

// checkNullability flags optionality drift. A default or a primary key makes
// a required field legitimately backed by a nullable or defaulted column.
func (r *reconciler) checkNullability(m *definition.ModelDefinition, f *definition.FieldDefinition, col schema.ColumnInfo) {
	if f.IsOptional == col.IsNullable || f.HasDefault || f.IsPrimaryKey {
		return
	}
	i := newIssue(KindNullabilityMismatch, fmt.Sprintf("Nullability mismatch for '%s' in '%s'", f.Name, m.Name))
	i.Model = m.Name
	i.Table = m.TableName
	i.Field = f.Name
	i.Column = col.Name
	i.Expected = nullability(f.IsOptional)
	i.Actual = nullability(col.IsNullable)
	r.add(i)
}

func nullability(nullable bool) string {
	if nullable {
		return "nullable"
	}
	return "not null"
}

// checkIndexes reports every @@index whose column list matches no catalog
// index on the table.
func (r *reconciler) checkIndexes(m *definition.ModelDefinition) {
	existing := r.snap.Indexes[m.TableName]
	for _, fields := range m.Indexes {
		cols := make([]string, len(fields))
		for n, name := range fields {
			if f, ok := m.Field(name); ok {
				cols[n] = f.ColumnName
			} else {
				cols[n] = definition.DeriveName(name)
			}
		}

		found := slices.ContainsFunc(existing, func(idx schema.IndexInfo) bool {
			return slices.Equal(idx.Columns, cols)
		})
		if found {
			continue
		}
		i := newIssue(KindMissingIndex, fmt.Sprintf("Index on (%s) is defined in model '%s' but missing in table '%s'", strings.Join(cols, ", "), m.Name, m.TableName))
		i.Model = m.Name
		i.Table = m.TableName
		i.Columns = cols
		r.add(i)
	}
}

func (r *reconciler) checkEnums() {
	declared := make(map[string]bool, len(r.def.Enums))
	for _, e := range r.def.Enums {
		declared[e.DBName] = true
	}

	for _, name := range r.snap.EnumNames() {
		if declared[name] {
			continue
		}
		i := newIssue(KindExtraEnum, fmt.Sprintf("Enum '%s' exists in database but not in schema", name))
		i.Enum = name
		i.Values = r.snap.Enums[name]
		r.add(i)
	}

	for _, e := range r.def.Enums {
		values, ok := r.snap.Enums[e.DBName]
		if !ok {
			i := newIssue(KindMissingEnum, fmt.Sprintf("Enum '%s' is defined in schema but missing in database", e.Name))
			i.Enum = e.DBName
			i.Values = e.Values
			r.add(i)
			continue
		}
		for _, v := range e.Values {
			if slices.Contains(values, v) {
				continue
			}
			i := newIssue(KindMissingEnumValue, fmt.Sprintf("Enum value '%s' is defined in '%s' but missing in database", v, e.Name))
			i.Enum = e.DBName
			i.Value = v
			r.add(i)
		}
	}
}

func (r *reconciler) checkRoutines() {
	counts := r.snap.RoutineCounts()
	names := make([]string, 0, len(counts))
	for name, n := range counts {
		if n > 1 {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		i := newIssue(KindDuplicateRoutine, fmt.Sprintf("Function '%s' has %d duplicates", name, counts[name]))
		i.Function = name
		i.Count = counts[name]
		r.add(i)
	}
}
