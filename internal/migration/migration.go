// Package migration turns reconciliation issues into reviewable SQL. Nothing
// here executes statements: destructive fixes are always emitted commented out.
package migration

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/tordrt/schemadrift/internal/definition"
	"github.com/tordrt/schemadrift/internal/reconcile"
	"github.com/tordrt/schemadrift/internal/typemap"
)

// Section titles, in output order.
const (
	SectionTables  = "Missing Tables"
	SectionColumns = "Missing Columns"
	SectionTypes   = "Type Fixes"
	SectionIndexes = "Missing Indexes"
	SectionEnums   = "Enum Fixes"
	SectionCleanup = "Cleanup (uncomment to execute)"
)

var sectionOrder = []string{SectionTables, SectionColumns, SectionTypes, SectionIndexes, SectionEnums, SectionCleanup}

// Section is one labelled group of statements.
type Section struct {
	Title      string
	Statements []string
}

// Migration is the generated fix script.
type Migration struct {
	Generated time.Time
	Sections  []Section
	// AddsEnumValues is set when the script contains ALTER TYPE ... ADD VALUE,
	// which must not share a transaction with statements using the new value.
	AddsEnumValues bool
}

// Options configures Generate.
type Options struct {
	// Now defaults to time.Now.
	Now func() time.Time
	// Schema, when set, lets missing tables be created with their full column
	// list instead of a commented stub.
	Schema *definition.Schema
}

// Generate builds the fix script for issues. Issue kinds without a fix
// (e.g. MissingIndex on an unknown table) only contribute what they can.
func Generate(issues []reconcile.Issue, opts Options) *Migration {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	g := &generator{schema: opts.Schema, sections: make(map[string][]string), missingEnums: make(map[string]bool)}
	for _, i := range issues {
		if i.Kind == reconcile.KindMissingEnum {
			g.missingEnums[i.Enum] = true
		}
	}
	for _, i := range issues {
		g.issue(i)
	}

	m := &Migration{Generated: opts.Now().UTC(), AddsEnumValues: g.enumValues}
	for _, title := range sectionOrder {
		if stmts := g.sections[title]; len(stmts) > 0 {
			m.Sections = append(m.Sections, Section{Title: title, Statements: stmts})
		}
	}
	return m
}

// Empty reports whether there is nothing to fix.
func (m *Migration) Empty() bool {
	return len(m.Sections) == 0
}

// Section returns the statements of the titled section.
func (m *Migration) Section(title string) []string {
	for _, s := range m.Sections {
		if s.Title == title {
			return s.Statements
		}
	}
	return nil
}

// String renders the script as plain SQL text.
func (m *Migration) String() string {
	var b strings.Builder
	b.WriteString("-- Database Integrity Fixes\n")
	fmt.Fprintf(&b, "-- Generated: %s\n\n", m.Generated.Format("2006-01-02T15:04:05.000Z07:00"))
	b.WriteString(m.body())
	return b.String()
}

func (m *Migration) body() string {
	if m.Empty() {
		return "-- No fixes required\n"
	}
	var b strings.Builder
	for n, s := range m.Sections {
		if n > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "-- %s\n", s.Title)
		for _, stmt := range s.Statements {
			b.WriteString(stmt)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

type generator struct {
	schema   *definition.Schema
	sections map[string][]string
	// missingEnums holds the enum types created in the Enum Fixes section,
	// which runs after the tables and columns that use them.
	missingEnums map[string]bool
	enumValues   bool
}

func (g *generator) emit(section, stmt string) {
	g.sections[section] = append(g.sections[section], stmt)
}

func (g *generator) issue(i reconcile.Issue) {
	switch i.Kind {
	case reconcile.KindMissingTable:
		g.emit(SectionTables, g.createTable(i))
	case reconcile.KindMissingColumn:
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s;", ident(i.Table), ident(i.Column), columnType(i))
		if g.missingEnums[i.Enum] {
			stmt = requiresEnum(i.Enum) + "\n" + stmt
		}
		g.emit(SectionColumns, stmt)
	case reconcile.KindTypeMismatch:
		g.emit(SectionTypes, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s;", ident(i.Table), ident(i.Column), columnType(i)))
	case reconcile.KindNullabilityMismatch:
		if i.Expected == "nullable" {
			g.emit(SectionTypes, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP NOT NULL;", ident(i.Table), ident(i.Column)))
		} else {
			// Fails while NULL rows exist; backfill first.
			g.emit(SectionTypes, fmt.Sprintf("-- ALTER TABLE %s ALTER COLUMN %s SET NOT NULL;", ident(i.Table), ident(i.Column)))
		}
	case reconcile.KindMissingIndex:
		g.emit(SectionIndexes, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s);",
			ident(indexName(i.Table, i.Columns)), ident(i.Table), identList(i.Columns)))
	case reconcile.KindMissingEnum:
		g.emit(SectionEnums, g.createEnum(i))
	case reconcile.KindMissingEnumValue:
		g.enumValues = true
		g.emit(SectionEnums, fmt.Sprintf("ALTER TYPE %s ADD VALUE IF NOT EXISTS %s;", ident(i.Enum), literal(i.Value)))
	case reconcile.KindExtraTable:
		g.emit(SectionCleanup, fmt.Sprintf("-- DROP TABLE IF EXISTS %s;", ident(i.Table)))
	case reconcile.KindExtraColumn:
		g.emit(SectionCleanup, fmt.Sprintf("-- ALTER TABLE %s DROP COLUMN IF EXISTS %s;", ident(i.Table), ident(i.Column)))
	case reconcile.KindExtraEnum:
		g.emit(SectionCleanup, fmt.Sprintf("-- DROP TYPE IF EXISTS %s;", ident(i.Enum)))
	case reconcile.KindDuplicateRoutine:
		g.emit(SectionCleanup, fmt.Sprintf("-- function %s is defined %d times; drop the stale overloads by signature", ident(i.Function), i.Count))
	}
}

func (g *generator) createTable(i reconcile.Issue) string {
	var m *definition.ModelDefinition
	if g.schema != nil {
		m, _ = g.schema.Model(i.Model)
	}
	if m == nil {
		return fmt.Sprintf("-- CREATE TABLE %s (...);", ident(i.Table))
	}

	var (
		notes   []string
		lines   []string
		pk      []string
		enums   []string
		uniques [][]string
	)
	for _, f := range m.ScalarFields() {
		line := fmt.Sprintf("    %s %s", ident(f.ColumnName), g.fieldType(f))
		if !f.IsOptional {
			line += " NOT NULL"
		}
		if f.Default != "" {
			if def, ok := g.columnDefault(f); ok {
				line += def
			} else {
				notes = append(notes, fmt.Sprintf("-- %s DEFAULT %s is applied by the client", ident(f.ColumnName), f.Default))
			}
		}
		lines = append(lines, line)
		if f.IsPrimaryKey {
			pk = append(pk, f.ColumnName)
		}
		if f.IsUnique {
			uniques = append(uniques, []string{f.ColumnName})
		}
		if e, ok := g.schema.Enum(f.DeclaredType); ok && g.missingEnums[e.DBName] && !slices.Contains(enums, e.DBName) {
			enums = append(enums, e.DBName)
		}
	}
	if len(pk) > 0 {
		lines = append(lines, fmt.Sprintf("    CONSTRAINT %s PRIMARY KEY (%s)", ident(m.TableName+"_pkey"), identList(pk)))
	}
	for _, fields := range m.Uniques {
		cols := make([]string, len(fields))
		for n, name := range fields {
			cols[n] = name
			if f, ok := m.Field(name); ok {
				cols[n] = f.ColumnName
			}
		}
		uniques = append(uniques, cols)
	}
	for _, cols := range uniques {
		name := m.TableName + "_" + strings.Join(cols, "_") + "_key"
		lines = append(lines, fmt.Sprintf("    CONSTRAINT %s UNIQUE (%s)", ident(name), identList(cols)))
	}

	var b strings.Builder
	for _, e := range enums {
		b.WriteString(requiresEnum(e) + "\n")
	}
	for _, n := range notes {
		b.WriteString(n + "\n")
	}
	fmt.Fprintf(&b, "CREATE TABLE %s (\n%s\n);", ident(i.Table), strings.Join(lines, ",\n"))
	return b.String()
}

// columnDefault renders the column clause of a @default. Defaults computed by
// the client (uuid(), cuid()) and enum values renamed with @map have no
// clause and report false.
func (g *generator) columnDefault(f *definition.FieldDefinition) (string, bool) {
	v := f.Default
	switch {
	case v == "autoincrement()":
		return " GENERATED BY DEFAULT AS IDENTITY", true
	case v == "now()":
		return " DEFAULT CURRENT_TIMESTAMP", true
	case strings.HasPrefix(v, `dbgenerated("`) && strings.HasSuffix(v, `")`):
		return " DEFAULT " + v[len(`dbgenerated("`):len(v)-2], true
	case len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"':
		return " DEFAULT " + literal(v[1:len(v)-1]), true
	case v == "true" || v == "false":
		return " DEFAULT " + v, true
	}
	if _, err := strconv.ParseFloat(v, 64); err == nil {
		return " DEFAULT " + v, true
	}
	if e, ok := g.schema.Enum(f.DeclaredType); ok && slices.Contains(e.Values, v) {
		return " DEFAULT " + literal(v), true
	}
	return "", false
}

func requiresEnum(name string) string {
	return fmt.Sprintf("-- requires enum %s (see %s)", ident(name), SectionEnums)
}

func (g *generator) fieldType(f *definition.FieldDefinition) string {
	var t string
	if e, ok := g.schema.Enum(f.DeclaredType); ok {
		t = ident(e.DBName)
	} else {
		lt, _ := typemap.Parse(f.DeclaredType)
		t = typemap.DDLType(lt, f.DBTypeHint)
	}
	if f.IsArray {
		t += "[]"
	}
	return t
}

func (g *generator) createEnum(i reconcile.Issue) string {
	if len(i.Values) == 0 {
		return fmt.Sprintf("-- CREATE TYPE %s AS ENUM (...);", ident(i.Enum))
	}
	values := make([]string, len(i.Values))
	for n, v := range i.Values {
		values[n] = literal(v)
	}
	return fmt.Sprintf("CREATE TYPE %s AS ENUM (%s);", ident(i.Enum), strings.Join(values, ", "))
}

// columnType renders the native type expected by a MissingColumn or
// TypeMismatch issue: the enum type, the hinted native type or the canonical
// mapping of the logical type. Unknown types fall back to TEXT.
func columnType(i reconcile.Issue) string {
	declared, isArray := strings.CutSuffix(i.Expected, "[]")
	var t string
	if i.Enum != "" {
		t = ident(i.Enum)
	} else {
		lt, _ := typemap.Parse(declared)
		t = typemap.DDLType(lt, i.Hint)
	}
	if isArray {
		t += "[]"
	}
	return t
}

func indexName(table string, columns []string) string {
	return table + "_" + strings.Join(columns, "_") + "_idx"
}

func ident(name string) string {
	return pq.QuoteIdentifier(name)
}

func identList(names []string) string {
	quoted := make([]string, len(names))
	for n, name := range names {
		quoted[n] = ident(name)
	}
	return strings.Join(quoted, ", ")
}

func literal(v string) string {
	return strings.TrimSpace(pq.QuoteLiteral(v))
}
