package schema

import "sort"

// Snapshot is the catalog state of one database schema at introspection time.
// It is rebuilt on every run and never persisted.
type Snapshot struct {
	// Tables holds the base table names, sorted.
	Tables []string
	// Columns maps a table to its columns in ordinal order.
	Columns map[string][]ColumnInfo
	// Enums maps a named enum type to its labels in sort order.
	Enums    map[string][]string
	Routines []RoutineInfo
	Indexes  map[string][]IndexInfo
}

// ColumnInfo represents a table column as reported by information_schema
type ColumnInfo struct {
	Name string
	// DataType is information_schema's data_type, e.g. "character varying",
	// "ARRAY" or "USER-DEFINED".
	DataType string
	// UDTName is the underlying type name: "_text" for text[], the enum type
	// name for USER-DEFINED columns.
	UDTName    string
	IsNullable bool
	Default    *string
}

// ElementType returns the element type of an ARRAY column, or "" when the
// column is not an array.
func (c ColumnInfo) ElementType() string {
	if c.DataType != "ARRAY" {
		return ""
	}
	if len(c.UDTName) > 1 && c.UDTName[0] == '_' {
		return c.UDTName[1:]
	}
	return c.UDTName
}

// RoutineInfo represents a server-side function or procedure
type RoutineInfo struct {
	Name string
	Kind string // FUNCTION, PROCEDURE
}

// IndexInfo represents a database index
type IndexInfo struct {
	Name      string
	Columns   []string
	IsUnique  bool
	IsPrimary bool
}

// NewSnapshot returns an empty snapshot with its maps allocated.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Columns: make(map[string][]ColumnInfo),
		Enums:   make(map[string][]string),
		Indexes: make(map[string][]IndexInfo),
	}
}

// HasTable reports whether table is present.
func (s *Snapshot) HasTable(table string) bool {
	i := sort.SearchStrings(s.Tables, table)
	return i < len(s.Tables) && s.Tables[i] == table
}

// Column returns the named column of table.
func (s *Snapshot) Column(table, column string) (ColumnInfo, bool) {
	for _, c := range s.Columns[table] {
		if c.Name == column {
			return c, true
		}
	}
	return ColumnInfo{}, false
}

// EnumNames returns the enum type names, sorted.
func (s *Snapshot) EnumNames() []string {
	names := make([]string, 0, len(s.Enums))
	for name := range s.Enums {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RoutineCounts returns how often each routine name occurs. Overloads share
// a name, so a count above one means the name is defined more than once.
func (s *Snapshot) RoutineCounts() map[string]int {
	counts := make(map[string]int, len(s.Routines))
	for _, r := range s.Routines {
		counts[r.Name]++
	}
	return counts
}
