// Package definition parses Prisma-style data model definitions into models
// and enums that can be compared against a live database catalog.
package definition

// Schema is the parsed content of one definition source.
type Schema struct {
	Models []*ModelDefinition
	Enums  []*EnumDefinition

	models map[string]*ModelDefinition
	enums  map[string]*EnumDefinition
}

// Model returns the model declared with the given name.
func (s *Schema) Model(name string) (*ModelDefinition, bool) {
	m, ok := s.models[name]
	return m, ok
}

// Enum returns the enum declared with the given name.
func (s *Schema) Enum(name string) (*EnumDefinition, bool) {
	e, ok := s.enums[name]
	return e, ok
}

// ModelByTable returns the model whose resolved table name is table.
func (s *Schema) ModelByTable(table string) (*ModelDefinition, bool) {
	for _, m := range s.Models {
		if m.TableName == table {
			return m, true
		}
	}
	return nil, false
}

// ModelDefinition is one declared entity.
type ModelDefinition struct {
	Name string
	// TableName is the resolved table: @@map override, configured override,
	// or the name derived from Name.
	TableName   string
	TableMapped bool
	Fields      []*FieldDefinition
	// Indexes holds the field names of each @@index directive.
	Indexes [][]string
	// PrimaryKey holds the field names of a composite @@id directive.
	PrimaryKey []string
	Uniques    [][]string
	Line       int

	fieldIndex map[string]int
}

// Field returns the field with the given name.
func (m *ModelDefinition) Field(name string) (*FieldDefinition, bool) {
	i, ok := m.fieldIndex[name]
	if !ok {
		return nil, false
	}
	return m.Fields[i], true
}

// ScalarFields returns the fields backed by a catalog column, in declaration order.
func (m *ModelDefinition) ScalarFields() []*FieldDefinition {
	var fields []*FieldDefinition
	for _, f := range m.Fields {
		if !f.IsRelation {
			fields = append(fields, f)
		}
	}
	return fields
}

func (m *ModelDefinition) addField(f *FieldDefinition) {
	if m.fieldIndex == nil {
		m.fieldIndex = make(map[string]int)
	}
	if i, ok := m.fieldIndex[f.Name]; ok {
		m.Fields[i] = f
		return
	}
	m.fieldIndex[f.Name] = len(m.Fields)
	m.Fields = append(m.Fields, f)
}

// FieldDefinition is one declared attribute of a model.
type FieldDefinition struct {
	Name string
	// DeclaredType is the type token with any ? and [] suffix stripped.
	DeclaredType string
	IsOptional   bool
	IsArray      bool
	IsRelation   bool
	IsPrimaryKey bool
	IsUnique     bool
	HasDefault   bool
	// Default is the @default argument as written, e.g. "autoincrement()"
	// or "USER".
	Default string
	// ColumnName is the resolved column: @map override or derived from Name.
	ColumnName   string
	ColumnMapped bool
	// DBTypeHint is the native type of a @db.<Native> annotation, arguments
	// included (e.g. "VarChar(255)").
	DBTypeHint string
	Line       int
}

// TypeString renders the declared type with its array suffix. Optionality is
// left out: it is checked as nullability, not as part of the type.
func (f *FieldDefinition) TypeString() string {
	if f.IsArray {
		return f.DeclaredType + "[]"
	}
	return f.DeclaredType
}

// EnumDefinition is one declared enum type.
type EnumDefinition struct {
	Name string
	// DBName is the @@map override or the lower-cased Name.
	DBName string
	Values []string
	Line   int
}
