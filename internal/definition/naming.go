package definition

import (
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"
)

// DeriveName converts a capitalised identifier into its underscore form by
// inserting an underscore before every upper-case letter except a leading one
// and lower-casing the result: "CotSession" becomes "cot_session".
func DeriveName(name string) string {
	var b strings.Builder
	b.Grow(len(name) + 4)
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Naming resolves database names for declarations without an explicit @map.
//
// Table names are not pluralised unless PluralTables is set; a live schema
// created with a different convention should be described through
// TableOverrides instead of guessed.
type Naming struct {
	// TableOverrides maps a model name to its table.
	TableOverrides map[string]string
	PluralTables   bool
}

// TableName returns the table for a model without @@map.
func (n Naming) TableName(model string) string {
	if t, ok := n.TableOverrides[model]; ok && t != "" {
		return t
	}
	name := DeriveName(model)
	if n.PluralTables {
		return inflection.Plural(name)
	}
	return name
}

// ColumnName returns the column for a field without @map.
func (n Naming) ColumnName(field string) string {
	return DeriveName(field)
}

// EnumName returns the catalog type name for an enum without @@map.
func (n Naming) EnumName(enum string) string {
	return strings.ToLower(enum)
}
