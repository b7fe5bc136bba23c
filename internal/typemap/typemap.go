// Package typemap holds the static tables that relate logical definition types
// (String, Int, ...) to PostgreSQL native types.
//
// Every table is keyed by the closed LogicalType enum, so adding a type is a
// one-line edit per table.
package typemap

import "strings"

// LogicalType is a scalar type token of the definition language.
type LogicalType string

const (
	String   LogicalType = "String"
	Int      LogicalType = "Int"
	BigInt   LogicalType = "BigInt"
	Float    LogicalType = "Float"
	Decimal  LogicalType = "Decimal"
	Boolean  LogicalType = "Boolean"
	DateTime LogicalType = "DateTime"
	Json     LogicalType = "Json"
	Bytes    LogicalType = "Bytes"
)

// Unsupported is the escape-hatch type token for columns the definition
// language cannot describe. It is never type checked and never a relation.
const Unsupported = "Unsupported"

// All lists the logical types in a fixed order.
var All = []LogicalType{String, Int, BigInt, Float, Decimal, Boolean, DateTime, Json, Bytes}

// accepted maps a logical type to the native type substrings it accepts.
var accepted = map[LogicalType][]string{
	String:   {"text", "character varying", "varchar", "char"},
	Int:      {"integer", "int4", "smallint", "int2"},
	BigInt:   {"bigint", "int8"},
	Float:    {"double precision", "float8", "real", "float4"},
	Decimal:  {"numeric", "decimal"},
	Boolean:  {"boolean", "bool"},
	DateTime: {"timestamp without time zone", "timestamp with time zone", "timestamp"},
	Json:     {"json", "jsonb"},
	Bytes:    {"bytea"},
}

// canonical is the native type used when generating DDL for a logical type.
var canonical = map[LogicalType]string{
	String:   "TEXT",
	Int:      "INTEGER",
	BigInt:   "BIGINT",
	Float:    "DOUBLE PRECISION",
	Decimal:  "DECIMAL(65,30)",
	Boolean:  "BOOLEAN",
	DateTime: "TIMESTAMP(3)",
	Json:     "JSONB",
	Bytes:    "BYTEA",
}

// hint describes a @db.<Native> annotation: the catalog spelling it accepts
// and the DDL spelling it generates.
type hint struct {
	catalog string
	ddl     string
}

// hints is keyed by the lower-cased native hint name.
var hints = map[string]hint{
	"text":            {"text", "TEXT"},
	"varchar":         {"character varying", "VARCHAR"},
	"char":            {"character", "CHAR"},
	"uuid":            {"uuid", "UUID"},
	"citext":          {"citext", "CITEXT"},
	"inet":            {"inet", "INET"},
	"xml":             {"xml", "XML"},
	"bit":             {"bit", "BIT"},
	"varbit":          {"bit varying", "VARBIT"},
	"smallint":        {"smallint", "SMALLINT"},
	"integer":         {"integer", "INTEGER"},
	"bigint":          {"bigint", "BIGINT"},
	"oid":             {"oid", "OID"},
	"real":            {"real", "REAL"},
	"doubleprecision": {"double precision", "DOUBLE PRECISION"},
	"decimal":         {"numeric", "DECIMAL"},
	"money":           {"money", "MONEY"},
	"boolean":         {"boolean", "BOOLEAN"},
	"date":            {"date", "DATE"},
	"time":            {"time without time zone", "TIME"},
	"timetz":          {"time with time zone", "TIMETZ"},
	"timestamp":       {"timestamp without time zone", "TIMESTAMP"},
	"timestamptz":     {"timestamp with time zone", "TIMESTAMPTZ"},
	"json":            {"json", "JSON"},
	"jsonb":           {"jsonb", "JSONB"},
	"bytea":           {"bytea", "BYTEA"},
}

// Parse returns the logical type for a type token, if it is one.
func Parse(token string) (LogicalType, bool) {
	lt := LogicalType(token)
	_, ok := accepted[lt]
	return lt, ok
}

// IsPrimitive reports whether token is a scalar type of the definition
// language, including Unsupported.
func IsPrimitive(token string) bool {
	if token == Unsupported {
		return true
	}
	_, ok := Parse(token)
	return ok
}

// Accepted returns a copy of the native substrings accepted for lt.
func Accepted(lt LogicalType) []string {
	return append([]string(nil), accepted[lt]...)
}

// Compatible reports whether a catalog native type satisfies the logical
// type. A non-empty native hint (e.g. "Uuid" or "VarChar(255)") also makes
// the hinted catalog type acceptable.
func Compatible(lt LogicalType, native, nativeHint string) bool {
	actual := strings.ToLower(native)
	for _, sub := range accepted[lt] {
		if strings.Contains(actual, sub) {
			return true
		}
	}
	if h, ok := lookupHint(nativeHint); ok {
		return strings.Contains(actual, h.catalog)
	}
	return false
}

// DDLType returns the native type to use in generated DDL. A recognised hint
// wins over the canonical mapping and keeps its arguments, so
// DDLType(String, "VarChar(255)") is "VARCHAR(255)". Unknown logical types
// fall back to TEXT.
func DDLType(lt LogicalType, nativeHint string) string {
	if h, ok := lookupHint(nativeHint); ok {
		return h.ddl + hintArgs(nativeHint)
	}
	if t, ok := canonical[lt]; ok {
		return t
	}
	return "TEXT"
}

func lookupHint(nativeHint string) (hint, bool) {
	if nativeHint == "" {
		return hint{}, false
	}
	name := nativeHint
	if i := strings.IndexByte(name, '('); i >= 0 {
		name = name[:i]
	}
	h, ok := hints[strings.ToLower(name)]
	return h, ok
}

func hintArgs(nativeHint string) string {
	if i := strings.IndexByte(nativeHint, '('); i >= 0 {
		return nativeHint[i:]
	}
	return ""
}
