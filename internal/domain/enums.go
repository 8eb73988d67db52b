package domain

// ColumnType is the closed set of semantic column types a schema may use.
type ColumnType string

const (
	TypeString   ColumnType = "string"
	TypeInteger  ColumnType = "integer"
	TypeFloat    ColumnType = "float"
	TypeBoolean  ColumnType = "boolean"
	TypeDate     ColumnType = "date"
	TypeDatetime ColumnType = "datetime"
	TypeArray    ColumnType = "array"
	TypeObject   ColumnType = "object"
)

// ColumnTypes lists every valid column type, in a stable order used by
// prompts and formatters.
var ColumnTypes = []ColumnType{
	TypeString, TypeInteger, TypeFloat, TypeBoolean,
	TypeDate, TypeDatetime, TypeArray, TypeObject,
}

// Valid reports whether t is a member of the closed type set.
func (t ColumnType) Valid() bool {
	switch t {
	case TypeString, TypeInteger, TypeFloat, TypeBoolean, TypeDate, TypeDatetime, TypeArray, TypeObject:
		return true
	}
	return false
}

// Numeric reports whether the type carries ordered numeric values.
func (t ColumnType) Numeric() bool {
	return t == TypeInteger || t == TypeFloat
}

// legalConstraints maps each column type to the constraint keys it accepts.
var legalConstraints = map[ColumnType]map[string]struct{}{
	TypeString:   set("pattern", "enum", "max_length", "min_length"),
	TypeInteger:  set("minimum", "maximum", "enum", "multiple_of"),
	TypeFloat:    set("minimum", "maximum", "enum", "multiple_of"),
	TypeBoolean:  set(),
	TypeDate:     set("minimum", "maximum"),
	TypeDatetime: set("minimum", "maximum"),
	TypeArray:    set("max_items", "min_items"),
	TypeObject:   set(),
}

// ConstraintAllowed reports whether a constraint key is legal for the given
// column type. Unknown types accept nothing.
func ConstraintAllowed(t ColumnType, key string) bool {
	allowed, ok := legalConstraints[t]
	if !ok {
		return false
	}
	_, ok = allowed[key]
	return ok
}

// ConstraintKeys returns the legal constraint keys for a type.
func ConstraintKeys(t ColumnType) []string {
	allowed := legalConstraints[t]
	keys := make([]string, 0, len(allowed))
	for k := range allowed {
		keys = append(keys, k)
	}
	return keys
}

func set(keys ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		m[k] = struct{}{}
	}
	return m
}

// OutputFormat identifies a serialization target for a generated schema.
type OutputFormat string

const (
	FormatJSON OutputFormat = "json"
	FormatYAML OutputFormat = "yaml"
	FormatText OutputFormat = "text"
	FormatXLSX OutputFormat = "xlsx"
)

// RunPhase distinguishes the initial generation pass from feedback rounds in
// metrics records.
type RunPhase string

const (
	PhaseInitial  RunPhase = "initial"
	PhaseFeedback RunPhase = "feedback"
)

// SourceKind identifies where a table came from.
type SourceKind string

const (
	SourceURL  SourceKind = "url"
	SourceFile SourceKind = "file"
	SourceCSV  SourceKind = "csv"
)
