package domain

import "strconv"

// Table is the normalized form of an extracted table. It is built once by an
// extractor and consumed read-only by the inference pipeline.
type Table struct {
	Headers    []string          `json:"headers"`
	SampleRows [][]string        `json:"sample_rows,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// HasSamples reports whether the table carries any sample rows.
func (t *Table) HasSamples() bool {
	return len(t.SampleRows) > 0
}

// Column returns the sample values observed for the column at index i.
// Rows shorter than the header row contribute nothing for trailing columns.
func (t *Table) Column(i int) []string {
	if i < 0 || i >= len(t.Headers) {
		return nil
	}
	values := make([]string, 0, len(t.SampleRows))
	for _, row := range t.SampleRows {
		if i < len(row) {
			values = append(values, row[i])
		}
	}
	return values
}

// Validate checks the structural invariants of an extracted table: at least
// one header and every sample row as wide as the header row.
func (t *Table) Validate() error {
	if len(t.Headers) == 0 {
		return NewSchemaInvalidError("table has no headers", nil)
	}
	for i, row := range t.SampleRows {
		if len(row) != len(t.Headers) {
			return NewSchemaInvalidError(
				"sample row width does not match header count",
				map[string]string{"row": itoa(i), "width": itoa(len(row)), "headers": itoa(len(t.Headers))},
			)
		}
	}
	return nil
}

// SchemaColumn describes one column of a generated schema.
type SchemaColumn struct {
	Name        string         `json:"name"`
	Type        ColumnType     `json:"type"`
	Format      string         `json:"format,omitempty"`
	Description string         `json:"description"`
	Nullable    bool           `json:"nullable"`
	Constraints map[string]any `json:"constraints,omitempty"`

	// Confidence is set only when the type was inferred without sample
	// values (header-only runs and failure placeholders). nil means the
	// inference was sample-backed and implicitly certain.
	Confidence *float64 `json:"confidence,omitempty"`
}

// Clone returns a deep copy of the column.
func (c SchemaColumn) Clone() SchemaColumn {
	out := c
	if c.Constraints != nil {
		out.Constraints = make(map[string]any, len(c.Constraints))
		for k, v := range c.Constraints {
			out.Constraints[k] = v
		}
	}
	if c.Confidence != nil {
		v := *c.Confidence
		out.Confidence = &v
	}
	return out
}

// Schema is the full structured artifact generated for one table.
type Schema struct {
	Name           string            `json:"name"`
	Description    string            `json:"description"`
	Columns        []SchemaColumn    `json:"columns"`
	SourceMetadata map[string]string `json:"source_metadata,omitempty"`
}

// Clone returns a deep copy of the schema. Refinement operates on copies so
// a failed round can never corrupt the schema the caller holds.
func (s *Schema) Clone() *Schema {
	out := &Schema{
		Name:        s.Name,
		Description: s.Description,
		Columns:     make([]SchemaColumn, len(s.Columns)),
	}
	for i, c := range s.Columns {
		out.Columns[i] = c.Clone()
	}
	if s.SourceMetadata != nil {
		out.SourceMetadata = make(map[string]string, len(s.SourceMetadata))
		for k, v := range s.SourceMetadata {
			out.SourceMetadata[k] = v
		}
	}
	return out
}

// ColumnNames returns the column names in schema order.
func (s *Schema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// Validate checks the schema invariants: unique column names, known types,
// and constraint keys legal for each column's type.
func (s *Schema) Validate() error {
	seen := make(map[string]struct{}, len(s.Columns))
	for _, c := range s.Columns {
		if c.Name == "" {
			return NewSchemaInvalidError("column with empty name", nil)
		}
		if _, dup := seen[c.Name]; dup {
			return NewSchemaInvalidError("duplicate column name", map[string]string{"column": c.Name})
		}
		seen[c.Name] = struct{}{}

		if !c.Type.Valid() {
			return NewSchemaInvalidError("unknown column type", map[string]string{"column": c.Name, "type": string(c.Type)})
		}
		for key := range c.Constraints {
			if !ConstraintAllowed(c.Type, key) {
				return NewSchemaInvalidError(
					"constraint not allowed for column type",
					map[string]string{"column": c.Name, "type": string(c.Type), "constraint": key},
				)
			}
		}
		if c.Confidence != nil && (*c.Confidence < 0 || *c.Confidence > 1) {
			return NewSchemaInvalidError("confidence out of range", map[string]string{"column": c.Name})
		}
	}
	return nil
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
