// Package format serializes schemas for downstream consumers. The JSON form
// is the canonical representation and round-trips losslessly.
package format

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"schemaforge/internal/domain"
)

// JSON renders the schema as indented JSON.
func JSON(s *domain.Schema) ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// ParseJSON decodes a schema previously rendered with JSON.
func ParseJSON(data []byte) (*domain.Schema, error) {
	var s domain.Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing schema JSON: %w", err)
	}
	return &s, nil
}

// yamlColumn mirrors domain.SchemaColumn with YAML field names.
type yamlColumn struct {
	Name        string         `yaml:"name"`
	Type        string         `yaml:"type"`
	Format      string         `yaml:"format,omitempty"`
	Description string         `yaml:"description"`
	Nullable    bool           `yaml:"nullable"`
	Constraints map[string]any `yaml:"constraints,omitempty"`
	Confidence  *float64       `yaml:"confidence,omitempty"`
}

type yamlSchema struct {
	Name           string            `yaml:"name"`
	Description    string            `yaml:"description"`
	Columns        []yamlColumn      `yaml:"columns"`
	SourceMetadata map[string]string `yaml:"source_metadata,omitempty"`
}

// YAML renders the schema as YAML.
func YAML(s *domain.Schema) ([]byte, error) {
	out := yamlSchema{
		Name:           s.Name,
		Description:    s.Description,
		Columns:        make([]yamlColumn, len(s.Columns)),
		SourceMetadata: s.SourceMetadata,
	}
	for i, c := range s.Columns {
		out.Columns[i] = yamlColumn{
			Name:        c.Name,
			Type:        string(c.Type),
			Format:      c.Format,
			Description: c.Description,
			Nullable:    c.Nullable,
			Constraints: c.Constraints,
			Confidence:  c.Confidence,
		}
	}
	return yaml.Marshal(out)
}

// Text renders a human-readable aligned summary of the schema.
func Text(s *domain.Schema) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Schema: %s\n", s.Name)
	if s.Description != "" {
		fmt.Fprintf(&sb, "%s\n", s.Description)
	}
	sb.WriteString("\n")

	w := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "COLUMN\tTYPE\tFORMAT\tNULLABLE\tCONFIDENCE\tDESCRIPTION")
	for _, c := range s.Columns {
		conf := ""
		if c.Confidence != nil {
			conf = fmt.Sprintf("%.2f", *c.Confidence)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\t%s\n",
			c.Name, c.Type, c.Format, c.Nullable, conf, c.Description)
	}
	_ = w.Flush()
	return sb.String()
}

// Write renders the schema in the requested format to w.
func Write(w io.Writer, s *domain.Schema, f domain.OutputFormat) error {
	switch f {
	case domain.FormatJSON:
		data, err := JSON(s)
		if err != nil {
			return err
		}
		_, err = w.Write(append(data, '\n'))
		return err
	case domain.FormatYAML:
		data, err := YAML(s)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	case domain.FormatText:
		_, err := io.WriteString(w, Text(s))
		return err
	case domain.FormatXLSX:
		return WriteXLSX(w, s)
	default:
		return fmt.Errorf("unsupported output format: %s", f)
	}
}

// Extension returns the file extension for an output format.
func Extension(f domain.OutputFormat) string {
	switch f {
	case domain.FormatYAML:
		return "yaml"
	case domain.FormatText:
		return "txt"
	case domain.FormatXLSX:
		return "xlsx"
	default:
		return "json"
	}
}
