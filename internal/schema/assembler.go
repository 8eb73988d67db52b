// Package schema assembles inferred columns into a validated Schema.
package schema

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"schemaforge/internal/domain"
	"schemaforge/internal/oracle"
	"schemaforge/internal/port"
)

// summaryReply is the oracle's dataset-level summary.
type summaryReply struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

var summarySchema = oracle.MustResponseSchemaFor(&summaryReply{})

// Assembler combines an ordered column sequence into a Schema and generates
// the dataset-level name and description.
type Assembler struct {
	oracle port.Oracle
}

// NewAssembler creates an Assembler.
func NewAssembler(o port.Oracle) *Assembler {
	return &Assembler{oracle: o}
}

// Assemble builds and validates the final Schema. Duplicate column names are
// deduplicated with _2, _3, … suffixes before validation, since duplicate
// headers are a common real-world malformation. The summary oracle call
// degrades to a fallback name rather than failing the run; quota exhaustion
// still aborts.
func (a *Assembler) Assemble(ctx context.Context, table *domain.Table, columns []domain.SchemaColumn) (*domain.Schema, port.Usage, error) {
	var usage port.Usage

	if len(columns) != len(table.Headers) {
		return nil, usage, domain.NewSchemaInvalidError(
			"column count does not match header count",
			map[string]string{
				"columns": strconv.Itoa(len(columns)),
				"headers": strconv.Itoa(len(table.Headers)),
			},
		)
	}

	deduped := make([]domain.SchemaColumn, len(columns))
	names := DedupNames(columnNames(columns))
	for i, c := range columns {
		deduped[i] = c.Clone()
		deduped[i].Name = names[i]
	}

	s := &domain.Schema{
		Columns:        deduped,
		SourceMetadata: table.Metadata,
	}

	name, description, u, err := a.summarize(ctx, table, deduped)
	usage.Add(u)
	if err != nil {
		var qe *oracle.QuotaError
		if errors.As(err, &qe) {
			return nil, usage, err
		}
		slog.Warn("dataset summary generation failed, using fallback", "error", err)
		name, description = fallbackSummary(table)
	}
	s.Name = name
	s.Description = description

	if err := s.Validate(); err != nil {
		return nil, usage, err
	}
	return s, usage, nil
}

// summarize asks the oracle for a dataset name and one-paragraph description
// seeded with the column list.
func (a *Assembler) summarize(ctx context.Context, table *domain.Table, columns []domain.SchemaColumn) (string, string, port.Usage, error) {
	var sb strings.Builder
	sb.WriteString("A table was extracted with the following columns:\n")
	for _, c := range columns {
		sb.WriteString(fmt.Sprintf("- %s (%s): %s\n", c.Name, c.Type, c.Description))
	}
	if src := table.Metadata["source"]; src != "" {
		sb.WriteString("\nSource: " + src + "\n")
	}
	if caption := table.Metadata["caption"]; caption != "" {
		sb.WriteString("Caption: " + caption + "\n")
	}
	sb.WriteString(`
Return valid JSON naming and describing this dataset:

{
  "name": "",
  "description": ""
}

- "name" is a short snake_case identifier for the dataset.
- "description" is one or two sentences summarizing what the dataset contains.
- Output only valid JSON. Do not include extra text.`)

	result, err := a.oracle.Generate(ctx, port.GenerateRequest{
		System:         "You are a data schema inference assistant. Output only valid JSON in the specified format.",
		Prompt:         sb.String(),
		ResponseSchema: summarySchema,
		Profile:        port.ProfileGeneration,
	})
	var usage port.Usage
	if result != nil {
		usage = result.Usage
	}
	if err != nil {
		return "", "", usage, err
	}

	var reply summaryReply
	if err := json.Unmarshal(result.Payload, &reply); err != nil {
		return "", "", usage, fmt.Errorf("decoding summary reply: %w", err)
	}
	if reply.Name == "" {
		reply.Name = fallbackName(table)
	}
	return reply.Name, reply.Description, usage, nil
}

// DedupNames suffixes repeated names with _2, _3, … so every name is unique
// while the first occurrence keeps the original header text. Suffixed names
// that would collide with a later original name are advanced past it.
func DedupNames(names []string) []string {
	out := make([]string, len(names))
	taken := make(map[string]int, len(names))
	for _, n := range names {
		taken[n]++
	}
	seen := make(map[string]int, len(names))
	used := make(map[string]bool, len(names))

	for i, n := range names {
		seen[n]++
		candidate := n
		if seen[n] > 1 {
			for k := seen[n]; ; k++ {
				candidate = fmt.Sprintf("%s_%d", n, k)
				if taken[candidate] == 0 && !used[candidate] {
					break
				}
			}
		}
		out[i] = candidate
		used[candidate] = true
	}
	return out
}

func columnNames(columns []domain.SchemaColumn) []string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = strings.TrimSpace(c.Name)
	}
	return names
}

func fallbackName(table *domain.Table) string {
	if caption := table.Metadata["caption"]; caption != "" {
		return slugify(caption)
	}
	return "extracted_table"
}

func fallbackSummary(table *domain.Table) (string, string) {
	name := fallbackName(table)
	desc := fmt.Sprintf("Table with %d columns: %s.", len(table.Headers), strings.Join(table.Headers, ", "))
	return name, desc
}

func slugify(s string) string {
	var sb strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && sb.Len() > 0 {
				sb.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(sb.String(), "_")
}
