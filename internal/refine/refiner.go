// Package refine revises an existing schema in response to free-text human
// feedback, as a pure transformation of (schema, feedback) into a new schema.
package refine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"schemaforge/internal/domain"
	"schemaforge/internal/oracle"
	"schemaforge/internal/port"
)

// refineReply mirrors the full schema shape the oracle must return.
type refineReply struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Columns     []struct {
		Name        string         `json:"name"`
		Type        string         `json:"type"`
		Format      string         `json:"format,omitempty"`
		Description string         `json:"description"`
		Nullable    bool           `json:"nullable"`
		Constraints map[string]any `json:"constraints,omitempty"`
		Confidence  *float64       `json:"confidence,omitempty"`
	} `json:"columns"`
}

var replySchema = oracle.MustResponseSchemaFor(&refineReply{})

// Result is the outcome of one refinement round.
type Result struct {
	Schema         *domain.Schema
	ChangedColumns []string
	Usage          port.Usage
}

// Refiner applies feedback to a schema. It holds no state between calls;
// repeated rounds compose by sequential application.
type Refiner struct {
	oracle port.Oracle
}

// NewRefiner creates a Refiner.
func NewRefiner(o port.Oracle) *Refiner {
	return &Refiner{oracle: o}
}

// Refine produces a revised schema honoring the feedback. The input schema
// is never mutated; on any failure the caller's schema remains the valid
// current version. Empty feedback short-circuits to a deep copy.
func (r *Refiner) Refine(ctx context.Context, s *domain.Schema, feedback string) (*Result, error) {
	if strings.TrimSpace(feedback) == "" {
		return &Result{Schema: s.Clone(), ChangedColumns: []string{}}, nil
	}

	result, err := r.oracle.Generate(ctx, port.GenerateRequest{
		System:         "You are a data schema refinement assistant. You update data schemas based on user feedback. Output only valid JSON in the specified format.",
		Prompt:         buildRefinePrompt(s, feedback),
		ResponseSchema: replySchema,
		Profile:        port.ProfileRefinement,
	})
	var usage port.Usage
	if result != nil {
		usage = result.Usage
	}
	if err != nil {
		return nil, &domain.RefinementFailedError{SchemaName: s.Name, Err: err}
	}

	var reply refineReply
	if err := json.Unmarshal(result.Payload, &reply); err != nil {
		return nil, &domain.RefinementFailedError{SchemaName: s.Name, Err: fmt.Errorf("decoding refinement reply: %w", err)}
	}

	revised := r.toSchema(&reply, s)
	if err := revised.Validate(); err != nil {
		return nil, &domain.RefinementFailedError{SchemaName: s.Name, Err: err}
	}

	changed := Diff(s, revised)
	if len(changed) == 0 && revised.Name == s.Name && revised.Description == s.Description {
		// A no-op instruction must yield a schema deep-equal to the input.
		return &Result{Schema: s.Clone(), ChangedColumns: []string{}, Usage: usage}, nil
	}

	return &Result{Schema: revised, ChangedColumns: changed, Usage: usage}, nil
}

// toSchema converts the oracle reply into a domain schema, carrying over
// source metadata and, for columns the feedback did not retype, the original
// confidence markers.
func (r *Refiner) toSchema(reply *refineReply, prior *domain.Schema) *domain.Schema {
	priorByName := make(map[string]*domain.SchemaColumn, len(prior.Columns))
	for i := range prior.Columns {
		priorByName[prior.Columns[i].Name] = &prior.Columns[i]
	}

	out := &domain.Schema{
		Name:        reply.Name,
		Description: reply.Description,
		Columns:     make([]domain.SchemaColumn, len(reply.Columns)),
	}
	if prior.SourceMetadata != nil {
		out.SourceMetadata = make(map[string]string, len(prior.SourceMetadata))
		for k, v := range prior.SourceMetadata {
			out.SourceMetadata[k] = v
		}
	}

	for i, c := range reply.Columns {
		col := domain.SchemaColumn{
			Name:        c.Name,
			Type:        domain.ColumnType(c.Type),
			Format:      c.Format,
			Description: c.Description,
			Nullable:    c.Nullable,
			Constraints: c.Constraints,
			Confidence:  c.Confidence,
		}
		if col.Confidence == nil {
			if prev, ok := priorByName[c.Name]; ok && prev.Confidence != nil && prev.Type == col.Type {
				v := *prev.Confidence
				col.Confidence = &v
			}
		}
		out.Columns[i] = col
	}
	return out
}

func buildRefinePrompt(s *domain.Schema, feedback string) string {
	serialized, _ := json.MarshalIndent(s, "", "  ")
	return fmt.Sprintf(`Below is the current data schema generated for a table:

%s

The user has provided the following feedback:

"%s"

Refine the schema based on the feedback and return the complete revised schema as valid JSON with the same structure:

{
  "name": "",
  "description": "",
  "columns": [
    {
      "name": "",
      "type": "",
      "format": "",
      "description": "",
      "nullable": false,
      "constraints": {},
      "confidence": 0.0
    }
  ]
}

- Keep the same columns in the same order unless the feedback explicitly asks to add, remove, rename, or reorder a column.
- Leave every column the feedback does not mention exactly as it is, including its description and constraints.
- "type" must be one of: string, integer, float, boolean, date, datetime, array, object.
- Constraint keys must be legal for the column type (no pattern on numeric columns, no minimum/maximum on string columns).
- If the feedback requests no change, return the schema unchanged.
- Output only the updated schema JSON without any explanations or additional text.`, serialized, feedback)
}
