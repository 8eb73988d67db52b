package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"schemaforge/internal/oracle"
	"schemaforge/internal/port"
)

// selectionReply is the oracle's choice of main table.
type selectionReply struct {
	MainTable int    `json:"main_table"`
	Reasoning string `json:"reasoning"`
	TableType string `json:"table_type"`
}

var selectionSchema = oracle.MustResponseSchemaFor(&selectionReply{})

// Selector picks the main content table from a page with several candidates.
type Selector struct {
	oracle port.Oracle
}

// NewSelector creates a Selector.
func NewSelector(o port.Oracle) *Selector {
	return &Selector{oracle: o}
}

// Select returns the candidate most likely to hold the page's main
// structured data, with the oracle's reasoning. Single-candidate inputs skip
// the oracle call. A failed or out-of-range selection falls back to the
// largest candidate; quota exhaustion aborts.
func (s *Selector) Select(ctx context.Context, candidates []port.TableCandidate) (*port.TableCandidate, string, port.Usage, error) {
	var usage port.Usage
	switch len(candidates) {
	case 0:
		return nil, "", usage, fmt.Errorf("no candidates to select from")
	case 1:
		return &candidates[0], "only table on the page", usage, nil
	}

	result, err := s.oracle.Generate(ctx, port.GenerateRequest{
		System:         "You are a data expert analyzing HTML tables to identify the most useful structured data.",
		Prompt:         buildSelectionPrompt(candidates),
		ResponseSchema: selectionSchema,
		Profile:        port.ProfileSelection,
	})
	if result != nil {
		usage = result.Usage
	}
	if err != nil {
		var qe *oracle.QuotaError
		if errors.As(err, &qe) {
			return nil, "", usage, err
		}
		slog.Warn("table selection failed, falling back to largest table", "error", err)
		return largest(candidates), "fallback: largest table (selection unavailable)", usage, nil
	}

	var reply selectionReply
	if err := json.Unmarshal(result.Payload, &reply); err != nil {
		return nil, "", usage, fmt.Errorf("decoding selection reply: %w", err)
	}

	// The prompt numbers tables from 1.
	idx := reply.MainTable - 1
	if idx < 0 || idx >= len(candidates) {
		slog.Warn("selection index out of range, falling back to largest table", "main_table", reply.MainTable)
		return largest(candidates), "fallback: largest table (selection out of range)", usage, nil
	}
	return &candidates[idx], reply.Reasoning, usage, nil
}

func buildSelectionPrompt(candidates []port.TableCandidate) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are analyzing HTML tables to find the one that contains the most structured data.\nThis page contains %d HTML tables.\n\nHere are the details of each table:\n\n", len(candidates))

	for i, c := range candidates {
		fmt.Fprintf(&sb, "Table %d:\n", i+1)
		caption := c.Caption
		if caption == "" {
			caption = "None"
		}
		fmt.Fprintf(&sb, "Caption/Context: %s\n", caption)
		headers := c.Table.Headers
		shown := headers
		ellipsis := ""
		if len(shown) > 10 {
			shown = shown[:10]
			ellipsis = "..."
		}
		fmt.Fprintf(&sb, "Columns (%d): %s%s\n", len(headers), strings.Join(shown, ", "), ellipsis)
		fmt.Fprintf(&sb, "Rows: %d\n", len(c.Table.SampleRows))
		if len(c.Table.SampleRows) > 0 {
			fmt.Fprintf(&sb, "Sample data (first row): %s\n", strings.Join(c.Table.SampleRows[0], " | "))
		}
		sb.WriteString("\n")
	}

	sb.WriteString(`Based on this information, which table appears to be the main content table that likely contains the most useful structured data?

Return valid JSON:

{
  "main_table": 0,
  "reasoning": "",
  "table_type": ""
}

- "main_table" is the table number (starting at 1).
- "reasoning" explains the choice in 2-3 sentences.
- "table_type" is one of: data, schema, list, other.
- Output only valid JSON. Do not include extra text.`)
	return sb.String()
}

func largest(candidates []port.TableCandidate) *port.TableCandidate {
	best := &candidates[0]
	bestSize := size(best)
	for i := 1; i < len(candidates); i++ {
		if s := size(&candidates[i]); s > bestSize {
			best = &candidates[i]
			bestSize = s
		}
	}
	return best
}

func size(c *port.TableCandidate) int {
	rows := len(c.Table.SampleRows)
	if rows == 0 {
		rows = 1
	}
	return len(c.Table.Headers) * rows
}
