// Package inference turns an extracted table into typed column schemas,
// choosing between a sample-backed and a header-only strategy once per table.
package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"schemaforge/internal/config"
	"schemaforge/internal/domain"
	"schemaforge/internal/oracle"
	"schemaforge/internal/port"
)

// columnReply is one column's entry in the oracle's structured reply.
type columnReply struct {
	Name        string         `json:"name"`
	Type        string         `json:"type"`
	Format      string         `json:"format,omitempty"`
	Description string         `json:"description"`
	Nullable    bool           `json:"nullable"`
	Constraints map[string]any `json:"constraints,omitempty"`
	Confidence  *float64       `json:"confidence,omitempty"`
}

// inferenceReply is the full structured reply for one request.
type inferenceReply struct {
	Columns []columnReply `json:"columns"`
}

var replySchema = oracle.MustResponseSchemaFor(&inferenceReply{})

// Engine infers one SchemaColumn per header of a table.
type Engine struct {
	oracle port.Oracle
	cfg    config.InferenceConfig
}

// NewEngine creates an inference engine.
func NewEngine(o port.Oracle, cfg config.InferenceConfig) *Engine {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.MajorityThreshold <= 0 {
		cfg.MajorityThreshold = 0.6
	}
	if cfg.MaxChunkTokens <= 0 {
		cfg.MaxChunkTokens = 12000
	}
	return &Engine{oracle: o, cfg: cfg}
}

// Infer produces one column schema per header, in header order. Oracle
// failures degrade individual columns to string placeholders; only an invalid
// table or a cancelled context aborts the whole call. The returned usage sums
// the token counts of every oracle call made.
func (e *Engine) Infer(ctx context.Context, table *domain.Table) ([]domain.SchemaColumn, port.Usage, error) {
	var usage port.Usage
	if err := table.Validate(); err != nil {
		return nil, usage, err
	}

	chunks := e.chunkColumns(table)
	columns := make([]domain.SchemaColumn, len(table.Headers))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)

	for _, chunk := range chunks {
		chunk := chunk
		g.Go(func() error {
			cols, u, err := e.inferChunk(gctx, table, chunk)
			mu.Lock()
			usage.Add(u)
			mu.Unlock()
			if err != nil {
				if gctx.Err() != nil {
					return oracle.NewTransientError(gctx.Err(), 0)
				}
				var qe *oracle.QuotaError
				if errors.As(err, &qe) {
					return err
				}
				// Degrade this chunk's columns; the rest of the table
				// proceeds.
				for _, i := range chunk {
					slog.Warn("column inference failed, using placeholder",
						"column", table.Headers[i], "error", err)
					columns[i] = placeholderColumn(table.Headers[i])
				}
				return nil
			}
			for j, i := range chunk {
				columns[i] = cols[j]
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, usage, err
	}
	if ctx.Err() != nil {
		return nil, usage, oracle.NewTransientError(ctx.Err(), 0)
	}
	return columns, usage, nil
}

// inferChunk runs one oracle request covering the given column indices and
// returns the chunk's columns in chunk order.
func (e *Engine) inferChunk(ctx context.Context, table *domain.Table, chunk []int) ([]domain.SchemaColumn, port.Usage, error) {
	headers := make([]string, len(chunk))
	for j, i := range chunk {
		headers[j] = table.Headers[i]
	}

	var prompt string
	if table.HasSamples() {
		rows := projectRows(table, chunk, e.cfg.SampleRows)
		prompt = buildSampleBackedPrompt(headers, rows)
	} else {
		prompt = buildHeaderOnlyPrompt(headers)
	}

	result, err := e.oracle.Generate(ctx, port.GenerateRequest{
		System:         systemPrompt,
		Prompt:         prompt,
		ResponseSchema: replySchema,
		Profile:        port.ProfileGeneration,
	})
	var usage port.Usage
	if result != nil {
		usage = result.Usage
	}
	if err != nil {
		return nil, usage, err
	}

	var reply inferenceReply
	if err := json.Unmarshal(result.Payload, &reply); err != nil {
		return nil, usage, fmt.Errorf("decoding inference reply: %w", err)
	}

	byName := make(map[string]*columnReply, len(reply.Columns))
	for k := range reply.Columns {
		byName[reply.Columns[k].Name] = &reply.Columns[k]
	}

	cols := make([]domain.SchemaColumn, len(chunk))
	for j, i := range chunk {
		header := table.Headers[i]
		var cr *columnReply
		if j < len(reply.Columns) && reply.Columns[j].Name == header {
			cr = &reply.Columns[j]
		} else if found, ok := byName[header]; ok {
			cr = found
		}
		if cr == nil {
			slog.Warn("oracle reply missing column, using placeholder", "column", header)
			cols[j] = placeholderColumn(header)
			continue
		}
		if table.HasSamples() {
			cols[j] = e.sampleBackedColumn(header, cr, table.Column(i))
		} else {
			cols[j] = e.headerOnlyColumn(header, cr)
		}
	}
	return cols, usage, nil
}

// sampleBackedColumn reconciles the oracle's answer with majority voting over
// the observed samples. The majority type wins over a minority of outliers;
// below the majority threshold the column falls back to string.
func (e *Engine) sampleBackedColumn(header string, cr *columnReply, samples []string) domain.SchemaColumn {
	col := domain.SchemaColumn{
		Name:        header,
		Type:        domain.ColumnType(cr.Type),
		Format:      cr.Format,
		Description: cr.Description,
		Nullable:    cr.Nullable,
		Constraints: cr.Constraints,
	}
	if !col.Type.Valid() {
		col.Type = domain.TypeString
	}

	vote := MajorityVote(samples)
	if vote.Counted > 0 {
		if vote.Nullable {
			col.Nullable = true
		}
		switch {
		case vote.Share < e.cfg.MajorityThreshold:
			// No type reaches majority consistency. Least committal wins.
			col.Type = domain.TypeString
			col.Format = ""
		case col.Type == domain.TypeString && vote.Type != domain.TypeString:
			// Oracle under-committed relative to the samples.
			col.Type = vote.Type
			if col.Format == "" {
				col.Format = vote.Format
			}
		case col.Type == vote.Type && col.Format == "":
			col.Format = vote.Format
		}
	}

	col.Constraints = legalConstraints(col.Type, col.Constraints, header)
	return col
}

// headerOnlyColumn applies the confidence floor: below it format and
// constraints are dropped and the type defaults to string.
func (e *Engine) headerOnlyColumn(header string, cr *columnReply) domain.SchemaColumn {
	conf := 0.0
	if cr.Confidence != nil {
		conf = clamp01(*cr.Confidence)
	}
	col := domain.SchemaColumn{
		Name:        header,
		Type:        domain.ColumnType(cr.Type),
		Description: cr.Description,
		Nullable:    cr.Nullable,
		Confidence:  &conf,
	}
	if !col.Type.Valid() {
		col.Type = domain.TypeString
	}
	if conf >= e.cfg.ConfidenceFloor {
		col.Format = cr.Format
		col.Constraints = legalConstraints(col.Type, cr.Constraints, header)
	} else {
		col.Type = domain.TypeString
	}
	return col
}

// chunkColumns packs column indices into request chunks under the token
// budget. Most tables fit in a single chunk.
func (e *Engine) chunkColumns(table *domain.Table) [][]int {
	var chunks [][]int
	var current []int
	budget := 0

	for i := range table.Headers {
		cost := approxTokens(table.Headers[i])
		for _, v := range table.Column(i) {
			cost += approxTokens(v)
		}
		cost += 60 // per-column share of the reply
		if len(current) > 0 && budget+cost > e.cfg.MaxChunkTokens {
			chunks = append(chunks, current)
			current = nil
			budget = 0
		}
		current = append(current, i)
		budget += cost
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks
}

// projectRows narrows sample rows to the chunk's columns, limited to maxRows.
func projectRows(table *domain.Table, chunk []int, maxRows int) [][]string {
	if maxRows <= 0 {
		maxRows = 5
	}
	n := len(table.SampleRows)
	if n > maxRows {
		n = maxRows
	}
	rows := make([][]string, n)
	for r := 0; r < n; r++ {
		row := make([]string, len(chunk))
		for j, i := range chunk {
			if i < len(table.SampleRows[r]) {
				row[j] = table.SampleRows[r][i]
			}
		}
		rows[r] = row
	}
	return rows
}

// legalConstraints drops constraint keys that are illegal for the column
// type, so assembly never fails on an over-eager oracle reply.
func legalConstraints(t domain.ColumnType, constraints map[string]any, column string) map[string]any {
	if len(constraints) == 0 {
		return nil
	}
	out := make(map[string]any, len(constraints))
	for k, v := range constraints {
		if domain.ConstraintAllowed(t, k) {
			out[k] = v
			continue
		}
		slog.Debug("dropping illegal constraint", "column", column, "type", t, "constraint", k)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// placeholderColumn is the degraded result for a column whose inference
// failed after retries.
func placeholderColumn(header string) domain.SchemaColumn {
	zero := 0.0
	return domain.SchemaColumn{
		Name:        header,
		Type:        domain.TypeString,
		Description: "Type inference failed for this column; defaulting to string.",
		Confidence:  &zero,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
