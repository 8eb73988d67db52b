// Package metrics collects per-run latency, memory and token-usage records.
// Accumulators are scoped to one run and passed explicitly; callers combine
// initial and feedback phases by merging.
package metrics

import (
	"runtime"
	"sync"
	"time"

	"schemaforge/internal/domain"
	"schemaforge/internal/port"
)

// Record is one measured pipeline step.
type Record struct {
	Agent            string
	Phase            domain.RunPhase
	Model            string
	LatencyMS        int64
	MemoryDeltaKB    int64
	PromptTokens     int
	CompletionTokens int
	EstimatedCost    float64
}

// Accumulator gathers records for a single run.
type Accumulator struct {
	mu      sync.Mutex
	records []Record
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Add appends a record.
func (a *Accumulator) Add(r Record) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, r)
}

// Track starts measuring one step. The returned func finalizes the record
// with the step's token usage and model.
func (a *Accumulator) Track(agent string, phase domain.RunPhase) func(usage port.Usage, model string) {
	start := time.Now()
	var before runtime.MemStats
	runtime.ReadMemStats(&before)

	return func(usage port.Usage, model string) {
		var after runtime.MemStats
		runtime.ReadMemStats(&after)

		delta := int64(after.HeapAlloc) - int64(before.HeapAlloc)
		a.Add(Record{
			Agent:            agent,
			Phase:            phase,
			Model:            model,
			LatencyMS:        time.Since(start).Milliseconds(),
			MemoryDeltaKB:    delta / 1024,
			PromptTokens:     usage.PromptTokens,
			CompletionTokens: usage.CompletionTokens,
			EstimatedCost:    EstimateCost(model, usage),
		})
	}
}

// Records returns a copy of the accumulated records.
func (a *Accumulator) Records() []Record {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Record, len(a.records))
	copy(out, a.records)
	return out
}

// Merge appends another accumulator's records.
func (a *Accumulator) Merge(other *Accumulator) {
	for _, r := range other.Records() {
		a.Add(r)
	}
}

// Totals sums token counts and cost over all records.
func (a *Accumulator) Totals() (usage port.Usage, cost float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, r := range a.records {
		usage.PromptTokens += r.PromptTokens
		usage.CompletionTokens += r.CompletionTokens
		cost += r.EstimatedCost
	}
	return usage, cost
}
