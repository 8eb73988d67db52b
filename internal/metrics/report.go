package metrics

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// UTF-8 BOM bytes for Excel compatibility on Windows.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// columns defines the CSV header row of the metrics report.
var columns = []string{
	"Agent",
	"Phase",
	"Model",
	"Latency (ms)",
	"Memory Delta (KB)",
	"Prompt Tokens",
	"Completion Tokens",
	"Estimated Cost (USD)",
}

// WriteReport writes the records as CSV to w, including the header row.
func WriteReport(w io.Writer, records []Record) error {
	if _, err := w.Write(BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write(recordRow(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// AppendLog appends the records to a CSV log file, writing the header only
// when the file is new.
func AppendLog(path string, records []Record) error {
	info, statErr := os.Stat(path)
	isNew := statErr != nil || info.Size() == 0

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening metrics log: %w", err)
	}
	defer func() { _ = f.Close() }()

	cw := csv.NewWriter(f)
	if isNew {
		if err := cw.Write(columns); err != nil {
			return err
		}
	}
	for _, r := range records {
		if err := cw.Write(recordRow(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func recordRow(r Record) []string {
	return []string{
		r.Agent,
		string(r.Phase),
		r.Model,
		fmt.Sprintf("%d", r.LatencyMS),
		fmt.Sprintf("%d", r.MemoryDeltaKB),
		fmt.Sprintf("%d", r.PromptTokens),
		fmt.Sprintf("%d", r.CompletionTokens),
		fmt.Sprintf("%.6f", r.EstimatedCost),
	}
}
