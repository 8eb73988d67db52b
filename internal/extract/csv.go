package extract

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"schemaforge/internal/domain"
	"schemaforge/internal/port"
)

// CSVSource extracts a table from a CSV file, such as a Kaggle dataset
// export. The first record is taken as the header row.
type CSVSource struct {
	path       string
	sampleRows int
}

// NewCSVSource creates a CSV table source.
func NewCSVSource(path string, sampleRows int) *CSVSource {
	return &CSVSource{path: path, sampleRows: defaultRows(sampleRows)}
}

// Tables implements port.TableSource. A CSV file holds exactly one table.
func (s *CSVSource) Tables(ctx context.Context) ([]port.TableCandidate, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", s.path, err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header from %s: %w", s.path, err)
	}
	headers := make([]string, len(header))
	for i, h := range header {
		headers[i] = strings.TrimSpace(h)
	}
	if !anyNonEmpty(headers) {
		return nil, domain.ErrNoTablesFound
	}

	var sampleRows [][]string
	for len(sampleRows) < s.sampleRows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := r.Read()
		if err != nil {
			break
		}
		if !anyNonEmpty(record) {
			continue
		}
		sampleRows = append(sampleRows, fitWidth(record, len(headers)))
	}

	table := domain.Table{
		Headers:    headers,
		SampleRows: sampleRows,
		Metadata: map[string]string{
			"source":      s.path,
			"source_kind": string(domain.SourceCSV),
			"table_index": "0",
			"row_count":   strconv.Itoa(len(sampleRows)),
			"caption":     strings.TrimSuffix(filepath.Base(s.path), filepath.Ext(s.path)),
		},
	}
	return []port.TableCandidate{{Index: 0, Caption: table.Metadata["caption"], Table: table}}, nil
}
