package format

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"schemaforge/internal/domain"
)

const sheetName = "Schema"

var xlsxColumns = []string{"Column", "Type", "Format", "Nullable", "Constraints", "Confidence", "Description"}

// WriteXLSX renders the schema as a spreadsheet, one row per column.
func WriteXLSX(w io.Writer, s *domain.Schema) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	idx, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("creating sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("removing default sheet: %w", err)
	}

	if err := f.SetSheetRow(sheetName, "A1", &[]any{s.Name}); err != nil {
		return err
	}
	if err := f.SetSheetRow(sheetName, "A2", &[]any{s.Description}); err != nil {
		return err
	}

	header := make([]any, len(xlsxColumns))
	for i, c := range xlsxColumns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheetName, "A4", &header); err != nil {
		return err
	}

	for i, c := range s.Columns {
		conf := ""
		if c.Confidence != nil {
			conf = fmt.Sprintf("%.2f", *c.Confidence)
		}
		constraints := ""
		if len(c.Constraints) > 0 {
			raw, err := json.Marshal(c.Constraints)
			if err != nil {
				return fmt.Errorf("marshaling constraints for %s: %w", c.Name, err)
			}
			constraints = string(raw)
		}
		cell, err := excelize.CoordinatesToCellName(1, 5+i)
		if err != nil {
			return err
		}
		row := []any{c.Name, string(c.Type), c.Format, c.Nullable, constraints, conf, c.Description}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return err
		}
	}

	return f.Write(w)
}
