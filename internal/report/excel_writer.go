package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"scanflow/internal/domain"
)

const sheetName = "Documents"

// WriteExcel renders a batch's documents as an xlsx workbook.
func WriteExcel(w io.Writer, batch *domain.Batch) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("report.WriteExcel: %w", err)
	}

	header := make([]interface{}, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("report.WriteExcel: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		endCell, _ := excelize.CoordinatesToCellName(len(columns), 1)
		_ = f.SetCellStyle(sheetName, "A1", endCell, bold)
	}

	for i := range batch.Documents {
		row := documentToRow(&batch.Documents[i])
		cells := make([]interface{}, len(row))
		for j, v := range row {
			cells[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("report.WriteExcel: %w", err)
		}
		if err := f.SetSheetRow(sheetName, cell, &cells); err != nil {
			return fmt.Errorf("report.WriteExcel: %w", err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("report.WriteExcel: %w", err)
	}
	return nil
}
