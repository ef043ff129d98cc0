package application

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"log/slog"

	"github.com/xuri/excelize/v2"

	"github.com/ericfisherdev/chequescan/internal/domain/model"
)

// Download names and media types for the exported report.
const (
	CSVFilename     = "cheque_extracted_info.csv"
	CSVContentType  = "text/csv"
	XLSXFilename    = "cheque_extracted_info.xlsx"
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	xlsxSheet = "Cheque"
)

// Report renders a single extraction record as a table, CSV or XLSX.
type Report struct {
	logger *slog.Logger
}

// NewReport creates a Report.
func NewReport(logger *slog.Logger) *Report {
	if logger == nil {
		logger = slog.Default()
	}
	return &Report{logger: logger}
}

// Table returns the header and the record's single row. Absent fields are
// empty cells.
func (r *Report) Table(rec model.ExtractionRecord) model.Table {
	header := make([]string, len(model.FieldNames))
	copy(header, model.FieldNames)
	return model.Table{
		Header: header,
		Rows:   [][]string{rec.Values()},
	}
}

// CSV serializes the table as UTF-8 CSV: one header line and one data line.
func (r *Report) CSV(rec model.ExtractionRecord) ([]byte, error) {
	table := r.Table(rec)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(table.Header); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	if err := w.WriteAll(table.Rows); err != nil {
		return nil, fmt.Errorf("write csv rows: %w", err)
	}

	r.logger.Debug("report.csv.ok", "bytes", buf.Len(), "fields_present", rec.Present())
	return buf.Bytes(), nil
}

// XLSX renders the table as a one-sheet workbook.
func (r *Report) XLSX(rec model.ExtractionRecord) ([]byte, error) {
	table := r.Table(rec)

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			r.logger.Warn("xlsx close error", "error", err)
		}
	}()

	if err := f.SetSheetName(f.GetSheetName(0), xlsxSheet); err != nil {
		return nil, fmt.Errorf("xlsx rename sheet: %w", err)
	}

	rows := append([][]string{table.Header}, table.Rows...)
	for y, row := range rows {
		for x, v := range row {
			cell, err := excelize.CoordinatesToCellName(x+1, y+1)
			if err != nil {
				return nil, fmt.Errorf("xlsx cell name: %w", err)
			}
			// Strings, so account and cheque numbers keep leading zeros.
			if err := f.SetCellStr(xlsxSheet, cell, v); err != nil {
				return nil, fmt.Errorf("xlsx set %s: %w", cell, err)
			}
		}
	}
	_ = f.SetColWidth(xlsxSheet, "A", "F", 20)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	r.logger.Debug("report.xlsx.ok", "bytes", buf.Len(), "fields_present", rec.Present())
	return buf.Bytes(), nil
}
