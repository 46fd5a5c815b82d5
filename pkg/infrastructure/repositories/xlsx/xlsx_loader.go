// Package xlsx loads plan snapshots from Excel workbooks.
package xlsx

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/vsinha/rebalance/pkg/domain/entities"
	plancsv "github.com/vsinha/rebalance/pkg/infrastructure/repositories/csv"
)

// Loader reads one sheet laid out like the CSV plan table
type Loader struct {
	sheet string
}

// NewLoader creates a workbook loader. An empty sheet name selects the first sheet.
func NewLoader(sheet string) *Loader {
	return &Loader{sheet: sheet}
}

// LoadPlanRows loads plan rows from a workbook file
func (l *Loader) LoadPlanRows(filename string) ([]*entities.PlanRow, error) {
	wb, err := excelize.OpenFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", filename, err)
	}
	defer wb.Close()

	return l.readWorkbook(wb)
}

// ReadPlanRows loads plan rows from workbook content
func (l *Loader) ReadPlanRows(r io.Reader) ([]*entities.PlanRow, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer wb.Close()

	return l.readWorkbook(wb)
}

func (l *Loader) readWorkbook(wb *excelize.File) ([]*entities.PlanRow, error) {
	sheet := l.sheet
	if sheet == "" {
		sheets := wb.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	// raw values keep dates as serial numbers regardless of cell format
	rows, err := wb.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}

	width := len(plancsv.PlanHeader)
	records := make([][]string, 0, len(rows))
	for i, row := range rows {
		if len(row) > width {
			return nil, fmt.Errorf("sheet %s: plan row %d: expected %d columns, got %d", sheet, i+1, width, len(row))
		}
		record := make([]string, width)
		copy(record, row)
		if i > 0 {
			record[0] = normalizeDate(record[0])
		}
		records = append(records, record)
	}

	planRows, err := plancsv.ParsePlanRecords(records)
	if err != nil {
		return nil, fmt.Errorf("sheet %s: %w", sheet, err)
	}
	return planRows, nil
}

// normalizeDate turns an Excel serial date into YYYY-MM-DD and leaves text dates alone
func normalizeDate(cell string) string {
	cell = strings.TrimSpace(cell)
	serial, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return cell
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return cell
	}
	return string(entities.NewPlanDate(t))
}
