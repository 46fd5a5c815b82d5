package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/vsinha/rebalance/pkg/domain/entities"
)

// PlanHeader is the column layout of a plan snapshot table
var PlanHeader = []string{"date", "line", "item", "committed_qty", "demand_qty", "lot_size", "is_workday"}

// Loader handles loading plan snapshots from CSV files
type Loader struct{}

// NewLoader creates a new CSV loader
func NewLoader() *Loader {
	return &Loader{}
}

// LoadPlanRows loads plan rows from a CSV file
func (l *Loader) LoadPlanRows(filename string) ([]*entities.PlanRow, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open plan file %s: %w", filename, err)
	}
	defer file.Close()

	return l.ReadPlanRows(file)
}

// ReadPlanRows parses plan rows from CSV content
func (l *Loader) ReadPlanRows(r io.Reader) ([]*entities.PlanRow, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read plan CSV: %w", err)
	}
	return ParsePlanRecords(records)
}

// ParsePlanRecords converts a header row plus data rows into validated plan rows.
// Row numbers in errors are 1-based and count the header.
func ParsePlanRecords(records [][]string) ([]*entities.PlanRow, error) {
	if len(records) < 1 {
		return nil, fmt.Errorf("plan table must have a header row")
	}

	header := records[0]
	if !validateHeader(header, PlanHeader) {
		return nil, fmt.Errorf("plan header mismatch. Expected: %v, Got: %v", PlanHeader, header)
	}

	rows := make([]*entities.PlanRow, 0, len(records)-1)
	for i, record := range records[1:] {
		if isBlank(record) {
			continue
		}
		if len(record) != len(PlanHeader) {
			return nil, fmt.Errorf("plan row %d: expected %d columns, got %d", i+2, len(PlanHeader), len(record))
		}

		row, err := parsePlanRow(record)
		if err != nil {
			return nil, fmt.Errorf("plan row %d: %w", i+2, err)
		}
		rows = append(rows, row)
	}

	return rows, nil
}

func validateHeader(actual, expected []string) bool {
	if len(actual) != len(expected) {
		return false
	}

	for i, col := range expected {
		name := strings.TrimPrefix(actual[i], "\ufeff")
		if strings.ToLower(strings.TrimSpace(name)) != col {
			return false
		}
	}

	return true
}

func isBlank(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

func parsePlanRow(record []string) (*entities.PlanRow, error) {
	date, err := entities.ParsePlanDate(strings.TrimSpace(record[0]))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid date: %s (expected YYYY-MM-DD)", entities.ErrInvalidPlanRow, record[0])
	}

	committed, err := parseQuantity("committed_qty", record[3])
	if err != nil {
		return nil, err
	}
	demand, err := parseQuantity("demand_qty", record[4])
	if err != nil {
		return nil, err
	}
	lotSize, err := parseQuantity("lot_size", record[5])
	if err != nil {
		return nil, err
	}
	workday, err := parseWorkday(record[6])
	if err != nil {
		return nil, err
	}

	return entities.NewPlanRow(
		date,
		entities.Line(strings.TrimSpace(record[1])),
		entities.ItemName(strings.TrimSpace(record[2])),
		committed,
		demand,
		lotSize,
		workday,
	)
}

func parseQuantity(column, s string) (entities.Quantity, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	qty, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// spreadsheets export whole numbers as "1200.0"
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != float64(int64(f)) {
			return 0, fmt.Errorf("%w: invalid %s: %s", entities.ErrInvalidPlanRow, column, s)
		}
		qty = int64(f)
	}
	return entities.Quantity(qty), nil
}

func parseWorkday(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "y", "yes":
		return true, nil
	case "false", "0", "n", "no":
		return false, nil
	default:
		return false, fmt.Errorf("%w: invalid is_workday: %s (expected true or false)", entities.ErrInvalidPlanRow, s)
	}
}
