package entities

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// DateLayout is the canonical plan date format
const DateLayout = "2006-01-02"

var (
	// ErrNoPlan signals that no plan rows exist for the requested bucket
	ErrNoPlan = errors.New("no plan for this bucket")
	// ErrInvalidPlanRow signals a malformed or incomplete plan row
	ErrInvalidPlanRow = errors.New("invalid plan row")
	// ErrTargetUnresolved signals that no target line could be resolved
	ErrTargetUnresolved = errors.New("target bucket cannot be resolved")
	// ErrSnapshotUnavailable signals that the plan snapshot provider failed
	ErrSnapshotUnavailable = errors.New("plan snapshot unavailable")
)

// PlanDate is a calendar date in YYYY-MM-DD form. The string form orders chronologically.
type PlanDate string

// ParsePlanDate parses and normalizes a YYYY-MM-DD date
func ParsePlanDate(s string) (PlanDate, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("invalid date %q (expected YYYY-MM-DD)", s)
	}
	return NewPlanDate(t), nil
}

// NewPlanDate converts a time to a plan date using its calendar fields
func NewPlanDate(t time.Time) PlanDate {
	return PlanDate(t.Format(DateLayout))
}

// Time returns the date at midnight UTC
func (d PlanDate) Time() time.Time {
	t, _ := time.Parse(DateLayout, string(d))
	return t
}

// AddDays returns the date shifted by n calendar days
func (d PlanDate) AddDays(n int) PlanDate {
	return NewPlanDate(d.Time().AddDate(0, 0, n))
}

// Before reports whether d is strictly before other
func (d PlanDate) Before(other PlanDate) bool {
	return d < other
}

// After reports whether d is strictly after other
func (d PlanDate) After(other PlanDate) bool {
	return d > other
}

// DaysUntil returns the number of calendar days from d to other
func (d PlanDate) DaysUntil(other PlanDate) int {
	return int(other.Time().Sub(d.Time()).Hours() / 24)
}

// BucketKey identifies a (date, line) capacity bucket.
// In JSON it is always the "YYYY-MM-DD_LINE" string form.
type BucketKey struct {
	Date PlanDate
	Line Line
}

// String renders the bucket as "YYYY-MM-DD_LINE"
func (k BucketKey) String() string {
	return fmt.Sprintf("%s_%s", k.Date, k.Line)
}

// MarshalText implements encoding.TextMarshaler
func (k BucketKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (k *BucketKey) UnmarshalText(text []byte) error {
	parsed, err := ParseBucketKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseBucketKey parses a "YYYY-MM-DD_LINE" destination string
func ParseBucketKey(s string) (BucketKey, error) {
	s = strings.TrimSpace(s)
	datePart, linePart, found := strings.Cut(s, "_")
	if !found {
		return BucketKey{}, fmt.Errorf("malformed bucket %q (expected YYYY-MM-DD_LINE)", s)
	}
	date, err := ParsePlanDate(datePart)
	if err != nil {
		return BucketKey{}, fmt.Errorf("malformed bucket %q: %w", s, err)
	}
	line := Line(strings.TrimSpace(linePart))
	if line == "" {
		return BucketKey{}, fmt.Errorf("malformed bucket %q: empty line", s)
	}
	return BucketKey{Date: date, Line: line}, nil
}

// PlanRow is one committed plan entry for an item on a date and line
type PlanRow struct {
	Date         PlanDate `json:"date"`
	Line         Line     `json:"line"`
	Item         ItemName `json:"item"`
	CommittedQty Quantity `json:"committed_qty"`
	DemandQty    Quantity `json:"demand_qty"`
	LotSize      Quantity `json:"lot_size"`
	IsWorkday    bool     `json:"is_workday"`
}

// NewPlanRow creates a validated PlanRow
func NewPlanRow(date PlanDate, line Line, item ItemName, committedQty, demandQty, lotSize Quantity, isWorkday bool) (*PlanRow, error) {
	row := &PlanRow{
		Date:         date,
		Line:         line,
		Item:         item,
		CommittedQty: committedQty,
		DemandQty:    demandQty,
		LotSize:      lotSize,
		IsWorkday:    isWorkday,
	}
	if err := row.Validate(); err != nil {
		return nil, err
	}
	return row, nil
}

// Validate checks the row against the snapshot contract
func (r PlanRow) Validate() error {
	if _, err := ParsePlanDate(string(r.Date)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPlanRow, err)
	}
	if r.Line == "" {
		return fmt.Errorf("%w: line cannot be empty", ErrInvalidPlanRow)
	}
	if r.Item == "" {
		return fmt.Errorf("%w: item cannot be empty", ErrInvalidPlanRow)
	}
	if r.CommittedQty < 0 {
		return fmt.Errorf("%w: committed quantity cannot be negative, got %d", ErrInvalidPlanRow, r.CommittedQty)
	}
	if r.DemandQty < 0 {
		return fmt.Errorf("%w: demand quantity cannot be negative, got %d", ErrInvalidPlanRow, r.DemandQty)
	}
	if r.LotSize < 1 {
		return fmt.Errorf("%w: lot size must be at least 1, got %d", ErrInvalidPlanRow, r.LotSize)
	}
	return nil
}

// Bucket returns the row's (date, line) bucket
func (r PlanRow) Bucket() BucketKey {
	return BucketKey{Date: r.Date, Line: r.Line}
}

// WorkdayCalendar records the workday flag per plan date
type WorkdayCalendar map[PlanDate]bool

// IsWorkday reports whether the date is flagged as a workday. Unknown dates are not workdays.
func (c WorkdayCalendar) IsWorkday(date PlanDate) bool {
	return c[date]
}

// WorkdaysAfter returns up to n workdays strictly after date, in chronological order
func (c WorkdayCalendar) WorkdaysAfter(date PlanDate, n int) []PlanDate {
	dates := make([]PlanDate, 0, len(c))
	for d, workday := range c {
		if workday && d.After(date) {
			dates = append(dates, d)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i] < dates[j] })
	if len(dates) > n {
		dates = dates[:n]
	}
	return dates
}

// PlanSnapshot is the validated, read-only set of plan rows for one planning run
type PlanSnapshot struct {
	rows     []PlanRow
	calendar WorkdayCalendar
}

// NewPlanSnapshot validates rows and builds the workday calendar.
// The first row seen for a date decides that date's workday flag.
func NewPlanSnapshot(rows []PlanRow) (*PlanSnapshot, error) {
	snapshot := &PlanSnapshot{
		rows:     make([]PlanRow, 0, len(rows)),
		calendar: make(WorkdayCalendar),
	}
	for i, row := range rows {
		if err := row.Validate(); err != nil {
			return nil, fmt.Errorf("plan row %d: %w", i+1, err)
		}
		if _, seen := snapshot.calendar[row.Date]; !seen {
			snapshot.calendar[row.Date] = row.IsWorkday
		}
		snapshot.rows = append(snapshot.rows, row)
	}
	return snapshot, nil
}

// IsEmpty reports whether the snapshot carries no rows
func (s *PlanSnapshot) IsEmpty() bool {
	return len(s.rows) == 0
}

// Rows returns a copy of all rows in load order
func (s *PlanSnapshot) Rows() []PlanRow {
	rows := make([]PlanRow, len(s.rows))
	copy(rows, s.rows)
	return rows
}

// Calendar returns the workday calendar
func (s *PlanSnapshot) Calendar() WorkdayCalendar {
	return s.calendar
}

// RowsFor returns the rows of one bucket in load order
func (s *PlanSnapshot) RowsFor(bucket BucketKey) []PlanRow {
	var rows []PlanRow
	for _, row := range s.rows {
		if row.Date == bucket.Date && row.Line == bucket.Line {
			rows = append(rows, row)
		}
	}
	return rows
}

// CommittedTotal sums committed quantity in one bucket
func (s *PlanSnapshot) CommittedTotal(bucket BucketKey) Quantity {
	var total Quantity
	for _, row := range s.rows {
		if row.Date == bucket.Date && row.Line == bucket.Line {
			total += row.CommittedQty
		}
	}
	return total
}

// SeriesFor returns every row of an item across all dates and lines, chronologically.
// Rows on the same date keep load order.
func (s *PlanSnapshot) SeriesFor(item ItemName) []PlanRow {
	var series []PlanRow
	for _, row := range s.rows {
		if row.Item == item {
			series = append(series, row)
		}
	}
	sort.SliceStable(series, func(i, j int) bool { return series[i].Date < series[j].Date })
	return series
}

// LinesOn returns the distinct lines carrying rows on a date, in load order
func (s *PlanSnapshot) LinesOn(date PlanDate) []Line {
	seen := make(map[Line]bool)
	var lines []Line
	for _, row := range s.rows {
		if row.Date == date && !seen[row.Line] {
			seen[row.Line] = true
			lines = append(lines, row.Line)
		}
	}
	return lines
}
