package entities

import (
	"fmt"
	"strings"
)

// ItemName identifies a produced item (model name) in the plan
type ItemName string

// Line identifies a production line
type Line string

// Quantity represents an integer quantity value for discrete manufacturing units
type Quantity int64

// FloorToLot rounds q down to the nearest multiple of lotSize.
// A non-positive lot size leaves q unchanged.
func (q Quantity) FloorToLot(lotSize Quantity) Quantity {
	if lotSize <= 0 {
		return q
	}
	return (q / lotSize) * lotSize
}

// IsLotAligned reports whether q is an integer multiple of lotSize
func (q Quantity) IsLotAligned(lotSize Quantity) bool {
	if lotSize <= 0 {
		return false
	}
	return q%lotSize == 0
}

// MinQuantity returns the smallest of the given quantities
func MinQuantity(first Quantity, rest ...Quantity) Quantity {
	smallest := first
	for _, q := range rest {
		if q < smallest {
			smallest = q
		}
	}
	return smallest
}

// ContainsFold reports whether the item name contains pattern, ignoring case
func (n ItemName) ContainsFold(pattern string) bool {
	if pattern == "" {
		return false
	}
	return strings.Contains(strings.ToUpper(string(n)), strings.ToUpper(pattern))
}

// LineCapacity is one entry of the static per-line capacity table
type LineCapacity struct {
	Line        Line
	MaxDailyQty Quantity
}

// CapacityTable maps production lines to their maximum daily quantity.
// Line order is preserved as configured.
type CapacityTable struct {
	lines []Line
	max   map[Line]Quantity
}

// NewCapacityTable creates a validated capacity table
func NewCapacityTable(entries []LineCapacity) (*CapacityTable, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("capacity table cannot be empty")
	}

	table := &CapacityTable{
		lines: make([]Line, 0, len(entries)),
		max:   make(map[Line]Quantity, len(entries)),
	}
	for _, entry := range entries {
		if entry.Line == "" {
			return nil, fmt.Errorf("capacity table line cannot be empty")
		}
		if entry.MaxDailyQty <= 0 {
			return nil, fmt.Errorf("capacity for line %s must be positive, got %d", entry.Line, entry.MaxDailyQty)
		}
		if _, exists := table.max[entry.Line]; exists {
			return nil, fmt.Errorf("duplicate capacity entry for line %s", entry.Line)
		}
		table.lines = append(table.lines, entry.Line)
		table.max[entry.Line] = entry.MaxDailyQty
	}
	return table, nil
}

// Lines returns the configured lines in table order
func (t *CapacityTable) Lines() []Line {
	lines := make([]Line, len(t.lines))
	copy(lines, t.lines)
	return lines
}

// Max returns the maximum daily quantity for a line
func (t *CapacityTable) Max(line Line) (Quantity, bool) {
	qty, ok := t.max[line]
	return qty, ok
}

// Has reports whether the line is part of the table
func (t *CapacityTable) Has(line Line) bool {
	_, ok := t.max[line]
	return ok
}
