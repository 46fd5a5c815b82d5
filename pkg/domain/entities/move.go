package entities

import (
	"encoding/json"
	"fmt"
)

// Candidate is a proposed relocation produced by a planner. It is never trusted.
type Candidate struct {
	Item   ItemName `json:"item"`
	Qty    Quantity `json:"qty"`
	From   string   `json:"from"`
	To     string   `json:"to"`
	Reason string   `json:"reason"`
}

// Move is a candidate that passed validation, possibly shrunk to fit capacity
type Move struct {
	Item        ItemName  `json:"item"`
	Qty         Quantity  `json:"qty"`
	From        BucketKey `json:"from"`
	To          BucketKey `json:"to"`
	Reason      string    `json:"reason"`
	Adjusted    bool      `json:"adjusted"`
	OriginalQty Quantity  `json:"original_qty,omitempty"`
}

// Severity classifies a validation log entry
type Severity int

const (
	// SeverityAdjusted marks a move accepted after shrinking to fit capacity
	SeverityAdjusted Severity = iota
	// SeverityHard marks a candidate rejected by a business rule
	SeverityHard
	// SeverityWarning marks a candidate dropped because of missing data
	SeverityWarning
)

// String method for Severity enum
func (s Severity) String() string {
	switch s {
	case SeverityAdjusted:
		return "adjusted"
	case SeverityHard:
		return "hard"
	case SeverityWarning:
		return "warning"
	default:
		return "unknown"
	}
}

// MarshalJSON renders the severity by name
func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON parses a severity name
func (s *Severity) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for _, severity := range []Severity{SeverityAdjusted, SeverityHard, SeverityWarning} {
		if severity.String() == name {
			*s = severity
			return nil
		}
	}
	return fmt.Errorf("unknown severity %q", name)
}

// Violation is one validation log entry. Index is the 1-based candidate position.
type Violation struct {
	Index    int      `json:"index"`
	Item     ItemName `json:"item"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// ValidationOutcome is the authoritative result of validating a candidate list
type ValidationOutcome struct {
	Accepted   []Move      `json:"accepted"`
	Violations []Violation `json:"violations"`
}

// AchievedQty sums the accepted quantities
func (o *ValidationOutcome) AchievedQty() Quantity {
	var total Quantity
	for _, mv := range o.Accepted {
		total += mv.Qty
	}
	return total
}

// CountBySeverity returns how many log entries carry the severity
func (o *ValidationOutcome) CountBySeverity(severity Severity) int {
	count := 0
	for _, v := range o.Violations {
		if v.Severity == severity {
			count++
		}
	}
	return count
}
