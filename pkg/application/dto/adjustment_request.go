package dto

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vsinha/rebalance/pkg/domain/entities"
)

// ErrInvalidRequest marks a request that cannot be run as given
var ErrInvalidRequest = errors.New("invalid adjustment request")

var maxUtilization = decimal.NewFromFloat(1.5)

// AdjustmentRequest asks for one target bucket to be relieved
type AdjustmentRequest struct {
	Date entities.PlanDate `json:"date"`
	// Line is optional; when empty it is derived from the plan
	Line entities.Line `json:"line,omitempty"`
	// FamilyHint ("ClassA" or "ClassB") picks the first line carrying that family
	FamilyHint        string           `json:"family_hint,omitempty"`
	TargetUtilization *decimal.Decimal `json:"target_utilization,omitempty"`
	// SampleQty > 0 switches the run to sample mode
	SampleQty        entities.Quantity `json:"sample_qty,omitempty"`
	PreferSuggestion bool              `json:"prefer_suggestion"`
}

// Validate checks the request fields
func (r AdjustmentRequest) Validate() error {
	if _, err := entities.ParsePlanDate(string(r.Date)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if r.SampleQty < 0 {
		return fmt.Errorf("%w: sample_qty must be non-negative, got %d", ErrInvalidRequest, r.SampleQty)
	}
	if u := r.TargetUtilization; u != nil && (!u.IsPositive() || u.GreaterThan(maxUtilization)) {
		return fmt.Errorf("%w: target_utilization must be in (0, 1.5], got %s", ErrInvalidRequest, u)
	}
	if _, err := r.Family(); err != nil {
		return err
	}
	return nil
}

// Normalize validates the request and rewrites its date and line in canonical form
func (r *AdjustmentRequest) Normalize() error {
	if err := r.Validate(); err != nil {
		return err
	}
	date, _ := entities.ParsePlanDate(string(r.Date))
	r.Date = date
	r.Line = entities.Line(strings.TrimSpace(string(r.Line)))
	return nil
}

// Family parses the family hint. Dedicated means no hint.
func (r AdjustmentRequest) Family() (entities.RoutingClass, error) {
	switch {
	case r.FamilyHint == "":
		return entities.Dedicated, nil
	case strings.EqualFold(r.FamilyHint, entities.ClassA.String()):
		return entities.ClassA, nil
	case strings.EqualFold(r.FamilyHint, entities.ClassB.String()):
		return entities.ClassB, nil
	default:
		return entities.Dedicated, fmt.Errorf("%w: unknown family hint %q", ErrInvalidRequest, r.FamilyHint)
	}
}

// IsSample reports whether the request inserts a sample batch
func (r AdjustmentRequest) IsSample() bool {
	return r.SampleQty > 0
}
