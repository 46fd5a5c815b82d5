package entities

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultLookaheadWorkdays is how many future workdays on the target line the ledger covers
const DefaultLookaheadWorkdays = 10

// PlanningContext carries the run-scoped facts every engine component needs.
// A new context is built for each adjustment request.
type PlanningContext struct {
	AnalysisDate      PlanDate
	Target            BucketKey
	Capacity          *CapacityTable
	LookaheadWorkdays int
}

// NewPlanningContext creates a validated planning context
func NewPlanningContext(analysisDate PlanDate, target BucketKey, capacity *CapacityTable, lookahead int) (*PlanningContext, error) {
	if capacity == nil {
		return nil, fmt.Errorf("capacity table is required")
	}
	if _, err := ParsePlanDate(string(target.Date)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTargetUnresolved, err)
	}
	if !capacity.Has(target.Line) {
		return nil, fmt.Errorf("%w: line %s has no configured capacity", ErrTargetUnresolved, target.Line)
	}
	if lookahead <= 0 {
		lookahead = DefaultLookaheadWorkdays
	}
	if analysisDate == "" {
		analysisDate = target.Date
	}
	return &PlanningContext{
		AnalysisDate:      analysisDate,
		Target:            target,
		Capacity:          capacity,
		LookaheadWorkdays: lookahead,
	}, nil
}

// OtherLines returns every configured line except the target line, in table order
func (c *PlanningContext) OtherLines() []Line {
	var lines []Line
	for _, line := range c.Capacity.Lines() {
		if line != c.Target.Line {
			lines = append(lines, line)
		}
	}
	return lines
}

// TargetQuantity converts a utilization fraction of the line capacity into a quantity,
// rounded half-to-even to the nearest multiple of rounding.
func TargetQuantity(capacity Quantity, utilization decimal.Decimal, rounding Quantity) Quantity {
	raw := decimal.NewFromInt(int64(capacity)).Mul(utilization).Truncate(0)
	if rounding <= 0 {
		return Quantity(raw.IntPart())
	}
	unit := decimal.NewFromInt(int64(rounding))
	return Quantity(raw.Div(unit).RoundBank(0).Mul(unit).IntPart())
}
