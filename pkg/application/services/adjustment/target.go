package adjustment

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vsinha/rebalance/pkg/application/dto"
	"github.com/vsinha/rebalance/pkg/domain/entities"
)

// resolveLine picks the target line for a request.
// An explicit line wins; a family hint picks the first configured line carrying
// that family on the date; otherwise the line with the largest committed total.
func (s *Service) resolveLine(snapshot *entities.PlanSnapshot, req dto.AdjustmentRequest) (entities.Line, error) {
	lines := s.config.Capacity.Lines()

	if req.Line != "" {
		if !s.config.Capacity.Has(req.Line) {
			return "", fmt.Errorf("%w: line %s has no configured capacity", entities.ErrTargetUnresolved, req.Line)
		}
		return req.Line, nil
	}

	family, err := req.Family()
	if err != nil {
		return "", err
	}
	if family != entities.Dedicated {
		for _, line := range lines {
			for _, row := range snapshot.RowsFor(entities.BucketKey{Date: req.Date, Line: line}) {
				if row.CommittedQty > 0 && s.classifier.Classify(row.Item) == family {
					return line, nil
				}
			}
		}
		return "", fmt.Errorf("%w: no %s items committed on %s", entities.ErrTargetUnresolved, family, req.Date)
	}

	var best entities.Line
	var bestTotal entities.Quantity
	for _, line := range lines {
		total := snapshot.CommittedTotal(entities.BucketKey{Date: req.Date, Line: line})
		if total > bestTotal {
			best, bestTotal = line, total
		}
	}
	if best == "" {
		return "", fmt.Errorf("%w: nothing committed on %s", entities.ErrTargetUnresolved, req.Date)
	}
	return best, nil
}

var (
	fullUsage  = decimal.NewFromInt(1)
	tightUsage = decimal.RequireFromString("0.9")
)

// Badge classifies bucket usage for reports
func Badge(entry entities.CapacityLedgerEntry) string {
	usage := entry.UsageRate()
	switch {
	case entry.Remaining <= 0 || usage.GreaterThanOrEqual(fullUsage):
		return "full"
	case usage.GreaterThanOrEqual(tightUsage):
		return "tight"
	default:
		return "open"
	}
}

func ledgerView(ledger *entities.CapacityLedger) []dto.LedgerView {
	entries := ledger.Entries()
	views := make([]dto.LedgerView, 0, len(entries))
	for _, entry := range entries {
		views = append(views, dto.LedgerView{
			Bucket:    entry.Bucket,
			Max:       entry.Max,
			Current:   entry.Current,
			Remaining: entry.Remaining,
			UsageRate: entry.UsageRate().Round(4),
			Badge:     Badge(entry),
			Workday:   entry.Workday,
		})
	}
	return views
}
