package services

import (
	"github.com/vsinha/rebalance/pkg/domain/entities"
)

// CapacityLedgerBuilder seeds the per-run capacity ledger from a snapshot
type CapacityLedgerBuilder struct{}

// NewCapacityLedgerBuilder creates a new ledger builder
func NewCapacityLedgerBuilder() *CapacityLedgerBuilder {
	return &CapacityLedgerBuilder{}
}

// Build creates the destination ledger for a run: every other line on the target date, plus
// the next LookaheadWorkdays workdays after the target date on the target line.
// Buckets keep the capacity table's line order.
func (b *CapacityLedgerBuilder) Build(pc *entities.PlanningContext, snapshot *entities.PlanSnapshot) *entities.CapacityLedger {
	ledger := entities.NewCapacityLedger()
	calendar := snapshot.Calendar()

	for _, line := range pc.Capacity.Lines() {
		maxQty, _ := pc.Capacity.Max(line)

		if line != pc.Target.Line {
			ledger.Add(b.entry(snapshot, calendar, entities.BucketKey{Date: pc.Target.Date, Line: line}, maxQty))
			continue
		}

		for _, date := range calendar.WorkdaysAfter(pc.Target.Date, pc.LookaheadWorkdays) {
			ledger.Add(b.entry(snapshot, calendar, entities.BucketKey{Date: date, Line: line}, maxQty))
		}
	}

	return ledger
}

func (b *CapacityLedgerBuilder) entry(
	snapshot *entities.PlanSnapshot,
	calendar entities.WorkdayCalendar,
	bucket entities.BucketKey,
	maxQty entities.Quantity,
) entities.CapacityLedgerEntry {
	current := snapshot.CommittedTotal(bucket)
	return entities.CapacityLedgerEntry{
		Bucket:    bucket,
		Max:       maxQty,
		Current:   current,
		Remaining: maxQty - current,
		Workday:   calendar.IsWorkday(bucket.Date),
	}
}
