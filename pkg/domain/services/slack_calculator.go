package services

import (
	"github.com/vsinha/rebalance/pkg/domain/entities"
)

// SlackCalculator derives how much of each item's commitment can leave the target bucket
// without pushing any later date behind its cumulative demand.
type SlackCalculator struct{}

// NewSlackCalculator creates a new slack calculator
func NewSlackCalculator() *SlackCalculator {
	return &SlackCalculator{}
}

// Calculate returns one profile per stock item, in stock order.
//
// For each item the full timeline (every line it appears on) is walked chronologically:
//
//	surplus     = cumulative commitment - cumulative demand, through the target date
//	futureSlack = commitment after the target date - demand after the target date
//
// and the movable quantity is
//
//	surplus > 0        -> surplus
//	futureSlack >= 0   -> today's committed quantity
//	otherwise          -> max(0, committed + futureSlack)
func (c *SlackCalculator) Calculate(
	pc *entities.PlanningContext,
	snapshot *entities.PlanSnapshot,
	stock *entities.StockSnapshot,
) []entities.ItemSlackProfile {
	target := stock.Bucket.Date
	profiles := make([]entities.ItemSlackProfile, 0, len(stock.Items))

	for _, item := range stock.Items {
		series := snapshot.SeriesFor(item.Item)
		if len(series) == 0 {
			continue
		}

		var (
			cumDemand, cumCommitted       entities.Quantity
			futureDemand, futureCommitted entities.Quantity
			lastDue                       entities.PlanDate
		)
		for _, row := range series {
			if row.DemandQty > 0 && row.Date.After(lastDue) {
				lastDue = row.Date
			}
			if row.Date.After(target) {
				futureDemand += row.DemandQty
				futureCommitted += row.CommittedQty
				continue
			}
			cumDemand += row.DemandQty
			cumCommitted += row.CommittedQty
		}

		surplus := cumCommitted - cumDemand
		futureSlack := futureCommitted - futureDemand

		var maxMovable entities.Quantity
		switch {
		case surplus > 0:
			maxMovable = surplus
		case futureSlack >= 0:
			maxMovable = item.CommittedQty
		default:
			maxMovable = item.CommittedQty + futureSlack
			if maxMovable < 0 {
				maxMovable = 0
			}
		}

		bufferDays := entities.UnknownBufferDays
		if lastDue != "" {
			bufferDays = pc.Target.Date.DaysUntil(lastDue)
		}

		profiles = append(profiles, entities.ItemSlackProfile{
			Item:                 item.Item,
			DemandQty:            item.DemandQty,
			CommittedQty:         item.CommittedQty,
			LotSize:              item.LotSize,
			CumulativeDemand:     cumDemand,
			CumulativeCommitment: cumCommitted,
			FutureSlack:          futureSlack,
			MaxMovable:           maxMovable,
			LastDueDate:          lastDue,
			BufferDays:           bufferDays,
			Movable:              maxMovable >= item.LotSize,
		})
	}

	return profiles
}
