package planner

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/vsinha/rebalance/pkg/domain/entities"
)

// FallbackReason is attached to every candidate the greedy strategy emits
const FallbackReason = "fallback: constraint/lot/capacity based reduction"

// FallbackPlanner is the deterministic greedy strategy. It needs no external service
// and always returns a (possibly empty) candidate list.
type FallbackPlanner struct {
	logger *slog.Logger
}

// NewFallbackPlanner creates the greedy strategy
func NewFallbackPlanner(logger *slog.Logger) *FallbackPlanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackPlanner{logger: logger}
}

// Name returns the strategy name used in reports
func (p *FallbackPlanner) Name() string {
	return "fallback"
}

// Plan walks items with the most due-date buffer and movable headroom first and
// fills the roomiest legal destinations until the need is covered.
func (p *FallbackPlanner) Plan(ctx context.Context, in Input) ([]entities.Candidate, error) {
	if in.Context == nil || in.Ledger == nil {
		return nil, fmt.Errorf("fallback planner: planning context and ledger are required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	local := in.Ledger.Clone()
	target := in.Context.Target
	remainingNeed := in.NeedQty

	sameDay := make([]entities.BucketKey, 0, len(in.Context.OtherLines()))
	for _, line := range in.Context.OtherLines() {
		sameDay = append(sameDay, entities.BucketKey{Date: target.Date, Line: line})
	}
	var futureSameLine []entities.BucketKey
	for _, bucket := range local.Buckets() {
		if bucket.Line == target.Line && bucket.Date.After(target.Date) {
			futureSameLine = append(futureSameLine, bucket)
		}
	}

	items := make([]entities.ClassifiedItem, len(in.Items))
	copy(items, in.Items)
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].BufferDays != items[j].BufferDays {
			return items[i].BufferDays > items[j].BufferDays
		}
		return items[i].MaxMovable > items[j].MaxMovable
	})

	candidates := make([]entities.Candidate, 0)
	for _, item := range items {
		if remainingNeed <= 0 {
			break
		}

		lot := item.LotSize
		movable := entities.MinQuantity(item.MaxMovable, item.CommittedQty).FloorToLot(lot)
		if movable <= 0 {
			continue
		}
		qtyToMove := entities.MinQuantity(movable, remainingNeed).FloorToLot(lot)
		if qtyToMove <= 0 {
			continue
		}

		for _, dest := range p.destinations(item, local, sameDay, futureSameLine) {
			if remainingNeed <= 0 || qtyToMove <= 0 {
				break
			}
			capacity, _ := local.Remaining(dest)
			if capacity < lot {
				continue
			}
			moveQty := entities.MinQuantity(qtyToMove, capacity).FloorToLot(lot)
			if moveQty <= 0 {
				continue
			}

			candidates = append(candidates, entities.Candidate{
				Item:   item.Item,
				Qty:    moveQty,
				From:   target.String(),
				To:     dest.String(),
				Reason: FallbackReason,
			})
			if err := local.Reserve(dest, moveQty); err != nil {
				return nil, fmt.Errorf("fallback planner: %w", err)
			}
			remainingNeed -= moveQty
			qtyToMove -= moveQty
		}
	}

	p.logger.Debug("Fallback plan built",
		"target", target.String(),
		"need", in.NeedQty,
		"candidates", len(candidates),
		"uncovered", remainingNeed)

	return candidates, nil
}

// destinations orders the legal buckets for an item by current local headroom
func (p *FallbackPlanner) destinations(
	item entities.ClassifiedItem,
	local *entities.CapacityLedger,
	sameDay, futureSameLine []entities.BucketKey,
) []entities.BucketKey {
	switch item.Class {
	case entities.ClassA, entities.ClassB:
		var allowed []entities.BucketKey
		for _, bucket := range sameDay {
			if item.AllowsLine(bucket.Line) {
				allowed = append(allowed, bucket)
			}
		}
		return local.ByHeadroom(allowed)
	default:
		return local.ByHeadroom(futureSameLine)
	}
}
