// Package planner produces candidate move lists for an adjustment run.
// Candidates are proposals only; the move validator decides what is accepted.
package planner

import (
	"context"

	"github.com/vsinha/rebalance/pkg/domain/entities"
)

// Mode names the kind of adjustment being planned
type Mode string

const (
	// ModeReduce lowers the target bucket toward the target quantity
	ModeReduce Mode = "reduce"
	// ModeSample frees room for an inserted sample batch
	ModeSample Mode = "sample"
)

// Input is the fact set every strategy plans from
type Input struct {
	Mode    Mode
	Context *entities.PlanningContext
	NeedQty entities.Quantity
	Items   []entities.ClassifiedItem
	// Ledger is read-only for strategies; implementations work on their own copy
	Ledger *entities.CapacityLedger
}

// Strategy produces candidate moves for one run
type Strategy interface {
	Name() string
	Plan(ctx context.Context, in Input) ([]entities.Candidate, error)
}
