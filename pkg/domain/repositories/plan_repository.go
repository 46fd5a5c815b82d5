package repositories

import (
	"context"

	"github.com/vsinha/rebalance/pkg/domain/entities"
)

// PlanRepository provides access to committed production plan rows
type PlanRepository interface {
	// GetPlanRows returns every row dated within [from, to], inclusive.
	// An empty result is a valid "no plan" answer, not an error.
	GetPlanRows(ctx context.Context, from, to entities.PlanDate) ([]entities.PlanRow, error)
}
