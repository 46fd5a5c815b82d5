package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/vsinha/rebalance/pkg/domain/entities"
	"github.com/vsinha/rebalance/pkg/domain/repositories"
)

// PlanRepository provides in-memory plan row storage
type PlanRepository struct {
	rows  []entities.PlanRow
	mutex sync.RWMutex
}

// NewPlanRepository creates a new in-memory plan repository
func NewPlanRepository(expectedRows int) *PlanRepository {
	return &PlanRepository{
		rows: make([]entities.PlanRow, 0, expectedRows),
	}
}

// Verify interface compliance
var _ repositories.PlanRepository = (*PlanRepository)(nil)

// LoadPlanRows validates and appends rows to the repository
func (r *PlanRepository) LoadPlanRows(rows []*entities.PlanRow) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for i, row := range rows {
		if row == nil {
			return fmt.Errorf("plan row %d is nil", i+1)
		}
		if err := row.Validate(); err != nil {
			return fmt.Errorf("plan row %d: %w", i+1, err)
		}
	}
	for _, row := range rows {
		r.rows = append(r.rows, *row)
	}
	return nil
}

// GetPlanRows returns rows dated within [from, to] in load order
func (r *PlanRepository) GetPlanRows(ctx context.Context, from, to entities.PlanDate) ([]entities.PlanRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var rows []entities.PlanRow
	for _, row := range r.rows {
		if row.Date.Before(from) || row.Date.After(to) {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Len returns the number of stored rows
func (r *PlanRepository) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.rows)
}
