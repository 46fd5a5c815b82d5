package main

import (
	"context"
	"fmt"
	"log"

	"github.com/vsinha/rebalance/pkg/application/dto"
	"github.com/vsinha/rebalance/pkg/application/services/adjustment"
	"github.com/vsinha/rebalance/pkg/application/services/planner"
	"github.com/vsinha/rebalance/pkg/domain/entities"
	"github.com/vsinha/rebalance/pkg/domain/services"
	"github.com/vsinha/rebalance/pkg/infrastructure/repositories/memory"
	"github.com/vsinha/rebalance/pkg/interfaces/cli/output"
)

func main() {
	ctx := context.Background()

	// Two lines; L1 is overloaded on 2026-03-02
	table, err := entities.NewCapacityTable([]entities.LineCapacity{
		{Line: "L1", MaxDailyQty: 1000},
		{Line: "L2", MaxDailyQty: 1000},
	})
	if err != nil {
		log.Fatal(err)
	}

	repo := memory.NewPlanRepository(0)
	err = repo.LoadPlanRows(setupPlan())
	if err != nil {
		log.Fatal(err)
	}

	svc, err := adjustment.NewService(adjustment.Config{
		Capacity: table,
		Rules: services.RoutingRules{
			ClassAPatterns: []string{"FLEX"},
		},
	}, repo, planner.NewPlanner(nil, planner.NewFallbackPlanner(nil), nil))
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("🚀 Relieving L1 on 2026-03-02...")
	result, err := svc.Run(ctx, dto.AdjustmentRequest{Date: "2026-03-02", Line: "L1"})
	if err != nil {
		log.Fatal(err)
	}

	if err := output.Generate(result, output.Config{Format: "text"}); err != nil {
		log.Fatal(err)
	}
}

func setupPlan() []*entities.PlanRow {
	rows := []entities.PlanRow{
		{Date: "2026-03-02", Line: "L1", Item: "FLEX-100", CommittedQty: 600, DemandQty: 200, LotSize: 100, IsWorkday: true},
		{Date: "2026-03-02", Line: "L1", Item: "FIXED-7", CommittedQty: 400, DemandQty: 100, LotSize: 50, IsWorkday: true},
		{Date: "2026-03-02", Line: "L2", Item: "OTHER", CommittedQty: 500, DemandQty: 500, LotSize: 100, IsWorkday: true},
		{Date: "2026-03-03", Line: "L1", Item: "FIXED-7", CommittedQty: 600, DemandQty: 500, LotSize: 50, IsWorkday: true},
		{Date: "2026-03-04", Line: "L1", Item: "FLEX-100", CommittedQty: 500, DemandQty: 700, LotSize: 100, IsWorkday: true},
	}
	plan := make([]*entities.PlanRow, len(rows))
	for i := range rows {
		plan[i] = &rows[i]
	}
	return plan
}
