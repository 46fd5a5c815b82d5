package testing

import (
	"github.com/vsinha/rebalance/pkg/domain/entities"
	"github.com/vsinha/rebalance/pkg/infrastructure/repositories/memory"
)

// Assembly scenario constants. The target bucket is 2026-01-21 on ASSY1.
const (
	AssemblyTargetDate entities.PlanDate = "2026-01-21"
	AssemblyTargetLine entities.Line     = "ASSY1"
)

// mustRow is a helper for tests - panics on validation error
func mustRow(date, line, item string, committed, demand, lot entities.Quantity, workday bool) *entities.PlanRow {
	row, err := entities.NewPlanRow(
		entities.PlanDate(date),
		entities.Line(line),
		entities.ItemName(item),
		committed,
		demand,
		lot,
		workday,
	)
	if err != nil {
		panic(err)
	}
	return row
}

// AssemblyCapacityTable returns the three-line capacity table of the assembly scenario
func AssemblyCapacityTable() *entities.CapacityTable {
	table, err := entities.NewCapacityTable([]entities.LineCapacity{
		{Line: "ASSY1", MaxDailyQty: 3300},
		{Line: "ASSY2", MaxDailyQty: 3700},
		{Line: "ASSY3", MaxDailyQty: 3600},
	})
	if err != nil {
		panic(err)
	}
	return table
}

// AssemblyRoutingRules returns the family rules of the assembly scenario:
// T6 items route anywhere, A2XX items never go to ASSY3.
func AssemblyRoutingRules() (classA, classB []string, forbidden []entities.Line) {
	return []string{"T6"}, []string{"A2XX"}, []entities.Line{"ASSY3"}
}

// BuildAssemblyPlan builds the assembly scenario plan rows.
//
// Target bucket 2026-01-21/ASSY1 holds 3000 units:
//
//	T6-ALPHA   1200 (lot 100)  banked surplus 1200, last due 2026-01-28
//	A2XX-BETA   800 (lot 50)   future slack +200, last due 2026-01-27
//	D-GAMMA     900 (lot 100)  future slack -200, last due 2026-01-26
//	D-DELTA     100 (lot 100)  future slack -500, not movable
//
// Same-day headroom: ASSY2 200, ASSY3 600. Future ASSY1 headroom:
// 01-22 300, 01-23 0, 01-26 300, 01-27 200, 01-28 100, 01-29 0, 01-30 0.
// 2026-01-24 and 2026-01-25 are flagged as non-workdays.
func BuildAssemblyPlan() []*entities.PlanRow {
	return []*entities.PlanRow{
		// history
		mustRow("2026-01-19", "ASSY1", "T6-ALPHA", 500, 500, 100, true),
		mustRow("2026-01-20", "ASSY1", "D-GAMMA", 0, 400, 100, true),

		// target bucket
		mustRow("2026-01-21", "ASSY1", "T6-ALPHA", 1200, 0, 100, true),
		mustRow("2026-01-21", "ASSY1", "A2XX-BETA", 800, 800, 50, true),
		mustRow("2026-01-21", "ASSY1", "D-GAMMA", 900, 600, 100, true),
		mustRow("2026-01-21", "ASSY1", "D-DELTA", 100, 100, 100, true),

		// other lines on the target date
		mustRow("2026-01-21", "ASSY2", "FILL-B", 3500, 3500, 100, true),
		mustRow("2026-01-21", "ASSY3", "FILL-C", 3000, 3000, 100, true),

		// future target-line load
		mustRow("2026-01-22", "ASSY1", "FILL-A", 3000, 3000, 100, true),
		mustRow("2026-01-22", "ASSY1", "D-DELTA", 0, 500, 100, true),
		mustRow("2026-01-23", "ASSY1", "FILL-A", 3300, 3300, 100, true),
		mustRow("2026-01-24", "ASSY1", "FILL-A", 0, 0, 100, false),
		mustRow("2026-01-25", "ASSY1", "FILL-A", 0, 0, 100, false),
		mustRow("2026-01-26", "ASSY1", "D-GAMMA", 300, 500, 100, true),
		mustRow("2026-01-26", "ASSY1", "FILL-A", 2700, 2700, 100, true),
		mustRow("2026-01-27", "ASSY1", "FILL-A", 3100, 3100, 100, true),
		mustRow("2026-01-27", "ASSY2", "A2XX-BETA", 400, 200, 50, true),
		mustRow("2026-01-28", "ASSY1", "T6-ALPHA", 0, 1000, 100, true),
		mustRow("2026-01-28", "ASSY1", "FILL-A", 3200, 3200, 100, true),
		mustRow("2026-01-29", "ASSY1", "FILL-A", 3300, 3300, 100, true),
		mustRow("2026-01-30", "ASSY1", "FILL-A", 3300, 3300, 100, true),
	}
}

// AssemblyPlanRows returns the scenario rows by value
func AssemblyPlanRows() []entities.PlanRow {
	source := BuildAssemblyPlan()
	rows := make([]entities.PlanRow, len(source))
	for i, row := range source {
		rows[i] = *row
	}
	return rows
}

// BuildAssemblyRepository loads the assembly scenario into an in-memory repository
func BuildAssemblyRepository() *memory.PlanRepository {
	rows := BuildAssemblyPlan()
	repo := memory.NewPlanRepository(len(rows))
	if err := repo.LoadPlanRows(rows); err != nil {
		panic(err)
	}
	return repo
}

// AssemblyPlanningContext returns the planning context for the scenario target bucket
func AssemblyPlanningContext() *entities.PlanningContext {
	pc, err := entities.NewPlanningContext(
		AssemblyTargetDate,
		entities.BucketKey{Date: AssemblyTargetDate, Line: AssemblyTargetLine},
		AssemblyCapacityTable(),
		entities.DefaultLookaheadWorkdays,
	)
	if err != nil {
		panic(err)
	}
	return pc
}
