package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/rebalance/pkg/domain/entities"
)

// RunStatus summarizes a run for the presentation layer
type RunStatus string

const (
	// StatusNoActionNeeded means the bucket is already at or below target
	StatusNoActionNeeded RunStatus = "no_action_needed"
	// StatusNoFeasiblePlan means reduction was needed but no move was accepted
	StatusNoFeasiblePlan RunStatus = "no_feasible_plan"
	// StatusPartial means some but not all of the need was moved
	StatusPartial RunStatus = "partial"
	// StatusComplete means accepted moves cover the whole need
	StatusComplete RunStatus = "complete"
)

// Metrics are the aggregate figures of a run
type Metrics struct {
	CurrentTotal    entities.Quantity `json:"current_total"`
	SampleQty       entities.Quantity `json:"sample_qty,omitempty"`
	TargetQty       entities.Quantity `json:"target_qty"`
	NeedQty         entities.Quantity `json:"need_qty"`
	AchievedQty     entities.Quantity `json:"achieved_qty"`
	AchievementRate decimal.Decimal   `json:"achievement_rate"`
}

// LedgerView is one ledger bucket as shown in reports
type LedgerView struct {
	Bucket    entities.BucketKey `json:"bucket"`
	Max       entities.Quantity  `json:"max"`
	Current   entities.Quantity  `json:"current"`
	Remaining entities.Quantity  `json:"remaining"`
	UsageRate decimal.Decimal    `json:"usage_rate"`
	Badge     string             `json:"badge"`
	Workday   bool               `json:"workday"`
}

// AdjustmentResult contains the complete output of one adjustment run
type AdjustmentResult struct {
	RunID          string                      `json:"run_id"`
	AnalysisDate   entities.PlanDate           `json:"analysis_date"`
	Target         entities.BucketKey          `json:"target"`
	Status         RunStatus                   `json:"status"`
	StatusReason   string                      `json:"status_reason,omitempty"`
	Stock          *entities.StockSnapshot     `json:"stock"`
	Profiles       []entities.ItemSlackProfile `json:"profiles"`
	MovableItems   []entities.ClassifiedItem   `json:"movable_items"`
	Ledger         []LedgerView                `json:"ledger"`
	Strategy       string                      `json:"strategy,omitempty"`
	FallbackReason string                      `json:"fallback_reason,omitempty"`
	Candidates     []entities.Candidate        `json:"candidates"`
	Outcome        entities.ValidationOutcome  `json:"outcome"`
	Metrics        Metrics                     `json:"metrics"`
	StartedAt      time.Time                   `json:"started_at"`
	Duration       time.Duration               `json:"duration"`
}
