package services

import (
	"reflect"
	"strings"
	"testing"

	"github.com/vsinha/rebalance/pkg/domain/entities"
	testhelpers "github.com/vsinha/rebalance/pkg/infrastructure/testing"
)

type validatorFixture struct {
	pc        *entities.PlanningContext
	items     []entities.ClassifiedItem
	ledger    *entities.CapacityLedger
	validator *MoveValidator
}

func newValidatorFixture(t *testing.T) *validatorFixture {
	t.Helper()
	snapshot := buildAssemblySnapshot(t)
	pc := testhelpers.AssemblyPlanningContext()
	classifier := newAssemblyClassifier()

	stock, err := NewStockAnalyzer().Analyze(snapshot, pc.Target)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	profiles := NewSlackCalculator().Calculate(pc, snapshot, stock)

	return &validatorFixture{
		pc:        pc,
		items:     classifier.ClassifyMovable(pc, profiles),
		ledger:    NewCapacityLedgerBuilder().Build(pc, snapshot),
		validator: NewMoveValidator(classifier),
	}
}

func TestMoveValidator_RejectionRules(t *testing.T) {
	f := newValidatorFixture(t)

	tests := []struct {
		name      string
		candidate entities.Candidate
		severity  entities.Severity
		message   string
	}{
		{
			name:      "unknown item",
			candidate: entities.Candidate{Item: "NOPE", Qty: 100, To: "2026-01-21_ASSY3"},
			severity:  entities.SeverityHard,
			message:   "not in movable list",
		},
		{
			name:      "item without slack is not movable",
			candidate: entities.Candidate{Item: "D-DELTA", Qty: 100, To: "2026-01-22_ASSY1"},
			severity:  entities.SeverityHard,
			message:   "not in movable list",
		},
		{
			name:      "zero quantity",
			candidate: entities.Candidate{Item: "T6-ALPHA", Qty: 0, To: "2026-01-21_ASSY3"},
			severity:  entities.SeverityHard,
			message:   "qty must be positive",
		},
		{
			name:      "slack exceeded",
			candidate: entities.Candidate{Item: "T6-ALPHA", Qty: 1300, To: "2026-01-21_ASSY3"},
			severity:  entities.SeverityHard,
			message:   "slack exceeded (1300 > 1200)",
		},
		{
			name:      "not lot aligned",
			candidate: entities.Candidate{Item: "A2XX-BETA", Qty: 75, To: "2026-01-21_ASSY2"},
			severity:  entities.SeverityHard,
			message:   "not lot-aligned",
		},
		{
			name:      "malformed destination",
			candidate: entities.Candidate{Item: "T6-ALPHA", Qty: 100, To: "2026-01-21ASSY2"},
			severity:  entities.SeverityHard,
			message:   "malformed destination",
		},
		{
			name:      "origin on another line",
			candidate: entities.Candidate{Item: "T6-ALPHA", Qty: 100, From: "2026-01-21_ASSY2", To: "2026-01-21_ASSY3"},
			severity:  entities.SeverityHard,
			message:   "is not the target bucket 2026-01-21_ASSY1",
		},
		{
			name:      "malformed origin",
			candidate: entities.Candidate{Item: "T6-ALPHA", Qty: 100, From: "ASSY1", To: "2026-01-21_ASSY3"},
			severity:  entities.SeverityHard,
			message:   "is not the target bucket",
		},
		{
			name:      "ClassB to forbidden line",
			candidate: entities.Candidate{Item: "A2XX-BETA", Qty: 100, To: "2026-01-21_ASSY3"},
			severity:  entities.SeverityHard,
			message:   "cannot be routed to line ASSY3",
		},
		{
			name:      "dedicated cross-line",
			candidate: entities.Candidate{Item: "D-GAMMA", Qty: 100, To: "2026-01-21_ASSY2"},
			severity:  entities.SeverityHard,
			message:   "dedicated item cross-line forbidden",
		},
		{
			name:      "unknown destination bucket",
			candidate: entities.Candidate{Item: "T6-ALPHA", Qty: 100, To: "2026-01-21_ASSY4"},
			severity:  entities.SeverityWarning,
			message:   "no capacity data for destination 2026-01-21_ASSY4",
		},
		{
			name:      "full destination",
			candidate: entities.Candidate{Item: "D-GAMMA", Qty: 100, To: "2026-01-23_ASSY1"},
			severity:  entities.SeverityHard,
			message:   "capacity insufficient, no lot-aligned fit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := f.validator.Validate(f.pc, []entities.Candidate{tt.candidate}, f.items, f.ledger)
			if err != nil {
				t.Fatalf("Validate failed: %v", err)
			}
			if len(result.Outcome.Accepted) != 0 {
				t.Errorf("Expected no accepted moves, got %+v", result.Outcome.Accepted)
			}
			if len(result.Outcome.Violations) != 1 {
				t.Fatalf("Expected exactly one violation, got %d", len(result.Outcome.Violations))
			}
			v := result.Outcome.Violations[0]
			if v.Index != 1 {
				t.Errorf("Expected index 1, got %d", v.Index)
			}
			if v.Severity != tt.severity {
				t.Errorf("Expected severity %s, got %s", tt.severity, v.Severity)
			}
			if !strings.Contains(v.Message, tt.message) {
				t.Errorf("Expected message containing %q, got %q", tt.message, v.Message)
			}
		})
	}
}

func TestMoveValidator_KeepsTargetOrigin(t *testing.T) {
	f := newValidatorFixture(t)
	result, err := f.validator.Validate(f.pc, []entities.Candidate{
		{Item: "T6-ALPHA", Qty: 100, From: "2026-01-21_ASSY1", To: "2026-01-21_ASSY3"},
		{Item: "T6-ALPHA", Qty: 100, To: "2026-01-21_ASSY3"},
	}, f.items, f.ledger)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if len(result.Outcome.Accepted) != 2 {
		t.Fatalf("Expected 2 accepted moves, got %+v", result.Outcome.Violations)
	}
	for _, mv := range result.Outcome.Accepted {
		if mv.From != f.pc.Target {
			t.Errorf("Expected from %s, got %s", f.pc.Target, mv.From)
		}
	}
}

func TestMoveValidator_ShrinksToLotAlignedRemaining(t *testing.T) {
	pc := testhelpers.AssemblyPlanningContext()
	dest := entities.BucketKey{Date: "2026-01-21", Line: "ASSY2"}

	items := []entities.ClassifiedItem{{
		ItemSlackProfile: entities.ItemSlackProfile{Item: "X", CommittedQty: 1000, LotSize: 50, MaxMovable: 300, Movable: true},
		Class:            entities.ClassA,
		Destinations:     []entities.Line{"ASSY2", "ASSY3"},
	}}
	ledger := entities.NewCapacityLedger()
	ledger.Add(entities.CapacityLedgerEntry{Bucket: dest, Max: 3700, Current: 3450, Remaining: 250, Workday: true})

	result, err := newValidatorFixture(t).validator.Validate(pc, []entities.Candidate{
		{Item: "X", Qty: 300, From: pc.Target.String(), To: dest.String(), Reason: "test"},
	}, items, ledger)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	if len(result.Outcome.Accepted) != 1 {
		t.Fatalf("Expected 1 accepted move, got %d", len(result.Outcome.Accepted))
	}
	mv := result.Outcome.Accepted[0]
	if mv.Qty != 250 || !mv.Adjusted || mv.OriginalQty != 300 {
		t.Errorf("Expected adjusted move 300 -> 250, got %+v", mv)
	}
	if mv.From != pc.Target || mv.To != dest {
		t.Errorf("Expected move %s -> %s, got %s -> %s", pc.Target, dest, mv.From, mv.To)
	}
	if len(result.Outcome.Violations) != 1 || result.Outcome.Violations[0].Severity != entities.SeverityAdjusted {
		t.Errorf("Expected one adjusted log entry, got %+v", result.Outcome.Violations)
	}
	if remaining, _ := result.Ledger.Remaining(dest); remaining != 0 {
		t.Errorf("Expected destination remaining 0, got %d", remaining)
	}
	if remaining, _ := ledger.Remaining(dest); remaining != 250 {
		t.Errorf("Expected caller ledger untouched at 250, got %d", remaining)
	}
}

func TestMoveValidator_RemainingBelowLotSize(t *testing.T) {
	pc := testhelpers.AssemblyPlanningContext()
	dest := entities.BucketKey{Date: "2026-01-21", Line: "ASSY2"}

	items := []entities.ClassifiedItem{{
		ItemSlackProfile: entities.ItemSlackProfile{Item: "X", LotSize: 50, MaxMovable: 300, Movable: true},
		Class:            entities.ClassA,
	}}
	ledger := entities.NewCapacityLedger()
	ledger.Add(entities.CapacityLedgerEntry{Bucket: dest, Max: 3700, Current: 3660, Remaining: 40, Workday: true})

	result, err := newValidatorFixture(t).validator.Validate(pc, []entities.Candidate{
		{Item: "X", Qty: 100, To: dest.String()},
	}, items, ledger)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if len(result.Outcome.Accepted) != 0 {
		t.Fatalf("Expected rejection, got %+v", result.Outcome.Accepted)
	}
	if result.Outcome.Violations[0].Severity != entities.SeverityHard {
		t.Errorf("Expected hard violation, got %s", result.Outcome.Violations[0].Severity)
	}
}

func TestMoveValidator_NonWorkdayDestination(t *testing.T) {
	f := newValidatorFixture(t)
	holiday := entities.BucketKey{Date: "2026-01-24", Line: "ASSY1"}

	ledger := f.ledger.Clone()
	ledger.Add(entities.CapacityLedgerEntry{Bucket: holiday, Max: 3300, Current: 0, Remaining: 3300, Workday: false})

	result, err := f.validator.Validate(f.pc, []entities.Candidate{
		{Item: "D-GAMMA", Qty: 100, To: holiday.String()},
	}, f.items, ledger)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	if len(result.Outcome.Accepted) != 0 {
		t.Fatalf("Expected no accepted moves, got %+v", result.Outcome.Accepted)
	}
	v := result.Outcome.Violations[0]
	if v.Severity != entities.SeverityHard || !strings.Contains(v.Message, "not a workday") {
		t.Errorf("Expected hard non-workday violation, got %+v", v)
	}
	if remaining, _ := result.Ledger.Remaining(holiday); remaining != 3300 {
		t.Errorf("Expected holiday remaining unchanged at 3300, got %d", remaining)
	}
}

func TestMoveValidator_SequentialReservation(t *testing.T) {
	f := newValidatorFixture(t)
	assy3 := entities.BucketKey{Date: "2026-01-21", Line: "ASSY3"}
	assy2 := entities.BucketKey{Date: "2026-01-21", Line: "ASSY2"}

	candidates := []entities.Candidate{
		{Item: "T6-ALPHA", Qty: 400, To: assy3.String()},
		{Item: "T6-ALPHA", Qty: 400, To: assy3.String()},
		{Item: "A2XX-BETA", Qty: 150, To: assy2.String()},
		{Item: "A2XX-BETA", Qty: 100, To: assy2.String()},
		{Item: "D-GAMMA", Qty: 300, To: "2026-01-22_ASSY1"},
	}

	result, err := f.validator.Validate(f.pc, candidates, f.items, f.ledger)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	accepted := result.Outcome.Accepted
	if len(accepted) != 5 {
		t.Fatalf("Expected 5 accepted moves, got %d: %+v", len(accepted), accepted)
	}
	if accepted[0].Qty != 400 || accepted[0].Adjusted {
		t.Errorf("Expected first move unadjusted 400, got %+v", accepted[0])
	}
	// ASSY3 has 200 left after the first move
	if accepted[1].Qty != 200 || !accepted[1].Adjusted {
		t.Errorf("Expected second move adjusted to 200, got %+v", accepted[1])
	}
	if accepted[2].Qty != 150 || accepted[2].Adjusted {
		t.Errorf("Expected third move unadjusted 150, got %+v", accepted[2])
	}
	// ASSY2 has 50 left, exactly one A2XX lot
	if accepted[3].Qty != 50 || !accepted[3].Adjusted || accepted[3].OriginalQty != 100 {
		t.Errorf("Expected fourth move adjusted 100 -> 50, got %+v", accepted[3])
	}
	if accepted[4].Item != "D-GAMMA" || accepted[4].Qty != 300 {
		t.Errorf("Expected fifth move D-GAMMA 300, got %+v", accepted[4])
	}

	hard := result.Outcome.CountBySeverity(entities.SeverityHard)
	adjusted := result.Outcome.CountBySeverity(entities.SeverityAdjusted)
	if hard != 0 || adjusted != 2 {
		t.Errorf("Expected 0 hard and 2 adjusted entries, got %d hard, %d adjusted: %+v", hard, adjusted, result.Outcome.Violations)
	}
	var adjustedIdx []int
	for _, v := range result.Outcome.Violations {
		if v.Severity == entities.SeverityAdjusted {
			adjustedIdx = append(adjustedIdx, v.Index)
		}
	}
	if len(adjustedIdx) != 2 || adjustedIdx[0] != 2 || adjustedIdx[1] != 4 {
		t.Errorf("Expected candidates 2 and 4 adjusted, got %v", adjustedIdx)
	}

	// Invariant: remaining_final = remaining_initial - sum(accepted into bucket)
	moved := make(map[entities.BucketKey]entities.Quantity)
	for _, mv := range accepted {
		moved[mv.To] += mv.Qty
		if !mv.Qty.IsLotAligned(lotSizeOf(f.items, mv.Item)) {
			t.Errorf("Accepted move %+v is not lot-aligned", mv)
		}
	}
	for bucket, qty := range moved {
		initial, _ := f.ledger.Remaining(bucket)
		final, _ := result.Ledger.Remaining(bucket)
		if final != initial-qty {
			t.Errorf("Bucket %s: expected remaining %d, got %d", bucket, initial-qty, final)
		}
		if final < 0 {
			t.Errorf("Bucket %s went negative: %d", bucket, final)
		}
	}
}

func TestMoveValidator_Deterministic(t *testing.T) {
	f := newValidatorFixture(t)
	candidates := []entities.Candidate{
		{Item: "T6-ALPHA", Qty: 700, To: "2026-01-21_ASSY3"},
		{Item: "A2XX-BETA", Qty: 250, To: "2026-01-21_ASSY2"},
		{Item: "D-GAMMA", Qty: 300, To: "2026-01-26_ASSY1"},
		{Item: "D-GAMMA", Qty: 300, To: "2026-01-24_ASSY1"},
	}

	first, err := f.validator.Validate(f.pc, candidates, f.items, f.ledger)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	second, err := f.validator.Validate(f.pc, candidates, f.items, f.ledger)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	if !reflect.DeepEqual(first.Outcome, second.Outcome) {
		t.Errorf("Expected identical outcomes, got\n%+v\n%+v", first.Outcome, second.Outcome)
	}
}

func TestMoveValidator_MissingInputs(t *testing.T) {
	f := newValidatorFixture(t)

	if _, err := f.validator.Validate(nil, nil, f.items, f.ledger); err == nil {
		t.Error("Expected error for missing planning context")
	}
	if _, err := f.validator.Validate(f.pc, nil, f.items, nil); err == nil {
		t.Error("Expected error for missing ledger")
	}
	if _, err := NewMoveValidator(nil).Validate(f.pc, nil, f.items, f.ledger); err == nil {
		t.Error("Expected error for missing classifier")
	}
}

func lotSizeOf(items []entities.ClassifiedItem, name entities.ItemName) entities.Quantity {
	for _, item := range items {
		if item.Item == name {
			return item.LotSize
		}
	}
	return 0
}
