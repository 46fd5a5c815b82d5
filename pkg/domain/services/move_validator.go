package services

import (
	"fmt"

	"github.com/vsinha/rebalance/pkg/domain/entities"
)

// MoveValidator is the authoritative feasibility gate for candidate moves
type MoveValidator struct {
	classifier *ConstraintClassifier
}

// NewMoveValidator creates a validator that applies the classifier's routing rules
func NewMoveValidator(classifier *ConstraintClassifier) *MoveValidator {
	return &MoveValidator{classifier: classifier}
}

// ValidationResult pairs the outcome with the validator's ledger copy after all reservations
type ValidationResult struct {
	Outcome entities.ValidationOutcome
	Ledger  *entities.CapacityLedger
}

// Validate checks candidates strictly in order against a private copy of the ledger.
// Each accepted candidate reserves its quantity before the next one is checked, so
// later candidates see the reduced headroom. Business-rule failures never return an error;
// an error means the inputs themselves are incomplete.
func (v *MoveValidator) Validate(
	pc *entities.PlanningContext,
	candidates []entities.Candidate,
	items []entities.ClassifiedItem,
	ledger *entities.CapacityLedger,
) (*ValidationResult, error) {
	if pc == nil {
		return nil, fmt.Errorf("planning context is required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("capacity ledger is required")
	}
	if v.classifier == nil {
		return nil, fmt.Errorf("constraint classifier is required")
	}

	movable := make(map[entities.ItemName]entities.ClassifiedItem, len(items))
	for _, item := range items {
		if _, exists := movable[item.Item]; !exists {
			movable[item.Item] = item
		}
	}

	result := &ValidationResult{
		Outcome: entities.ValidationOutcome{
			Accepted:   make([]entities.Move, 0, len(candidates)),
			Violations: make([]entities.Violation, 0),
		},
		Ledger: ledger.Clone(),
	}

	for i, candidate := range candidates {
		move, violation := v.check(pc, i+1, candidate, movable, result.Ledger)
		if violation != nil {
			result.Outcome.Violations = append(result.Outcome.Violations, *violation)
		}
		if move == nil {
			continue
		}

		if err := result.Ledger.Reserve(move.To, move.Qty); err != nil {
			return nil, fmt.Errorf("candidate %d: %w", i+1, err)
		}
		result.Outcome.Accepted = append(result.Outcome.Accepted, *move)
	}

	return result, nil
}

// check applies the rules in order and stops at the first failure.
// It returns the move to accept (nil when rejected) and at most one log entry.
func (v *MoveValidator) check(
	pc *entities.PlanningContext,
	index int,
	candidate entities.Candidate,
	movable map[entities.ItemName]entities.ClassifiedItem,
	ledger *entities.CapacityLedger,
) (*entities.Move, *entities.Violation) {
	hard := func(format string, args ...interface{}) (*entities.Move, *entities.Violation) {
		return nil, &entities.Violation{
			Index:    index,
			Item:     candidate.Item,
			Severity: entities.SeverityHard,
			Message:  fmt.Sprintf(format, args...),
		}
	}

	item, ok := movable[candidate.Item]
	if !ok {
		return hard("not in movable list")
	}

	qty := candidate.Qty
	if qty <= 0 {
		return hard("qty must be positive, got %d", qty)
	}
	if qty > item.MaxMovable {
		return hard("slack exceeded (%d > %d)", qty, item.MaxMovable)
	}
	if !qty.IsLotAligned(item.LotSize) {
		return hard("not lot-aligned (qty %d, lot size %d)", qty, item.LotSize)
	}

	to, err := entities.ParseBucketKey(candidate.To)
	if err != nil {
		return hard("malformed destination %q", candidate.To)
	}
	if candidate.From != "" {
		from, err := entities.ParseBucketKey(candidate.From)
		if err != nil || from != pc.Target {
			return hard("origin %q is not the target bucket %s", candidate.From, pc.Target)
		}
	}

	if item.Class == entities.ClassB && v.classifier.IsForbidden(item.Class, to.Line) {
		return hard("%s item cannot be routed to line %s", item.Class, to.Line)
	}
	if item.Class == entities.Dedicated && to.Line != pc.Target.Line {
		return hard("dedicated item cross-line forbidden (%s -> %s)", pc.Target.Line, to.Line)
	}

	entry, ok := ledger.Get(to)
	if !ok {
		return nil, &entities.Violation{
			Index:    index,
			Item:     candidate.Item,
			Severity: entities.SeverityWarning,
			Message:  fmt.Sprintf("no capacity data for destination %s", to),
		}
	}
	if !entry.Workday {
		return hard("destination %s is not a workday", to.Date)
	}

	move := &entities.Move{
		Item:   candidate.Item,
		Qty:    qty,
		From:   pc.Target,
		To:     to,
		Reason: candidate.Reason,
	}

	if entry.Remaining < qty {
		if entry.Remaining < item.LotSize {
			return hard("capacity insufficient, no lot-aligned fit (requested %d, remaining %d)", qty, entry.Remaining)
		}
		adjusted := entry.Remaining.FloorToLot(item.LotSize)
		move.Qty = adjusted
		move.Adjusted = true
		move.OriginalQty = qty
		return move, &entities.Violation{
			Index:    index,
			Item:     candidate.Item,
			Severity: entities.SeverityAdjusted,
			Message:  fmt.Sprintf("capacity shortfall, adjusted %d -> %d", qty, adjusted),
		}
	}

	return move, nil
}
