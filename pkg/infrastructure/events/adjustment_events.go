package events

import (
	"github.com/vsinha/rebalance/pkg/domain/entities"
)

const (
	RunStartedEvent   = "run.started"
	MoveAcceptedEvent = "move.accepted"
	MoveRejectedEvent = "move.rejected"
	RunCompletedEvent = "run.completed"
)

// AllEventTypes lists every event an adjustment run can emit
var AllEventTypes = []string{RunStartedEvent, MoveAcceptedEvent, MoveRejectedEvent, RunCompletedEvent}

type RunStarted struct {
	Target    entities.BucketKey `json:"target"`
	SampleQty entities.Quantity  `json:"sample_qty,omitempty"`
}

type MoveAccepted struct {
	Move entities.Move `json:"move"`
}

type MoveRejected struct {
	Violation entities.Violation `json:"violation"`
}

type RunCompleted struct {
	Target      entities.BucketKey `json:"target"`
	Status      string             `json:"status"`
	Strategy    string             `json:"strategy,omitempty"`
	NeedQty     entities.Quantity  `json:"need_qty"`
	AchievedQty entities.Quantity  `json:"achieved_qty"`
	Accepted    int                `json:"accepted"`
	Violations  int                `json:"violations"`
}

func NewRunStartedEvent(runID string, target entities.BucketKey, sampleQty entities.Quantity) Event {
	return NewEvent(RunStartedEvent, runID, RunStarted{Target: target, SampleQty: sampleQty})
}

func NewMoveAcceptedEvent(runID string, move entities.Move) Event {
	return NewEvent(MoveAcceptedEvent, runID, MoveAccepted{Move: move})
}

// NewMoveRejectedEvent records a hard or warning entry; adjusted entries travel with their accepted move
func NewMoveRejectedEvent(runID string, violation entities.Violation) Event {
	return NewEvent(MoveRejectedEvent, runID, MoveRejected{Violation: violation})
}

func NewRunCompletedEvent(runID string, completed RunCompleted) Event {
	return NewEvent(RunCompletedEvent, runID, completed)
}
