package events

import (
	"encoding/json"
	"time"
)

// Event is one fact emitted during an adjustment run. The stream id is the run id.
type Event interface {
	Type() string
	StreamID() string
	Data() interface{}
	Timestamp() time.Time
	Version() int
}

// EventHandler receives events of the types it subscribed to
type EventHandler interface {
	Handle(event Event) error
	CanHandle(eventType string) bool
}

// EventStore appends run events and fans them out to subscribers
type EventStore interface {
	AppendEvent(streamID string, event Event) error
	ReadEvents(streamID string, fromVersion int) ([]Event, error)
	Subscribe(eventTypes []string, handler EventHandler) error
}

type BaseEvent struct {
	EventType    string
	Stream       string
	EventData    interface{}
	EventTime    time.Time
	EventVersion int
}

func (e BaseEvent) Type() string {
	return e.EventType
}

func (e BaseEvent) StreamID() string {
	return e.Stream
}

func (e BaseEvent) Data() interface{} {
	return e.EventData
}

func (e BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

func (e BaseEvent) Version() int {
	return e.EventVersion
}

// Envelope is the wire form of an event
type Envelope struct {
	Type      string          `json:"type"`
	RunID     string          `json:"run_id"`
	Version   int             `json:"version"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// NewEnvelope renders the event payload as JSON inside its envelope
func NewEnvelope(event Event) (Envelope, error) {
	data, err := json.Marshal(event.Data())
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		Type:      event.Type(),
		RunID:     event.StreamID(),
		Version:   event.Version(),
		Timestamp: event.Timestamp().UTC(),
		Data:      data,
	}, nil
}

// Encode renders an event as a JSON envelope
func Encode(event Event) ([]byte, error) {
	envelope, err := NewEnvelope(event)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope)
}

func NewEvent(eventType, runID string, data interface{}) Event {
	return BaseEvent{
		EventType:    eventType,
		Stream:       runID,
		EventData:    data,
		EventTime:    time.Now(),
		EventVersion: 1,
	}
}
