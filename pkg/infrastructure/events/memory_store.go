package events

import (
	"log/slog"
	"sync"
)

// DefaultRetainedRuns is how many runs keep their event history when no limit is given
const DefaultRetainedRuns = 100

// InMemoryEventStore keeps the events of the most recent runs and notifies
// subscribers asynchronously. Older runs are evicted whole.
type InMemoryEventStore struct {
	streams     map[string][]Event
	order       []string
	maxStreams  int
	subscribers map[string][]EventHandler
	mutex       sync.RWMutex
	pending     sync.WaitGroup
	logger      *slog.Logger
}

// NewInMemoryEventStore creates a store retaining at most maxRuns runs.
// maxRuns <= 0 selects DefaultRetainedRuns.
func NewInMemoryEventStore(maxRuns int, logger *slog.Logger) *InMemoryEventStore {
	if logger == nil {
		logger = slog.Default()
	}
	if maxRuns <= 0 {
		maxRuns = DefaultRetainedRuns
	}
	return &InMemoryEventStore{
		streams:     make(map[string][]Event),
		maxStreams:  maxRuns,
		subscribers: make(map[string][]EventHandler),
		logger:      logger,
	}
}

// AppendEvent versions the event within its run, stores it and fans it out
func (s *InMemoryEventStore) AppendEvent(streamID string, event Event) error {
	s.mutex.Lock()
	if _, exists := s.streams[streamID]; !exists {
		s.order = append(s.order, streamID)
		for len(s.order) > s.maxStreams {
			delete(s.streams, s.order[0])
			s.order = s.order[1:]
		}
	}
	versioned := BaseEvent{
		EventType:    event.Type(),
		Stream:       streamID,
		EventData:    event.Data(),
		EventTime:    event.Timestamp(),
		EventVersion: len(s.streams[streamID]) + 1,
	}
	s.streams[streamID] = append(s.streams[streamID], versioned)
	handlers := append([]EventHandler(nil), s.subscribers[versioned.EventType]...)
	s.mutex.Unlock()

	for _, handler := range handlers {
		if !handler.CanHandle(versioned.EventType) {
			continue
		}
		s.pending.Add(1)
		go func(h EventHandler, e Event) {
			defer s.pending.Done()
			if err := h.Handle(e); err != nil {
				s.logger.Warn("Event handler failed",
					"type", e.Type(),
					"run_id", e.StreamID(),
					"error", err)
			}
		}(handler, versioned)
	}

	return nil
}

// ReadEvents returns the events of one run starting at fromVersion (1-based).
// Unknown and evicted runs return no events.
func (s *InMemoryEventStore) ReadEvents(streamID string, fromVersion int) ([]Event, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	events, exists := s.streams[streamID]
	if !exists {
		return []Event{}, nil
	}
	if fromVersion < 1 {
		fromVersion = 1
	}
	if fromVersion > len(events) {
		return []Event{}, nil
	}
	return append([]Event(nil), events[fromVersion-1:]...), nil
}

// RetainedRuns is the number of runs currently holding history
func (s *InMemoryEventStore) RetainedRuns() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.streams)
}

// Subscribe registers handler for the given event types
func (s *InMemoryEventStore) Subscribe(eventTypes []string, handler EventHandler) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, eventType := range eventTypes {
		s.subscribers[eventType] = append(s.subscribers[eventType], handler)
	}
	return nil
}

// Wait blocks until every handler started so far has returned
func (s *InMemoryEventStore) Wait() {
	s.pending.Wait()
}
