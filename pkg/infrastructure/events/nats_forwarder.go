package events

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// DefaultSubject is where completed runs are published when no subject is configured
const DefaultSubject = "rebalance.runs.completed"

// Publisher is the part of a NATS connection the forwarder needs
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSForwarder publishes run events to a NATS subject
type NATSForwarder struct {
	publisher Publisher
	subject   string
	types     map[string]bool
	logger    *slog.Logger
}

// NewNATSForwarder creates a handler forwarding the given event types
func NewNATSForwarder(publisher Publisher, subject string, eventTypes []string, logger *slog.Logger) *NATSForwarder {
	if subject == "" {
		subject = DefaultSubject
	}
	if logger == nil {
		logger = slog.Default()
	}
	types := make(map[string]bool, len(eventTypes))
	for _, t := range eventTypes {
		types[t] = true
	}
	return &NATSForwarder{publisher: publisher, subject: subject, types: types, logger: logger}
}

func (f *NATSForwarder) CanHandle(eventType string) bool {
	return f.types[eventType]
}

func (f *NATSForwarder) Handle(event Event) error {
	data, err := Encode(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event.Type(), err)
	}
	if err := f.publisher.Publish(f.subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", f.subject, err)
	}
	f.logger.Debug("Event forwarded", "type", event.Type(), "run_id", event.StreamID(), "subject", f.subject)
	return nil
}

// ConnectNATS dials the broker used by the forwarder
func ConnectNATS(url string, logger *slog.Logger) (*nats.Conn, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := nats.Connect(url,
		nats.Name("rebalance"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", "error", err)
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return conn, nil
}
