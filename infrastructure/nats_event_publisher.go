package infrastructure

import (
	"context"
	"fmt"
	"time"

	"github.com/Fuyukai/Jokusoramame-sub000/events"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// MessagePublisher is the transport the forwarder writes to
type MessagePublisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// EventEnvelope wraps every forwarded event
type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	Timestamp     time.Time       `json:"timestamp"`
	SourceService string          `json:"source_service"`
	Payload       json.RawMessage `json:"payload"`
}

// NATSEventForwarder implements events.Forwarder on top of JetStream
type NATSEventForwarder struct {
	publisher     MessagePublisher
	subjectMapper *EventSubjectMapper
}

func NewNATSEventForwarder(publisher MessagePublisher, subjectMapper *EventSubjectMapper) *NATSEventForwarder {
	return &NATSEventForwarder{
		publisher:     publisher,
		subjectMapper: subjectMapper,
	}
}

// Forward publishes the event wrapped in an envelope
func (p *NATSEventForwarder) Forward(ctx context.Context, event events.Event) error {
	subject := p.subjectMapper.MapEventToSubject(event)

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	envelope := EventEnvelope{
		EventID:       uuid.New().String(),
		EventType:     string(event.Type()),
		Timestamp:     time.Now().UTC(),
		SourceService: "jokusoramame",
		Payload:       payload,
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal event envelope: %w", err)
	}

	if err := p.publisher.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish event to NATS: %w", err)
	}

	log.WithFields(log.Fields{
		"eventType": event.Type(),
		"eventId":   envelope.EventID,
		"subject":   subject,
	}).Debug("Forwarded event to NATS")
	return nil
}
