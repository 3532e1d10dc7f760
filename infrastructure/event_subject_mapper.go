package infrastructure

import (
	"fmt"

	"github.com/Fuyukai/Jokusoramame-sub000/events"
)

// EventSubjectMapper maps domain events to NATS subjects
type EventSubjectMapper struct{}

func NewEventSubjectMapper() *EventSubjectMapper {
	return &EventSubjectMapper{}
}

// MapEventToSubject converts a domain event to its subject
func (m *EventSubjectMapper) MapEventToSubject(event events.Event) string {
	switch event.Type() {
	case events.EventTypeLevelUp:
		return "levels.level_up"
	case events.EventTypeReminderFired:
		return "reminders.fired"
	case events.EventTypeDecayApplied:
		return "economy.decay_applied"
	default:
		return fmt.Sprintf("unknown.%s", event.Type())
	}
}

// GetAllSubjects returns every subject this service publishes to
func (m *EventSubjectMapper) GetAllSubjects() []string {
	return []string{
		"levels.level_up",
		"reminders.fired",
		"economy.decay_applied",
	}
}
