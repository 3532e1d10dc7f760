package events

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
)

// EventType identifies a domain event
type EventType string

const (
	EventTypeLevelUp       EventType = "level_up"
	EventTypeReminderFired EventType = "reminder_fired"
	EventTypeDecayApplied  EventType = "decay_applied"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// LevelUpEvent is raised when a message pushes a member over a level boundary.
// ChannelID is where the triggering message was sent.
type LevelUpEvent struct {
	GuildID   int64 `json:"guild_id"`
	UserID    int64 `json:"user_id"`
	ChannelID int64 `json:"channel_id"`
	OldLevel  int   `json:"old_level"`
	NewLevel  int   `json:"new_level"`
	XP        int64 `json:"xp"`
}

func (e LevelUpEvent) Type() EventType {
	return EventTypeLevelUp
}

// ReminderFiredEvent records a reminder that was claimed and delivered (or cancelled)
type ReminderFiredEvent struct {
	ReminderID int64 `json:"reminder_id"`
	UserID     int64 `json:"user_id"`
	ChannelID  int64 `json:"channel_id"`
	Delivered  bool  `json:"delivered"`
}

func (e ReminderFiredEvent) Type() EventType {
	return EventTypeReminderFired
}

// DecayAppliedEvent summarises one run of the hourly money decay
type DecayAppliedEvent struct {
	UsersAffected int   `json:"users_affected"`
	TotalDelta    int64 `json:"total_delta"`
}

func (e DecayAppliedEvent) Type() EventType {
	return EventTypeDecayApplied
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Forwarder ships events out of process, e.g. to a message broker
type Forwarder interface {
	Forward(ctx context.Context, event Event) error
}

type subscription struct {
	id      uint64
	handler Handler
}

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu        sync.RWMutex
	nextID    uint64
	handlers  map[EventType][]subscription
	forwarder Forwarder
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]subscription),
	}
}

// SetForwarder installs an out-of-process forwarder. Pass nil to disable.
func (b *Bus) SetForwarder(f Forwarder) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.forwarder = f
}

// Subscribe adds a handler for a specific event type and returns a function
// that removes it again.
func (b *Bus) Subscribe(eventType EventType, handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.handlers[eventType] = append(b.handlers[eventType], subscription{id: id, handler: handler})

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")

	return func() { b.unsubscribe(eventType, id) }
}

// Subscribers returns how many handlers are subscribed to an event type
func (b *Bus) Subscribers(eventType EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[eventType])
}

func (b *Bus) unsubscribe(eventType EventType, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.handlers[eventType]
	kept := make([]subscription, 0, len(subs))
	for _, s := range subs {
		if s.id != id {
			kept = append(kept, s)
		}
	}
	b.handlers[eventType] = kept
}

// Emit publishes an event to all registered handlers without blocking
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	subs := make([]subscription, len(b.handlers[event.Type()]))
	copy(subs, b.handlers[event.Type()])
	forwarder := b.forwarder
	b.mu.RUnlock()

	log.WithFields(log.Fields{
		"eventType":    event.Type(),
		"handlerCount": len(subs),
	}).Debug("Emitting event to handlers")

	for i, sub := range subs {
		go func(h Handler, handlerIndex int) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(sub.handler, i)
	}

	if forwarder != nil {
		go func() {
			if err := forwarder.Forward(ctx, event); err != nil {
				log.WithFields(log.Fields{
					"eventType": event.Type(),
					"error":     err,
				}).Warn("Failed to forward event")
			}
		}()
	}
}

// TransactionalBus holds events raised inside a unit of work until the
// transaction commits.
type TransactionalBus struct {
	real    *Bus
	mu      sync.Mutex
	pending []Event
}

func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

func (b *TransactionalBus) Publish(e Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = append(b.pending, e)
	return nil
}

// Flush is called after a successful commit
func (b *TransactionalBus) Flush(ctx context.Context) {
	b.mu.Lock()
	pending := b.pending
	b.pending = nil
	b.mu.Unlock()

	if b.real == nil {
		return
	}

	// the transaction context may already be finished by the time handlers run
	eventCtx := context.WithoutCancel(ctx)
	for _, ev := range pending {
		b.real.Emit(eventCtx, ev)
	}
}

// Discard is called after rollback
func (b *TransactionalBus) Discard() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = nil
}

// Pending returns the number of events waiting for Flush
func (b *TransactionalBus) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}
