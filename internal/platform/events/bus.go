// Package events provides the in-process event bus that clinical and room
// mutations publish to. Listeners (UI panels, cache invalidation, audit
// fan-out) are invoked synchronously; a listener that panics is recovered
// and logged so it can never abort the mutation that triggered it.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Event types published by the domain services.
const (
	AppointmentBooked      = "appointment.booked"
	AppointmentCancelled   = "appointment.cancelled"
	AppointmentRescheduled = "appointment.rescheduled"
	AppointmentConfirmed   = "appointment.confirmed"
	DayRescheduled         = "appointment.day_rescheduled"
	PatientStatusChanged   = "patient.status_changed"
	RoomAssigned           = "room.assigned"
	RoomVacated            = "room.vacated"
)

// Event describes a single clinical or room-state mutation.
type Event struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Resource   string         `json:"resource"`
	ResourceID string         `json:"resource_id"`
	Payload    map[string]any `json:"payload,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Listener receives published events. Listeners run on the publisher's
// goroutine and should return quickly.
type Listener func(Event)

// Bus is a synchronous publish/subscribe dispatcher.
type Bus struct {
	mu        sync.RWMutex
	listeners map[string][]Listener
	logger    zerolog.Logger
}

func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{
		listeners: make(map[string][]Listener),
		logger:    logger,
	}
}

// Subscribe registers a listener for an event type. The type "*" receives
// every event.
func (b *Bus) Subscribe(eventType string, l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[eventType] = append(b.listeners[eventType], l)
}

// Publish dispatches an event to all listeners registered for its type and
// for "*". Dispatch never fails: panics are recovered per listener.
func (b *Bus) Publish(eventType, resource, resourceID string, payload map[string]any) {
	ev := Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Resource:   resource,
		ResourceID: resourceID,
		Payload:    payload,
		Timestamp:  time.Now().UTC(),
	}

	b.mu.RLock()
	targets := make([]Listener, 0, len(b.listeners[eventType])+len(b.listeners["*"]))
	targets = append(targets, b.listeners[eventType]...)
	targets = append(targets, b.listeners["*"]...)
	b.mu.RUnlock()

	for _, l := range targets {
		b.dispatch(l, ev)
	}
}

func (b *Bus) dispatch(l Listener, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().
				Str("event_type", ev.Type).
				Str("resource_id", ev.ResourceID).
				Interface("panic", r).
				Msg("event listener panicked")
		}
	}()
	l(ev)
}
