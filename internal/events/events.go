// Package events is a small in-process pub/sub used to fan booking changes
// out to notifications and the sheets mirror.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"glowbook/internal/models"
)

const (
	EventBookingCreated     = "booking_created"
	EventBookingConfirmed   = "booking_confirmed"
	EventBookingCancelled   = "booking_cancelled"
	EventBookingCompleted   = "booking_completed"
	EventBookingRescheduled = "booking_rescheduled"
)

// BookingEvents lists every booking event type, in lifecycle order.
var BookingEvents = []string{
	EventBookingCreated,
	EventBookingConfirmed,
	EventBookingCancelled,
	EventBookingCompleted,
	EventBookingRescheduled,
}

// TypeForStatus names the event published when a booking enters status.
func TypeForStatus(status models.Status) string {
	switch status {
	case models.StatusConfirmed:
		return EventBookingConfirmed
	case models.StatusCancelled:
		return EventBookingCancelled
	case models.StatusCompleted:
		return EventBookingCompleted
	default:
		return EventBookingCreated
	}
}

// BookingEventPayload describes the booking snapshot handed to consumers.
type BookingEventPayload struct {
	BookingID    int64     `json:"booking_id"`
	ClientID     string    `json:"client_id"`
	ProviderID   string    `json:"provider_id"`
	ServiceID    int64     `json:"service_id"`
	ServiceTitle string    `json:"service_title"`
	Status       string    `json:"status"`
	ScheduledAt  time.Time `json:"scheduled_at"`
	TotalPrice   float64   `json:"total_price"`
	Notes        string    `json:"notes,omitempty"`
	ChangedBy    string    `json:"changed_by,omitempty"`
	ChangedByID  string    `json:"changed_by_id,omitempty"`
}

// NewBookingPayload snapshots b. changedBy is the acting party, if any.
func NewBookingPayload(b *models.Booking, changedBy models.BookingParty, changedByID string) BookingEventPayload {
	return BookingEventPayload{
		BookingID:    b.ID,
		ClientID:     b.ClientID,
		ProviderID:   b.ProviderID,
		ServiceID:    b.ServiceID,
		ServiceTitle: b.ServiceTitle,
		Status:       string(b.Status),
		ScheduledAt:  b.ScheduledAt,
		TotalPrice:   b.TotalPrice,
		Notes:        b.Notes,
		ChangedBy:    string(changedBy),
		ChangedByID:  changedByID,
	}
}

// DecodeBooking unpacks a booking payload from an event.
func DecodeBooking(event *Event) (BookingEventPayload, error) {
	var p BookingEventPayload
	if err := json.Unmarshal(event.Payload, &p); err != nil {
		return p, fmt.Errorf("decode %s payload: %w", event.Type, err)
	}
	return p, nil
}

// Event represents a lightweight domain event.
type Event struct {
	ID        int64
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for each of the given event types.
func (b *EventBus) Subscribe(handler EventHandler, eventTypes ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, eventType := range eventTypes {
		b.subscribers[eventType] = append(b.subscribers[eventType], handler)
	}
}

// Publish notifies subscribers of the event type and joins their errors.
// Every handler runs even if an earlier one fails.
func (b *EventBus) Publish(event *Event) error {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	var errs []error
	for _, handler := range handlers {
		if err := handler(event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	event, err := NewJSONEvent(eventType, payload)
	if err != nil {
		return err
	}
	return b.Publish(&event)
}

// NewJSONEvent builds an Event with JSON payload for manual publishing.
func NewJSONEvent(eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{Type: eventType, Payload: raw, CreatedAt: time.Now()}, nil
}
