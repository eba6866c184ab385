package booking

import (
	"fmt"

	"glowbook/internal/models"
	"glowbook/internal/schedule"
)

// Event is an action requested on a booking.
type Event string

const (
	EventApprove  Event = "approve"
	EventDecline  Event = "decline"
	EventComplete Event = "complete"
	EventCancel   Event = "cancel"
)

func ParseEvent(raw string) (Event, error) {
	switch e := Event(raw); e {
	case EventApprove, EventDecline, EventComplete, EventCancel:
		return e, nil
	default:
		return "", fmt.Errorf("unknown booking action %q", raw)
	}
}

type rule struct {
	to         models.Status
	party      models.BookingParty
	futureOnly bool
}

type edge struct {
	from  models.Status
	event Event
}

var transitions = map[edge]rule{
	{models.StatusPending, EventApprove}:    {to: models.StatusConfirmed, party: models.PartyProvider},
	{models.StatusPending, EventDecline}:    {to: models.StatusCancelled, party: models.PartyProvider},
	{models.StatusConfirmed, EventComplete}: {to: models.StatusCompleted, party: models.PartyProvider},
	{models.StatusPending, EventCancel}:     {to: models.StatusCancelled, party: models.PartyClient, futureOnly: true},
	{models.StatusConfirmed, EventCancel}:   {to: models.StatusCancelled, party: models.PartyClient, futureOnly: true},
}

// Lifecycle decides booking state transitions. It holds no booking state.
type Lifecycle struct {
	now schedule.Clock
}

func NewLifecycle(clock schedule.Clock) *Lifecycle {
	if clock == nil {
		clock = schedule.SystemClock
	}
	return &Lifecycle{now: clock}
}

// Next returns the status b moves to when party fires event.
func (l *Lifecycle) Next(b *models.Booking, event Event, party models.BookingParty) (models.Status, error) {
	if b.Status.Terminal() {
		return "", &TransitionError{From: b.Status, Event: event, Party: party, Reason: "booking is closed"}
	}

	r, ok := transitions[edge{from: b.Status, event: event}]
	if !ok {
		return "", &TransitionError{From: b.Status, Event: event, Party: party}
	}
	if r.party != party {
		return "", &TransitionError{From: b.Status, Event: event, Party: party, Reason: "only the " + string(r.party) + " may do this"}
	}
	if r.futureOnly && !b.ScheduledAt.After(l.now()) {
		return "", &TransitionError{From: b.Status, Event: event, Party: party, Reason: "appointment time has passed"}
	}
	return r.to, nil
}

// EventFor maps a requested target status onto the event a party would fire
// to reach it from the current status.
func EventFor(from, to models.Status, party models.BookingParty) (Event, error) {
	for e, r := range transitions {
		if e.from == from && r.to == to && r.party == party {
			return e.event, nil
		}
	}
	return "", &TransitionError{From: from, Event: Event("set " + string(to)), Party: party}
}

// Allowed lists the events party may fire on b right now.
func (l *Lifecycle) Allowed(b *models.Booking, party models.BookingParty) []Event {
	var events []Event
	for _, e := range []Event{EventApprove, EventDecline, EventComplete, EventCancel} {
		if _, err := l.Next(b, e, party); err == nil {
			events = append(events, e)
		}
	}
	return events
}

// PartyOf tells which side of b the user is on; empty when neither.
func PartyOf(b *models.Booking, userID string) models.BookingParty {
	switch userID {
	case b.ProviderID:
		return models.PartyProvider
	case b.ClientID:
		return models.PartyClient
	default:
		return ""
	}
}
