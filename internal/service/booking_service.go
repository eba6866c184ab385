package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"glowbook/internal/booking"
	"glowbook/internal/database"
	"glowbook/internal/domain"
	"glowbook/internal/events"
	"glowbook/internal/metrics"
	"glowbook/internal/models"

	"github.com/rs/zerolog"
)

const (
	syncUpsert       = "upsert"
	syncUpdateStatus = "update_status"
)

type BookingService struct {
	repo         domain.BookingRepository
	validator    *booking.Validator
	lifecycle    *booking.Lifecycle
	eventBus     domain.EventPublisher
	sheetsWorker domain.SyncWorker
	logger       *zerolog.Logger

	limiter     domain.CacheRepository
	createLimit int
	createEvery time.Duration
}

func NewBookingService(
	repo domain.BookingRepository,
	validator *booking.Validator,
	lifecycle *booking.Lifecycle,
	eventBus domain.EventPublisher,
	sheetsWorker domain.SyncWorker,
	logger *zerolog.Logger,
) *BookingService {
	if lifecycle == nil {
		lifecycle = booking.NewLifecycle(nil)
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &BookingService{
		repo:         repo,
		validator:    validator,
		lifecycle:    lifecycle,
		eventBus:     eventBus,
		sheetsWorker: sheetsWorker,
		logger:       logger,
	}
}

// WithCreateRateLimit throttles CreateBooking to limit calls per window and user.
func (s *BookingService) WithCreateRateLimit(limiter domain.CacheRepository, limit int, window time.Duration) *BookingService {
	s.limiter = limiter
	s.createLimit = limit
	s.createEvery = window
	return s
}

// CreateBooking validates req against the provider's availability and stores
// a pending booking for the acting client.
func (s *BookingService) CreateBooking(ctx context.Context, actor models.Actor, req booking.Request) (*models.Booking, error) {
	if req.ProviderID != "" && req.ProviderID == actor.UserID {
		return nil, fmt.Errorf("%w: providers cannot book themselves", ErrForbidden)
	}
	if err := s.checkCreateLimit(ctx, actor.UserID); err != nil {
		return nil, err
	}

	req.ClientID = actor.UserID
	req.ExcludeBookingID = 0
	b, err := s.validator.Validate(ctx, req)
	if err != nil {
		return nil, err
	}
	if b.ProviderID == actor.UserID {
		return nil, fmt.Errorf("%w: providers cannot book themselves", ErrForbidden)
	}

	if err := s.repo.CreateBookingWithLock(ctx, b); err != nil {
		if errors.Is(err, database.ErrSlotTaken) {
			return nil, &booking.ValidationError{Kind: booking.SlotUnavailable, Reason: "slot is already booked", Err: err}
		}
		return nil, booking.Remote("create booking", err)
	}

	metrics.IncBookingCreated()
	s.logger.Info().
		Int64("booking_id", b.ID).
		Str("client_id", b.ClientID).
		Str("provider_id", b.ProviderID).
		Time("scheduled_at", b.ScheduledAt).
		Msg("booking created")

	s.publishEvent(events.EventBookingCreated, b, models.PartyClient, actor.UserID)
	s.enqueueSync(ctx, b, syncUpsert)
	return b, nil
}

func (s *BookingService) checkCreateLimit(ctx context.Context, userID string) error {
	if s.limiter == nil || s.createLimit <= 0 {
		return nil
	}
	allowed, err := s.limiter.CheckRateLimit(ctx, "create:"+userID, s.createLimit, s.createEvery)
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("create rate limit check failed")
		return nil
	}
	if !allowed {
		return ErrRateLimited
	}
	return nil
}

// GetBooking returns a booking visible to the actor: its client, its provider
// or an admin.
func (s *BookingService) GetBooking(ctx context.Context, actor models.Actor, id int64) (*models.Booking, error) {
	b, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, storeError("get booking", err)
	}
	if !actor.IsAdmin() && booking.PartyOf(b, actor.UserID) == "" {
		return nil, ErrForbidden
	}
	return b, nil
}

// ListBookings returns the actor's bookings, newest created first. An empty
// party lists both sides without duplicates.
func (s *BookingService) ListBookings(ctx context.Context, actor models.Actor, party models.BookingParty, status *models.Status) ([]*models.Booking, error) {
	switch party {
	case "", models.PartyClient, models.PartyProvider:
	default:
		return nil, fmt.Errorf("%w: unknown party %q", ErrInvalidInput, party)
	}
	bookings, err := s.repo.ListBookings(ctx, models.BookingFilter{UserID: actor.UserID, Party: party, Status: status})
	if err != nil {
		return nil, booking.Remote("list bookings", err)
	}
	if bookings == nil {
		bookings = []*models.Booking{}
	}
	return bookings, nil
}

// UpdateStatus moves the booking to the requested status if some event of
// the actor's party leads there.
func (s *BookingService) UpdateStatus(ctx context.Context, actor models.Actor, id int64, to models.Status) (*models.Booking, error) {
	b, party, err := s.loadAsParty(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	event, err := booking.EventFor(b.Status, to, party)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, actor, b, party, event)
}

// Transition fires event on the booking on behalf of the actor.
func (s *BookingService) Transition(ctx context.Context, actor models.Actor, id int64, event booking.Event) (*models.Booking, error) {
	b, party, err := s.loadAsParty(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, actor, b, party, event)
}

// CancelBooking cancels for the client and declines a pending booking for the
// provider.
func (s *BookingService) CancelBooking(ctx context.Context, actor models.Actor, id int64) (*models.Booking, error) {
	b, party, err := s.loadAsParty(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	event := booking.EventCancel
	if party == models.PartyProvider && b.Status == models.StatusPending {
		event = booking.EventDecline
	}
	return s.apply(ctx, actor, b, party, event)
}

func (s *BookingService) loadAsParty(ctx context.Context, actor models.Actor, id int64) (*models.Booking, models.BookingParty, error) {
	b, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, "", storeError("load booking", err)
	}
	party := booking.PartyOf(b, actor.UserID)
	if party == "" {
		return nil, "", ErrForbidden
	}
	return b, party, nil
}

func (s *BookingService) apply(ctx context.Context, actor models.Actor, b *models.Booking, party models.BookingParty, event booking.Event) (*models.Booking, error) {
	next, err := s.lifecycle.Next(b, event, party)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateBookingStatusWithVersion(ctx, b.ID, b.Version, next); err != nil {
		return nil, storeError("update booking status", err)
	}

	from := b.Status
	updated := s.reload(ctx, b, func(local *models.Booking) {
		local.Status = next
		local.Version++
	})

	metrics.IncTransition(string(from), string(next))
	s.logger.Info().
		Int64("booking_id", b.ID).
		Str("from", string(from)).
		Str("to", string(next)).
		Str("event", string(event)).
		Str("party", string(party)).
		Msg("booking status changed")

	s.publishEvent(events.TypeForStatus(next), updated, party, actor.UserID)
	s.enqueueSync(ctx, updated, syncUpdateStatus)
	return updated, nil
}

// RescheduleBooking moves a pending booking to another slot. Only the client
// may do this; the new slot is validated like a fresh booking. A nil notes
// keeps the current notes.
func (s *BookingService) RescheduleBooking(ctx context.Context, actor models.Actor, id int64, date string, slot *models.Slot, notes *string) (*models.Booking, error) {
	b, party, err := s.loadAsParty(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if party != models.PartyClient {
		return nil, ErrForbidden
	}
	if b.Status != models.StatusPending {
		return nil, &booking.TransitionError{From: b.Status, Event: "reschedule", Party: party, Reason: "only pending bookings can be rescheduled"}
	}

	newNotes := b.Notes
	if notes != nil {
		newNotes = *notes
	}
	validated, err := s.validator.Validate(ctx, booking.Request{
		ClientID:         b.ClientID,
		ProviderID:       b.ProviderID,
		ServiceID:        b.ServiceID,
		Date:             date,
		Slot:             slot,
		Notes:            newNotes,
		ExcludeBookingID: b.ID,
	})
	if err != nil {
		return nil, err
	}

	err = s.repo.RescheduleBookingWithVersion(ctx, b.ID, b.Version, validated.ScheduledAt, validated.Notes)
	if err != nil {
		if errors.Is(err, database.ErrSlotTaken) {
			return nil, &booking.ValidationError{Kind: booking.SlotUnavailable, Reason: "slot is already booked", Err: err}
		}
		return nil, storeError("reschedule booking", err)
	}

	updated := s.reload(ctx, b, func(local *models.Booking) {
		local.ScheduledAt = validated.ScheduledAt
		local.Notes = validated.Notes
		local.Version++
	})

	s.logger.Info().Int64("booking_id", b.ID).Time("scheduled_at", updated.ScheduledAt).Msg("booking rescheduled")
	s.publishEvent(events.EventBookingRescheduled, updated, party, actor.UserID)
	s.enqueueSync(ctx, updated, syncUpsert)
	return updated, nil
}

// ProviderBookingsInRange lists the acting provider's bookings scheduled in [from, to).
func (s *BookingService) ProviderBookingsInRange(ctx context.Context, actor models.Actor, from, to time.Time) ([]*models.Booking, error) {
	if actor.Role != models.RoleProvider {
		return nil, ErrForbidden
	}
	if !from.Before(to) {
		return nil, fmt.Errorf("%w: empty date range", ErrInvalidInput)
	}
	bookings, err := s.repo.GetBookingsInRange(ctx, actor.UserID, from, to)
	if err != nil {
		return nil, booking.Remote("list bookings in range", err)
	}
	return bookings, nil
}

// reload re-reads b after a write; when that fails the local copy is patched.
func (s *BookingService) reload(ctx context.Context, b *models.Booking, patch func(*models.Booking)) *models.Booking {
	fresh, err := s.repo.GetBooking(ctx, b.ID)
	if err == nil {
		return fresh
	}
	s.logger.Warn().Err(err).Int64("booking_id", b.ID).Msg("reload booking after update failed")
	local := *b
	patch(&local)
	return &local
}

// storeError wraps unexpected persistence failures as remote errors while
// letting not-found and version conflicts through unchanged.
func storeError(op string, err error) error {
	if errors.Is(err, database.ErrNotFound) || errors.Is(err, database.ErrConcurrentModification) {
		return err
	}
	return booking.Remote(op, err)
}

func (s *BookingService) publishEvent(eventType string, b *models.Booking, party models.BookingParty, actorID string) {
	if s.eventBus == nil {
		return
	}
	payload := events.NewBookingPayload(b, party, actorID)
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", b.ID).Msg("publish event error")
	}
}

func (s *BookingService) enqueueSync(ctx context.Context, b *models.Booking, taskType string) {
	if s.sheetsWorker == nil {
		return
	}

	var status models.Status
	if taskType == syncUpdateStatus {
		status = b.Status
	}

	if err := s.sheetsWorker.EnqueueTask(ctx, taskType, b.ID, b, status); err != nil {
		s.logger.Error().Err(err).Int64("booking_id", b.ID).Str("task", taskType).Msg("sheets enqueue error")
	}
}
