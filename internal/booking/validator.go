package booking

import (
	"context"
	"errors"
	"strings"
	"time"

	"glowbook/internal/models"
	"glowbook/internal/schedule"
)

// ErrServiceNotFound is returned by a PriceSource when the service cannot be
// priced for the provider.
var ErrServiceNotFound = errors.New("service not found")

type AvailabilitySource interface {
	GetAvailability(ctx context.Context, providerID, date string) ([]models.Interval, error)
}

type PriceSource interface {
	// ServicePrice resolves an active service; an empty providerID matches any owner.
	ServicePrice(ctx context.Context, providerID string, serviceID int64) (*models.Service, error)
}

type TakenSource interface {
	TakenSlots(ctx context.Context, providerID, date string, excludeBookingID int64) ([]models.TimeOfDay, error)
}

// Request is what a client submits from the booking form.
type Request struct {
	ClientID   string
	ProviderID string
	ServiceID  int64
	Date       string
	Slot       *models.Slot
	Notes      string

	// ExcludeBookingID keeps a booking being rescheduled from blocking itself.
	ExcludeBookingID int64
}

type ValidatorConfig struct {
	Location       *time.Location
	MaxBookingDays int
	Clock          schedule.Clock
}

// Validator gates booking creation against declared availability.
type Validator struct {
	availability AvailabilitySource
	prices       PriceSource
	taken        TakenSource
	cfg          ValidatorConfig
}

// NewValidator builds a validator. taken may be nil, in which case slots held
// by other bookings are not checked here.
func NewValidator(availability AvailabilitySource, prices PriceSource, taken TakenSource, cfg ValidatorConfig) *Validator {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Clock == nil {
		cfg.Clock = schedule.SystemClock
	}
	return &Validator{availability: availability, prices: prices, taken: taken, cfg: cfg}
}

// Validate checks req and returns the pending booking to persist.
func (v *Validator) Validate(ctx context.Context, req Request) (*models.Booking, error) {
	date := strings.TrimSpace(req.Date)
	if date == "" || req.Slot == nil {
		return nil, newValidationError(MissingSelection, "date and time slot are required")
	}
	if _, err := schedule.ParseDate(date); err != nil {
		return nil, &ValidationError{Kind: MissingSelection, Reason: err.Error(), Err: err}
	}

	svc, err := v.prices.ServicePrice(ctx, req.ProviderID, req.ServiceID)
	if err != nil {
		if errors.Is(err, ErrServiceNotFound) {
			return nil, &ValidationError{Kind: UnknownService, Reason: "service is not offered by this provider", Err: err}
		}
		return nil, Remote("fetch service price", err)
	}

	window := schedule.Window{Now: v.cfg.Clock(), Loc: v.cfg.Location, MaxDays: v.cfg.MaxBookingDays}
	if !window.Contains(date) {
		return nil, newValidationError(SlotUnavailable, "date "+date+" is not open for booking")
	}

	intervals, err := v.availability.GetAvailability(ctx, svc.ProviderID, date)
	if err != nil {
		return nil, Remote("fetch availability", err)
	}
	if !schedule.ContainsSlot(schedule.GenerateSlots(intervals), *req.Slot) {
		return nil, newValidationError(SlotUnavailable, "slot "+req.Slot.String()+" is outside the provider's hours")
	}

	if v.taken != nil {
		taken, err := v.taken.TakenSlots(ctx, svc.ProviderID, date, req.ExcludeBookingID)
		if err != nil {
			return nil, Remote("fetch booked slots", err)
		}
		for _, t := range taken {
			if t == req.Slot.Start {
				return nil, newValidationError(SlotUnavailable, "slot "+req.Slot.String()+" is already booked")
			}
		}
	}

	scheduledAt, err := schedule.At(date, req.Slot.Start, v.cfg.Location)
	if err != nil {
		return nil, &ValidationError{Kind: MissingSelection, Reason: err.Error(), Err: err}
	}

	return &models.Booking{
		ClientID:     req.ClientID,
		ProviderID:   svc.ProviderID,
		ServiceID:    svc.ID,
		ServiceTitle: svc.Title,
		ScheduledAt:  scheduledAt.UTC(),
		Notes:        strings.TrimSpace(req.Notes),
		Status:       models.StatusPending,
		TotalPrice:   svc.Price,
	}, nil
}
