package service

import (
	"context"
	"fmt"
	"time"

	"glowbook/internal/booking"
	"glowbook/internal/domain"
	"glowbook/internal/metrics"
	"glowbook/internal/models"
	"glowbook/internal/schedule"

	"github.com/rs/zerolog"
)

type AvailabilityConfig struct {
	Location       *time.Location
	MaxBookingDays int
	Clock          schedule.Clock
}

// AvailabilityService is the availability store: provider-declared intervals
// per civil date, read through a cache.
type AvailabilityService struct {
	repo     domain.AvailabilityRepository
	bookings domain.BookingRepository
	cache    domain.CacheRepository
	cfg      AvailabilityConfig
	logger   *zerolog.Logger
}

func NewAvailabilityService(
	repo domain.AvailabilityRepository,
	bookings domain.BookingRepository,
	cache domain.CacheRepository,
	cfg AvailabilityConfig,
	logger *zerolog.Logger,
) *AvailabilityService {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Clock == nil {
		cfg.Clock = schedule.SystemClock
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &AvailabilityService{
		repo:     repo,
		bookings: bookings,
		cache:    cache,
		cfg:      cfg,
		logger:   logger,
	}
}

var (
	_ booking.AvailabilitySource = (*AvailabilityService)(nil)
	_ booking.TakenSource        = (*AvailabilityService)(nil)
)

// GetAvailability returns the provider's intervals on date; empty when none.
func (s *AvailabilityService) GetAvailability(ctx context.Context, providerID, date string) ([]models.Interval, error) {
	if s.cache != nil {
		intervals, ok, err := s.cache.GetAvailability(ctx, providerID, date)
		switch {
		case err != nil:
			metrics.IncCache("error")
			s.logger.Warn().Err(err).Str("provider_id", providerID).Str("date", date).Msg("availability cache read failed")
		case ok:
			metrics.IncCache("hit")
			return intervals, nil
		default:
			metrics.IncCache("miss")
		}
	}

	intervals, err := s.repo.GetAvailability(ctx, providerID, date)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetAvailability(ctx, providerID, date, intervals); err != nil {
			s.logger.Warn().Err(err).Str("provider_id", providerID).Str("date", date).Msg("availability cache write failed")
		}
	}
	return intervals, nil
}

// ProviderAvailability returns every date the provider has declared.
func (s *AvailabilityService) ProviderAvailability(ctx context.Context, providerID string) (map[string][]models.Interval, error) {
	return s.repo.GetProviderAvailability(ctx, providerID)
}

// SetAvailability replaces the acting provider's intervals on date.
// Intervals are validated and normalized; an empty set clears the date.
func (s *AvailabilityService) SetAvailability(ctx context.Context, actor models.Actor, date string, intervals []models.Interval) error {
	if actor.Role != models.RoleProvider {
		return ErrForbidden
	}
	if _, err := schedule.ParseDate(date); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	normalized, err := schedule.Normalize(intervals)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if err := s.repo.SetAvailability(ctx, actor.UserID, date, normalized); err != nil {
		return err
	}
	s.invalidate(ctx, actor.UserID, date)

	s.logger.Info().Str("provider_id", actor.UserID).Str("date", date).Int("intervals", len(normalized)).Msg("availability updated")
	return nil
}

// ReplaceAvailability writes every date in entries at once: either all
// dates are stored or none are. Dates not mentioned are left untouched.
func (s *AvailabilityService) ReplaceAvailability(ctx context.Context, actor models.Actor, entries map[string][]models.Interval) error {
	if actor.Role != models.RoleProvider {
		return ErrForbidden
	}
	normalized := make(map[string][]models.Interval, len(entries))
	for date, intervals := range entries {
		if _, err := schedule.ParseDate(date); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		ivs, err := schedule.Normalize(intervals)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidInput, date, err)
		}
		normalized[date] = ivs
	}
	if len(normalized) == 0 {
		return nil
	}

	if err := s.repo.ReplaceAvailability(ctx, actor.UserID, normalized); err != nil {
		return err
	}
	for date := range normalized {
		s.invalidate(ctx, actor.UserID, date)
	}

	s.logger.Info().Str("provider_id", actor.UserID).Int("dates", len(normalized)).Msg("availability replaced")
	return nil
}

func (s *AvailabilityService) invalidate(ctx context.Context, providerID, date string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateAvailability(ctx, providerID, date); err != nil {
		s.logger.Error().Err(err).Str("provider_id", providerID).Str("date", date).Msg("availability cache invalidation failed")
	}
}

// TakenSlots lists the slot starts already held by pending or confirmed
// bookings on date, skipping excludeBookingID.
func (s *AvailabilityService) TakenSlots(ctx context.Context, providerID, date string, excludeBookingID int64) ([]models.TimeOfDay, error) {
	from, err := schedule.At(date, 0, s.cfg.Location)
	if err != nil {
		return nil, err
	}
	to := from.AddDate(0, 0, 1)

	starts, err := s.bookings.ActiveStartsInRange(ctx, providerID, from, to, excludeBookingID)
	if err != nil {
		return nil, err
	}

	taken := make([]models.TimeOfDay, 0, len(starts))
	for _, at := range starts {
		_, t := schedule.Split(at, s.cfg.Location)
		taken = append(taken, t)
	}
	return taken, nil
}

// FreeSlots lists the provider's slots on date that nobody holds yet.
func (s *AvailabilityService) FreeSlots(ctx context.Context, providerID, date string) ([]models.Slot, error) {
	if _, err := schedule.ParseDate(date); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	intervals, err := s.GetAvailability(ctx, providerID, date)
	if err != nil {
		return nil, err
	}
	slots := schedule.GenerateSlots(intervals)
	if len(slots) == 0 {
		return []models.Slot{}, nil
	}

	taken, err := s.TakenSlots(ctx, providerID, date, 0)
	if err != nil {
		return nil, err
	}
	return schedule.FreeSlots(slots, taken), nil
}

// BookableDates lists upcoming dates inside the booking horizon that have slots.
func (s *AvailabilityService) BookableDates(ctx context.Context, providerID string) ([]string, error) {
	availability, err := s.repo.GetProviderAvailability(ctx, providerID)
	if err != nil {
		return nil, err
	}
	return schedule.BookableDates(availability, s.window()), nil
}

func (s *AvailabilityService) window() schedule.Window {
	return schedule.Window{Now: s.cfg.Clock(), Loc: s.cfg.Location, MaxDays: s.cfg.MaxBookingDays}
}
