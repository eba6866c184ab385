package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"glowbook/internal/database"
	"glowbook/internal/domain"
	"glowbook/internal/events"
	"glowbook/internal/metrics"
	"glowbook/internal/models"
	"glowbook/internal/schedule"

	"github.com/rs/zerolog"
)

const defaultNotificationQueueSize = 256

type NotificationConfig struct {
	Location     *time.Location
	ReminderTime models.TimeOfDay
	Clock        schedule.Clock
	QueueSize    int
}

// NotificationService tells providers about booking changes over Telegram
// and sends a daily digest of the next day's confirmed appointments.
type NotificationService struct {
	telegram  *TelegramService
	providers domain.ProviderRepository
	bookings  domain.BookingRepository
	cfg       NotificationConfig
	queue     chan *events.Event
	logger    *zerolog.Logger
}

func NewNotificationService(
	telegram *TelegramService,
	providers domain.ProviderRepository,
	bookings domain.BookingRepository,
	cfg NotificationConfig,
	logger *zerolog.Logger,
) *NotificationService {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Clock == nil {
		cfg.Clock = schedule.SystemClock
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultNotificationQueueSize
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &NotificationService{
		telegram:  telegram,
		providers: providers,
		bookings:  bookings,
		cfg:       cfg,
		queue:     make(chan *events.Event, cfg.QueueSize),
		logger:    logger,
	}
}

// Subscribe queues every booking event on bus for delivery by Start.
func (s *NotificationService) Subscribe(bus *events.EventBus) {
	bus.Subscribe(s.Enqueue, events.BookingEvents...)
}

// Enqueue hands event to the delivery loop without blocking. Events that do
// not fit in the queue are dropped.
func (s *NotificationService) Enqueue(event *events.Event) error {
	select {
	case s.queue <- event:
	default:
		metrics.IncNotification("dropped")
		s.logger.Warn().Str("event_type", event.Type).Msg("notification queue full, event dropped")
	}
	return nil
}

// Start delivers queued events until ctx is cancelled.
func (s *NotificationService) Start(ctx context.Context) {
	s.logger.Info().Int("queue_size", cap(s.queue)).Msg("notification worker started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Int("pending", len(s.queue)).Msg("notification worker stopped")
			return
		case event := <-s.queue:
			if err := s.Deliver(ctx, event); err != nil {
				s.logger.Error().Err(err).Str("event_type", event.Type).Msg("notification delivery failed")
			}
		}
	}
}

// Deliver notifies the booking's provider. Providers without a linked
// Telegram chat are skipped.
func (s *NotificationService) Deliver(ctx context.Context, event *events.Event) error {
	payload, err := events.DecodeBooking(event)
	if err != nil {
		return err
	}
	// Providers acting on their own bookings already know.
	if payload.ChangedBy == string(models.PartyProvider) {
		return nil
	}

	chatID, err := s.chatID(ctx, payload.ProviderID)
	if err != nil || chatID == 0 {
		return err
	}

	text := s.formatEvent(event.Type, payload)
	if err := s.telegram.SendMarkdown(ctx, chatID, text); err != nil {
		metrics.IncNotification("error")
		return fmt.Errorf("notify provider %s: %w", payload.ProviderID, err)
	}
	metrics.IncNotification("sent")
	return nil
}

func (s *NotificationService) chatID(ctx context.Context, providerID string) (int64, error) {
	profile, err := s.providers.GetProviderProfile(ctx, providerID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			metrics.IncNotification("skipped")
			return 0, nil
		}
		return 0, err
	}
	if profile.TelegramChatID == 0 {
		metrics.IncNotification("skipped")
	}
	return profile.TelegramChatID, nil
}

func (s *NotificationService) formatEvent(eventType string, p events.BookingEventPayload) string {
	var title string
	switch eventType {
	case events.EventBookingCreated:
		title = "New booking request"
	case events.EventBookingConfirmed:
		title = "Booking confirmed"
	case events.EventBookingCancelled:
		title = "Booking cancelled"
	case events.EventBookingCompleted:
		title = "Booking completed"
	case events.EventBookingRescheduled:
		title = "Booking rescheduled"
	default:
		title = "Booking updated"
	}

	date, start := schedule.Split(p.ScheduledAt, s.cfg.Location)
	var b strings.Builder
	fmt.Fprintf(&b, "*%s* #%d\n", title, p.BookingID)
	fmt.Fprintf(&b, "%s\n", escapeMarkdown(p.ServiceTitle))
	fmt.Fprintf(&b, "%s at %s\n", date, start)
	fmt.Fprintf(&b, "Price: %.2f", p.TotalPrice)
	if p.Notes != "" {
		fmt.Fprintf(&b, "\nNotes: %s", escapeMarkdown(p.Notes))
	}
	return b.String()
}

// SendDailyReminders sends each provider the list of tomorrow's confirmed
// bookings and returns how many messages went out.
func (s *NotificationService) SendDailyReminders(ctx context.Context) (int, error) {
	now := s.cfg.Clock()
	today, err := schedule.At(schedule.Today(now, s.cfg.Location), 0, s.cfg.Location)
	if err != nil {
		return 0, err
	}
	from := today.AddDate(0, 0, 1)
	to := from.AddDate(0, 0, 1)

	bookings, err := s.bookings.GetBookingsInRange(ctx, "", from, to, models.StatusConfirmed)
	if err != nil {
		return 0, fmt.Errorf("load tomorrow's bookings: %w", err)
	}

	byProvider := make(map[string][]*models.Booking)
	for _, b := range bookings {
		byProvider[b.ProviderID] = append(byProvider[b.ProviderID], b)
	}
	providers := make([]string, 0, len(byProvider))
	for id := range byProvider {
		providers = append(providers, id)
	}
	sort.Strings(providers)

	sent := 0
	var errs []error
	for _, providerID := range providers {
		chatID, err := s.chatID(ctx, providerID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if chatID == 0 {
			continue
		}
		if err := s.telegram.SendMarkdown(ctx, chatID, s.formatReminder(from, byProvider[providerID])); err != nil {
			metrics.IncNotification("error")
			errs = append(errs, fmt.Errorf("remind provider %s: %w", providerID, err))
			continue
		}
		metrics.IncNotification("sent")
		sent++
	}

	s.logger.Info().Int("providers", len(providers)).Int("sent", sent).Msg("daily reminders processed")
	return sent, errors.Join(errs...)
}

func (s *NotificationService) formatReminder(day time.Time, bookings []*models.Booking) string {
	date, _ := schedule.Split(day, s.cfg.Location)
	var b strings.Builder
	fmt.Fprintf(&b, "*Tomorrow, %s*\n", date)
	for _, bk := range bookings {
		_, start := schedule.Split(bk.ScheduledAt, s.cfg.Location)
		fmt.Fprintf(&b, "%s %s\n", start, escapeMarkdown(bk.ServiceTitle))
	}
	return strings.TrimRight(b.String(), "\n")
}

// NextReminder returns the first reminder time strictly after now.
func (s *NotificationService) NextReminder(now time.Time) time.Time {
	local := now.In(s.cfg.Location)
	next := time.Date(local.Year(), local.Month(), local.Day(),
		s.cfg.ReminderTime.Hour(), s.cfg.ReminderTime.Minute(), 0, 0, s.cfg.Location)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// StartReminders sends daily reminders until ctx is cancelled.
func (s *NotificationService) StartReminders(ctx context.Context) {
	for {
		next := s.NextReminder(s.cfg.Clock())
		timer := time.NewTimer(time.Until(next))
		s.logger.Debug().Time("next_run", next).Msg("reminder scheduled")

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			if _, err := s.SendDailyReminders(ctx); err != nil {
				s.logger.Error().Err(err).Msg("daily reminders failed")
			}
		}
	}
}
