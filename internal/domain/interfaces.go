// Package domain holds the interfaces services depend on, so that storage,
// caches and outbound integrations can be swapped in tests.
package domain

import (
	"context"
	"time"

	"glowbook/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type BookingRepository interface {
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	CreateBookingWithLock(ctx context.Context, booking *models.Booking) error
	UpdateBookingStatusWithVersion(ctx context.Context, id, version int64, status models.Status) error
	RescheduleBookingWithVersion(ctx context.Context, id, version int64, scheduledAt time.Time, notes string) error
	ListBookings(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error)
	GetBookingsInRange(ctx context.Context, providerID string, from, to time.Time, statuses ...models.Status) ([]*models.Booking, error)
	ActiveStartsInRange(ctx context.Context, providerID string, from, to time.Time, excludeID int64) ([]time.Time, error)
}

type AvailabilityRepository interface {
	GetAvailability(ctx context.Context, providerID, date string) ([]models.Interval, error)
	GetProviderAvailability(ctx context.Context, providerID string) (map[string][]models.Interval, error)
	SetAvailability(ctx context.Context, providerID, date string, intervals []models.Interval) error
	ReplaceAvailability(ctx context.Context, providerID string, entries map[string][]models.Interval) error
}

type CatalogRepository interface {
	CreateService(ctx context.Context, svc *models.Service) error
	UpdateService(ctx context.Context, svc *models.Service) error
	DeleteService(ctx context.Context, id int64) error
	GetServiceByID(ctx context.Context, id int64) (*models.Service, error)
	ListServices(ctx context.Context, filter models.ServiceFilter) ([]*models.Service, error)
	PriceRangeByTitle(ctx context.Context, title string) (*models.PriceRange, error)
}

type ProviderRepository interface {
	CreateProviderProfile(ctx context.Context, p *models.ProviderProfile) error
	UpdateProviderProfile(ctx context.Context, p *models.ProviderProfile) error
	GetProviderProfile(ctx context.Context, userID string) (*models.ProviderProfile, error)
}

type ReviewRepository interface {
	CreateReview(ctx context.Context, r *models.Review) error
	ListReviews(ctx context.Context, providerID string, serviceID int64) ([]*models.Review, error)
}

// CacheRepository is the Redis-shaped cache for availability reads and
// per-key throttling.
type CacheRepository interface {
	// GetAvailability reports ok=false on a cache miss.
	GetAvailability(ctx context.Context, providerID, date string) (intervals []models.Interval, ok bool, err error)
	SetAvailability(ctx context.Context, providerID, date string, intervals []models.Interval) error
	InvalidateAvailability(ctx context.Context, providerID, date string) error
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type SheetsWriter interface {
	UpsertBooking(ctx context.Context, booking *models.Booking) error
	UpdateBookingStatus(ctx context.Context, bookingID int64, status models.Status) error
	DeleteBookingRow(ctx context.Context, bookingID int64) error
}

type SyncWorker interface {
	EnqueueTask(ctx context.Context, taskType string, bookingID int64, booking *models.Booking, status models.Status) error
}
