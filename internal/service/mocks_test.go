package service

import (
	"context"
	"time"

	"glowbook/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
)

var (
	testProvider = "0b6f8f4e-3f64-4c39-9a34-1f2d6a0c0001"
	testClient   = "0b6f8f4e-3f64-4c39-9a34-1f2d6a0c0002"
	testOutsider = "0b6f8f4e-3f64-4c39-9a34-1f2d6a0c0003"

	// 2025-06-01 10:00 UTC, a Sunday.
	testNow = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
)

func fixedClock() time.Time { return testNow }

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func workday() []models.Interval {
	return []models.Interval{{Start: models.MustTimeOfDay("09:00"), End: models.MustTimeOfDay("17:00")}}
}

type mockBookingRepo struct {
	mock.Mock
}

func (m *mockBookingRepo) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *mockBookingRepo) CreateBookingWithLock(ctx context.Context, b *models.Booking) error {
	return m.Called(ctx, b).Error(0)
}

func (m *mockBookingRepo) UpdateBookingStatusWithVersion(ctx context.Context, id, version int64, status models.Status) error {
	return m.Called(ctx, id, version, status).Error(0)
}

func (m *mockBookingRepo) RescheduleBookingWithVersion(ctx context.Context, id, version int64, at time.Time, notes string) error {
	return m.Called(ctx, id, version, at, notes).Error(0)
}

func (m *mockBookingRepo) ListBookings(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}

func (m *mockBookingRepo) GetBookingsInRange(ctx context.Context, providerID string, from, to time.Time, statuses ...models.Status) ([]*models.Booking, error) {
	args := m.Called(ctx, providerID, from, to, statuses)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}

func (m *mockBookingRepo) ActiveStartsInRange(ctx context.Context, providerID string, from, to time.Time, excludeID int64) ([]time.Time, error) {
	args := m.Called(ctx, providerID, from, to, excludeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]time.Time), args.Error(1)
}

type mockAvailabilityRepo struct {
	mock.Mock
}

func (m *mockAvailabilityRepo) GetAvailability(ctx context.Context, providerID, date string) ([]models.Interval, error) {
	args := m.Called(ctx, providerID, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Interval), args.Error(1)
}

func (m *mockAvailabilityRepo) GetProviderAvailability(ctx context.Context, providerID string) (map[string][]models.Interval, error) {
	args := m.Called(ctx, providerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string][]models.Interval), args.Error(1)
}

func (m *mockAvailabilityRepo) SetAvailability(ctx context.Context, providerID, date string, intervals []models.Interval) error {
	return m.Called(ctx, providerID, date, intervals).Error(0)
}

func (m *mockAvailabilityRepo) ReplaceAvailability(ctx context.Context, providerID string, entries map[string][]models.Interval) error {
	return m.Called(ctx, providerID, entries).Error(0)
}

type mockCatalogRepo struct {
	mock.Mock
}

func (m *mockCatalogRepo) CreateService(ctx context.Context, svc *models.Service) error {
	return m.Called(ctx, svc).Error(0)
}

func (m *mockCatalogRepo) UpdateService(ctx context.Context, svc *models.Service) error {
	return m.Called(ctx, svc).Error(0)
}

func (m *mockCatalogRepo) DeleteService(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockCatalogRepo) GetServiceByID(ctx context.Context, id int64) (*models.Service, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Service), args.Error(1)
}

func (m *mockCatalogRepo) ListServices(ctx context.Context, filter models.ServiceFilter) ([]*models.Service, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Service), args.Error(1)
}

func (m *mockCatalogRepo) PriceRangeByTitle(ctx context.Context, title string) (*models.PriceRange, error) {
	args := m.Called(ctx, title)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PriceRange), args.Error(1)
}

type mockProviderRepo struct {
	mock.Mock
}

func (m *mockProviderRepo) CreateProviderProfile(ctx context.Context, p *models.ProviderProfile) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockProviderRepo) UpdateProviderProfile(ctx context.Context, p *models.ProviderProfile) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockProviderRepo) GetProviderProfile(ctx context.Context, userID string) (*models.ProviderProfile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ProviderProfile), args.Error(1)
}

type mockReviewRepo struct {
	mock.Mock
}

func (m *mockReviewRepo) CreateReview(ctx context.Context, r *models.Review) error {
	return m.Called(ctx, r).Error(0)
}

func (m *mockReviewRepo) ListReviews(ctx context.Context, providerID string, serviceID int64) ([]*models.Review, error) {
	args := m.Called(ctx, providerID, serviceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Review), args.Error(1)
}

type mockCache struct {
	mock.Mock
}

func (m *mockCache) GetAvailability(ctx context.Context, providerID, date string) ([]models.Interval, bool, error) {
	args := m.Called(ctx, providerID, date)
	var intervals []models.Interval
	if v := args.Get(0); v != nil {
		intervals = v.([]models.Interval)
	}
	return intervals, args.Bool(1), args.Error(2)
}

func (m *mockCache) SetAvailability(ctx context.Context, providerID, date string, intervals []models.Interval) error {
	return m.Called(ctx, providerID, date, intervals).Error(0)
}

func (m *mockCache) InvalidateAvailability(ctx context.Context, providerID, date string) error {
	return m.Called(ctx, providerID, date).Error(0)
}

func (m *mockCache) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishJSON(eventType string, payload interface{}) error {
	return m.Called(eventType, payload).Error(0)
}

type mockSyncWorker struct {
	mock.Mock
}

func (m *mockSyncWorker) EnqueueTask(ctx context.Context, taskType string, bookingID int64, b *models.Booking, status models.Status) error {
	return m.Called(ctx, taskType, bookingID, b, status).Error(0)
}

type mockTelegramSender struct {
	mock.Mock
}

func (m *mockTelegramSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return args.Get(0).(tgbotapi.Message), args.Error(1)
}
