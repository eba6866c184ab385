package repository

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"glowbook/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockCache struct {
	mock.Mock
}

func (m *mockCache) GetAvailability(ctx context.Context, providerID, date string) ([]models.Interval, bool, error) {
	args := m.Called(ctx, providerID, date)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]models.Interval), args.Bool(1), args.Error(2)
}

func (m *mockCache) SetAvailability(ctx context.Context, providerID, date string, intervals []models.Interval) error {
	args := m.Called(ctx, providerID, date, intervals)
	return args.Error(0)
}

func (m *mockCache) InvalidateAvailability(ctx context.Context, providerID, date string) error {
	args := m.Called(ctx, providerID, date)
	return args.Error(0)
}

func (m *mockCache) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

func TestFailoverCacheRepository(t *testing.T) {
	primary := new(mockCache)
	fallback := new(mockCache)
	logger := zerolog.New(io.Discard)
	repo := NewFailoverCacheRepository(primary, fallback, &logger)
	now := time.Date(2025, 7, 1, 8, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	t.Run("PrimarySuccess", func(t *testing.T) {
		primary.On("GetAvailability", ctx, "p1", "2025-07-01").Return(workday, true, nil).Once()

		got, ok, err := repo.GetAvailability(ctx, "p1", "2025-07-01")
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, workday, got)
		assert.False(t, repo.Down())
		primary.AssertExpectations(t)
	})

	t.Run("PrimaryFailsFallsBack", func(t *testing.T) {
		primary.On("CheckRateLimit", ctx, "u1", 5, time.Minute).Return(false, errors.New("redis down")).Once()
		fallback.On("CheckRateLimit", ctx, "u1", 5, time.Minute).Return(true, nil).Once()

		allowed, err := repo.CheckRateLimit(ctx, "u1", 5, time.Minute)
		assert.NoError(t, err)
		assert.True(t, allowed)
		assert.True(t, repo.Down())
	})

	t.Run("StaysOnFallbackWhileDown", func(t *testing.T) {
		fallback.On("SetAvailability", ctx, "p1", "2025-07-01", workday).Return(nil).Once()

		assert.NoError(t, repo.SetAvailability(ctx, "p1", "2025-07-01", workday))
		primary.AssertNotCalled(t, "SetAvailability", ctx, "p1", "2025-07-01", workday)
	})

	t.Run("InvalidateHitsBothLayers", func(t *testing.T) {
		fallback.On("InvalidateAvailability", ctx, "p1", "2025-07-01").Return(nil).Once()
		primary.On("InvalidateAvailability", ctx, "p1", "2025-07-01").Return(errors.New("still down")).Once()

		assert.NoError(t, repo.InvalidateAvailability(ctx, "p1", "2025-07-01"))
		assert.True(t, repo.Down())
	})

	t.Run("RecoversAfterInterval", func(t *testing.T) {
		now = now.Add(2 * time.Minute)
		primary.On("GetAvailability", ctx, "p1", "2025-07-02").Return(nil, false, nil).Once()

		_, ok, err := repo.GetAvailability(ctx, "p1", "2025-07-02")
		assert.NoError(t, err)
		assert.False(t, ok)
		assert.False(t, repo.Down())
	})

	primary.AssertExpectations(t)
	fallback.AssertExpectations(t)
}
