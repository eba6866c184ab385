package repository

import (
	"context"
	"sync/atomic"
	"time"

	"glowbook/internal/domain"
	"glowbook/internal/models"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverCacheRepository serves from primary until it errors, then from
// fallback, probing primary again once per recoveryInterval.
type FailoverCacheRepository struct {
	primary   domain.CacheRepository
	fallback  domain.CacheRepository
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
	now       func() time.Time
}

func NewFailoverCacheRepository(primary, fallback domain.CacheRepository, logger *zerolog.Logger) *FailoverCacheRepository {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &FailoverCacheRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
	}
}

// usePrimary tells whether the next call should try primary.
func (r *FailoverCacheRepository) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	return r.now().Sub(time.Unix(0, r.lastCheck.Load())) > recoveryInterval
}

func (r *FailoverCacheRepository) markDown(err error) {
	if !r.isDown.Swap(true) {
		r.logger.Error().Err(err).Msg("Primary cache failed, falling back to memory")
	}
	r.lastCheck.Store(r.now().UnixNano())
}

func (r *FailoverCacheRepository) markUp() {
	if r.isDown.Swap(false) {
		r.logger.Info().Msg("Primary cache recovered")
	}
}

// Down reports whether calls are currently served by the fallback.
func (r *FailoverCacheRepository) Down() bool {
	return r.isDown.Load()
}

func (r *FailoverCacheRepository) GetAvailability(ctx context.Context, providerID, date string) ([]models.Interval, bool, error) {
	if r.usePrimary() {
		intervals, ok, err := r.primary.GetAvailability(ctx, providerID, date)
		if err == nil {
			r.markUp()
			return intervals, ok, nil
		}
		r.markDown(err)
	}
	return r.fallback.GetAvailability(ctx, providerID, date)
}

func (r *FailoverCacheRepository) SetAvailability(ctx context.Context, providerID, date string, intervals []models.Interval) error {
	if r.usePrimary() {
		err := r.primary.SetAvailability(ctx, providerID, date, intervals)
		if err == nil {
			r.markUp()
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.SetAvailability(ctx, providerID, date, intervals)
}

// InvalidateAvailability clears both layers so a recovered primary or a
// stale fallback never serves an old entry.
func (r *FailoverCacheRepository) InvalidateAvailability(ctx context.Context, providerID, date string) error {
	if err := r.fallback.InvalidateAvailability(ctx, providerID, date); err != nil {
		return err
	}
	if err := r.primary.InvalidateAvailability(ctx, providerID, date); err != nil {
		r.markDown(err)
		return nil
	}
	r.markUp()
	return nil
}

func (r *FailoverCacheRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.usePrimary() {
		allowed, err := r.primary.CheckRateLimit(ctx, key, limit, window)
		if err == nil {
			r.markUp()
			return allowed, nil
		}
		r.markDown(err)
	}
	return r.fallback.CheckRateLimit(ctx, key, limit, window)
}
