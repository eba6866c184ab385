package repository

import (
	"context"
	"sync"
	"time"

	"glowbook/internal/models"
)

type cacheEntry struct {
	intervals []models.Interval
	expiresAt time.Time
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

// MemoryCacheRepository is the in-process stand-in used when Redis is absent.
type MemoryCacheRepository struct {
	entries sync.Map

	mu         sync.Mutex
	rateLimits map[string]*rateLimitEntry

	ttl time.Duration
	now func() time.Time
}

func NewMemoryCacheRepository(ttl time.Duration) *MemoryCacheRepository {
	return &MemoryCacheRepository{
		rateLimits: make(map[string]*rateLimitEntry),
		ttl:        ttl,
		now:        time.Now,
	}
}

func (r *MemoryCacheRepository) GetAvailability(_ context.Context, providerID, date string) ([]models.Interval, bool, error) {
	key := availabilityKey(providerID, date)
	val, ok := r.entries.Load(key)
	if !ok {
		return nil, false, nil
	}
	entry := val.(*cacheEntry)
	if r.ttl > 0 && r.now().After(entry.expiresAt) {
		r.entries.Delete(key)
		return nil, false, nil
	}
	return append([]models.Interval{}, entry.intervals...), true, nil
}

func (r *MemoryCacheRepository) SetAvailability(_ context.Context, providerID, date string, intervals []models.Interval) error {
	r.entries.Store(availabilityKey(providerID, date), &cacheEntry{
		intervals: append([]models.Interval{}, intervals...),
		expiresAt: r.now().Add(r.ttl),
	})
	return nil
}

func (r *MemoryCacheRepository) InvalidateAvailability(_ context.Context, providerID, date string) error {
	r.entries.Delete(availabilityKey(providerID, date))
	return nil
}

func (r *MemoryCacheRepository) CheckRateLimit(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	entry, ok := r.rateLimits[key]
	if !ok || now.After(entry.expiresAt) {
		entry = &rateLimitEntry{expiresAt: now.Add(window)}
		r.rateLimits[key] = entry
	}
	entry.count++

	return entry.count <= limit, nil
}
