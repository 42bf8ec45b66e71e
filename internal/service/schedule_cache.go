package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/noah-isme/ukm-attendance-api/internal/models"
)

// cachedSchedule stores hits and misses alike so "no session today" is cached too.
type cachedSchedule struct {
	Found    bool                     `json:"found"`
	Schedule *models.PracticeSchedule `json:"schedule,omitempty"`
}

// CachedScheduleLookup puts the redis cache in front of the eligibility
// queries. Cache failures fall through to the store.
type CachedScheduleLookup struct {
	store scheduleLookup
	cache *CacheService
	ttl   time.Duration
}

// NewCachedScheduleLookup wraps store. A disabled cache passes everything through.
func NewCachedScheduleLookup(store scheduleLookup, cacheSvc *CacheService, ttl time.Duration) *CachedScheduleLookup {
	return &CachedScheduleLookup{store: store, cache: cacheSvc, ttl: ttl}
}

// FindActiveByDate implements scheduleLookup.
func (c *CachedScheduleLookup) FindActiveByDate(ctx context.Context, date time.Time) (*models.PracticeSchedule, error) {
	return c.single(ctx, lookupByDate, scheduleKey(lookupByDate, date), func() (*models.PracticeSchedule, error) {
		return c.store.FindActiveByDate(ctx, date)
	})
}

// FindNextActiveOnOrAfter implements scheduleLookup.
func (c *CachedScheduleLookup) FindNextActiveOnOrAfter(ctx context.Context, date time.Time) (*models.PracticeSchedule, error) {
	return c.single(ctx, lookupNext, scheduleKey(lookupNext, date), func() (*models.PracticeSchedule, error) {
		return c.store.FindNextActiveOnOrAfter(ctx, date)
	})
}

// FindActiveInRange implements scheduleLookup.
func (c *CachedScheduleLookup) FindActiveInRange(ctx context.Context, from, to time.Time) ([]models.PracticeSchedule, error) {
	key := scheduleKey(lookupInRange, from, to)
	var schedules []models.PracticeSchedule
	if c.cache.Read(ctx, lookupInRange, key, &schedules) {
		return schedules, nil
	}
	schedules, err := c.store.FindActiveInRange(ctx, from, to)
	if err != nil {
		return nil, err
	}
	c.cache.Write(ctx, key, schedules, c.ttl)
	return schedules, nil
}

func (c *CachedScheduleLookup) single(ctx context.Context, lookup, key string, load func() (*models.PracticeSchedule, error)) (*models.PracticeSchedule, error) {
	var cached cachedSchedule
	if c.cache.Read(ctx, lookup, key, &cached) {
		if !cached.Found {
			return nil, sql.ErrNoRows
		}
		return cached.Schedule, nil
	}

	schedule, err := load()
	switch {
	case errors.Is(err, sql.ErrNoRows):
		c.cache.Write(ctx, key, cachedSchedule{Found: false}, c.ttl)
		return nil, err
	case err != nil:
		return nil, err
	}
	c.cache.Write(ctx, key, cachedSchedule{Found: true, Schedule: schedule}, c.ttl)
	return schedule, nil
}
