package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/ukm-attendance-api/internal/models"
	"github.com/noah-isme/ukm-attendance-api/pkg/cache"
	appErrors "github.com/noah-isme/ukm-attendance-api/pkg/errors"
)

const (
	scheduleNamespace = "schedules"

	lookupByDate  = "date"
	lookupNext    = "next"
	lookupInRange = "range"

	cacheResultHit   = "hit"
	cacheResultMiss  = "miss"
	cacheResultError = "error"
)

// CacheRepository abstracts persistence for cached schedule lookups.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// ScheduleCachePattern matches every cached schedule lookup.
func ScheduleCachePattern() string {
	return cache.Key(scheduleNamespace, "*")
}

// scheduleKey names the cache entry of one lookup kind over the given dates.
func scheduleKey(lookup string, dates ...time.Time) string {
	parts := make([]string, 0, len(dates)+2)
	parts = append(parts, scheduleNamespace, lookup)
	for _, d := range dates {
		parts = append(parts, d.Format(models.DateLayout))
	}
	return cache.Key(parts...)
}

// CacheService fronts the practice schedule lookups with redis. It is a
// no-op when disabled so callers never branch on cache availability.
type CacheService struct {
	repo    CacheRepository
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
	enabled bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, ttl time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, ttl: ttl, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Read loads the entry for a schedule lookup into dest. It reports a hit only
// when dest was filled; redis failures are logged and read as misses.
func (s *CacheService) Read(ctx context.Context, lookup, key string, dest interface{}) bool {
	if !s.Enabled() {
		return false
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	switch {
	case err == nil:
		s.metrics.RecordCacheRead(lookup, cacheResultHit, time.Since(start))
		return true
	case errors.Is(err, appErrors.ErrCacheMiss):
		s.metrics.RecordCacheRead(lookup, cacheResultMiss, time.Since(start))
	default:
		s.metrics.RecordCacheRead(lookup, cacheResultError, time.Since(start))
		s.logger.Warn("schedule cache read failed", zap.String("lookup", lookup), zap.String("key", key), zap.Error(err))
	}
	return false
}

// Write stores a schedule lookup result. ttl falls back to the service default.
func (s *CacheService) Write(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if !s.Enabled() {
		return
	}
	if ttl <= 0 {
		ttl = s.ttl
	}
	start := time.Now()
	err := s.repo.Set(ctx, key, value, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("schedule cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// InvalidateSchedules drops every cached schedule lookup.
func (s *CacheService) InvalidateSchedules(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}
	if err := s.repo.DeleteByPattern(ctx, ScheduleCachePattern()); err != nil {
		s.logger.Warn("schedule cache invalidate failed", zap.Error(err))
		return err
	}
	return nil
}
