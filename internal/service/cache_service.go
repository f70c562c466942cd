package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/edu-crm-api/pkg/errors"
)

// CacheRepository is the raw byte store behind CacheService.
type CacheRepository interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Store(ctx context.Context, key string, payload []byte, ttl time.Duration) error
	Purge(ctx context.Context, pattern string) (int, error)
}

type cacheMetrics interface {
	ObserveCache(op, outcome string, took time.Duration)
}

// CacheService stores JSON snapshots for the table and dashboard views.
// Without a store every read misses and every write is dropped.
type CacheService struct {
	store   CacheRepository
	metrics cacheMetrics
	ttl     time.Duration
	logger  *zap.Logger
}

func NewCacheService(store CacheRepository, metrics cacheMetrics, ttl time.Duration, logger *zap.Logger) *CacheService {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{store: store, metrics: metrics, ttl: ttl, logger: logger}
}

func (s *CacheService) Enabled() bool {
	return s != nil && s.store != nil
}

func (s *CacheService) observe(op, outcome string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveCache(op, outcome, time.Since(start))
	}
}

// Get decodes the entry under key into dest and reports whether it was there.
// An undecodable entry counts as a miss.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	start := time.Now()
	raw, err := s.store.Load(ctx, key)
	if errors.Is(err, appErrors.ErrCacheMiss) {
		s.observe("get", "miss", start)
		return false, nil
	}
	if err != nil {
		s.observe("get", "error", start)
		s.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		s.observe("get", "miss", start)
		s.logger.Warn("discarding undecodable cache entry", zap.String("key", key), zap.Error(err))
		return false, nil
	}
	s.observe("get", "hit", start)
	return true, nil
}

// Set stores value for ttl, or for the default TTL when ttl is not positive.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = s.ttl
	}
	start := time.Now()
	if err := s.store.Store(ctx, key, payload, ttl); err != nil {
		s.observe("set", "error", start)
		s.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		return err
	}
	s.observe("set", "ok", start)
	return nil
}

// Invalidate drops every entry matching the glob pattern.
func (s *CacheService) Invalidate(ctx context.Context, pattern string) error {
	if !s.Enabled() {
		return nil
	}
	start := time.Now()
	n, err := s.store.Purge(ctx, pattern)
	if err != nil {
		s.observe("purge", "error", start)
		s.logger.Warn("cache purge failed", zap.String("pattern", pattern), zap.Error(err))
		return err
	}
	s.observe("purge", "ok", start)
	s.logger.Debug("cache purged", zap.String("pattern", pattern), zap.Int("keys", n))
	return nil
}

type cacheStore interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// loadCached reads key through the cache and falls back to load. Cache
// failures never reach the caller.
func loadCached[T any](ctx context.Context, cache cacheStore, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var cached T
	if cache != nil {
		if hit, err := cache.Get(ctx, key, &cached); err == nil && hit {
			return cached, nil
		}
	}
	value, err := load(ctx)
	if err != nil {
		return value, err
	}
	if cache != nil {
		_ = cache.Set(ctx, key, value, ttl)
	}
	return value, nil
}
