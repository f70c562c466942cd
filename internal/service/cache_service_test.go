package service

import (
	"context"
	"errors"
	"path"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/edu-crm-api/pkg/errors"
)

type fakeCacheStore struct {
	entries map[string][]byte
	ttls    map[string]time.Duration
	err     error
}

func newFakeCacheStore() *fakeCacheStore {
	return &fakeCacheStore{entries: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (f *fakeCacheStore) Load(_ context.Context, key string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	raw, ok := f.entries[key]
	if !ok {
		return nil, appErrors.ErrCacheMiss
	}
	return raw, nil
}

func (f *fakeCacheStore) Store(_ context.Context, key string, payload []byte, ttl time.Duration) error {
	if f.err != nil {
		return f.err
	}
	f.entries[key], f.ttls[key] = payload, ttl
	return nil
}

func (f *fakeCacheStore) Purge(_ context.Context, pattern string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	n := 0
	for key := range f.entries {
		if ok, _ := path.Match(pattern, key); ok {
			delete(f.entries, key)
			n++
		}
	}
	return n, nil
}

type cacheObservations []string

func (o *cacheObservations) ObserveCache(op, outcome string, _ time.Duration) {
	*o = append(*o, op+":"+outcome)
}

func TestCacheServiceRoundTrip(t *testing.T) {
	store := newFakeCacheStore()
	var seen cacheObservations
	svc := NewCacheService(store, &seen, 2*time.Minute, nil)
	ctx := context.Background()

	var got []string
	hit, err := svc.Get(ctx, "table:leads", &got)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, svc.Set(ctx, "table:leads", []string{"l1", "l2"}, 0))
	assert.Equal(t, 2*time.Minute, store.ttls["table:leads"])

	hit, err = svc.Get(ctx, "table:leads", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []string{"l1", "l2"}, got)
	assert.Equal(t, cacheObservations{"get:miss", "set:ok", "get:hit"}, seen)
}

func TestCacheServiceTreatsGarbageAsMiss(t *testing.T) {
	store := newFakeCacheStore()
	store.entries["dashboard:summary"] = []byte("{not json")
	svc := NewCacheService(store, nil, 0, nil)

	var dest map[string]int
	hit, err := svc.Get(context.Background(), "dashboard:summary", &dest)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestCacheServiceInvalidateByPattern(t *testing.T) {
	store := newFakeCacheStore()
	store.entries["table:leads"] = []byte("[]")
	store.entries["table:students"] = []byte("[]")
	svc := NewCacheService(store, nil, 0, nil)

	require.NoError(t, svc.Invalidate(context.Background(), "table:lead*"))

	assert.NotContains(t, store.entries, "table:leads")
	assert.Contains(t, store.entries, "table:students")
}

func TestCacheServiceSurfacesStoreErrors(t *testing.T) {
	store := newFakeCacheStore()
	store.err = errors.New("connection refused")
	var seen cacheObservations
	svc := NewCacheService(store, &seen, 0, nil)
	ctx := context.Background()

	_, err := svc.Get(ctx, "k", new(int))
	assert.Error(t, err)
	assert.Error(t, svc.Set(ctx, "k", 1, 0))
	assert.Error(t, svc.Invalidate(ctx, "k*"))
	assert.Equal(t, cacheObservations{"get:error", "set:error", "purge:error"}, seen)
}

func TestCacheServiceWithoutStore(t *testing.T) {
	svc := NewCacheService(nil, nil, 0, nil)

	assert.False(t, svc.Enabled())
	hit, err := svc.Get(context.Background(), "k", new(int))
	assert.NoError(t, err)
	assert.False(t, hit)
	assert.NoError(t, svc.Set(context.Background(), "k", 1, 0))
	assert.NoError(t, svc.Invalidate(context.Background(), "*"))
}
