package acquire

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/enrich-cli/internal/model"
)

type memCacheStore struct {
	mu     sync.Mutex
	items  map[string]model.RawContent
	ttls   map[string]time.Duration
	getErr error
	setErr error
}

func newMemCacheStore() *memCacheStore {
	return &memCacheStore{items: make(map[string]model.RawContent), ttls: make(map[string]time.Duration)}
}

func (m *memCacheStore) GetCachedContent(_ context.Context, key string) (*model.RawContent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	rc, ok := m.items[key]
	if !ok {
		return nil, nil
	}
	return &rc, nil
}

func (m *memCacheStore) SetCachedContent(_ context.Context, key string, rc model.RawContent, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.items[key] = rc
	m.ttls[key] = ttl
	return nil
}

func TestCacheKey(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "https://acme.com/about", CacheKey("https://ACME.com/about/?utm_source=x", FetchOptions{}))
	assert.Equal(t, "https://acme.com|html", CacheKey("https://acme.com", FetchOptions{IncludeHTML: true}))
	assert.Equal(t, "not a url", CacheKey("not a url", FetchOptions{}))
}

func TestCache_StorePromotion(t *testing.T) {
	t.Parallel()

	store := newMemCacheStore()
	store.items["k"] = model.RawContent{Target: "https://acme.com", Body: "cached"}
	c := NewCache(4, time.Hour, store)

	rc, ok := c.Get(context.Background(), "k")
	require.True(t, ok)
	assert.Equal(t, "cached", rc.Body)
	assert.Equal(t, 1, c.Len())

	store.getErr = errors.New("db down")
	rc, ok = c.Get(context.Background(), "k")
	require.True(t, ok, "memory hit does not touch the store")
	assert.Equal(t, "cached", rc.Body)

	_, ok = c.Get(context.Background(), "missing")
	assert.False(t, ok)
}

func TestCache_Put(t *testing.T) {
	t.Parallel()

	store := newMemCacheStore()
	c := NewCache(0, 0, store)
	c.Put(context.Background(), "k", model.RawContent{Body: "fresh"})
	assert.Equal(t, "fresh", store.items["k"].Body)
	assert.Equal(t, 24*time.Hour, store.ttls["k"])

	store.setErr = errors.New("disk full")
	c.Put(context.Background(), "k2", model.RawContent{Body: "memory only"})
	rc, ok := c.Get(context.Background(), "k2")
	require.True(t, ok)
	assert.Equal(t, "memory only", rc.Body)
}

func TestCache_Nil(t *testing.T) {
	t.Parallel()

	var c *Cache
	c.Put(context.Background(), "k", model.RawContent{})
	_, ok := c.Get(context.Background(), "k")
	assert.False(t, ok)
	assert.Zero(t, c.Len())
}
