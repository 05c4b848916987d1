package acquire

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/internal/validate"
)

// CacheStore persists acquired content. GetCachedContent returns nil, nil
// on a miss or an expired entry.
type CacheStore interface {
	GetCachedContent(ctx context.Context, key string) (*model.RawContent, error)
	SetCachedContent(ctx context.Context, key string, content model.RawContent, ttl time.Duration) error
}

// Cache is an in-memory expirable LRU in front of an optional CacheStore.
// A nil *Cache never hits and drops writes.
type Cache struct {
	lru   *expirable.LRU[string, model.RawContent]
	store CacheStore
	ttl   time.Duration
}

// NewCache builds a cache holding up to size entries for ttl. store may be nil.
func NewCache(size int, ttl time.Duration, store CacheStore) *Cache {
	if size <= 0 {
		size = 512
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Cache{
		lru:   expirable.NewLRU[string, model.RawContent](size, nil, ttl),
		store: store,
		ttl:   ttl,
	}
}

// CacheKey derives the cache key for a fetch. HTML and non-HTML fetches of
// the same URL are cached separately.
func CacheKey(target string, opts FetchOptions) string {
	key := target
	if u, ok := validate.URL(target); ok {
		key = u
	}
	if opts.IncludeHTML {
		key += "|html"
	}
	return key
}

// Get returns cached content, promoting store hits into memory.
func (c *Cache) Get(ctx context.Context, key string) (*model.RawContent, bool) {
	if c == nil {
		return nil, false
	}
	if rc, ok := c.lru.Get(key); ok {
		return &rc, true
	}
	if c.store == nil {
		return nil, false
	}
	rc, err := c.store.GetCachedContent(ctx, key)
	if err != nil {
		zap.L().Warn("acquire: content cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if rc == nil {
		return nil, false
	}
	c.lru.Add(key, *rc)
	return rc, true
}

// Put stores content in memory and, best effort, in the store.
func (c *Cache) Put(ctx context.Context, key string, rc model.RawContent) {
	if c == nil {
		return
	}
	c.lru.Add(key, rc)
	if c.store == nil {
		return
	}
	if err := c.store.SetCachedContent(ctx, key, rc, c.ttl); err != nil {
		zap.L().Warn("acquire: content cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// Len reports the in-memory entry count.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}
