package bcgeo

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/couchcryptid/batch-geocoder-service/internal/domain"
	"github.com/couchcryptid/batch-geocoder-service/internal/observability"
)

const redisKeyPrefix = "batch-geocoder:search:"

// CachedGeocoder wraps a Geocoder with an in-memory LRU cache and an optional
// shared Redis layer. Cached results are shared between callers and must not
// be modified.
type CachedGeocoder struct {
	inner   domain.Geocoder
	cache   *lruCache
	shared  *redis.Client
	ttl     time.Duration
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewCachedGeocoder creates a cache decorator around a geocoder. Pass a nil
// shared client to use the in-memory layer only.
func NewCachedGeocoder(inner domain.Geocoder, maxEntries int, shared *redis.Client, ttl time.Duration,
	metrics *observability.Metrics, logger *slog.Logger,
) *CachedGeocoder {
	return &CachedGeocoder{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		shared:  shared,
		ttl:     ttl,
		metrics: metrics,
		logger:  logger,
	}
}

func (c *CachedGeocoder) EngineConfig() domain.EngineConfig { return c.inner.EngineConfig() }

func (c *CachedGeocoder) PresentationConfig() *domain.PresentationConfig {
	return c.inner.PresentationConfig()
}

func (c *CachedGeocoder) Geocode(ctx context.Context, q domain.Query) (domain.SearchResults, error) {
	key, err := cacheKey(q)
	if err != nil {
		return c.inner.Geocode(ctx, q)
	}

	if sr, ok := c.cache.get(key); ok {
		c.metrics.GeocodeCache.WithLabelValues("memory", "hit").Inc()
		return sr, nil
	}
	c.metrics.GeocodeCache.WithLabelValues("memory", "miss").Inc()

	if sr, ok := c.sharedGet(ctx, key); ok {
		c.cache.put(key, sr)
		return sr, nil
	}

	sr, err := c.inner.Geocode(ctx, q)
	if err != nil {
		return sr, err
	}
	// Only cache non-empty results so transient "not found" responses can be retried.
	if len(sr.Matches) > 0 {
		c.cache.put(key, sr)
		c.sharedPut(ctx, key, sr)
	}
	return sr, nil
}

func (c *CachedGeocoder) sharedGet(ctx context.Context, key string) (domain.SearchResults, bool) {
	if c.shared == nil {
		return domain.SearchResults{}, false
	}
	data, err := c.shared.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("shared cache read failed", "error", err)
		}
		c.metrics.GeocodeCache.WithLabelValues("redis", "miss").Inc()
		return domain.SearchResults{}, false
	}
	var sr domain.SearchResults
	if err := json.Unmarshal(data, &sr); err != nil {
		c.logger.Warn("shared cache entry unreadable", "error", err)
		c.metrics.GeocodeCache.WithLabelValues("redis", "miss").Inc()
		return domain.SearchResults{}, false
	}
	c.metrics.GeocodeCache.WithLabelValues("redis", "hit").Inc()
	return sr, true
}

func (c *CachedGeocoder) sharedPut(ctx context.Context, key string, sr domain.SearchResults) {
	if c.shared == nil {
		return
	}
	data, err := json.Marshal(sr)
	if err != nil {
		c.logger.Warn("encode shared cache entry failed", "error", err)
		return
	}
	if err := c.shared.Set(ctx, redisKeyPrefix+key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("shared cache write failed", "error", err)
	}
}

// cacheKey fingerprints every field of q.
func cacheKey(q domain.Query) (string, error) {
	data, err := json.Marshal(q)
	if err != nil {
		return "", fmt.Errorf("encode query: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// lruCache is a simple thread-safe LRU cache for SearchResults.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value domain.SearchResults
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (domain.SearchResults, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return domain.SearchResults{}, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value domain.SearchResults) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
