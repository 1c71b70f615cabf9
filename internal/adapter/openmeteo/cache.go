package openmeteo

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/couchcryptid/fishability-service/internal/domain"
	"github.com/couchcryptid/fishability-service/internal/observability"
)

// coordPrecision is the number of decimals kept in cache keys (about 1 km).
const coordPrecision = 2

// CachedSource wraps a FeatureSource with an in-memory LRU cache. Entries
// are keyed by rounded coordinates and the current hour, and expire after
// the configured TTL, so a batch of nearby points costs one upstream call.
type CachedSource struct {
	inner        domain.FeatureSource
	cache        *lruCache
	ttl          time.Duration
	fetchTimeout time.Duration
	clock        clockwork.Clock
	group        singleflight.Group
	metrics      *observability.Metrics
}

// NewCachedSource creates a cache decorator around a feature source.
// fetchTimeout bounds each shared upstream fetch.
func NewCachedSource(inner domain.FeatureSource, maxEntries int, ttl, fetchTimeout time.Duration, metrics *observability.Metrics) *CachedSource {
	return &CachedSource{
		inner:        inner,
		cache:        newLRUCache(maxEntries),
		ttl:          ttl,
		fetchTimeout: fetchTimeout,
		clock:        clockwork.NewRealClock(),
		metrics:      metrics,
	}
}

// Features returns the cached bundle for the point, fetching it on a miss.
// Concurrent misses for the same key share one upstream call, which runs
// detached from any single caller's cancellation. A caller whose context
// ends stops waiting without failing the others. Errors are never cached.
func (c *CachedSource) Features(ctx context.Context, lat, lon float64) (domain.FeatureBundle, error) {
	now := c.clock.Now()
	key := cacheKey(lat, lon, now)
	if bundle, ok := c.cache.get(key, now); ok {
		c.metrics.FeatureCache.WithLabelValues("hit").Inc()
		return bundle, nil
	}
	c.metrics.FeatureCache.WithLabelValues("miss").Inc()

	ch := c.group.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()

		bundle, err := c.inner.Features(fetchCtx, roundCoord(lat), roundCoord(lon))
		if err != nil {
			return domain.FeatureBundle{}, err
		}
		c.cache.put(key, bundle, c.clock.Now().Add(c.ttl))
		return bundle, nil
	})

	select {
	case <-ctx.Done():
		return domain.FeatureBundle{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return domain.FeatureBundle{}, res.Err
		}
		return res.Val.(domain.FeatureBundle), nil
	}
}

// CheckReadiness delegates to the wrapped source when it reports readiness.
func (c *CachedSource) CheckReadiness(ctx context.Context) error {
	if rc, ok := c.inner.(interface{ CheckReadiness(context.Context) error }); ok {
		return rc.CheckReadiness(ctx)
	}
	return nil
}

func cacheKey(lat, lon float64, now time.Time) string {
	return fmt.Sprintf("%.*f,%.*f@%d", coordPrecision, lat, coordPrecision, lon, now.UTC().Truncate(time.Hour).Unix())
}

func roundCoord(v float64) float64 {
	scale := math.Pow10(coordPrecision)
	return math.Round(v*scale) / scale
}

// lruCache is a simple thread-safe LRU cache for FeatureBundles with
// per-entry expiry.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key       string
	value     domain.FeatureBundle
	expiresAt time.Time
	prev      *entry
	next      *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string, now time.Time) (domain.FeatureBundle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return domain.FeatureBundle{}, false
	}
	if !now.Before(e.expiresAt) {
		delete(c.entries, key)
		c.remove(e)
		return domain.FeatureBundle{}, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value domain.FeatureBundle, expiresAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		e.expiresAt = expiresAt
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value, expiresAt: expiresAt}
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
