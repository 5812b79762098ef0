package mapbox

import (
	"container/list"
	"context"
	"math"
	"strings"
	"sync"

	"github.com/couchcryptid/disaster-merge-service/internal/domain"
	"github.com/couchcryptid/disaster-merge-service/internal/observability"
)

// CachedGeocoder decorates a Geocoder with a bounded in-memory cache. Every
// refresh re-resolves the same spreadsheet locations and mostly the same
// merged positions, so after the first run nearly all lookups are hits.
type CachedGeocoder struct {
	inner   domain.Geocoder
	cache   *placeCache
	metrics *observability.Metrics
}

// NewCachedGeocoder wraps inner with a cache holding at most maxEntries places.
func NewCachedGeocoder(inner domain.Geocoder, maxEntries int, metrics *observability.Metrics) *CachedGeocoder {
	return &CachedGeocoder{
		inner:   inner,
		cache:   newPlaceCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedGeocoder) ForwardGeocode(ctx context.Context, name, region string) (domain.GeocodingResult, error) {
	key := placeKey{method: "forward", name: strings.ToLower(name), region: strings.ToLower(region)}
	return c.resolve(key, func() (domain.GeocodingResult, error) {
		return c.inner.ForwardGeocode(ctx, name, region)
	})
}

// ReverseGeocode keys on coordinates rounded to four decimals (about 11 m).
func (c *CachedGeocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.GeocodingResult, error) {
	key := placeKey{method: "reverse", lat: math.Round(lat * 1e4), lon: math.Round(lon * 1e4)}
	return c.resolve(key, func() (domain.GeocodingResult, error) {
		return c.inner.ReverseGeocode(ctx, lat, lon)
	})
}

func (c *CachedGeocoder) resolve(key placeKey, fetch func() (domain.GeocodingResult, error)) (domain.GeocodingResult, error) {
	if result, ok := c.cache.get(key); ok {
		c.metrics.GeocodeCache.WithLabelValues(key.method, "hit").Inc()
		return result, nil
	}
	c.metrics.GeocodeCache.WithLabelValues(key.method, "miss").Inc()

	result, err := fetch()
	if err != nil {
		return result, err
	}
	// Empty answers stay uncached so the next refresh asks again.
	if result.FormattedAddress != "" {
		c.cache.add(key, result)
	}
	return result, nil
}

type placeKey struct {
	method       string
	name, region string
	lat, lon     float64
}

type cached struct {
	key    placeKey
	result domain.GeocodingResult
}

// placeCache is a mutex-guarded LRU: the front of order is the most recently used.
type placeCache struct {
	mu    sync.Mutex
	limit int
	order *list.List
	items map[placeKey]*list.Element
}

func newPlaceCache(limit int) *placeCache {
	return &placeCache{
		limit: max(limit, 1),
		order: list.New(),
		items: make(map[placeKey]*list.Element),
	}
}

func (c *placeCache) get(key placeKey) (domain.GeocodingResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return domain.GeocodingResult{}, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cached).result, true
}

func (c *placeCache) add(key placeKey, result domain.GeocodingResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value.(*cached).result = result
		c.order.MoveToFront(el)
		return
	}
	c.items[key] = c.order.PushFront(&cached{key: key, result: result})

	for c.order.Len() > c.limit {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*cached).key)
	}
}

func (c *placeCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
