package eta

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/example/carpool-driver/internal/models"
)

// Router returns a driving duration between two points.
type Router interface {
	EstimateSeconds(ctx context.Context, from, to models.Location) (float64, error)
}

// Cache holds recent lookups keyed by both endpoints.
type Cache struct {
	mu    sync.RWMutex
	store map[string]cacheEntry
	ttl   time.Duration
}

type cacheEntry struct {
	v  float64
	ts time.Time
}

func NewCache(ttl time.Duration) *Cache {
	return &Cache{store: make(map[string]cacheEntry), ttl: ttl}
}

func keyFor(a, b models.Location) string {
	return fmtPoint(a) + "->" + fmtPoint(b)
}

func fmtPoint(l models.Location) string {
	return fmt.Sprintf("%.5f,%.5f", l.Latitude, l.Longitude)
}

// Get returns a cached value that has not expired.
func (c *Cache) Get(a, b models.Location) (float64, bool) {
	k := keyFor(a, b)
	c.mu.RLock()
	e, ok := c.store[k]
	c.mu.RUnlock()
	if !ok {
		return 0, false
	}
	if time.Since(e.ts) > c.ttl {
		c.mu.Lock()
		delete(c.store, k)
		c.mu.Unlock()
		return 0, false
	}
	return e.v, true
}

func (c *Cache) Set(a, b models.Location, v float64) {
	k := keyFor(a, b)
	c.mu.Lock()
	c.store[k] = cacheEntry{v: v, ts: time.Now()}
	c.mu.Unlock()
}

// Estimator answers "how long until I reach this point" for the tracking
// view. It asks the router when one is configured and falls back to a
// straight-line estimate at a fixed speed.
type Estimator struct {
	router   Router
	cache    *Cache
	speedMps float64
	logger   *slog.Logger
}

func NewEstimator(router Router, speedMps float64, logger *slog.Logger) *Estimator {
	return &Estimator{router: router, cache: NewCache(time.Minute), speedMps: speedMps, logger: logger}
}

// Estimate returns the travel time and whether it came from the router.
func (e *Estimator) Estimate(ctx context.Context, from, to models.Location) (time.Duration, bool) {
	if v, ok := e.cache.Get(from, to); ok {
		return seconds(v), true
	}
	if e.router != nil {
		v, err := e.router.EstimateSeconds(ctx, from, to)
		if err == nil {
			e.cache.Set(from, to, v)
			return seconds(v), true
		}
		e.logger.Warn("router unavailable, using straight line", "error", err)
	}
	return seconds(StraightLineSeconds(from, to, e.speedMps)), false
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second)).Round(time.Second)
}

// StraightLineSeconds divides the great-circle distance by speedMps.
func StraightLineSeconds(from, to models.Location, speedMps float64) float64 {
	if speedMps <= 0 {
		speedMps = 12.0 // ~43 km/h intercity average
	}
	return DistanceMeters(from, to) / speedMps
}

// DistanceMeters is the haversine distance between two points.
func DistanceMeters(a, b models.Location) float64 {
	const R = 6371000.0
	toRad := func(deg float64) float64 { return deg * math.Pi / 180.0 }
	dLat := toRad(b.Latitude - a.Latitude)
	dLon := toRad(b.Longitude - a.Longitude)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(toRad(a.Latitude))*math.Cos(toRad(b.Latitude))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return R * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}
