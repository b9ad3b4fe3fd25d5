package geo

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/example/carpool-driver/internal/models"
)

// Position is the last location a driver reported.
type Position struct {
	DriverID int64           `json:"driver_id"`
	Location models.Location `json:"location"`
	Updated  time.Time       `json:"updated"`
}

// Store keeps the latest position per driver.
type Store interface {
	Upsert(ctx context.Context, driverID int64, loc models.Location) error
	Get(ctx context.Context, driverID int64) (Position, bool, error)
	Nearby(ctx context.Context, lat, lon, radiusM float64, limit int) ([]Position, error)
	Count(ctx context.Context) (int, error)
}

type Index struct {
	mu      sync.RWMutex
	drivers map[int64]Position
	now     func() time.Time
}

func NewIndex() *Index {
	return &Index{drivers: make(map[int64]Position), now: time.Now}
}

func (g *Index) Upsert(_ context.Context, driverID int64, loc models.Location) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.drivers[driverID] = Position{DriverID: driverID, Location: loc, Updated: g.now()}
	return nil
}

func (g *Index) Get(_ context.Context, driverID int64) (Position, bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	p, ok := g.drivers[driverID]
	return p, ok, nil
}

func (g *Index) Count(context.Context) (int, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.drivers), nil
}

// Nearby scans every driver; fine for a dev backend.
func (g *Index) Nearby(_ context.Context, lat, lon, radiusM float64, limit int) ([]Position, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	type pair struct {
		p    Position
		dist float64
	}
	arr := make([]pair, 0, len(g.drivers))
	for _, p := range g.drivers {
		dist := Haversine(lat, lon, p.Location.Latitude, p.Location.Longitude)
		if radiusM > 0 && dist > radiusM {
			continue
		}
		arr = append(arr, pair{p, dist})
	}
	sort.Slice(arr, func(i, j int) bool { return arr[i].dist < arr[j].dist })
	if limit > 0 && len(arr) > limit {
		arr = arr[:limit]
	}
	out := make([]Position, 0, len(arr))
	for _, a := range arr {
		out = append(out, a.p)
	}
	return out, nil
}

// Haversine distance in meters
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371000.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}
