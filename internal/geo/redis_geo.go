package geo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/carpool-driver/internal/models"
)

// RedisGeo implements Store with Redis GEO commands plus a hash per driver
// for the fields GEO does not keep.
type RedisGeo struct {
	client *redis.Client
	key    string
}

func NewRedisGeo(ctx context.Context, addr, password, key string) (*RedisGeo, error) {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisGeo{client: c, key: key}, nil
}

func (r *RedisGeo) Close() error { return r.client.Close() }

func (r *RedisGeo) Upsert(ctx context.Context, driverID int64, loc models.Location) error {
	name := strconv.FormatInt(driverID, 10)
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.GeoAdd(ctx, r.key, &redis.GeoLocation{Longitude: loc.Longitude, Latitude: loc.Latitude, Name: name})
		p.HSet(ctx, metaKey(name), map[string]any{
			"accuracy": strconv.FormatFloat(loc.Accuracy, 'f', -1, 64),
			"speed":    strconv.FormatFloat(loc.Speed, 'f', -1, 64),
			"heading":  strconv.FormatFloat(loc.Heading, 'f', -1, 64),
			"trip_id":  strconv.FormatInt(loc.TripID, 10),
			"updated":  time.Now().UTC().Format(time.RFC3339),
		})
		return nil
	})
	return err
}

func (r *RedisGeo) Get(ctx context.Context, driverID int64) (Position, bool, error) {
	name := strconv.FormatInt(driverID, 10)
	res, err := r.client.GeoPos(ctx, r.key, name).Result()
	if err != nil {
		return Position{}, false, err
	}
	if len(res) == 0 || res[0] == nil {
		return Position{}, false, nil
	}
	p := Position{DriverID: driverID, Location: models.Location{Latitude: res[0].Latitude, Longitude: res[0].Longitude}}
	if err := r.fillMeta(ctx, name, &p); err != nil {
		return Position{}, false, err
	}
	return p, true, nil
}

func (r *RedisGeo) Nearby(ctx context.Context, lat, lon, radiusM float64, limit int) ([]Position, error) {
	res, err := r.client.GeoRadius(ctx, r.key, lon, lat, &redis.GeoRadiusQuery{
		Radius: radiusM, Unit: "m", WithCoord: true, Count: limit, Sort: "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Position, 0, len(res))
	for _, g := range res {
		id, err := strconv.ParseInt(g.Name, 10, 64)
		if err != nil {
			continue
		}
		p := Position{DriverID: id, Location: models.Location{Latitude: g.Latitude, Longitude: g.Longitude}}
		if err := r.fillMeta(ctx, g.Name, &p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *RedisGeo) Count(ctx context.Context) (int, error) {
	n, err := r.client.ZCard(ctx, r.key).Result()
	return int(n), err
}

func (r *RedisGeo) fillMeta(ctx context.Context, name string, p *Position) error {
	m, err := r.client.HGetAll(ctx, metaKey(name)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	p.Location.Accuracy, _ = strconv.ParseFloat(m["accuracy"], 64)
	p.Location.Speed, _ = strconv.ParseFloat(m["speed"], 64)
	p.Location.Heading, _ = strconv.ParseFloat(m["heading"], 64)
	p.Location.TripID, _ = strconv.ParseInt(m["trip_id"], 10, 64)
	p.Updated, _ = time.Parse(time.RFC3339, m["updated"])
	return nil
}

func metaKey(id string) string { return "driver:meta:" + id }
