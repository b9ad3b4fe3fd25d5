package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/example/carpool-driver/internal/models"
)

func (c *Client) CreateTrip(ctx context.Context, trip models.NewTrip) (*models.Trip, error) {
	trip.FromCity = strings.TrimSpace(trip.FromCity)
	trip.ToCity = strings.TrimSpace(trip.ToCity)
	if err := check(trip); err != nil {
		return nil, err
	}
	if trip.DepartureTime.IsZero() {
		return nil, &ValidationError{Fields: []FieldError{{Field: "departure_time", Message: "this field is required"}}}
	}
	payload, err := c.do(ctx, call{name: "/trips", method: http.MethodPost, path: "/trips", body: trip})
	if err != nil {
		return nil, err
	}
	return decodeOne[models.Trip]("/trips", payload)
}

// DriverTrips lists the authenticated driver's trips, optionally filtered by
// status. An empty status lists every trip.
func (c *Client) DriverTrips(ctx context.Context, status models.TripStatus) ([]models.Trip, error) {
	var q url.Values
	if status != "" {
		if !status.Valid() {
			return nil, invalidStatus(status)
		}
		q = url.Values{"status": {string(status)}}
	}
	payload, err := c.do(ctx, call{name: "/trips/driver", method: http.MethodGet, path: "/trips/driver", query: q})
	if err != nil {
		return nil, err
	}
	return decodeList[models.Trip]("/trips/driver", payload)
}

func (c *Client) Trip(ctx context.Context, id int64) (*models.Trip, error) {
	payload, err := c.TripRaw(ctx, id)
	if err != nil {
		return nil, err
	}
	return decodeOne[models.Trip]("/trips/{id}", payload)
}

// TripRaw returns the trip detail payload exactly as the backend sent it.
func (c *Client) TripRaw(ctx context.Context, id int64) (json.RawMessage, error) {
	if id <= 0 {
		return nil, &ValidationError{Fields: []FieldError{{Field: "id", Message: "this field is required"}}}
	}
	return c.do(ctx, call{name: "/trips/{id}", method: http.MethodGet, path: "/trips/" + strconv.FormatInt(id, 10)})
}

// UpdateTripStatus requests a status transition. The returned trip is nil
// when the backend answers without a body.
func (c *Client) UpdateTripStatus(ctx context.Context, id int64, status models.TripStatus) (*models.Trip, error) {
	if !status.Valid() {
		return nil, invalidStatus(status)
	}
	body := struct {
		Status models.TripStatus `json:"status"`
	}{status}
	path := "/trips/" + strconv.FormatInt(id, 10) + "/status"
	payload, err := c.do(ctx, call{name: "/trips/{id}/status", method: http.MethodPut, path: path, body: body})
	if err != nil {
		return nil, err
	}
	return decodeOptional[models.Trip]("/trips/{id}/status", payload)
}

// TripSearch holds the optional search filters. Empty fields are left out
// of the query entirely.
type TripSearch struct {
	FromCity string
	ToCity   string
	Date     string
}

func (s TripSearch) query() url.Values {
	q := url.Values{}
	if v := strings.TrimSpace(s.FromCity); v != "" {
		q.Set("from_city", v)
	}
	if v := strings.TrimSpace(s.ToCity); v != "" {
		q.Set("to_city", v)
	}
	if v := strings.TrimSpace(s.Date); v != "" {
		q.Set("departure_time", v)
	}
	return q
}

func (c *Client) SearchTrips(ctx context.Context, s TripSearch) ([]models.Trip, error) {
	payload, err := c.do(ctx, call{name: "/trips", method: http.MethodGet, path: "/trips", query: s.query()})
	if err != nil {
		return nil, err
	}
	return decodeList[models.Trip]("/trips", payload)
}

func (c *Client) PopularRoutes(ctx context.Context) ([]models.PopularRoute, error) {
	payload, err := c.do(ctx, call{name: "/trips/popular-routes", method: http.MethodGet, path: "/trips/popular-routes"})
	if err != nil {
		return nil, err
	}
	return decodeList[models.PopularRoute]("/trips/popular-routes", payload)
}

// PopularCities feeds the passenger home screen; the backend serves it from
// the popular routes endpoint.
func (c *Client) PopularCities(ctx context.Context) ([]models.PopularRoute, error) {
	return c.PopularRoutes(ctx)
}

func invalidStatus(s models.TripStatus) error {
	return &ValidationError{Fields: []FieldError{{
		Field:   "status",
		Message: "must be one of scheduled ongoing completed cancelled, got " + strconv.Quote(string(s)),
	}}}
}

// IsSessionExpired reports whether err came from a 401 answer.
func IsSessionExpired(err error) bool {
	return errors.Is(err, ErrSessionExpired)
}
