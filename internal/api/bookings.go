package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/example/carpool-driver/internal/models"
)

// TripBookings lists the passengers booked on one trip.
func (c *Client) TripBookings(ctx context.Context, tripID int64) ([]models.Booking, error) {
	q := url.Values{"trip_id": {strconv.FormatInt(tripID, 10)}}
	payload, err := c.do(ctx, call{name: "/bookings", method: http.MethodGet, path: "/bookings", query: q})
	if err != nil {
		return nil, err
	}
	return decodeList[models.Booking]("/bookings", payload)
}
