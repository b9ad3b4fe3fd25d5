package api

import (
	"context"
	"net/http"

	"github.com/example/carpool-driver/internal/models"
)

func (c *Client) DriverStats(ctx context.Context) (*models.DriverStats, error) {
	payload, err := c.do(ctx, call{name: "/driver/stats", method: http.MethodGet, path: "/driver/stats"})
	if err != nil {
		return nil, err
	}
	return decodeOne[models.DriverStats]("/driver/stats", payload)
}

// UpdateLocation pushes the driver's current position.
func (c *Client) UpdateLocation(ctx context.Context, loc models.Location) error {
	if err := check(loc); err != nil {
		return err
	}
	_, err := c.do(ctx, call{name: "/location", method: http.MethodPost, path: "/location", body: loc})
	return err
}
