package api

import (
	"context"
	"net/http"

	"github.com/example/carpool-driver/internal/models"
)

func (c *Client) RatePassenger(ctx context.Context, r models.PassengerRating) (*models.Rating, error) {
	if err := check(r); err != nil {
		return nil, err
	}
	return c.submitRating(ctx, r)
}

func (c *Client) RateDriver(ctx context.Context, r models.DriverRating) (*models.Rating, error) {
	if err := check(r); err != nil {
		return nil, err
	}
	return c.submitRating(ctx, r)
}

func (c *Client) submitRating(ctx context.Context, body any) (*models.Rating, error) {
	payload, err := c.do(ctx, call{name: "/ratings", method: http.MethodPost, path: "/ratings", body: body})
	if err != nil {
		return nil, err
	}
	return decodeOptional[models.Rating]("/ratings", payload)
}
