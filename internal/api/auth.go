package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/example/carpool-driver/internal/models"
)

// Login exchanges phone and password for a token and stores both the token
// and the returned profile. A rejected login is an *Error carrying the
// server's message; it never counts as a session expiry.
func (c *Client) Login(ctx context.Context, phone, password string) (*models.LoginResult, error) {
	creds := models.Credentials{Phone: phone, Password: password}
	if err := check(creds); err != nil {
		return nil, err
	}
	payload, err := c.do(ctx, call{name: "/auth/driver/login", method: http.MethodPost, path: "/auth/driver/login", body: creds, public: true})
	if err != nil {
		return nil, err
	}
	res, err := decodeOne[models.LoginResult]("/auth/driver/login", payload)
	if err != nil {
		return nil, err
	}
	if res.Token == "" {
		return nil, &SchemaError{Endpoint: "/auth/driver/login", Err: errors.New("missing token")}
	}
	if res.User == nil {
		c.logger.Warn("login response carried no user profile")
	}
	if err := c.creds.Save(ctx, res.Token, res.User); err != nil {
		return nil, err
	}
	return res, nil
}

// Register creates a driver account and returns the server payload as-is.
// It does not log the driver in.
func (c *Client) Register(ctx context.Context, reg models.Registration) (json.RawMessage, error) {
	if reg.Email != nil && *reg.Email == "" {
		reg.Email = nil
	}
	if err := check(reg); err != nil {
		return nil, err
	}
	return c.do(ctx, call{name: "/auth/driver/register", method: http.MethodPost, path: "/auth/driver/register", body: reg, public: true})
}
