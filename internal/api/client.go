// Package api is the authenticated request client for the carpool backend.
//
// Every call is issued once: there are no retries, no timeout override and
// no de-duplication of identical in-flight requests. Cancellation follows the
// caller's context.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/carpool-driver/internal/models"
	"github.com/example/carpool-driver/internal/observability"
)

// Credentials is the session state the client reads and mutates.
type Credentials interface {
	Token(ctx context.Context) (string, error)
	Save(ctx context.Context, token string, profile *models.Profile) error
	Expire(ctx context.Context) error
}

type Client struct {
	baseURL string
	creds   Credentials
	http    *http.Client
	logger  *slog.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the transport. The default is a plain http.Client
// without a timeout.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func New(baseURL string, creds Credentials, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		creds:   creds,
		http:    &http.Client{},
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type call struct {
	name   string
	method string
	path   string
	query  url.Values
	body   any
	public bool
}

// Do issues an authenticated request and returns the parsed JSON payload
// unchanged. An empty method means GET; body is only sent for writes.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	if method == "" {
		method = http.MethodGet
	}
	return c.do(ctx, call{name: path, method: method, path: path, query: query, body: body})
}

func (c *Client) do(ctx context.Context, cl call) (json.RawMessage, error) {
	target := c.baseURL + cl.path
	if len(cl.query) > 0 {
		target += "?" + cl.query.Encode()
	}

	var reader io.Reader
	if cl.body != nil && sendsBody(cl.method) {
		b, err := json.Marshal(cl.body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, cl.method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)

	if !cl.public {
		token, err := c.creds.Token(ctx)
		if err != nil {
			return nil, err
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		observability.APIRequestsTotal.WithLabelValues(cl.method, cl.name, "transport_error").Inc()
		c.logger.Warn("api_request", "method", cl.method, "path", cl.path, "request_id", reqID, "error", err)
		// transport failures reach the caller unchanged
		return nil, err
	}
	defer resp.Body.Close()

	status := strconv.Itoa(resp.StatusCode)
	observability.APIRequestsTotal.WithLabelValues(cl.method, cl.name, status).Inc()
	observability.APIRequestDuration.WithLabelValues(cl.method, cl.name).Observe(time.Since(start).Seconds())
	c.logger.Info("api_request",
		"method", cl.method,
		"path", cl.path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
		"request_id", reqID,
	)

	if resp.StatusCode == http.StatusUnauthorized && !cl.public {
		observability.SessionExpiredTotal.Inc()
		if err := c.creds.Expire(context.WithoutCancel(ctx)); err != nil {
			c.logger.Error("clear expired token", "error", err)
			return nil, errors.Join(ErrSessionExpired, err)
		}
		return nil, ErrSessionExpired
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{StatusCode: resp.StatusCode, Message: messageOf(raw)}
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	var payload json.RawMessage
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func sendsBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	}
	return false
}

func messageOf(raw []byte) string {
	var env struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &env); err == nil && strings.TrimSpace(env.Message) != "" {
		return env.Message
	}
	return GenericMessage
}

type envelope struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// dataOf returns the payload nested under "data". A bare JSON array is
// accepted as the data itself. ok is false when data is absent or null.
func dataOf(payload json.RawMessage) (json.RawMessage, bool, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, false, nil
	}
	if trimmed[0] == '[' {
		return trimmed, true, nil
	}
	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, false, err
	}
	d := bytes.TrimSpace(env.Data)
	if len(d) == 0 || bytes.Equal(d, []byte("null")) {
		return nil, false, nil
	}
	return d, true, nil
}

// decodeOne decodes a required object payload.
func decodeOne[T any](endpoint string, payload json.RawMessage) (*T, error) {
	d, ok, err := dataOf(payload)
	if err != nil {
		return nil, &SchemaError{Endpoint: endpoint, Err: err}
	}
	if !ok {
		return nil, &SchemaError{Endpoint: endpoint, Err: errors.New("missing data")}
	}
	var out T
	if err := json.Unmarshal(d, &out); err != nil {
		return nil, &SchemaError{Endpoint: endpoint, Err: err}
	}
	return &out, nil
}

// decodeOptional is decodeOne for endpoints that may answer without data.
func decodeOptional[T any](endpoint string, payload json.RawMessage) (*T, error) {
	d, ok, err := dataOf(payload)
	if err != nil {
		return nil, &SchemaError{Endpoint: endpoint, Err: err}
	}
	if !ok {
		return nil, nil
	}
	var out T
	if err := json.Unmarshal(d, &out); err != nil {
		return nil, &SchemaError{Endpoint: endpoint, Err: err}
	}
	return &out, nil
}

// decodeList treats absent or null data as an empty list; any other shape
// mismatch is an error.
func decodeList[T any](endpoint string, payload json.RawMessage) ([]T, error) {
	d, ok, err := dataOf(payload)
	if err != nil {
		return nil, &SchemaError{Endpoint: endpoint, Err: err}
	}
	out := []T{}
	if !ok {
		return out, nil
	}
	if err := json.Unmarshal(d, &out); err != nil {
		return nil, &SchemaError{Endpoint: endpoint, Err: err}
	}
	return out, nil
}
