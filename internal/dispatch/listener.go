package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/example/carpool-driver/internal/api"
	"github.com/example/carpool-driver/internal/observability"
)

// Credentials supplies the bearer token and is expired when the feed
// answers 401.
type Credentials interface {
	Token(ctx context.Context) (string, error)
	Expire(ctx context.Context) error
}

// Listener subscribes a driver to their booking notices.
type Listener struct {
	baseURL string
	creds   Credentials
	dialer  *websocket.Dialer
	logger  *slog.Logger
}

// NewListener takes the API base URL (http or https) and the session.
func NewListener(baseURL string, creds Credentials, logger *slog.Logger) *Listener {
	return &Listener{baseURL: baseURL, creds: creds, dialer: websocket.DefaultDialer, logger: logger}
}

// Listen connects and streams notices until ctx is done or the connection
// drops. The returned channel is closed when listening stops. A rejected
// handshake is returned as an error with the HTTP status; a 401 expires the
// session and returns api.ErrSessionExpired.
func (l *Listener) Listen(ctx context.Context, driverID int64) (<-chan BookingNotice, error) {
	u, err := wsURL(l.baseURL, driverID)
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	if tok, err := l.creds.Token(ctx); err != nil {
		return nil, err
	} else if tok != "" {
		header.Set("Authorization", "Bearer "+tok)
	}

	conn, resp, err := l.dialer.DialContext(ctx, u, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			observability.SessionExpiredTotal.Inc()
			if xerr := l.creds.Expire(context.WithoutCancel(ctx)); xerr != nil {
				return nil, errors.Join(api.ErrSessionExpired, xerr)
			}
			return nil, api.ErrSessionExpired
		}
		if resp != nil {
			return nil, fmt.Errorf("ws handshake: %s: %w", resp.Status, err)
		}
		return nil, fmt.Errorf("ws dial: %w", err)
	}

	out := make(chan BookingNotice, 8)
	stopped := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-stopped:
		}
		_ = conn.Close()
	}()
	go func() {
		defer close(out)
		defer close(stopped)
		for {
			var n BookingNotice
			if err := conn.ReadJSON(&n); err != nil {
				if ctx.Err() == nil {
					l.logger.Warn("notice feed closed", "error", err)
				}
				return
			}
			select {
			case out <- n:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func wsURL(base string, driverID int64) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = fmt.Sprintf("%s/ws/drivers/%d", u.Path, driverID)
	return u.String(), nil
}
