package driverapp

import (
	"context"
	"log/slog"
	"sync"

	"github.com/example/carpool-driver/internal/models"
	"github.com/example/carpool-driver/internal/session"
)

type Route string

const (
	RouteSplash Route = "splash"
	RouteLogin  Route = "login"
	RouteMain   Route = "main"
)

// SessionSource is what the navigator needs from the session.
type SessionSource interface {
	Restore(ctx context.Context) (session.State, *models.Profile, error)
	Watch() (<-chan session.State, func())
}

// Navigator owns the top-level route. It is the single place that reacts to
// authentication changes, so an expired token sends the driver back to the
// login screen no matter which screen saw the 401.
type Navigator struct {
	sess   SessionSource
	logger *slog.Logger

	mu       sync.RWMutex
	route    Route
	onChange func(from, to Route)
}

func NewNavigator(sess SessionSource, logger *slog.Logger, onChange func(from, to Route)) *Navigator {
	return &Navigator{sess: sess, logger: logger, route: RouteSplash, onChange: onChange}
}

// Start picks the initial route from the stored token and keeps following
// session changes until ctx is done.
func (n *Navigator) Start(ctx context.Context) (Route, error) {
	changes, stop := n.sess.Watch()
	st, _, err := n.sess.Restore(ctx)
	if err != nil {
		stop()
		n.set(RouteLogin)
		return RouteLogin, err
	}
	initial := routeFor(st)
	n.set(initial)

	go func() {
		defer stop()
		for {
			select {
			case <-ctx.Done():
				return
			case st, ok := <-changes:
				if !ok {
					return
				}
				if st.Reason == session.ReasonExpired {
					n.logger.Info("session expired, returning to login")
				}
				n.set(routeFor(st))
			}
		}
	}()
	return initial, nil
}

func (n *Navigator) Route() Route {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.route
}

func (n *Navigator) set(r Route) {
	n.mu.Lock()
	from := n.route
	n.route = r
	n.mu.Unlock()
	if from != r && n.onChange != nil {
		n.onChange(from, r)
	}
}

func routeFor(st session.State) Route {
	if st.Authenticated {
		return RouteMain
	}
	return RouteLogin
}
