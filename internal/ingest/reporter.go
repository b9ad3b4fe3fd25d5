package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/carpool-driver/internal/api"
	"github.com/example/carpool-driver/internal/models"
	"github.com/example/carpool-driver/internal/observability"
)

type LocationAPI interface {
	UpdateLocation(ctx context.Context, loc models.Location) error
}

// Publisher receives a copy of every position the backend accepted.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, driverID int64, loc models.Location) error
}

// Source yields the driver's current position.
type Source interface {
	Next(ctx context.Context) (models.Location, error)
}

// ErrSourceDone ends Run without error.
var ErrSourceDone = errors.New("location source exhausted")

type Reporter struct {
	api        LocationAPI
	driverID   int64
	publishers []Publisher
	logger     *slog.Logger
}

func NewReporter(a LocationAPI, driverID int64, logger *slog.Logger, publishers ...Publisher) *Reporter {
	return &Reporter{api: a, driverID: driverID, publishers: publishers, logger: logger}
}

// Report sends one position to the backend, then mirrors it. Mirror
// failures are logged and counted but never fail the report.
func (r *Reporter) Report(ctx context.Context, loc models.Location) error {
	if err := r.api.UpdateLocation(ctx, loc); err != nil {
		observability.LocationPushesTotal.WithLabelValues("api", "error").Inc()
		return err
	}
	observability.LocationPushesTotal.WithLabelValues("api", "ok").Inc()

	for _, p := range r.publishers {
		if err := p.Publish(ctx, r.driverID, loc); err != nil {
			observability.LocationPushesTotal.WithLabelValues(p.Name(), "error").Inc()
			r.logger.Warn("mirror location failed", "sink", p.Name(), "error", err)
			continue
		}
		observability.LocationPushesTotal.WithLabelValues(p.Name(), "ok").Inc()
	}
	return nil
}

// Run reports a position every interval until ctx is done or the source is
// exhausted. Transient failures are logged and retried on the next tick; a
// rejected session stops the loop.
func (r *Reporter) Run(ctx context.Context, src Source, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("interval must be > 0, got %s", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		loc, err := src.Next(ctx)
		switch {
		case errors.Is(err, ErrSourceDone):
			return nil
		case err != nil:
			return err
		}
		if err := r.Report(ctx, loc); err != nil {
			if api.IsSessionExpired(err) || ctx.Err() != nil {
				return err
			}
			r.logger.Warn("location update failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
