package driverapp

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/example/carpool-driver/internal/api"
	"github.com/example/carpool-driver/internal/models"
)

type DashboardAPI interface {
	DriverTrips(ctx context.Context, status models.TripStatus) ([]models.Trip, error)
	DriverStats(ctx context.Context) (*models.DriverStats, error)
	PopularRoutes(ctx context.Context) ([]models.PopularRoute, error)
}

type DashboardData struct {
	Active   []models.Trip
	Upcoming []models.Trip
	Stats    models.DriverStats
	Routes   []models.PopularRoute
	// Degraded names the sections that failed and show defaults.
	Degraded []string
}

type Dashboard struct {
	api    DashboardAPI
	logger *slog.Logger
}

func NewDashboard(a DashboardAPI, logger *slog.Logger) *Dashboard {
	return &Dashboard{api: a, logger: logger}
}

// Load fetches the four dashboard sections concurrently. Trip lists are
// required; statistics and popular routes fall back to zero values when
// they fail, except on session expiry which always surfaces.
func (d *Dashboard) Load(ctx context.Context) (*DashboardData, error) {
	var (
		data                DashboardData
		statsErr, routesErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		trips, err := d.api.DriverTrips(gctx, models.TripOngoing)
		data.Active = trips
		return err
	})
	g.Go(func() error {
		trips, err := d.api.DriverTrips(gctx, models.TripScheduled)
		data.Upcoming = trips
		return err
	})
	g.Go(func() error {
		stats, err := d.api.DriverStats(gctx)
		if err != nil {
			statsErr = err
			return fatalOnly(err)
		}
		data.Stats = *stats
		return nil
	})
	g.Go(func() error {
		routes, err := d.api.PopularRoutes(gctx)
		if err != nil {
			routesErr = err
			return fatalOnly(err)
		}
		data.Routes = routes
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if statsErr != nil {
		d.logger.Warn("dashboard stats unavailable", "error", statsErr)
		data.Degraded = append(data.Degraded, "stats")
	}
	if routesErr != nil {
		d.logger.Warn("popular routes unavailable", "error", routesErr)
		data.Degraded = append(data.Degraded, "routes")
		data.Routes = []models.PopularRoute{}
	}
	return &data, nil
}

// fatalOnly keeps errors that must abort the whole screen.
func fatalOnly(err error) error {
	if errors.Is(err, api.ErrSessionExpired) || errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
