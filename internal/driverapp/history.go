package driverapp

import (
	"context"
	"sort"

	"github.com/example/carpool-driver/internal/models"
)

type TripLister interface {
	DriverTrips(ctx context.Context, status models.TripStatus) ([]models.Trip, error)
}

type History struct {
	api TripLister
}

func NewHistory(a TripLister) *History {
	return &History{api: a}
}

// Load returns finished trips, newest departure first.
func (h *History) Load(ctx context.Context) ([]models.Trip, error) {
	trips, err := h.api.DriverTrips(ctx, "")
	if err != nil {
		return nil, err
	}
	return FilterHistory(trips), nil
}

// FilterHistory keeps completed and cancelled trips sorted newest first.
func FilterHistory(trips []models.Trip) []models.Trip {
	out := make([]models.Trip, 0, len(trips))
	for _, t := range trips {
		if t.Status.Terminal() {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DepartureTime.After(out[j].DepartureTime.Time)
	})
	return out
}
