package driverapp

import (
	"context"
	"fmt"

	"github.com/example/carpool-driver/internal/models"
)

type TripUpdater interface {
	Trip(ctx context.Context, id int64) (*models.Trip, error)
	UpdateTripStatus(ctx context.Context, id int64, status models.TripStatus) (*models.Trip, error)
}

// TripActions backs the start, complete and cancel buttons of the trip
// detail view.
type TripActions struct {
	api TripUpdater
}

func NewTripActions(a TripUpdater) *TripActions {
	return &TripActions{api: a}
}

func (a *TripActions) Start(ctx context.Context, trip models.Trip) (models.Trip, error) {
	return a.move(ctx, trip, models.TripOngoing)
}

func (a *TripActions) Complete(ctx context.Context, trip models.Trip) (models.Trip, error) {
	return a.move(ctx, trip, models.TripCompleted)
}

func (a *TripActions) Cancel(ctx context.Context, trip models.Trip) (models.Trip, error) {
	return a.move(ctx, trip, models.TripCancelled)
}

func (a *TripActions) move(ctx context.Context, trip models.Trip, to models.TripStatus) (models.Trip, error) {
	if !trip.Status.CanMoveTo(to) {
		return trip, fmt.Errorf("cannot move a %s trip to %s", trip.Status, to)
	}
	updated, err := a.api.UpdateTripStatus(ctx, trip.ID, to)
	if err != nil {
		return trip, err
	}
	if updated != nil && updated.ID != 0 {
		return *updated, nil
	}
	// backend answered without the trip: refetch so the view shows server state
	fresh, err := a.api.Trip(ctx, trip.ID)
	if err != nil {
		return trip, err
	}
	return *fresh, nil
}
