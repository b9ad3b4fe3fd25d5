package ingest

import (
	"context"

	"github.com/example/carpool-driver/internal/models"
)

// FixedSource reports the same position forever.
type FixedSource struct {
	Loc models.Location
}

func (s FixedSource) Next(context.Context) (models.Location, error) { return s.Loc, nil }

// RouteSource simulates a drive from one point to another in a fixed number
// of steps, then reports ErrSourceDone.
type RouteSource struct {
	From, To models.Location
	Steps    int
	step     int
}

func NewRouteSource(from, to models.Location, steps int) *RouteSource {
	if steps < 1 {
		steps = 1
	}
	return &RouteSource{From: from, To: to, Steps: steps}
}

func (s *RouteSource) Next(context.Context) (models.Location, error) {
	if s.step > s.Steps {
		return models.Location{}, ErrSourceDone
	}
	f := float64(s.step) / float64(s.Steps)
	s.step++
	loc := s.From
	loc.Latitude = s.From.Latitude + (s.To.Latitude-s.From.Latitude)*f
	loc.Longitude = s.From.Longitude + (s.To.Longitude-s.From.Longitude)*f
	return loc, nil
}
