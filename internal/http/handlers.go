package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/example/carpool-driver/internal/dispatch"
	"github.com/example/carpool-driver/internal/models"
	"github.com/example/carpool-driver/internal/observability"
	"github.com/example/carpool-driver/internal/payments"
)

func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id
}

func (s *Server) handleCreateTrip(w http.ResponseWriter, r *http.Request) {
	var nt models.NewTrip
	if !s.decodeValid(w, r, &nt) {
		return
	}
	if nt.DepartureTime.IsZero() {
		writeJSON(w, http.StatusUnprocessableEntity, envelope{
			Error:   true,
			Message: "The given data was invalid.",
			Errors:  map[string]string{"departure_time": "The departure_time field is required."},
		})
		return
	}
	nt.FromCity = strings.TrimSpace(nt.FromCity)
	nt.ToCity = strings.TrimSpace(nt.ToCity)
	t := s.store.CreateTrip(driverFromContext(r.Context()), nt)
	observability.TripsCreatedTotal.Inc()
	writeData(w, http.StatusCreated, "Trip created successfully.", t)
}

func (s *Server) handleDriverTrips(w http.ResponseWriter, r *http.Request) {
	status := models.TripStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		writeError(w, http.StatusUnprocessableEntity, "Unknown trip status "+strconv.Quote(string(status))+".")
		return
	}
	writeData(w, http.StatusOK, "", s.store.DriverTrips(driverFromContext(r.Context()), status))
}

func (s *Server) handleTrip(w http.ResponseWriter, r *http.Request) {
	t, err := s.store.Trip(driverFromContext(r.Context()), pathID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", t)
}

func (s *Server) handleTripStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status models.TripStatus `json:"status" validate:"required,oneof=scheduled ongoing completed cancelled"`
	}
	if !s.decodeValid(w, r, &body) {
		return
	}
	driverID := driverFromContext(r.Context())
	t, err := s.store.UpdateTripStatus(driverID, pathID(r), body.Status)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if t.Status == models.TripCancelled {
		s.releaseHolds(r, s.store.CancelTripPayments(t.ID))
		s.notify(driverID, dispatch.BookingNotice{Kind: dispatch.KindTripCancelled, TripID: t.ID})
	}
	writeData(w, http.StatusOK, "Trip status updated.", t)
}

func (s *Server) handleSearchTrips(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date := strings.TrimSpace(q.Get("departure_time"))
	if len(date) > 10 {
		date = date[:10]
	}
	trips := s.store.Search(strings.TrimSpace(q.Get("from_city")), strings.TrimSpace(q.Get("to_city")), date)
	writeData(w, http.StatusOK, "", trips)
}

func (s *Server) handlePopularRoutes(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, "", s.store.PopularRoutes(10))
}

func (s *Server) handleBookings(w http.ResponseWriter, r *http.Request) {
	var tripID int64
	if raw := r.URL.Query().Get("trip_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "trip_id must be a number.")
			return
		}
		tripID = id
	}
	bookings, err := s.store.Bookings(driverFromContext(r.Context()), tripID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", bookings)
}

func (s *Server) handleLocation(w http.ResponseWriter, r *http.Request) {
	var loc models.Location
	if !s.decodeValid(w, r, &loc) {
		return
	}
	driverID := driverFromContext(r.Context())
	if err := s.geo.Upsert(r.Context(), driverID, loc); err != nil {
		s.fail(w, r, err)
		return
	}
	if n, err := s.geo.Count(r.Context()); err == nil {
		observability.DriversTracked.Set(float64(n))
	}
	if s.mirror != nil {
		if err := s.mirror.Publish(r.Context(), driverID, loc); err != nil {
			s.logger.Warn("location mirror failed", "sink", s.mirror.Name(), "driver_id", driverID, "error", err)
		}
	}
	pos, _, err := s.geo.Get(r.Context(), driverID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Location updated.", pos)
}

func (s *Server) handleDriverLocation(w http.ResponseWriter, r *http.Request) {
	pos, ok, err := s.geo.Get(r.Context(), pathID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !ok {
		s.fail(w, r, notFound("Location"))
		return
	}
	writeData(w, http.StatusOK, "", pos)
}

func (s *Server) handleNearby(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(q.Get("lon"), 64)
	if errLat != nil || errLon != nil {
		writeError(w, http.StatusUnprocessableEntity, "lat and lon are required.")
		return
	}
	radius := 5000.0
	if v, err := strconv.ParseFloat(q.Get("radius_m"), 64); err == nil && v > 0 {
		radius = v
	}
	limit := 20
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 && v <= 100 {
		limit = v
	}
	out, err := s.geo.Nearby(r.Context(), lat, lon, radius, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", out)
}

func (s *Server) handleCreatePayment(w http.ResponseWriter, r *http.Request) {
	var req models.PaymentRequest
	if !s.decodeValid(w, r, &req) {
		return
	}
	p, err := s.store.ReservePayment(req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ref, err := s.payments.Hold(r.Context(), payments.HoldRequest{
		BookingID: req.BookingID,
		Amount:    req.Amount,
		Provider:  req.Provider,
		Phone:     req.Phone,
	})
	if err != nil {
		s.store.DropPayment(p.ID)
		s.fail(w, r, err)
		return
	}
	p, err = s.store.AttachHold(p.ID, ref)
	if err != nil {
		s.releaseHolds(r, []string{ref})
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "Payment initiated.", p)
}

func (s *Server) handleConfirmPayment(w http.ResponseWriter, r *http.Request) {
	driverID := driverFromContext(r.Context())
	id := pathID(r)
	ref, err := s.store.ClaimPayment(driverID, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.payments.Capture(r.Context(), ref); err != nil {
		s.store.ReleaseClaim(id)
		s.fail(w, r, err)
		return
	}
	p, booking := s.store.MarkPaid(id)
	s.notify(driverID, dispatch.BookingNotice{
		Kind:      dispatch.KindPaid,
		TripID:    booking.TripID,
		BookingID: booking.ID,
		Passenger: booking.User.Name,
	})
	writeData(w, http.StatusOK, "Payment confirmed.", p)
}

// releaseHolds cancels processor holds. Failures are logged; the payment
// records are already cancelled.
func (s *Server) releaseHolds(r *http.Request, refs []string) {
	ctx := context.WithoutCancel(r.Context())
	for _, ref := range refs {
		if err := s.payments.Cancel(ctx, ref); err != nil {
			s.logger.Warn("release payment hold", "processor", s.payments.Name(), "ref", ref, "error", err)
		}
	}
}

// handleRating accepts both rating shapes; a passenger_id means the driver
// is rating a passenger.
func (s *Server) handleRating(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Unreadable body.")
		return
	}
	var shape struct {
		PassengerID *int64 `json:"passenger_id"`
	}
	_ = json.Unmarshal(body, &shape)

	var rating models.Rating
	if shape.PassengerID != nil {
		var pr models.PassengerRating
		if !s.validJSON(w, r, body, &pr) {
			return
		}
		rating, err = s.store.RatePassenger(driverFromContext(r.Context()), pr)
	} else {
		var dr models.DriverRating
		if !s.validJSON(w, r, body, &dr) {
			return
		}
		rating, err = s.store.RateDriver(dr)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "Rating submitted.", rating)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, "", s.store.Stats(driverFromContext(r.Context())))
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	if id != driverFromContext(r.Context()) {
		writeError(w, http.StatusForbidden, "Forbidden.")
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "driver_id", id, "error", err)
		return
	}
	s.notices.Add(id, conn)
	go func() {
		defer func() {
			s.notices.Remove(id, conn)
			_ = conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// handleDevBooking lets a passenger book seats without a passenger app so
// the driver side can be exercised end to end.
func (s *Server) handleDevBooking(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TripID      int64  `json:"trip_id" validate:"required"`
		PassengerID int64  `json:"passenger_id" validate:"required"`
		Seats       int    `json:"seats" validate:"required,gt=0"`
		Pickup      string `json:"pickup_location"`
	}
	if !s.decodeValid(w, r, &req) {
		return
	}
	b, driverID, err := s.store.Book(req.TripID, req.PassengerID, req.Seats, req.Pickup)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.notify(driverID, dispatch.BookingNotice{
		Kind:      dispatch.KindBooked,
		TripID:    b.TripID,
		BookingID: b.ID,
		Seats:     b.Seats,
		Passenger: b.User.Name,
	})
	writeData(w, http.StatusCreated, "Booking created.", b)
}

func (s *Server) notify(driverID int64, n dispatch.BookingNotice) {
	if err := s.notices.Notify(driverID, n); err != nil && err != dispatch.ErrNoSession {
		s.logger.Warn("booking notice failed", "driver_id", driverID, "kind", n.Kind, "error", err)
	}
}
