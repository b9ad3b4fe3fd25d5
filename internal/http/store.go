package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/carpool-driver/internal/models"
)

// apiError carries the status and message a handler should answer with.
type apiError struct {
	status int
	msg    string
}

func (e *apiError) Error() string { return e.msg }

func notFound(what string) error {
	return &apiError{status: http.StatusNotFound, msg: what + " not found"}
}

func unprocessable(format string, args ...any) error {
	return &apiError{status: http.StatusUnprocessableEntity, msg: fmt.Sprintf(format, args...)}
}

var errPhoneTaken = &apiError{status: http.StatusUnprocessableEntity, msg: "The phone has already been taken."}

type driverAccount struct {
	profile      models.Profile
	passwordHash []byte
}

type tripRecord struct {
	trip     models.Trip
	driverID int64
}

type paymentRecord struct {
	payment  models.Payment
	ref      string
	driverID int64
}

func (p *paymentRecord) open() bool {
	switch p.payment.Status {
	case payHolding, payPending, payCapturing:
		return true
	}
	return false
}

type ratingRecord struct {
	rating   models.Rating
	byDriver bool
}

// Store is the dev backend's in-memory state. Every method returns copies.
type Store struct {
	mu sync.Mutex

	nextID   int64
	drivers  map[int64]*driverAccount
	byPhone  map[string]int64
	riders   map[int64]models.Rider
	trips    map[int64]*tripRecord
	bookings map[int64]*models.Booking
	payments map[int64]*paymentRecord
	ratings  []ratingRecord
}

func NewStore() *Store {
	return &Store{
		nextID:   100,
		drivers:  make(map[int64]*driverAccount),
		byPhone:  make(map[string]int64),
		riders:   make(map[int64]models.Rider),
		trips:    make(map[int64]*tripRecord),
		bookings: make(map[int64]*models.Booking),
		payments: make(map[int64]*paymentRecord),
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) AddDriver(p models.Profile, passwordHash []byte) (models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byPhone[p.Phone]; ok {
		return models.Profile{}, errPhoneTaken
	}
	p.ID = s.id()
	s.drivers[p.ID] = &driverAccount{profile: p, passwordHash: passwordHash}
	s.byPhone[p.Phone] = p.ID
	return p, nil
}

func (s *Store) DriverByPhone(phone string) (models.Profile, []byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byPhone[phone]
	if !ok {
		return models.Profile{}, nil, false
	}
	d := s.drivers[id]
	return d.profile, d.passwordHash, true
}

func (s *Store) DriverExists(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.drivers[id]
	return ok
}

func (s *Store) AddRider(name, phone string) models.Rider {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := models.Rider{ID: s.id(), Name: name, Phone: phone}
	s.riders[r.ID] = r
	return r
}

func (s *Store) CreateTrip(driverID int64, nt models.NewTrip) models.Trip {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := models.Trip{
		ID:             s.id(),
		FromCity:       nt.FromCity,
		ToCity:         nt.ToCity,
		DepartureTime:  nt.DepartureTime,
		AvailableSeats: nt.AvailableSeats,
		PricePerSeat:   nt.PricePerSeat,
		Status:         models.TripScheduled,
		Notes:          nt.Notes,
	}
	s.trips[t.ID] = &tripRecord{trip: t, driverID: driverID}
	return t
}

// DriverTrips lists a driver's trips by departure, optionally filtered.
func (s *Store) DriverTrips(driverID int64, status models.TripStatus) []models.Trip {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Trip{}
	for _, rec := range s.trips {
		if rec.driverID != driverID || (status != "" && rec.trip.Status != status) {
			continue
		}
		out = append(out, rec.trip)
	}
	sortByDeparture(out)
	return out
}

// Trip returns one of the driver's trips with its bookings.
func (s *Store) Trip(driverID, id int64) (models.Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.trips[id]
	if !ok || rec.driverID != driverID {
		return models.Trip{}, notFound("Trip")
	}
	t := rec.trip
	t.Bookings = s.bookingsOf(id)
	return t, nil
}

func (s *Store) TripDriver(id int64) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.trips[id]
	if !ok {
		return 0, false
	}
	return rec.driverID, true
}

func (s *Store) UpdateTripStatus(driverID, id int64, to models.TripStatus) (models.Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.trips[id]
	if !ok || rec.driverID != driverID {
		return models.Trip{}, notFound("Trip")
	}
	if !rec.trip.Status.CanMoveTo(to) {
		return models.Trip{}, unprocessable("Cannot change trip status from %s to %s.", rec.trip.Status, to)
	}
	rec.trip.Status = to
	return rec.trip, nil
}

// Search lists scheduled trips with free seats matching the filters. Date
// compares the calendar day of departure.
func (s *Store) Search(from, to, date string) []models.Trip {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Trip{}
	for _, rec := range s.trips {
		t := rec.trip
		if t.Status != models.TripScheduled || t.BookedSeats >= t.AvailableSeats {
			continue
		}
		if from != "" && !strings.EqualFold(t.FromCity, from) {
			continue
		}
		if to != "" && !strings.EqualFold(t.ToCity, to) {
			continue
		}
		if date != "" && t.DepartureTime.Format("2006-01-02") != date {
			continue
		}
		out = append(out, t)
	}
	sortByDeparture(out)
	return out
}

func (s *Store) PopularRoutes(limit int) []models.PopularRoute {
	s.mu.Lock()
	defer s.mu.Unlock()
	type agg struct {
		route models.PopularRoute
		total int64
	}
	byRoute := map[string]*agg{}
	for _, rec := range s.trips {
		t := rec.trip
		if t.Status == models.TripCancelled {
			continue
		}
		k := t.FromCity + "\x00" + t.ToCity
		a, ok := byRoute[k]
		if !ok {
			a = &agg{route: models.PopularRoute{FromCity: t.FromCity, ToCity: t.ToCity}}
			byRoute[k] = a
		}
		a.route.TripCount++
		a.total += t.PricePerSeat
	}
	out := make([]models.PopularRoute, 0, len(byRoute))
	for _, a := range byRoute {
		a.route.AvgPrice = float64(a.total) / float64(a.route.TripCount)
		out = append(out, a.route)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TripCount != out[j].TripCount {
			return out[i].TripCount > out[j].TripCount
		}
		return out[i].FromCity+out[i].ToCity < out[j].FromCity+out[j].ToCity
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Book reserves seats for a rider on a scheduled trip.
func (s *Store) Book(tripID, riderID int64, seats int, pickup string) (models.Booking, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.trips[tripID]
	if !ok {
		return models.Booking{}, 0, notFound("Trip")
	}
	rider, ok := s.riders[riderID]
	if !ok {
		return models.Booking{}, 0, notFound("Passenger")
	}
	if rec.trip.Status != models.TripScheduled {
		return models.Booking{}, 0, unprocessable("Trip is not open for booking.")
	}
	if seats <= 0 || rec.trip.BookedSeats+seats > rec.trip.AvailableSeats {
		return models.Booking{}, 0, unprocessable("Not enough seats available.")
	}
	rec.trip.BookedSeats += seats
	b := &models.Booking{
		ID:             s.id(),
		TripID:         tripID,
		Seats:          seats,
		TotalAmount:    int64(seats) * rec.trip.PricePerSeat,
		PickupLocation: pickup,
		Status:         "pending",
		PaymentStatus:  "unpaid",
		User:           rider,
	}
	s.bookings[b.ID] = b
	return *b, rec.driverID, nil
}

// Bookings lists bookings on the driver's trips, or on one trip when
// tripID is set.
func (s *Store) Bookings(driverID, tripID int64) ([]models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tripID != 0 {
		rec, ok := s.trips[tripID]
		if !ok || rec.driverID != driverID {
			return nil, notFound("Trip")
		}
		return s.bookingsOf(tripID), nil
	}
	out := []models.Booking{}
	for _, b := range s.bookings {
		if rec, ok := s.trips[b.TripID]; ok && rec.driverID == driverID {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) bookingsOf(tripID int64) []models.Booking {
	out := []models.Booking{}
	for _, b := range s.bookings {
		if b.TripID == tripID {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Payment record states. A payment is "holding" while the processor places
// the hold and "capturing" while a confirmation is in flight.
const (
	payHolding   = "holding"
	payPending   = "pending"
	payCapturing = "capturing"
	payPaid      = "paid"
	payCancelled = "cancelled"
)

// ReservePayment opens a payment for a booking. A booking carries at most
// one open payment and the amount may not exceed its total.
func (s *Store) ReservePayment(req models.PaymentRequest) (models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[req.BookingID]
	if !ok {
		return models.Payment{}, notFound("Booking")
	}
	rec := s.trips[b.TripID]
	if rec.trip.Status == models.TripCancelled {
		return models.Payment{}, unprocessable("Trip is cancelled.")
	}
	if b.PaymentStatus == payPaid {
		return models.Payment{}, unprocessable("Booking is already paid.")
	}
	if cur, ok := s.payments[b.PaymentID]; ok && cur.open() {
		return models.Payment{}, unprocessable("A payment is already pending for this booking.")
	}
	if req.Amount > b.TotalAmount {
		return models.Payment{}, unprocessable("Amount exceeds the booking total of %d.", b.TotalAmount)
	}
	p := models.Payment{ID: s.id(), BookingID: b.ID, Amount: req.Amount, Provider: req.Provider, Status: payHolding}
	s.payments[p.ID] = &paymentRecord{payment: p, driverID: rec.driverID}
	b.PaymentID = p.ID
	b.PaymentStatus = payPending
	return p, nil
}

// AttachHold records the processor reference of a reserved payment. It fails
// when the payment was cancelled while the hold was being placed.
func (s *Store) AttachHold(id int64, ref string) (models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.payments[id]
	if !ok || rec.payment.Status != payHolding {
		return models.Payment{}, unprocessable("Payment was cancelled.")
	}
	rec.ref = ref
	rec.payment.Status = payPending
	return rec.payment, nil
}

// DropPayment forgets a reservation whose hold failed.
func (s *Store) DropPayment(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.payments[id]
	if !ok {
		return
	}
	delete(s.payments, id)
	if b, ok := s.bookings[rec.payment.BookingID]; ok && b.PaymentID == id {
		b.PaymentID = 0
		b.PaymentStatus = "unpaid"
	}
}

// ClaimPayment moves a pending payment to capturing so only one confirmation
// can settle it, and returns its processor reference.
func (s *Store) ClaimPayment(driverID, id int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.payments[id]
	if !ok || rec.driverID != driverID {
		return "", notFound("Payment")
	}
	if rec.payment.Status != payPending {
		return "", unprocessable("Payment is already %s.", rec.payment.Status)
	}
	rec.payment.Status = payCapturing
	return rec.ref, nil
}

// ReleaseClaim returns a payment to pending after a failed capture.
func (s *Store) ReleaseClaim(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.payments[id]; ok && rec.payment.Status == payCapturing {
		rec.payment.Status = payPending
	}
}

func (s *Store) MarkPaid(id int64) (models.Payment, models.Booking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.payments[id]
	rec.payment.Status = payPaid
	var booking models.Booking
	if b, ok := s.bookings[rec.payment.BookingID]; ok {
		b.PaymentStatus = payPaid
		b.Status = "confirmed"
		booking = *b
	}
	return rec.payment, booking
}

// CancelTripPayments cancels the open payments of a trip's bookings and
// returns the processor references whose holds must be released. Payments
// already being captured are left alone.
func (s *Store) CancelTripPayments(tripID int64) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var refs []string
	for _, b := range s.bookings {
		if b.TripID != tripID {
			continue
		}
		rec, ok := s.payments[b.PaymentID]
		if !ok || (rec.payment.Status != payHolding && rec.payment.Status != payPending) {
			continue
		}
		if rec.ref != "" {
			refs = append(refs, rec.ref)
		}
		rec.payment.Status = payCancelled
		b.PaymentStatus = payCancelled
	}
	sort.Strings(refs)
	return refs
}

// RatePassenger records a driver's rating of a passenger on a finished trip.
func (s *Store) RatePassenger(driverID int64, r models.PassengerRating) (models.Rating, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.trips[r.TripID]
	if !ok || rec.driverID != driverID {
		return models.Rating{}, notFound("Trip")
	}
	if rec.trip.Status != models.TripCompleted {
		return models.Rating{}, unprocessable("Only completed trips can be rated.")
	}
	onTrip := false
	for _, b := range s.bookings {
		if b.TripID == r.TripID && b.User.ID == r.PassengerID {
			onTrip = true
			break
		}
	}
	if !onTrip {
		return models.Rating{}, unprocessable("Passenger was not on this trip.")
	}
	for _, existing := range s.ratings {
		if existing.byDriver && existing.rating.TripID == r.TripID && existing.rating.PassengerID == r.PassengerID {
			return models.Rating{}, unprocessable("Passenger already rated for this trip.")
		}
	}
	out := models.Rating{ID: s.id(), TripID: r.TripID, PassengerID: r.PassengerID, Rating: r.Rating, Comment: r.Comment}
	s.ratings = append(s.ratings, ratingRecord{rating: out, byDriver: true})
	return out, nil
}

// RateDriver records a passenger's rating of the trip's driver.
func (s *Store) RateDriver(r models.DriverRating) (models.Rating, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.trips[r.TripID]
	if !ok {
		return models.Rating{}, notFound("Trip")
	}
	if rec.trip.Status != models.TripCompleted {
		return models.Rating{}, unprocessable("Only completed trips can be rated.")
	}
	out := models.Rating{ID: s.id(), TripID: r.TripID, DriverID: rec.driverID, Rating: r.Rating, Comment: r.Comment}
	s.ratings = append(s.ratings, ratingRecord{rating: out})
	return out, nil
}

// Stats aggregates the driver's completed trips and received ratings.
func (s *Store) Stats(driverID int64) models.DriverStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	var st models.DriverStats
	for _, rec := range s.trips {
		if rec.driverID != driverID || rec.trip.Status != models.TripCompleted {
			continue
		}
		st.TotalTrips++
		st.TotalEarnings += rec.trip.Revenue()
		st.TotalPassengers += rec.trip.BookedSeats
	}
	var sum, n int
	for _, r := range s.ratings {
		if !r.byDriver && r.rating.DriverID == driverID {
			sum += r.rating.Rating
			n++
		}
	}
	if n > 0 {
		st.Rating = float64(sum) / float64(n)
	}
	return st
}

func sortByDeparture(trips []models.Trip) {
	sort.Slice(trips, func(i, j int) bool {
		a, b := trips[i].DepartureTime.Time, trips[j].DepartureTime.Time
		if !a.Equal(b) {
			return a.Before(b)
		}
		return trips[i].ID < trips[j].ID
	})
}

func asAPIError(err error) (*apiError, bool) {
	var ae *apiError
	ok := errors.As(err, &ae)
	return ae, ok
}

// day is midnight local time, n days from now.
func day(now time.Time, n int) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d+n, 0, 0, 0, 0, time.Local)
}
