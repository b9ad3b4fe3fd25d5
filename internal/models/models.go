package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TripStatus is the server-owned lifecycle state of a trip.
type TripStatus string

const (
	TripScheduled TripStatus = "scheduled"
	TripOngoing   TripStatus = "ongoing"
	TripCompleted TripStatus = "completed"
	TripCancelled TripStatus = "cancelled"
)

func (s TripStatus) Valid() bool {
	switch s {
	case TripScheduled, TripOngoing, TripCompleted, TripCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s TripStatus) Terminal() bool {
	return s == TripCompleted || s == TripCancelled
}

var transitions = map[TripStatus][]TripStatus{
	TripScheduled: {TripOngoing, TripCancelled},
	TripOngoing:   {TripCompleted, TripCancelled},
}

// CanMoveTo reports whether a trip may go from s to next. Completed and
// cancelled trips are final.
func (s TripStatus) CanMoveTo(next TripStatus) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Profile is the cached driver identity returned at login.
type Profile struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Phone         string `json:"phone,omitempty"`
	Email         string `json:"email,omitempty"`
	Address       string `json:"address,omitempty"`
	VehicleModel  string `json:"vehicle_model,omitempty"`
	VehicleNumber string `json:"vehicle_number,omitempty"`
	LicenseNumber string `json:"license_number,omitempty"`
}

type Rider struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

type Trip struct {
	ID             int64      `json:"id"`
	FromCity       string     `json:"from_city"`
	ToCity         string     `json:"to_city"`
	DepartureTime  Timestamp  `json:"departure_time"`
	AvailableSeats int        `json:"available_seats"`
	BookedSeats    int        `json:"booked_seats"`
	PricePerSeat   int64      `json:"price_per_seat"`
	Status         TripStatus `json:"status"`
	Notes          string     `json:"notes,omitempty"`
	Bookings       []Booking  `json:"bookings,omitempty"`
}

// Revenue is what the booked seats are worth at the trip's seat price.
func (t Trip) Revenue() int64 {
	return int64(t.BookedSeats) * t.PricePerSeat
}

// NewTrip is the body of a trip creation request.
type NewTrip struct {
	FromCity       string    `json:"from_city" validate:"required"`
	ToCity         string    `json:"to_city" validate:"required"`
	DepartureTime  Timestamp `json:"departure_time"`
	AvailableSeats int       `json:"available_seats" validate:"required,gt=0"`
	PricePerSeat   int64     `json:"price_per_seat" validate:"required,gt=0"`
	Notes          string    `json:"notes,omitempty"`
}

type Booking struct {
	ID              int64  `json:"id"`
	TripID          int64  `json:"trip_id,omitempty"`
	Seats           int    `json:"seats"`
	TotalAmount     int64  `json:"total_amount"`
	PickupLocation  string `json:"pickup_location,omitempty"`
	DropoffLocation string `json:"dropoff_location,omitempty"`
	Status          string `json:"status,omitempty"`
	PaymentStatus   string `json:"payment_status,omitempty"`
	PaymentID       int64  `json:"payment_id,omitempty"`
	User            Rider  `json:"user"`
}

// Paid reports whether the passenger has settled the booking.
func (b Booking) Paid() bool {
	return b.PaymentStatus == "paid" || b.Status == "confirmed"
}

// PassengerRating is submitted by a driver about one passenger of a trip.
type PassengerRating struct {
	TripID      int64  `json:"trip_id" validate:"required"`
	PassengerID int64  `json:"passenger_id" validate:"required"`
	Rating      int    `json:"rating" validate:"min=1,max=5"`
	Comment     string `json:"comment,omitempty"`
}

// DriverRating is submitted by a passenger about the driver of a trip.
type DriverRating struct {
	TripID           int64  `json:"trip_id" validate:"required"`
	Rating           int    `json:"rating" validate:"min=1,max=5"`
	Comment          string `json:"comment,omitempty"`
	Punctuality      int    `json:"punctuality,omitempty" validate:"omitempty,min=1,max=5"`
	VehicleCondition int    `json:"vehicle_condition,omitempty" validate:"omitempty,min=1,max=5"`
	DriverBehavior   int    `json:"driver_behavior,omitempty" validate:"omitempty,min=1,max=5"`
}

// Rating is the server's record of a submitted rating.
type Rating struct {
	ID          int64  `json:"id"`
	TripID      int64  `json:"trip_id"`
	PassengerID int64  `json:"passenger_id,omitempty"`
	DriverID    int64  `json:"driver_id,omitempty"`
	Rating      int    `json:"rating"`
	Comment     string `json:"comment,omitempty"`
}

type DriverStats struct {
	TotalTrips      int     `json:"total_trips"`
	TotalEarnings   int64   `json:"total_earnings"`
	TotalPassengers int     `json:"total_passengers"`
	Rating          float64 `json:"rating"`
}

type PopularRoute struct {
	FromCity  string  `json:"from_city"`
	ToCity    string  `json:"to_city"`
	TripCount int     `json:"trip_count"`
	AvgPrice  float64 `json:"avg_price"`
}

type Location struct {
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
	Accuracy  float64 `json:"accuracy,omitempty"`
	Speed     float64 `json:"speed,omitempty"`
	Heading   float64 `json:"heading,omitempty"`
	TripID    int64   `json:"trip_id,omitempty"`
}

// PaymentRequest is the body of a mobile-money payment creation.
type PaymentRequest struct {
	BookingID     int64  `json:"booking_id" validate:"required"`
	Amount        int64  `json:"amount" validate:"gt=0"`
	Provider      string `json:"provider" validate:"oneof=orange wave free_money"`
	PaymentMethod string `json:"payment_method"`
	Phone         string `json:"phone" validate:"required"`
}

type Payment struct {
	ID        int64  `json:"id"`
	BookingID int64  `json:"booking_id"`
	Amount    int64  `json:"amount"`
	Provider  string `json:"provider,omitempty"`
	Status    string `json:"status"`
}

// Credentials is the login request body.
type Credentials struct {
	Phone    string `json:"phone" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Registration is the driver sign-up request body.
type Registration struct {
	Name                 string  `json:"name" validate:"required"`
	Phone                string  `json:"phone" validate:"required"`
	Email                *string `json:"email" validate:"omitempty,email"`
	Password             string  `json:"password" validate:"required"`
	PasswordConfirmation string  `json:"password_confirmation" validate:"required,eqfield=Password"`
	VehicleModel         string  `json:"vehicle_model" validate:"required"`
	VehicleNumber        string  `json:"vehicle_number" validate:"required"`
	LicenseNumber        string  `json:"license_number" validate:"required"`
}

// LoginResult is the payload of a successful login.
type LoginResult struct {
	Token string   `json:"token"`
	User  *Profile `json:"user"`
}

// TimestampLayout is the departure format the backend stores and accepts.
const TimestampLayout = "2006-01-02 15:04:05"

// Timestamp tolerates both the backend's naive layout and RFC 3339.
type Timestamp struct {
	time.Time
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(TimestampLayout))
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if string(b) == "null" {
		t.Time = time.Time{}
		return nil
	}
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// ParseTimestamp parses a departure time in any layout the backend emits.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{TimestampLayout, time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if ts, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("timestamp: unrecognised layout %q", s)
}
