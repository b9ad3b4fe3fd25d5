package driverapp

import (
	"context"
	"fmt"

	"github.com/example/carpool-driver/internal/models"
)

type BookingAPI interface {
	TripBookings(ctx context.Context, tripID int64) ([]models.Booking, error)
	ConfirmPayment(ctx context.Context, paymentID int64) (*models.Payment, error)
}

type Passengers struct {
	api BookingAPI
}

func NewPassengers(a BookingAPI) *Passengers {
	return &Passengers{api: a}
}

func (p *Passengers) Load(ctx context.Context, tripID int64) ([]models.Booking, error) {
	return p.api.TripBookings(ctx, tripID)
}

// ConfirmPayment confirms the booking's payment and returns the list with
// that passenger marked paid.
func (p *Passengers) ConfirmPayment(ctx context.Context, bookings []models.Booking, bookingID int64) ([]models.Booking, error) {
	idx := -1
	for i, b := range bookings {
		if b.ID == bookingID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return bookings, fmt.Errorf("booking %d not in list", bookingID)
	}
	if bookings[idx].PaymentID == 0 {
		return bookings, fmt.Errorf("booking %d has no payment to confirm", bookingID)
	}
	if _, err := p.api.ConfirmPayment(ctx, bookings[idx].PaymentID); err != nil {
		return bookings, err
	}
	out := make([]models.Booking, len(bookings))
	copy(out, bookings)
	out[idx].PaymentStatus = "paid"
	return out, nil
}

// Occupancy sums the seats booked across the list.
func Occupancy(bookings []models.Booking) int {
	n := 0
	for _, b := range bookings {
		n += b.Seats
	}
	return n
}
