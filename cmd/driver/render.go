package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/example/carpool-driver/internal/dispatch"
	"github.com/example/carpool-driver/internal/format"
	"github.com/example/carpool-driver/internal/models"
)

func table(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func when(t models.Timestamp) string {
	if t.IsZero() {
		return "-"
	}
	return format.Day(t.Time) + " " + format.Clock(t.Time)
}

func printProfile(w io.Writer, p *models.Profile) {
	fmt.Fprintf(w, "%s (#%d)\n", p.Name, p.ID)
	if p.Phone != "" {
		fmt.Fprintf(w, "phone:   %s\n", p.Phone)
	}
	if p.Email != "" {
		fmt.Fprintf(w, "email:   %s\n", p.Email)
	}
	if p.VehicleModel != "" {
		fmt.Fprintf(w, "vehicle: %s %s\n", p.VehicleModel, p.VehicleNumber)
	}
}

func printTrips(w io.Writer, trips []models.Trip) {
	if len(trips) == 0 {
		fmt.Fprintln(w, "no trips")
		return
	}
	tw := table(w)
	fmt.Fprintln(tw, "ID\tROUTE\tDEPARTURE\tSEATS\tPRICE\tSTATUS")
	for _, t := range trips {
		fmt.Fprintf(tw, "%d\t%s → %s\t%s\t%d/%d\t%s\t%s\n",
			t.ID, t.FromCity, t.ToCity, when(t.DepartureTime),
			t.BookedSeats, t.AvailableSeats, format.SeatPrice(t.PricePerSeat), t.Status)
	}
	tw.Flush()
}

func printHistory(w io.Writer, trips []models.Trip) {
	if len(trips) == 0 {
		fmt.Fprintln(w, "no past trips")
		return
	}
	tw := table(w)
	fmt.Fprintln(tw, "DATE\tROUTE\tPASSENGERS\tREVENUE\tSTATUS")
	for _, t := range trips {
		revenue := format.Price(t.Revenue())
		if t.Status == models.TripCancelled {
			revenue = "-"
		}
		fmt.Fprintf(tw, "%s\t%s → %s\t%d\t%s\t%s\n",
			format.DayYear(t.DepartureTime.Time), t.FromCity, t.ToCity, t.BookedSeats, revenue, t.Status)
	}
	tw.Flush()
}

func printTripDetail(w io.Writer, t models.Trip) {
	fmt.Fprintf(w, "Trip %d: %s → %s\n", t.ID, t.FromCity, t.ToCity)
	fmt.Fprintf(w, "departure: %s\n", format.Heading(t.DepartureTime.Time)+" à "+format.Clock(t.DepartureTime.Time))
	fmt.Fprintf(w, "status:    %s\n", t.Status)
	fmt.Fprintf(w, "seats:     %d booked of %d\n", t.BookedSeats, t.AvailableSeats)
	fmt.Fprintf(w, "price:     %s\n", format.SeatPrice(t.PricePerSeat))
	fmt.Fprintf(w, "revenue:   %s\n", format.Price(t.Revenue()))
	if t.Notes != "" {
		fmt.Fprintf(w, "notes:     %s\n", t.Notes)
	}
	if len(t.Bookings) > 0 {
		fmt.Fprintln(w)
		printBookings(w, t.Bookings)
	}
}

func printBookings(w io.Writer, bookings []models.Booking) {
	if len(bookings) == 0 {
		fmt.Fprintln(w, "no passengers yet")
		return
	}
	tw := table(w)
	fmt.Fprintln(tw, "BOOKING\tPASSENGER\tPHONE\tSEATS\tAMOUNT\tPAYMENT")
	for _, b := range bookings {
		payment := b.PaymentStatus
		if b.Paid() {
			payment = "paid"
		} else if payment == "" {
			payment = "unpaid"
		}
		fmt.Fprintf(tw, "%d\t%s (#%d)\t%s\t%d\t%s\t%s\n",
			b.ID, b.User.Name, b.User.ID, b.User.Phone, b.Seats, format.Price(b.TotalAmount), payment)
	}
	tw.Flush()
}

func printStats(w io.Writer, st models.DriverStats) {
	tw := table(w)
	fmt.Fprintf(tw, "trips completed\t%d\n", st.TotalTrips)
	fmt.Fprintf(tw, "passengers\t%d\n", st.TotalPassengers)
	fmt.Fprintf(tw, "earnings\t%s\n", format.Price(st.TotalEarnings))
	fmt.Fprintf(tw, "rating\t%.1f / 5\n", st.Rating)
	tw.Flush()
}

func printRoutes(w io.Writer, routes []models.PopularRoute) {
	if len(routes) == 0 {
		fmt.Fprintln(w, "no popular routes yet")
		return
	}
	tw := table(w)
	fmt.Fprintln(tw, "ROUTE\tTRIPS\tAVG PRICE")
	for _, r := range routes {
		fmt.Fprintf(tw, "%s → %s\t%d\t%s\n", r.FromCity, r.ToCity, r.TripCount, format.Price(int64(r.AvgPrice+0.5)))
	}
	tw.Flush()
}

func printNotice(w io.Writer, n dispatch.BookingNotice) {
	at := n.At.Local()
	switch n.Kind {
	case dispatch.KindBooked:
		fmt.Fprintf(w, "[%s] %s booked %d seat(s) on trip %d\n", format.Clock(at), n.Passenger, n.Seats, n.TripID)
	case dispatch.KindPaid:
		fmt.Fprintf(w, "[%s] %s paid booking %d on trip %d\n", format.Clock(at), n.Passenger, n.BookingID, n.TripID)
	default:
		fmt.Fprintf(w, "[%s] %s on trip %d\n", format.Clock(at), n.Kind, n.TripID)
	}
}
