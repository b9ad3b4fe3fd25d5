package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/example/carpool-driver/internal/api"
	"github.com/example/carpool-driver/internal/dispatch"
	"github.com/example/carpool-driver/internal/driverapp"
	"github.com/example/carpool-driver/internal/eta"
	"github.com/example/carpool-driver/internal/format"
	"github.com/example/carpool-driver/internal/ingest"
	"github.com/example/carpool-driver/internal/models"
	"github.com/example/carpool-driver/internal/theme"
)

func cmdLogin(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	phone := fs.String("phone", "", "phone number")
	password := fs.String("password", os.Getenv("CARPOOL_PASSWORD"), "password (or CARPOOL_PASSWORD)")
	if err := parse(fs, args); err != nil {
		return err
	}
	res, err := a.client.Login(ctx, *phone, *password)
	if err != nil {
		return err
	}
	name := *phone
	if res.User != nil && res.User.Name != "" {
		name = res.User.Name
	}
	fmt.Fprintf(a.out, "signed in as %s\n", name)
	return nil
}

func cmdLogout(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := a.sess.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "signed out")
	return nil
}

func cmdRegister(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	var reg models.Registration
	var email string
	fs.StringVar(&reg.Name, "name", "", "full name")
	fs.StringVar(&reg.Phone, "phone", "", "phone number")
	fs.StringVar(&email, "email", "", "email (optional)")
	fs.StringVar(&reg.Password, "password", "", "password")
	fs.StringVar(&reg.PasswordConfirmation, "confirm", "", "password confirmation")
	fs.StringVar(&reg.VehicleModel, "vehicle", "", "vehicle model")
	fs.StringVar(&reg.VehicleNumber, "plate", "", "vehicle plate number")
	fs.StringVar(&reg.LicenseNumber, "license", "", "driving license number")
	if err := parse(fs, args); err != nil {
		return err
	}
	if email != "" {
		reg.Email = &email
	}
	if _, err := a.client.Register(ctx, reg); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "account created, you can now run `driver login`")
	return nil
}

func cmdWhoami(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	if err := parse(fs, args); err != nil {
		return err
	}
	p, err := a.driver(ctx)
	if err != nil {
		return err
	}
	printProfile(a.out, p)
	return nil
}

func cmdTrips(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	status := fs.String("status", "", "scheduled|ongoing|completed|cancelled")
	if err := parse(fs, args); err != nil {
		return err
	}
	trips, err := a.client.DriverTrips(ctx, models.TripStatus(*status))
	if err != nil {
		return err
	}
	printTrips(a.out, trips)
	return nil
}

func cmdTrip(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	id := fs.Int64("id", 0, "trip id")
	raw := fs.Bool("raw", false, "print the backend payload as-is")
	if err := parse(fs, args); err != nil {
		return err
	}
	tid, err := tripID(fs, *id)
	if err != nil {
		return err
	}
	if *raw {
		payload, err := a.client.TripRaw(ctx, tid)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(a.out, string(payload))
		return err
	}
	t, err := a.client.Trip(ctx, tid)
	if err != nil {
		return err
	}
	printTripDetail(a.out, *t)
	return nil
}

// departureLayouts are tried after the backend layouts.
var departureLayouts = []string{"2006-01-02 15:04", "2006-01-02T15:04"}

func parseDeparture(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, l := range departureLayouts {
		if t, err := time.ParseInLocation(l, s, time.Local); err == nil {
			return t, nil
		}
	}
	return models.ParseTimestamp(s)
}

func cmdCreateTrip(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	var nt models.NewTrip
	fs.StringVar(&nt.FromCity, "from", "", "departure city")
	fs.StringVar(&nt.ToCity, "to", "", "destination city")
	departure := fs.String("departure", "", `departure time, "2006-01-02 15:04"`)
	fs.IntVar(&nt.AvailableSeats, "seats", 0, "seats offered")
	fs.Int64Var(&nt.PricePerSeat, "price", 0, "price per seat in Fc")
	fs.StringVar(&nt.Notes, "notes", "", "notes for passengers")
	if err := parse(fs, args); err != nil {
		return err
	}
	dep, err := parseDeparture(*departure)
	if err != nil {
		return fmt.Errorf("departure: %w", err)
	}
	nt.DepartureTime = models.Timestamp{Time: dep}
	t, err := a.client.CreateTrip(ctx, nt)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "trip %d created: %s → %s, %s à %s\n", t.ID, t.FromCity, t.ToCity,
		format.Day(t.DepartureTime.Time), format.Clock(t.DepartureTime.Time))
	return nil
}

func cmdStart(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	return transition(ctx, a, fs, args, (*driverapp.TripActions).Start)
}

func cmdComplete(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	return transition(ctx, a, fs, args, (*driverapp.TripActions).Complete)
}

func cmdCancel(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	return transition(ctx, a, fs, args, (*driverapp.TripActions).Cancel)
}

type tripAction func(*driverapp.TripActions, context.Context, models.Trip) (models.Trip, error)

func transition(ctx context.Context, a *app, fs *flag.FlagSet, args []string, act tripAction) error {
	id := fs.Int64("id", 0, "trip id")
	if err := parse(fs, args); err != nil {
		return err
	}
	tid, err := tripID(fs, *id)
	if err != nil {
		return err
	}
	current, err := a.client.Trip(ctx, tid)
	if err != nil {
		return err
	}
	updated, err := act(driverapp.NewTripActions(a.client), ctx, *current)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "trip %d is now %s\n", updated.ID, updated.Status)
	return nil
}

func cmdPassengers(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	id := fs.Int64("id", 0, "trip id")
	if err := parse(fs, args); err != nil {
		return err
	}
	tid, err := tripID(fs, *id)
	if err != nil {
		return err
	}
	bookings, err := driverapp.NewPassengers(a.client).Load(ctx, tid)
	if err != nil {
		return err
	}
	printBookings(a.out, bookings)
	fmt.Fprintf(a.out, "%d seat(s) booked\n", driverapp.Occupancy(bookings))
	return nil
}

func cmdLocation(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	var loc, dest models.Location
	fs.Float64Var(&loc.Latitude, "lat", 0, "latitude")
	fs.Float64Var(&loc.Longitude, "lon", 0, "longitude")
	fs.Float64Var(&loc.Accuracy, "accuracy", 0, "accuracy in meters")
	fs.Int64Var(&loc.TripID, "trip", 0, "trip being driven")
	fs.Float64Var(&dest.Latitude, "to-lat", 0, "destination latitude, simulates a drive")
	fs.Float64Var(&dest.Longitude, "to-lon", 0, "destination longitude")
	steps := fs.Int("steps", 10, "positions reported during a simulated drive")
	interval := fs.Duration("interval", 5*time.Second, "delay between simulated positions")
	if err := parse(fs, args); err != nil {
		return err
	}
	p, err := a.driver(ctx)
	if err != nil {
		return err
	}

	var pubs []ingest.Publisher
	if len(a.cfg.KafkaBrokers) > 0 {
		kp := ingest.NewKafkaProducer(a.cfg.KafkaBrokers, a.cfg.LocationTopic)
		defer kp.Close()
		pubs = append(pubs, kp)
	}
	reporter := ingest.NewReporter(a.client, p.ID, a.logger, pubs...)

	if dest.Latitude == 0 && dest.Longitude == 0 {
		if err := reporter.Report(ctx, loc); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "position %.5f, %.5f reported\n", loc.Latitude, loc.Longitude)
		return nil
	}

	var router eta.Router
	if a.cfg.OSRMURL != "" {
		router = eta.NewOSRMClient(a.cfg.OSRMURL)
	}
	d, routed := eta.NewEstimator(router, a.cfg.SpeedMps, a.logger).Estimate(ctx, loc, dest)
	how := "straight line"
	if routed {
		how = "road network"
	}
	fmt.Fprintf(a.out, "%.1f km to go, about %s (%s)\n", eta.DistanceMeters(loc, dest)/1000, d, how)

	dest.TripID = loc.TripID
	if err := reporter.Run(ctx, ingest.NewRouteSource(loc, dest, *steps), *interval); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "drive finished")
	return nil
}

func cmdPay(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	var req models.PaymentRequest
	fs.Int64Var(&req.BookingID, "booking", 0, "booking id")
	fs.Int64Var(&req.Amount, "amount", 0, "amount in Fc")
	fs.StringVar(&req.Provider, "provider", "", "orange|wave|free_money")
	fs.StringVar(&req.Phone, "phone", "", "mobile-money phone number")
	if err := parse(fs, args); err != nil {
		return err
	}
	p, err := a.client.CreatePayment(ctx, req)
	if err != nil {
		return err
	}
	if p == nil {
		fmt.Fprintln(a.out, "payment submitted")
		return nil
	}
	fmt.Fprintf(a.out, "payment %d for %s is %s\n", p.ID, format.Price(p.Amount), p.Status)
	return nil
}

func cmdConfirmPayment(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	trip := fs.Int64("trip", 0, "trip id")
	booking := fs.Int64("booking", 0, "booking id")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *trip == 0 || *booking == 0 {
		return errors.New("-trip and -booking are required")
	}
	passengers := driverapp.NewPassengers(a.client)
	bookings, err := passengers.Load(ctx, *trip)
	if err != nil {
		return err
	}
	bookings, err = passengers.ConfirmPayment(ctx, bookings, *booking)
	if err != nil {
		return err
	}
	printBookings(a.out, bookings)
	return nil
}

func cmdRatePassenger(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	var r models.PassengerRating
	fs.Int64Var(&r.TripID, "trip", 0, "trip id")
	fs.Int64Var(&r.PassengerID, "passenger", 0, "passenger id")
	fs.IntVar(&r.Rating, "rating", 0, "score from 1 to 5")
	fs.StringVar(&r.Comment, "comment", "", "comment")
	if err := parse(fs, args); err != nil {
		return err
	}
	if _, err := a.client.RatePassenger(ctx, r); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "rating submitted")
	return nil
}

func cmdRateDriver(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	var r models.DriverRating
	fs.Int64Var(&r.TripID, "trip", 0, "trip id")
	fs.IntVar(&r.Rating, "rating", 0, "score from 1 to 5")
	fs.StringVar(&r.Comment, "comment", "", "comment")
	fs.IntVar(&r.Punctuality, "punctuality", 0, "optional score from 1 to 5")
	fs.IntVar(&r.VehicleCondition, "vehicle", 0, "optional score from 1 to 5")
	fs.IntVar(&r.DriverBehavior, "behavior", 0, "optional score from 1 to 5")
	if err := parse(fs, args); err != nil {
		return err
	}
	if _, err := a.client.RateDriver(ctx, r); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "rating submitted")
	return nil
}

func cmdStats(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	if err := parse(fs, args); err != nil {
		return err
	}
	st, err := a.client.DriverStats(ctx)
	if err != nil {
		return err
	}
	printStats(a.out, *st)
	return nil
}

func cmdRoutes(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	if err := parse(fs, args); err != nil {
		return err
	}
	routes, err := a.client.PopularRoutes(ctx)
	if err != nil {
		return err
	}
	printRoutes(a.out, routes)
	return nil
}

func cmdSearch(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	var s api.TripSearch
	fs.StringVar(&s.FromCity, "from", "", "departure city")
	fs.StringVar(&s.ToCity, "to", "", "destination city")
	fs.StringVar(&s.Date, "date", "", "departure day, 2006-01-02")
	if err := parse(fs, args); err != nil {
		return err
	}
	trips, err := a.client.SearchTrips(ctx, s)
	if err != nil {
		return err
	}
	printTrips(a.out, trips)
	return nil
}

func cmdDashboard(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	if err := parse(fs, args); err != nil {
		return err
	}
	screen := driverapp.OpenScreen(ctx)
	defer screen.Close()

	data, err := driverapp.NewDashboard(a.client, a.logger).Load(screen.Context())
	if err != nil {
		return err
	}
	if p, _ := a.sess.Profile(ctx); p != nil {
		fmt.Fprintf(a.out, "Bonjour, %s\n", p.Name)
	}
	fmt.Fprintf(a.out, "%s\n\n", format.Heading(time.Now()))
	printStats(a.out, data.Stats)
	fmt.Fprintln(a.out, "\nActive trips")
	printTrips(a.out, data.Active)
	fmt.Fprintln(a.out, "\nUpcoming trips")
	printTrips(a.out, data.Upcoming)
	fmt.Fprintln(a.out, "\nPopular routes")
	printRoutes(a.out, data.Routes)
	if len(data.Degraded) > 0 {
		fmt.Fprintf(a.out, "\n(unavailable: %s)\n", strings.Join(data.Degraded, ", "))
	}
	return nil
}

func cmdHistory(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	if err := parse(fs, args); err != nil {
		return err
	}
	trips, err := driverapp.NewHistory(a.client).Load(ctx)
	if err != nil {
		return err
	}
	printHistory(a.out, trips)
	return nil
}

func cmdTheme(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	deviceDark := fs.Bool("device-dark", false, "whether the device itself is in dark mode")
	if err := parse(fs, args); err != nil {
		return err
	}
	pref := theme.New(a.kv)
	var (
		dark bool
		err  error
	)
	switch fs.Arg(0) {
	case "":
		dark, err = pref.Dark(ctx, *deviceDark)
	case "toggle":
		dark, err = pref.Toggle(ctx, *deviceDark)
	case theme.Dark, theme.Light:
		dark = fs.Arg(0) == theme.Dark
		err = pref.Set(ctx, dark)
	default:
		return fmt.Errorf("unknown theme action %q, want toggle, dark or light", fs.Arg(0))
	}
	if err != nil {
		return err
	}
	if dark {
		fmt.Fprintln(a.out, theme.Dark)
	} else {
		fmt.Fprintln(a.out, theme.Light)
	}
	return nil
}

func cmdWatch(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	asJSON := fs.Bool("json", false, "print notices as JSON lines")
	if err := parse(fs, args); err != nil {
		return err
	}
	p, err := a.driver(ctx)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	nav := driverapp.NewNavigator(a.sess, a.logger, func(_, to driverapp.Route) {
		if to == driverapp.RouteLogin {
			cancel()
		}
	})
	if route, err := nav.Start(ctx); err != nil {
		return err
	} else if route != driverapp.RouteMain {
		return errNotLoggedIn
	}

	feed, err := dispatch.NewListener(a.cfg.APIURL, a.sess, a.logger).Listen(ctx, p.ID)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "waiting for booking notices, Ctrl-C to stop")
	enc := json.NewEncoder(a.out)
	for n := range feed {
		if *asJSON {
			if err := enc.Encode(n); err != nil {
				return err
			}
			continue
		}
		printNotice(a.out, n)
	}
	if nav.Route() == driverapp.RouteLogin {
		return api.ErrSessionExpired
	}
	return nil
}
