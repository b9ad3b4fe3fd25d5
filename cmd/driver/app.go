package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/example/carpool-driver/internal/api"
	"github.com/example/carpool-driver/internal/config"
	"github.com/example/carpool-driver/internal/models"
	"github.com/example/carpool-driver/internal/session"
	"github.com/example/carpool-driver/internal/storage"
)

var (
	errUsage       = errors.New("usage")
	errNotLoggedIn = errors.New("not logged in, run `driver login` first")
)

type app struct {
	cfg    config.ClientConfig
	kv     storage.KV
	sess   *session.Session
	client *api.Client
	logger *slog.Logger
	out    io.Writer
}

type command struct {
	summary string
	auth    bool
	run     func(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error
}

var commands = map[string]command{
	"login":           {"sign in with phone and password", false, cmdLogin},
	"logout":          {"forget the stored session", false, cmdLogout},
	"register":        {"create a driver account", false, cmdRegister},
	"whoami":          {"show the signed-in driver", true, cmdWhoami},
	"trips":           {"list your trips", true, cmdTrips},
	"trip":            {"show one trip and its passengers", true, cmdTrip},
	"create-trip":     {"publish a new trip", true, cmdCreateTrip},
	"start":           {"mark a scheduled trip as ongoing", true, cmdStart},
	"complete":        {"mark an ongoing trip as completed", true, cmdComplete},
	"cancel":          {"cancel a trip", true, cmdCancel},
	"passengers":      {"list bookings on a trip", true, cmdPassengers},
	"location":        {"report your position, or simulate a drive", true, cmdLocation},
	"pay":             {"start a mobile-money payment for a booking", true, cmdPay},
	"confirm-payment": {"confirm a passenger's payment", true, cmdConfirmPayment},
	"rate-passenger":  {"rate a passenger after a trip", true, cmdRatePassenger},
	"rate-driver":     {"rate the driver of a trip", true, cmdRateDriver},
	"stats":           {"show your earnings and rating", true, cmdStats},
	"routes":          {"show popular routes", true, cmdRoutes},
	"search":          {"search scheduled trips", true, cmdSearch},
	"dashboard":       {"active and upcoming trips with stats", true, cmdDashboard},
	"history":         {"completed and cancelled trips", true, cmdHistory},
	"theme":           {"show or change the display theme", false, cmdTheme},
	"watch":           {"stream booking notices", true, cmdWatch},
}

func run(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		usage(a.out)
		if len(args) == 0 {
			return errUsage
		}
		return nil
	}
	name := args[0]
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(a.out, "unknown command %q\n\n", name)
		usage(a.out)
		return errUsage
	}

	if cmd.auth && !a.sess.Authenticated(ctx) {
		return errNotLoggedIn
	}

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.out)
	return cmd.run(ctx, a, fs, args[1:])
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: driver <command> [flags]")
	fmt.Fprintln(w)
	names := make([]string, 0, len(commands))
	for n := range commands {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(w, "  %-16s %s\n", n, commands[n].summary)
	}
}

// parse runs fs and turns -h into a clean exit.
func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return errUsage
		}
		return err
	}
	return nil
}

// tripID reads -id or the first positional argument.
func tripID(fs *flag.FlagSet, id int64) (int64, error) {
	if id == 0 && fs.NArg() > 0 {
		if _, err := fmt.Sscan(fs.Arg(0), &id); err != nil {
			return 0, fmt.Errorf("invalid trip id %q", fs.Arg(0))
		}
	}
	if id <= 0 {
		return 0, errors.New("a trip id is required")
	}
	return id, nil
}

func (a *app) driver(ctx context.Context) (*models.Profile, error) {
	p, err := a.sess.Profile(ctx)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, errNotLoggedIn
	}
	return p, nil
}
