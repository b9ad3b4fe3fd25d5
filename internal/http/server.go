package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/carpool-driver/internal/dispatch"
	"github.com/example/carpool-driver/internal/geo"
	"github.com/example/carpool-driver/internal/ingest"
	"github.com/example/carpool-driver/internal/payments"
)

// Deps wires the dev backend. Mirror is optional.
type Deps struct {
	Store    *Store
	Tokens   *Tokens
	Geo      geo.Store
	Payments payments.Processor
	Notices  *dispatch.WSRegistry
	Mirror   ingest.Publisher
	Logger   *slog.Logger
}

// Server is a development implementation of the carpool backend API,
// mounted under /api.
type Server struct {
	store    *Store
	tokens   *Tokens
	geo      geo.Store
	payments payments.Processor
	notices  *dispatch.WSRegistry
	mirror   ingest.Publisher
	logger   *slog.Logger
	upgrader websocket.Upgrader
	mux      *mux.Router
}

func NewServer(d Deps) *Server {
	s := &Server{
		store:    d.Store,
		tokens:   d.Tokens,
		geo:      d.Geo,
		payments: d.Payments,
		notices:  d.Notices,
		mirror:   d.Mirror,
		logger:   d.Logger,
		mux:      mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	s.mux.Handle("/metrics", promhttp.Handler())

	api := s.mux.PathPrefix("/api").Subrouter()
	api.HandleFunc("/auth/driver/login", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/auth/driver/register", s.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/dev/bookings", s.handleDevBooking).Methods(http.MethodPost)

	authed := api.NewRoute().Subrouter()
	authed.Use(s.requireDriver)
	authed.HandleFunc("/trips", s.handleCreateTrip).Methods(http.MethodPost)
	authed.HandleFunc("/trips", s.handleSearchTrips).Methods(http.MethodGet)
	authed.HandleFunc("/trips/driver", s.handleDriverTrips).Methods(http.MethodGet)
	authed.HandleFunc("/trips/popular-routes", s.handlePopularRoutes).Methods(http.MethodGet)
	authed.HandleFunc("/trips/{id:[0-9]+}", s.handleTrip).Methods(http.MethodGet)
	authed.HandleFunc("/trips/{id:[0-9]+}/status", s.handleTripStatus).Methods(http.MethodPut)
	authed.HandleFunc("/bookings", s.handleBookings).Methods(http.MethodGet)
	authed.HandleFunc("/location", s.handleLocation).Methods(http.MethodPost)
	authed.HandleFunc("/drivers/nearby", s.handleNearby).Methods(http.MethodGet)
	authed.HandleFunc("/drivers/{id:[0-9]+}/location", s.handleDriverLocation).Methods(http.MethodGet)
	authed.HandleFunc("/payments", s.handleCreatePayment).Methods(http.MethodPost)
	authed.HandleFunc("/payments/{id:[0-9]+}/confirm", s.handleConfirmPayment).Methods(http.MethodPost)
	authed.HandleFunc("/ratings", s.handleRating).Methods(http.MethodPost)
	authed.HandleFunc("/driver/stats", s.handleStats).Methods(http.MethodGet)
	authed.HandleFunc("/ws/drivers/{id:[0-9]+}", s.handleWS).Methods(http.MethodGet)

	s.mux.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found.")
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }
