package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"testing/iotest"

	"github.com/example/carpool-driver/internal/logging"
	"github.com/example/carpool-driver/internal/models"
)

// fakeCreds implements Credentials in memory.
type fakeCreds struct {
	mu       sync.Mutex
	token    string
	profile  *models.Profile
	expired  int
	tokenErr error
}

func (f *fakeCreds) Token(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token, f.tokenErr
}

func (f *fakeCreds) Save(_ context.Context, token string, p *models.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token, f.profile = token, p
	return nil
}

func (f *fakeCreds) Expire(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = ""
	f.expired++
	return nil
}

type recorded struct {
	method string
	uri    string
	header http.Header
	body   string
}

// recorder answers every request with status/body and keeps what it saw.
type recorder struct {
	mu     sync.Mutex
	calls  []recorded
	status int
	body   string
}

func (r *recorder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	b, _ := io.ReadAll(req.Body)
	r.mu.Lock()
	r.calls = append(r.calls, recorded{method: req.Method, uri: req.URL.RequestURI(), header: req.Header.Clone(), body: string(b)})
	status, body := r.status, r.body
	r.mu.Unlock()
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func (r *recorder) last(t *testing.T) recorded {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		t.Fatal("no request recorded")
	}
	return r.calls[len(r.calls)-1]
}

func newTestClient(t *testing.T, rec *recorder, creds *fakeCreds) *Client {
	t.Helper()
	srv := httptest.NewServer(rec)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/api/", creds, WithLogger(logging.Discard()))
}

func TestBearerHeaderMatchesStoredToken(t *testing.T) {
	rec := &recorder{body: `{"data":[]}`}
	c := newTestClient(t, rec, &fakeCreds{token: "abc123"})

	if _, err := c.DriverTrips(context.Background(), ""); err != nil {
		t.Fatalf("driver trips: %v", err)
	}
	got := rec.last(t)
	if h := got.header.Get("Authorization"); h != "Bearer abc123" {
		t.Fatalf("expected bearer header, got %q", h)
	}
	if got.header.Get("Content-Type") != "application/json" || got.header.Get("Accept") != "application/json" {
		t.Fatalf("missing json headers: %v", got.header)
	}
	if got.header.Get("X-Request-ID") == "" {
		t.Fatal("expected request id header")
	}
	if got.uri != "/api/trips/driver" {
		t.Fatalf("unexpected uri %q", got.uri)
	}
}

func TestNoAuthorizationWithoutToken(t *testing.T) {
	rec := &recorder{body: `{"data":[]}`}
	c := newTestClient(t, rec, &fakeCreds{})

	if _, err := c.PopularRoutes(context.Background()); err != nil {
		t.Fatalf("popular routes: %v", err)
	}
	if _, ok := rec.last(t).header["Authorization"]; ok {
		t.Fatal("expected no Authorization header")
	}
}

func TestUnauthorizedClearsToken(t *testing.T) {
	for _, body := range []string{`{"message":"Unauthenticated."}`, ``, `not json`} {
		creds := &fakeCreds{token: "stale"}
		c := newTestClient(t, &recorder{status: http.StatusUnauthorized, body: body}, creds)

		_, err := c.Trip(context.Background(), 7)
		if !errors.Is(err, ErrSessionExpired) {
			t.Fatalf("body %q: expected ErrSessionExpired, got %v", body, err)
		}
		if creds.token != "" || creds.expired != 1 {
			t.Fatalf("body %q: expected token removed once, token=%q expired=%d", body, creds.token, creds.expired)
		}
	}
}

func TestUnauthorizedWithTruncatedBody(t *testing.T) {
	creds := &fakeCreds{token: "abc123"}
	transport := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusUnauthorized,
			Header:     http.Header{"Content-Type": {"application/json"}},
			Body:       io.NopCloser(io.MultiReader(strings.NewReader(`{"mess`), iotest.ErrReader(io.ErrUnexpectedEOF))),
			Request:    r,
		}, nil
	})
	c := New("http://backend.test/api", creds, WithHTTPClient(&http.Client{Transport: transport}), WithLogger(logging.Discard()))

	_, err := c.DriverStats(context.Background())
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	if creds.token != "" || creds.expired != 1 {
		t.Fatalf("expected token removed, token=%q expired=%d", creds.token, creds.expired)
	}
}

func TestErrorCarriesServerMessage(t *testing.T) {
	rec := &recorder{status: http.StatusUnprocessableEntity, body: `{"error":true,"message":"X"}`}
	c := newTestClient(t, rec, &fakeCreds{token: "t"})

	_, err := c.DriverStats(context.Background())
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %T %v", err, err)
	}
	if apiErr.Message != "X" || err.Error() != "X" {
		t.Fatalf("expected message X, got %q", apiErr.Message)
	}
	if StatusCode(err) != http.StatusUnprocessableEntity {
		t.Fatalf("unexpected status %d", StatusCode(err))
	}
}

func TestErrorFallsBackToGenericMessage(t *testing.T) {
	for _, body := range []string{`{}`, `<html>oops</html>`, ``} {
		c := newTestClient(t, &recorder{status: http.StatusInternalServerError, body: body}, &fakeCreds{token: "t"})
		_, err := c.DriverStats(context.Background())
		if err == nil || err.Error() != GenericMessage {
			t.Fatalf("body %q: expected generic message, got %v", body, err)
		}
	}
}

func TestTransportErrorPropagatesUnchanged(t *testing.T) {
	sentinel := errors.New("network unreachable")
	hc := &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) { return nil, sentinel })}
	c := New("http://backend.invalid", &fakeCreds{token: "t"}, WithHTTPClient(hc), WithLogger(logging.Discard()))

	_, err := c.DriverStats(context.Background())
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if IsSessionExpired(err) {
		t.Fatal("transport error must not look like a session expiry")
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestMalformedSuccessBody(t *testing.T) {
	c := newTestClient(t, &recorder{body: `{"data":`}, &fakeCreds{token: "t"})
	_, err := c.Do(context.Background(), "", "/driver/stats", nil, nil)
	var syntaxErr *json.SyntaxError
	if !errors.As(err, &syntaxErr) && !strings.Contains(err.Error(), "unexpected end of JSON input") {
		t.Fatalf("expected json error, got %v", err)
	}
}

func TestSearchOmitsMissingFilters(t *testing.T) {
	rec := &recorder{body: `{"data":[{"id":1,"from_city":"Kinshasa","to_city":"Lubumbashi","departure_time":"2026-03-02 08:30:00","status":"scheduled"}]}`}
	c := newTestClient(t, rec, &fakeCreds{})

	trips, err := c.SearchTrips(context.Background(), TripSearch{FromCity: "Kinshasa", ToCity: "Lubumbashi"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(trips) != 1 || trips[0].DepartureTime.Hour() != 8 {
		t.Fatalf("unexpected trips %+v", trips)
	}
	uri := rec.last(t).uri
	if !strings.Contains(uri, "from_city=Kinshasa&to_city=Lubumbashi") {
		t.Fatalf("unexpected query %q", uri)
	}
	if strings.Contains(uri, "departure_time") {
		t.Fatalf("date should be omitted, got %q", uri)
	}

	if _, err := c.SearchTrips(context.Background(), TripSearch{}); err != nil {
		t.Fatalf("search: %v", err)
	}
	if uri := rec.last(t).uri; uri != "/api/trips" {
		t.Fatalf("expected bare path without filters, got %q", uri)
	}
}

func TestUpdateTripStatusRequest(t *testing.T) {
	rec := &recorder{body: `{"data":{"id":42,"status":"cancelled"}}`}
	c := newTestClient(t, rec, &fakeCreds{token: "t"})

	trip, err := c.UpdateTripStatus(context.Background(), 42, models.TripCancelled)
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if trip == nil || trip.Status != models.TripCancelled {
		t.Fatalf("unexpected trip %+v", trip)
	}
	got := rec.last(t)
	if got.method != http.MethodPut || got.uri != "/api/trips/42/status" {
		t.Fatalf("unexpected request %s %s", got.method, got.uri)
	}
	if got.body != `{"status":"cancelled"}` {
		t.Fatalf("unexpected body %s", got.body)
	}

	if _, err := c.UpdateTripStatus(context.Background(), 42, "paused"); err == nil {
		t.Fatal("expected invalid status to be rejected locally")
	}
}

func TestLoginStoresTokenAndProfile(t *testing.T) {
	rec := &recorder{body: `{"data":{"token":"abc123","user":{"id":1,"name":"Jean"}}}`}
	creds := &fakeCreds{token: "previous"}
	c := newTestClient(t, rec, creds)

	res, err := c.Login(context.Background(), "0812345678", "secret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.Token != "abc123" || creds.token != "abc123" {
		t.Fatalf("expected stored token abc123, got %q", creds.token)
	}
	if creds.profile == nil || creds.profile.Name != "Jean" {
		t.Fatalf("unexpected profile %+v", creds.profile)
	}
	got := rec.last(t)
	if _, ok := got.header["Authorization"]; ok {
		t.Fatal("login must not send a bearer token")
	}
	if got.body != `{"phone":"0812345678","password":"secret"}` {
		t.Fatalf("unexpected login body %s", got.body)
	}
}

func TestLoginRejectedIsNotSessionExpiry(t *testing.T) {
	creds := &fakeCreds{}
	c := newTestClient(t, &recorder{status: http.StatusUnauthorized, body: `{"message":"Identifiants invalides"}`}, creds)

	_, err := c.Login(context.Background(), "0812345678", "wrong")
	if IsSessionExpired(err) {
		t.Fatal("rejected login must not be reported as expiry")
	}
	if err == nil || err.Error() != "Identifiants invalides" {
		t.Fatalf("expected server message, got %v", err)
	}
	if creds.expired != 0 {
		t.Fatal("rejected login must not touch the session")
	}
}

func TestValidationSendsNoRequest(t *testing.T) {
	rec := &recorder{body: `{}`}
	c := newTestClient(t, rec, &fakeCreds{token: "t"})
	ctx := context.Background()

	cases := map[string]func() error{
		"login": func() error { _, err := c.Login(ctx, "", "secret"); return err },
		"trip": func() error {
			_, err := c.CreateTrip(ctx, models.NewTrip{FromCity: "Kinshasa", AvailableSeats: 4})
			return err
		},
		"rating": func() error {
			_, err := c.RatePassenger(ctx, models.PassengerRating{TripID: 1, PassengerID: 2, Rating: 0})
			return err
		},
		"payment": func() error {
			_, err := c.CreatePayment(ctx, models.PaymentRequest{BookingID: 1, Amount: 100, Provider: "visa", Phone: "081"})
			return err
		},
		"register": func() error {
			_, err := c.Register(ctx, models.Registration{Name: "A", Phone: "1", Password: "x", PasswordConfirmation: "y", VehicleModel: "m", VehicleNumber: "n", LicenseNumber: "l"})
			return err
		},
	}
	for name, fn := range cases {
		var verr *ValidationError
		if err := fn(); !errors.As(err, &verr) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.calls) != 0 {
		t.Fatalf("expected no requests, got %d", len(rec.calls))
	}
}

func TestCreateTripBody(t *testing.T) {
	rec := &recorder{status: http.StatusCreated, body: `{"data":{"id":9,"from_city":"Kinshasa","to_city":"Matadi","departure_time":"2026-05-01 07:00:00","available_seats":4,"price_per_seat":15000,"status":"scheduled"}}`}
	c := newTestClient(t, rec, &fakeCreds{token: "t"})

	dep, _ := models.ParseTimestamp("2026-05-01 07:00:00")
	trip, err := c.CreateTrip(context.Background(), models.NewTrip{
		FromCity: " Kinshasa ", ToCity: "Matadi", DepartureTime: models.Timestamp{Time: dep},
		AvailableSeats: 4, PricePerSeat: 15000,
	})
	if err != nil {
		t.Fatalf("create trip: %v", err)
	}
	if trip.ID != 9 || trip.Status != models.TripScheduled {
		t.Fatalf("unexpected trip %+v", trip)
	}
	want := `{"from_city":"Kinshasa","to_city":"Matadi","departure_time":"2026-05-01 07:00:00","available_seats":4,"price_per_seat":15000}`
	if got := rec.last(t).body; got != want {
		t.Fatalf("unexpected body\n got %s\nwant %s", got, want)
	}
}

func TestConfirmPaymentSendsNoBody(t *testing.T) {
	rec := &recorder{body: `{"message":"ok"}`}
	c := newTestClient(t, rec, &fakeCreds{token: "t"})

	p, err := c.ConfirmPayment(context.Background(), 5)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if p != nil {
		t.Fatalf("expected nil payment without data, got %+v", p)
	}
	got := rec.last(t)
	if got.method != http.MethodPost || got.uri != "/api/payments/5/confirm" || got.body != "" {
		t.Fatalf("unexpected request %s %s %q", got.method, got.uri, got.body)
	}
}

func TestBookingsQueryAndSchemaMismatch(t *testing.T) {
	rec := &recorder{body: `{"data":null}`}
	c := newTestClient(t, rec, &fakeCreds{token: "t"})

	bookings, err := c.TripBookings(context.Background(), 3)
	if err != nil || len(bookings) != 0 {
		t.Fatalf("expected empty list, got %v %v", bookings, err)
	}
	if uri := rec.last(t).uri; uri != "/api/bookings?trip_id=3" {
		t.Fatalf("unexpected uri %q", uri)
	}

	rec.body = `{"data":{"not":"a list"}}`
	_, err = c.TripBookings(context.Background(), 3)
	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected schema error, got %v", err)
	}
}

func TestDriverTripsStatusFilter(t *testing.T) {
	rec := &recorder{body: `[]`}
	c := newTestClient(t, rec, &fakeCreds{token: "t"})

	if _, err := c.DriverTrips(context.Background(), models.TripOngoing); err != nil {
		t.Fatalf("driver trips: %v", err)
	}
	if uri := rec.last(t).uri; uri != "/api/trips/driver?status=ongoing" {
		t.Fatalf("unexpected uri %q", uri)
	}
}
