package eta

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/carpool-driver/internal/logging"
	"github.com/example/carpool-driver/internal/models"
)

var (
	kinshasa = models.Location{Latitude: -4.3217, Longitude: 15.3126}
	matadi   = models.Location{Latitude: -5.8167, Longitude: 13.4500}
)

func TestDistanceMeters(t *testing.T) {
	d := DistanceMeters(kinshasa, matadi)
	// roughly 265 km as the crow flies
	if d < 255_000 || d > 275_000 {
		t.Fatalf("unexpected distance %.0f", d)
	}
	if DistanceMeters(kinshasa, kinshasa) != 0 {
		t.Fatal("expected zero distance to self")
	}
}

func TestStraightLineDefaultsSpeed(t *testing.T) {
	a := StraightLineSeconds(kinshasa, matadi, 0)
	b := StraightLineSeconds(kinshasa, matadi, 12)
	if math.Abs(a-b) > 1e-9 {
		t.Fatalf("expected default speed of 12 m/s, got %f vs %f", a, b)
	}
}

type countingRouter struct {
	calls int
	v     float64
	err   error
}

func (r *countingRouter) EstimateSeconds(context.Context, models.Location, models.Location) (float64, error) {
	r.calls++
	return r.v, r.err
}

func TestEstimatorCachesRouterAnswers(t *testing.T) {
	r := &countingRouter{v: 3600}
	e := NewEstimator(r, 12, logging.Discard())

	for i := 0; i < 3; i++ {
		d, routed := e.Estimate(context.Background(), kinshasa, matadi)
		if d != time.Hour || !routed {
			t.Fatalf("unexpected estimate %s routed=%v", d, routed)
		}
	}
	if r.calls != 1 {
		t.Fatalf("expected one router call, got %d", r.calls)
	}
}

func TestEstimatorFallsBack(t *testing.T) {
	e := NewEstimator(&countingRouter{err: errors.New("down")}, 10, logging.Discard())
	d, routed := e.Estimate(context.Background(), kinshasa, matadi)
	if routed {
		t.Fatal("expected straight-line fallback")
	}
	want := time.Duration(StraightLineSeconds(kinshasa, matadi, 10) * float64(time.Second)).Round(time.Second)
	if d != want {
		t.Fatalf("expected %s, got %s", want, d)
	}
}

func TestCacheExpires(t *testing.T) {
	c := NewCache(time.Millisecond)
	c.Set(kinshasa, matadi, 5)
	time.Sleep(5 * time.Millisecond)
	if _, ok := c.Get(kinshasa, matadi); ok {
		t.Fatal("expected expired entry")
	}
}

func TestOSRMClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/route/v1/driving/15.312600,-4.321700;") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"code":"Ok","routes":[{"duration":14400.5}]}`))
	}))
	defer srv.Close()

	got, err := NewOSRMClient(srv.URL+"/").EstimateSeconds(context.Background(), kinshasa, matadi)
	if err != nil || got != 14400.5 {
		t.Fatalf("unexpected %f, %v", got, err)
	}
}

func TestOSRMClientNoRoute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"NoRoute","routes":[]}`))
	}))
	defer srv.Close()

	if _, err := NewOSRMClient(srv.URL).EstimateSeconds(context.Background(), kinshasa, matadi); err == nil {
		t.Fatal("expected error")
	}
}
