package dispatch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/example/carpool-driver/internal/api"
	"github.com/example/carpool-driver/internal/logging"
)

func newFeedServer(t *testing.T, reg *WSRegistry) *httptest.Server {
	t.Helper()
	up := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/ws/drivers/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		id, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/api/ws/drivers/"), 10, 64)
		if err != nil {
			http.Error(w, "bad id", http.StatusBadRequest)
			return
		}
		if id <= 0 {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		reg.Add(id, conn)
		go func() {
			defer reg.Remove(id, conn)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type fakeCreds struct {
	token   string
	expired int
}

func (f *fakeCreds) Token(context.Context) (string, error) { return f.token, nil }

func (f *fakeCreds) Expire(context.Context) error {
	f.token = ""
	f.expired++
	return nil
}

func staticToken(tok string) *fakeCreds { return &fakeCreds{token: tok} }

func waitConnected(t *testing.T, reg *WSRegistry, id int64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !reg.Connected(id) {
		if time.Now().After(deadline) {
			t.Fatalf("driver %d never connected", id)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func receive(t *testing.T, ch <-chan BookingNotice) BookingNotice {
	t.Helper()
	select {
	case n, ok := <-ch:
		if !ok {
			t.Fatal("feed closed")
		}
		return n
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notice")
	}
	return BookingNotice{}
}

func TestListenerReceivesNotices(t *testing.T) {
	reg := NewWSRegistry(logging.Discard())
	srv := newFeedServer(t, reg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	feed, err := NewListener(srv.URL+"/api", staticToken("tok"), logging.Discard()).Listen(ctx, 7)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	waitConnected(t, reg, 7)

	if err := reg.Notify(7, BookingNotice{Kind: KindBooked, TripID: 3, Seats: 2}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	n := receive(t, feed)
	if n.Kind != KindBooked || n.TripID != 3 || n.Seats != 2 || n.At.IsZero() {
		t.Fatalf("unexpected notice %+v", n)
	}

	cancel()
	select {
	case _, ok := <-feed:
		if ok {
			t.Fatal("expected feed to close")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("feed did not close after cancel")
	}
}

func TestBacklogFlushedOnConnect(t *testing.T) {
	reg := NewWSRegistry(logging.Discard())
	srv := newFeedServer(t, reg)

	if err := reg.Notify(9, BookingNotice{Kind: KindPaid, TripID: 1}); err != ErrNoSession {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	feed, err := NewListener(srv.URL+"/api/", staticToken("tok"), logging.Discard()).Listen(ctx, 9)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	if n := receive(t, feed); n.Kind != KindPaid {
		t.Fatalf("expected queued notice, got %+v", n)
	}
}

func TestListenerUnauthorizedExpiresSession(t *testing.T) {
	reg := NewWSRegistry(logging.Discard())
	srv := newFeedServer(t, reg)

	creds := staticToken("stale")
	_, err := NewListener(srv.URL+"/api", creds, logging.Discard()).Listen(context.Background(), 1)
	if !errors.Is(err, api.ErrSessionExpired) {
		t.Fatalf("expected session expiry, got %v", err)
	}
	if creds.expired != 1 || creds.token != "" {
		t.Fatalf("expected token cleared once, got expired=%d token=%q", creds.expired, creds.token)
	}
}

func TestListenerRejectedHandshake(t *testing.T) {
	reg := NewWSRegistry(logging.Discard())
	srv := newFeedServer(t, reg)

	creds := staticToken("tok")
	_, err := NewListener(srv.URL+"/api", creds, logging.Discard()).Listen(context.Background(), 0)
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected 403 handshake error, got %v", err)
	}
	if creds.expired != 0 {
		t.Fatal("a non-401 refusal must not expire the session")
	}
}

func TestWSURL(t *testing.T) {
	cases := map[string]string{
		"http://localhost:8080/api":    "ws://localhost:8080/api/ws/drivers/5",
		"https://carpool.example/api/": "wss://carpool.example/api/ws/drivers/5",
	}
	for in, want := range cases {
		got, err := wsURL(in, 5)
		if err != nil || got != want {
			t.Errorf("%s: expected %s, got %s (%v)", in, want, got, err)
		}
	}
	if _, err := wsURL("ftp://x", 5); err == nil {
		t.Error("expected unsupported scheme error")
	}
}

func TestBacklogIsBounded(t *testing.T) {
	reg := NewWSRegistry(logging.Discard())
	for i := 0; i < maxBacklog+5; i++ {
		_ = reg.Notify(1, BookingNotice{TripID: int64(i)})
	}
	q := reg.backlog[1]
	if len(q) != maxBacklog || q[0].TripID != 5 {
		t.Fatalf("unexpected backlog len=%d first=%d", len(q), q[0].TripID)
	}
}

// serverConn returns the server side of a fresh websocket connection.
func serverConn(t *testing.T) *websocket.Conn {
	t.Helper()
	conns := make(chan *websocket.Conn, 1)
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns <- conn
	}))
	t.Cleanup(srv.Close)
	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	select {
	case c := <-conns:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("no server connection")
	}
	return nil
}

func TestBacklogKeptWhenFlushFails(t *testing.T) {
	reg := NewWSRegistry(logging.Discard())
	for i := 1; i <= 3; i++ {
		_ = reg.Notify(4, BookingNotice{Kind: KindBooked, TripID: int64(i)})
	}

	conn := serverConn(t)
	_ = conn.Close()
	reg.Add(4, conn)

	if reg.Connected(4) {
		t.Fatal("expected broken session to be dropped")
	}
	q := reg.backlog[4]
	if len(q) != 3 || q[0].TripID != 1 || q[2].TripID != 3 {
		t.Fatalf("expected all three notices queued in order, got %+v", q)
	}
}
