package dispatch

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// BookingNotice tells a driver something changed on one of their trips.
type BookingNotice struct {
	Kind      string    `json:"kind"`
	TripID    int64     `json:"trip_id"`
	BookingID int64     `json:"booking_id,omitempty"`
	Seats     int       `json:"seats,omitempty"`
	Passenger string    `json:"passenger,omitempty"`
	At        time.Time `json:"at"`
}

const (
	KindBooked        = "booking.created"
	KindPaid          = "payment.confirmed"
	KindTripCancelled = "trip.cancelled"
)

// WSSession is one connected driver.
type WSSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *WSSession) Send(n BookingNotice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return s.conn.WriteJSON(n)
}

var ErrNoSession = errors.New("no ws session")

// maxBacklog bounds how many notices wait for a disconnected driver.
const maxBacklog = 32

// WSRegistry holds driver sessions and the notices queued while a driver is
// offline. Queued notices are flushed when the driver connects.
type WSRegistry struct {
	mu       sync.RWMutex
	sessions map[int64]*WSSession
	backlog  map[int64][]BookingNotice
	logger   *slog.Logger
}

func NewWSRegistry(logger *slog.Logger) *WSRegistry {
	return &WSRegistry{
		sessions: make(map[int64]*WSSession),
		backlog:  make(map[int64][]BookingNotice),
		logger:   logger,
	}
}

// Add registers conn for driverID, replacing any previous one, and delivers
// anything queued. If delivery fails the session is dropped and the unsent
// notices go back in the queue.
func (r *WSRegistry) Add(driverID int64, conn *websocket.Conn) {
	s := &WSSession{conn: conn}
	r.mu.Lock()
	if old, ok := r.sessions[driverID]; ok {
		_ = old.conn.Close()
	}
	r.sessions[driverID] = s
	pending := r.backlog[driverID]
	delete(r.backlog, driverID)
	r.mu.Unlock()

	for i, n := range pending {
		if err := s.Send(n); err != nil {
			r.logger.Warn("ws backlog send failed", "driver_id", driverID, "unsent", len(pending)-i, "error", err)
			r.mu.Lock()
			if cur, ok := r.sessions[driverID]; ok && cur == s {
				delete(r.sessions, driverID)
			}
			// Unsent notices are older than anything queued meanwhile.
			r.queueLocked(driverID, append(pending[i:len(pending):len(pending)], r.backlog[driverID]...)...)
			r.mu.Unlock()
			return
		}
	}
}

// Remove drops conn if it is still the driver's current session.
func (r *WSRegistry) Remove(driverID int64, conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[driverID]; ok && s.conn == conn {
		delete(r.sessions, driverID)
	}
}

func (r *WSRegistry) Connected(driverID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[driverID]
	return ok
}

// Notify sends n to the driver now, or queues it when they are offline.
func (r *WSRegistry) Notify(driverID int64, n BookingNotice) error {
	if n.At.IsZero() {
		n.At = time.Now().UTC()
	}
	r.mu.Lock()
	s, ok := r.sessions[driverID]
	if !ok {
		r.queueLocked(driverID, append(r.backlog[driverID], n)...)
		r.mu.Unlock()
		return ErrNoSession
	}
	r.mu.Unlock()

	if err := s.Send(n); err != nil {
		r.logger.Warn("ws send failed", "driver_id", driverID, "error", err)
		r.Remove(driverID, s.conn)
		return err
	}
	return nil
}

// queueLocked replaces the driver's backlog with q, keeping the newest
// maxBacklog notices. r.mu must be held.
func (r *WSRegistry) queueLocked(driverID int64, q ...BookingNotice) {
	if len(q) > maxBacklog {
		q = q[len(q)-maxBacklog:]
	}
	r.backlog[driverID] = q
}
