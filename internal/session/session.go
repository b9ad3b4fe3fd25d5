// Package session owns the persisted driver credentials: the bearer token and
// the cached profile. The stored token is the only authority on whether the
// driver is logged in; expiry is only learned when the backend answers 401.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/example/carpool-driver/internal/models"
	"github.com/example/carpool-driver/internal/storage"
)

// Reason explains the latest authentication state change.
type Reason string

const (
	ReasonRestored Reason = "restored"
	ReasonLogin    Reason = "login"
	ReasonLogout   Reason = "logout"
	ReasonExpired  Reason = "expired"
)

// State is published to watchers whenever authentication changes.
type State struct {
	Authenticated bool
	Reason        Reason
}

type Session struct {
	store  storage.KV
	logger *slog.Logger

	mu       sync.Mutex
	watchers map[int]chan State
	nextID   int
}

func New(store storage.KV, logger *slog.Logger) *Session {
	return &Session{store: store, logger: logger, watchers: make(map[int]chan State)}
}

// Restore reads the persisted credentials once at startup and announces the
// resulting state. A profile that cannot be decoded is dropped, not fatal.
func (s *Session) Restore(ctx context.Context) (State, *models.Profile, error) {
	token, err := s.Token(ctx)
	if err != nil {
		return State{}, nil, err
	}
	profile, err := s.Profile(ctx)
	if err != nil {
		s.logger.Warn("discarding unreadable stored profile", "error", err)
		profile = nil
	}
	st := State{Authenticated: token != "", Reason: ReasonRestored}
	s.publish(st)
	return st, profile, nil
}

// Token returns the stored bearer token, or "" when logged out.
func (s *Session) Token(ctx context.Context) (string, error) {
	v, ok, err := s.store.Get(ctx, storage.KeyToken)
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	if !ok {
		return "", nil
	}
	return v, nil
}

// Profile returns the cached profile, nil when none is stored.
func (s *Session) Profile(ctx context.Context) (*models.Profile, error) {
	v, ok, err := s.store.Get(ctx, storage.KeyProfile)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	if !ok || v == "" {
		return nil, nil
	}
	var p models.Profile
	if err := json.Unmarshal([]byte(v), &p); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return &p, nil
}

// Authenticated reports whether a token is currently stored.
func (s *Session) Authenticated(ctx context.Context) bool {
	tok, err := s.Token(ctx)
	return err == nil && tok != ""
}

// Save persists the credentials returned by a successful login.
func (s *Session) Save(ctx context.Context, token string, profile *models.Profile) error {
	if token == "" {
		return fmt.Errorf("save session: empty token")
	}
	if err := s.store.Set(ctx, storage.KeyToken, token); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	if profile == nil {
		// A login without a user must not leave another driver's profile.
		if err := s.store.Remove(ctx, storage.KeyProfile); err != nil {
			return fmt.Errorf("remove profile: %w", err)
		}
	} else {
		b, err := json.Marshal(profile)
		if err != nil {
			return fmt.Errorf("encode profile: %w", err)
		}
		if err := s.store.Set(ctx, storage.KeyProfile, string(b)); err != nil {
			return fmt.Errorf("store profile: %w", err)
		}
	}
	s.publish(State{Authenticated: true, Reason: ReasonLogin})
	return nil
}

// Logout removes both the token and the cached profile.
func (s *Session) Logout(ctx context.Context) error {
	if err := s.store.Remove(ctx, storage.KeyToken); err != nil {
		return fmt.Errorf("remove token: %w", err)
	}
	if err := s.store.Remove(ctx, storage.KeyProfile); err != nil {
		return fmt.Errorf("remove profile: %w", err)
	}
	s.publish(State{Authenticated: false, Reason: ReasonLogout})
	return nil
}

// Expire drops the token after the backend rejected it. The cached profile
// is kept so the login screen can prefill the phone number.
func (s *Session) Expire(ctx context.Context) error {
	if err := s.store.Remove(ctx, storage.KeyToken); err != nil {
		return fmt.Errorf("remove token: %w", err)
	}
	s.publish(State{Authenticated: false, Reason: ReasonExpired})
	return nil
}

// Watch subscribes to state changes. The channel keeps only the most recent
// undelivered state; call the returned func to unsubscribe.
func (s *Session) Watch() (<-chan State, func()) {
	ch := make(chan State, 1)
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.watchers, id)
			s.mu.Unlock()
			close(ch)
		})
	}
}

func (s *Session) publish(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.watchers {
		// drop a stale pending state so the newest one wins
		select {
		case <-ch:
		default:
		}
		ch <- st
	}
	s.logger.Debug("session state", "authenticated", st.Authenticated, "reason", string(st.Reason))
}
