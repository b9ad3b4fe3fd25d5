package session

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/example/carpool-driver/internal/logging"
	"github.com/example/carpool-driver/internal/models"
	"github.com/example/carpool-driver/internal/storage"
)

func newSession() (*Session, *storage.MemoryStore) {
	kv := storage.NewMemoryStore()
	return New(kv, logging.Discard()), kv
}

func TestRestoreWithoutToken(t *testing.T) {
	s, _ := newSession()
	st, profile, err := s.Restore(context.Background())
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if st.Authenticated || profile != nil {
		t.Fatalf("expected logged out state, got %+v %+v", st, profile)
	}
}

func TestSaveStoresTokenAndSerializedProfile(t *testing.T) {
	s, kv := newSession()
	ctx := context.Background()

	if err := s.Save(ctx, "abc123", &models.Profile{ID: 1, Name: "Jean"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	tok, _, _ := kv.Get(ctx, storage.KeyToken)
	if tok != "abc123" {
		t.Fatalf("expected stored token, got %q", tok)
	}
	raw, _, _ := kv.Get(ctx, storage.KeyProfile)
	if !strings.Contains(raw, `"name":"Jean"`) {
		t.Fatalf("expected serialized profile, got %s", raw)
	}

	st, profile, err := s.Restore(ctx)
	if err != nil || !st.Authenticated || profile == nil || profile.Name != "Jean" {
		t.Fatalf("unexpected restore %+v %+v %v", st, profile, err)
	}
}

func TestSaveWithoutProfileDropsPreviousOne(t *testing.T) {
	s, kv := newSession()
	ctx := context.Background()
	_ = s.Save(ctx, "first", &models.Profile{ID: 1, Name: "Jean"})

	if err := s.Save(ctx, "second", nil); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, ok, _ := kv.Get(ctx, storage.KeyProfile); ok {
		t.Fatal("expected previous profile removed")
	}
	st, profile, err := s.Restore(ctx)
	if err != nil || !st.Authenticated || profile != nil {
		t.Fatalf("unexpected restore %+v %+v %v", st, profile, err)
	}
}

func TestExpireKeepsProfile(t *testing.T) {
	s, kv := newSession()
	ctx := context.Background()
	_ = s.Save(ctx, "abc123", &models.Profile{ID: 1, Name: "Jean"})

	if err := s.Expire(ctx); err != nil {
		t.Fatalf("expire: %v", err)
	}
	if s.Authenticated(ctx) {
		t.Fatal("expected logged out after expiry")
	}
	if _, ok, _ := kv.Get(ctx, storage.KeyProfile); !ok {
		t.Fatal("expected profile kept after expiry")
	}
}

func TestLogoutClearsBothKeys(t *testing.T) {
	s, kv := newSession()
	ctx := context.Background()
	_ = s.Save(ctx, "abc123", &models.Profile{ID: 1, Name: "Jean"})

	if err := s.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}
	for _, key := range []string{storage.KeyToken, storage.KeyProfile} {
		if _, ok, _ := kv.Get(ctx, key); ok {
			t.Fatalf("expected %s removed", key)
		}
	}
}

func TestCorruptProfileIsDropped(t *testing.T) {
	s, kv := newSession()
	ctx := context.Background()
	_ = kv.Set(ctx, storage.KeyToken, "abc123")
	_ = kv.Set(ctx, storage.KeyProfile, "{broken")

	st, profile, err := s.Restore(ctx)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if !st.Authenticated || profile != nil {
		t.Fatalf("expected token to win and profile dropped, got %+v %+v", st, profile)
	}
}

func TestWatchDeliversLatestState(t *testing.T) {
	s, _ := newSession()
	ctx := context.Background()
	ch, cancel := s.Watch()
	defer cancel()

	_ = s.Save(ctx, "abc123", nil)
	_ = s.Expire(ctx)

	select {
	case st := <-ch:
		if st.Authenticated || st.Reason != ReasonExpired {
			t.Fatalf("expected latest expired state, got %+v", st)
		}
	case <-time.After(time.Second):
		t.Fatal("no state delivered")
	}

	cancel()
	if _, ok := <-ch; ok {
		t.Fatal("expected channel closed after cancel")
	}
	// publishing after unsubscribe must not panic
	_ = s.Logout(ctx)
}

func TestSaveRejectsEmptyToken(t *testing.T) {
	s, _ := newSession()
	if err := s.Save(context.Background(), "", nil); err == nil {
		t.Fatal("expected error")
	}
}
