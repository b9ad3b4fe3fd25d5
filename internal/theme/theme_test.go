package theme

import (
	"context"
	"testing"

	"github.com/example/carpool-driver/internal/storage"
)

func TestDeviceDefaultThenToggle(t *testing.T) {
	kv := storage.NewMemoryStore()
	p := New(kv)
	ctx := context.Background()

	dark, err := p.Dark(ctx, true)
	if err != nil || !dark {
		t.Fatalf("expected device default dark, got %v %v", dark, err)
	}

	dark, err = p.Toggle(ctx, true)
	if err != nil || dark {
		t.Fatalf("expected light after toggle, got %v %v", dark, err)
	}
	if v, _, _ := kv.Get(ctx, storage.KeyTheme); v != Light {
		t.Fatalf("expected stored %q, got %q", Light, v)
	}

	// stored choice overrides the device
	if dark, _ := p.Dark(ctx, true); dark {
		t.Fatal("stored light preference should win over device dark")
	}
}
