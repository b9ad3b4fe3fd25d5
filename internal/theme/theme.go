package theme

import (
	"context"
	"fmt"

	"github.com/example/carpool-driver/internal/storage"
)

const (
	Dark  = "dark"
	Light = "light"
)

// Preference persists the dark/light choice. Without a stored choice the
// device setting wins.
type Preference struct {
	store storage.KV
}

func New(store storage.KV) *Preference {
	return &Preference{store: store}
}

// Dark reports the effective mode.
func (p *Preference) Dark(ctx context.Context, deviceDark bool) (bool, error) {
	v, ok, err := p.store.Get(ctx, storage.KeyTheme)
	if err != nil {
		return deviceDark, fmt.Errorf("load theme preference: %w", err)
	}
	if !ok {
		return deviceDark, nil
	}
	return v == Dark, nil
}

// Toggle flips the effective mode and stores the result.
func (p *Preference) Toggle(ctx context.Context, deviceDark bool) (bool, error) {
	dark, err := p.Dark(ctx, deviceDark)
	if err != nil {
		return dark, err
	}
	return !dark, p.Set(ctx, !dark)
}

func (p *Preference) Set(ctx context.Context, dark bool) error {
	v := Light
	if dark {
		v = Dark
	}
	if err := p.store.Set(ctx, storage.KeyTheme, v); err != nil {
		return fmt.Errorf("save theme preference: %w", err)
	}
	return nil
}
