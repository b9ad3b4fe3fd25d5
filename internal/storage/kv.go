package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/example/carpool-driver/internal/config"
)

// Keys persisted on the device.
const (
	KeyToken   = "userToken"
	KeyProfile = "userInfo"
	KeyTheme   = "themePreference"
)

// KV is the device-local key-value store. Each operation is atomic for its
// key; nothing spans keys.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Open returns the backend selected by cfg.Storage and a close func.
func Open(ctx context.Context, cfg config.ClientConfig) (KV, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Storage {
	case "memory":
		return NewMemoryStore(), noop, nil
	case "redis":
		rs, err := NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword, "carpool:")
		if err != nil {
			return nil, nil, err
		}
		return rs, rs.Close, nil
	case "postgres":
		ps, err := NewPostgresStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, nil, err
		}
		return ps, ps.Close, nil
	case "file", "":
		dir := cfg.StateDir
		if dir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, nil, fmt.Errorf("resolve home dir: %w", err)
			}
			dir = filepath.Join(home, ".carpool-driver")
		}
		fs, err := NewFileStore(filepath.Join(dir, "state.json"))
		if err != nil {
			return nil, nil, err
		}
		return fs, noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
	}
}
