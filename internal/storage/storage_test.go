package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func exerciseKV(t *testing.T, kv KV) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := kv.Get(ctx, KeyToken); err != nil || ok {
		t.Fatalf("expected missing key, ok=%v err=%v", ok, err)
	}
	if err := kv.Set(ctx, KeyToken, "abc123"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := kv.Set(ctx, KeyTheme, "dark"); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, ok, err := kv.Get(ctx, KeyToken)
	if err != nil || !ok || v != "abc123" {
		t.Fatalf("get token: v=%q ok=%v err=%v", v, ok, err)
	}
	if err := kv.Remove(ctx, KeyToken); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok, _ := kv.Get(ctx, KeyToken); ok {
		t.Fatal("expected token removed")
	}
	if v, ok, _ := kv.Get(ctx, KeyTheme); !ok || v != "dark" {
		t.Fatalf("expected theme untouched, got %q", v)
	}
	if err := kv.Remove(ctx, "never-set"); err != nil {
		t.Fatalf("removing a missing key should not fail: %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseKV(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	fs, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	exerciseKV(t, fs)

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected 0600 state file, got %v", info.Mode().Perm())
	}
}

func TestFileStorePersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	ctx := context.Background()

	first, _ := NewFileStore(path)
	if err := first.Set(ctx, KeyProfile, `{"name":"Jean"}`); err != nil {
		t.Fatalf("set: %v", err)
	}
	second, _ := NewFileStore(path)
	v, ok, err := second.Get(ctx, KeyProfile)
	if err != nil || !ok || v != `{"name":"Jean"}` {
		t.Fatalf("expected persisted profile, got %q ok=%v err=%v", v, ok, err)
	}
}

func TestFileStoreCorruptState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	fs, _ := NewFileStore(path)
	if _, _, err := fs.Get(context.Background(), KeyToken); err == nil {
		t.Fatal("expected decode error")
	}
}
