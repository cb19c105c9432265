package kv

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss, got %v", err)
	}
	if err := store.Set(ctx, "mood:abc", "sedih", time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Set(ctx, "forever", "x", 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := store.Get(ctx, "mood:abc")
	if err != nil || got != "sedih" {
		t.Fatalf("Get = %q, %v", got, err)
	}

	now = now.Add(time.Minute)
	if _, err := store.Get(ctx, "mood:abc"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected expiry, got %v", err)
	}
	if got, err := store.Get(ctx, "forever"); err != nil || got != "x" {
		t.Fatalf("no-ttl entry = %q, %v", got, err)
	}
}

func TestMemoryStoreHonoursContext(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := store.Set(ctx, "k", "v", 0); !errors.Is(err, context.Canceled) {
		t.Fatalf("Set err = %v", err)
	}
	if err := store.Ping(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Ping err = %v", err)
	}
}

func TestNewRedisStoreRejectsBadURL(t *testing.T) {
	if _, err := NewRedisStore("not-a-url", "moodfood:"); err == nil {
		t.Fatalf("expected parse error")
	}
	store, err := NewRedisStore("redis://localhost:6379/2", "moodfood:")
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	defer store.Close()
	if store.key("x") != "moodfood:x" {
		t.Fatalf("key = %q", store.key("x"))
	}
}

func TestMemoryStoreTakeIsOneShot(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	if err := store.Set(ctx, "oauth:state", "1", time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got, err := store.Take(ctx, "oauth:state"); err != nil || got != "1" {
		t.Fatalf("Take = %q, %v", got, err)
	}
	if _, err := store.Take(ctx, "oauth:state"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss on second take, got %v", err)
	}

	if err := store.Set(ctx, "expiring", "1", time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}
	now = now.Add(2 * time.Second)
	if _, err := store.Take(ctx, "expiring"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss for expired key, got %v", err)
	}
}

func TestMemoryStoreSweepsExpiredEntriesOnSet(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	for _, key := range []string{"mood:a", "mood:b", "mood:c"} {
		if err := store.Set(ctx, key, "stress", time.Minute); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}
	if err := store.Set(ctx, "forever", "x", 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if store.Len() != 4 {
		t.Fatalf("expected 4 entries, got %d", store.Len())
	}

	now = now.Add(2 * time.Minute)
	if err := store.Set(ctx, "mood:d", "bosan", time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if store.Len() != 2 {
		t.Fatalf("expected expired entries swept, got %d entries", store.Len())
	}
	if got, err := store.Get(ctx, "forever"); err != nil || got != "x" {
		t.Fatalf("Get(forever) = %q, %v", got, err)
	}
}
