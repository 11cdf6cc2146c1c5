package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"fomcval/api/internal/validation"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := NewRedisStore("redis://"+mr.Addr(), time.Hour)
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, mr
}

func testSession(t *testing.T) *validation.Session {
	t.Helper()
	s := validation.NewSession("coder1")
	s.Reset("20081216", 3)
	occurred := validation.OccurredExact
	conf := validation.ConfidenceHigh
	if _, err := s.Update(1, validation.Patch{
		HumanOccurred:   &occurred,
		HumanConfidence: &conf,
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkComplete(1); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestRedisPutGetRoundTrip(t *testing.T) {
	store, _ := setupTestRedis(t)
	ctx := context.Background()

	original := testSession(t)
	if err := store.Put(ctx, "sess_abc", original); err != nil {
		t.Fatal(err)
	}

	restored, err := store.Get(ctx, "sess_abc")
	if err != nil {
		t.Fatal(err)
	}
	if restored.CoderID != "coder1" || restored.Meeting != "20081216" || restored.DecisionCount != 3 {
		t.Fatalf("restored = %+v", restored)
	}
	entry := restored.Validations[1]
	if entry == nil || !entry.Completed {
		t.Fatalf("entry = %+v", entry)
	}
	if entry.HumanOccurred == nil || *entry.HumanOccurred != validation.OccurredExact {
		t.Fatalf("occurrence = %v", entry.HumanOccurred)
	}
	if restored.CompletedCount() != 1 {
		t.Fatalf("CompletedCount = %d", restored.CompletedCount())
	}
}

func TestRedisGetUnknownID(t *testing.T) {
	store, _ := setupTestRedis(t)

	if _, err := store.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestRedisExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := NewRedisStore("redis://"+mr.Addr(), time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Put(ctx, "sess_ttl", testSession(t)); err != nil {
		t.Fatal(err)
	}

	mr.FastForward(2 * time.Minute)

	if _, err := store.Get(ctx, "sess_ttl"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound after expiry", err)
	}
}

func TestRedisDelete(t *testing.T) {
	store, _ := setupTestRedis(t)
	ctx := context.Background()

	if err := store.Put(ctx, "sess_del", testSession(t)); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(ctx, "sess_del"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get(ctx, "sess_del"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestMemoryRegistry(t *testing.T) {
	registry := NewMemory()
	ctx := context.Background()

	if _, err := registry.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	s := testSession(t)
	if err := registry.Put(ctx, "sess_mem", s); err != nil {
		t.Fatal(err)
	}
	got, err := registry.Get(ctx, "sess_mem")
	if err != nil {
		t.Fatal(err)
	}
	if got.CoderID != "coder1" || got.CompletedCount() != 1 {
		t.Fatalf("got = %+v", got)
	}
	if err := registry.Delete(ctx, "sess_mem"); err != nil {
		t.Fatal(err)
	}
	if _, err := registry.Get(ctx, "sess_mem"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestMemoryRegistryIsolatesCallers(t *testing.T) {
	registry := NewMemory()
	ctx := context.Background()

	s := testSession(t)
	if err := registry.Put(ctx, "sess_iso", s); err != nil {
		t.Fatal(err)
	}

	// mutating the caller's session after Put must not touch the stored one
	s.ClearEntry(1)
	got, err := registry.Get(ctx, "sess_iso")
	if err != nil {
		t.Fatal(err)
	}
	if got.CompletedCount() != 1 {
		t.Fatalf("stored session mutated through caller's copy: %+v", got)
	}

	// two readers get independent copies
	other, err := registry.Get(ctx, "sess_iso")
	if err != nil {
		t.Fatal(err)
	}
	got.ClearEntry(1)
	if other.CompletedCount() != 1 {
		t.Fatal("readers share live state")
	}
}
