package keyedstore

import (
	"context"
	"testing"
	"time"
)

func TestLocalStoreSetIfAbsentAndLock(t *testing.T) {
	s, err := NewLocal("")
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	defer s.Close()

	ctx := context.Background()

	ok, err := s.SetIfAbsent(ctx, "k", "v1", time.Minute)
	if err != nil || !ok {
		t.Fatalf("expected first SetIfAbsent to win, got ok=%v err=%v", ok, err)
	}
	ok, err = s.SetIfAbsent(ctx, "k", "v2", time.Minute)
	if err != nil || ok {
		t.Fatalf("expected second SetIfAbsent to lose, got ok=%v err=%v", ok, err)
	}

	v, found, err := s.Get(ctx, "k")
	if err != nil || !found || v != "v1" {
		t.Fatalf("expected v1, got %q found=%v err=%v", v, found, err)
	}

	token, ok, err := s.AcquireLock(ctx, "lock:k", 50*time.Millisecond, 0)
	if err != nil || !ok {
		t.Fatalf("expected to acquire free lock, got ok=%v err=%v", ok, err)
	}
	_, ok, err = s.AcquireLock(ctx, "lock:k", 50*time.Millisecond, 0)
	if err != nil || ok {
		t.Fatalf("expected second acquire to fail while held, got ok=%v err=%v", ok, err)
	}

	// Release with a stale token must be a no-op.
	if err := s.Release(ctx, "lock:k", "not-the-real-token"); err != nil {
		t.Fatalf("stale release should not error: %v", err)
	}
	_, ok, _ = s.AcquireLock(ctx, "lock:k", 0, 0)
	if ok {
		t.Fatalf("lock should still be held after a stale-token release")
	}

	if err := s.Release(ctx, "lock:k", token); err != nil {
		t.Fatalf("release: %v", err)
	}
	_, ok, err = s.AcquireLock(ctx, "lock:k", 0, 0)
	if err != nil || !ok {
		t.Fatalf("expected lock free after valid release, got ok=%v err=%v", ok, err)
	}
}

func TestLocalStoreReplaceListAndRange(t *testing.T) {
	s, err := NewLocal("")
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	if err := s.ReplaceList(ctx, "list", []string{"a", "b", "c"}, time.Minute); err != nil {
		t.Fatalf("ReplaceList: %v", err)
	}
	got, err := s.LRange(ctx, "list", 0, -1)
	if err != nil {
		t.Fatalf("LRange: %v", err)
	}
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestLocalStorePubSub(t *testing.T) {
	s, err := NewLocal("")
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	sub, err := s.Subscribe(ctx, "ch")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	if err := s.Publish(ctx, "ch", "hello"); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case msg := <-sub.Channel():
		if msg != "hello" {
			t.Fatalf("got %q want hello", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for published message")
	}
}
