package chat

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"medschool-core/internal/keyedstore"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	kv, err := keyedstore.NewLocal("")
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	t.Cleanup(func() { _ = kv.Close() })
	return NewStore(kv, zerolog.Nop())
}

func TestCreateSessionRegistersInUserSet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateSession(ctx, "u1", "sess-1"); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	ok, err := s.Exists(ctx, "u1", "sess-1")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if !ok {
		t.Fatal("expected session to be registered in the user's session set")
	}

	ok, err = s.Exists(ctx, "u1", "sess-unknown")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if ok {
		t.Fatal("expected an unregistered session id to be absent")
	}
}

func TestAppendUpdatesLastMessagePreview(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.CreateSession(ctx, "u1", "sess-1"); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	longAnswer := "this answer is definitely longer than twenty characters"
	if err := s.Append(ctx, "u1", "sess-1", "what is hypertension?", longAnswer); err != nil {
		t.Fatalf("Append: %v", err)
	}

	window, err := s.Window(ctx, "u1", "sess-1", 10)
	if err != nil {
		t.Fatalf("Window: %v", err)
	}
	if len(window) != 2 {
		t.Fatalf("expected 2 envelopes (user+assistant), got %d", len(window))
	}
	if window[0].Role != RoleUser || window[0].Content != "what is hypertension?" {
		t.Fatalf("unexpected first envelope: %+v", window[0])
	}
	if window[1].Role != RoleAssistant || window[1].Content != longAnswer {
		t.Fatalf("unexpected second envelope: %+v", window[1])
	}

	meta, err := s.kv.HGetAll(ctx, sessionHashKey("u1", "sess-1"))
	if err != nil {
		t.Fatalf("HGetAll: %v", err)
	}
	if got, want := meta["last_message"], "this answer is defin"; got != want {
		t.Fatalf("expected last_message preview %q, got %q", want, got)
	}
}

func TestWindowReturnsOnlyLastW(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.CreateSession(ctx, "u1", "sess-1"); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	for i := 0; i < 8; i++ {
		if err := s.Append(ctx, "u1", "sess-1", "q", "a"); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	// 8 turns = 16 envelopes; windowSize 4 should return the last 4.
	window, err := s.Window(ctx, "u1", "sess-1", 4)
	if err != nil {
		t.Fatalf("Window: %v", err)
	}
	if len(window) != 4 {
		t.Fatalf("expected exactly 4 envelopes in the window, got %d", len(window))
	}
}
