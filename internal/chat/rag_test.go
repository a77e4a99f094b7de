package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

type fakeModel struct {
	rewriteCalls int
	expandCalls  int
	answer       string
	streamErr    error
}

func (f *fakeModel) Rewrite(_ context.Context, _ []Envelope, question string) (string, error) {
	f.rewriteCalls++
	return "standalone: " + question, nil
}

func (f *fakeModel) ExpandQueries(_ context.Context, question string) ([]string, error) {
	f.expandCalls++
	return []string{question, question + " alt1"}, nil
}

func (f *fakeModel) StreamAnswer(ctx context.Context, _ []string, _ []Envelope, _ string, onChunk func(string)) (string, error) {
	if f.streamErr != nil {
		return "", f.streamErr
	}
	onChunk(f.answer)
	return f.answer, nil
}

type fakeVectorStore struct {
	docs map[string][]Document
}

func (f *fakeVectorStore) Search(_ context.Context, query string, _ int) ([]Document, error) {
	return f.docs[query], nil
}

func TestEngineAskPersistsOnSuccess(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if _, err := store.CreateSession(ctx, "u1", "s1"); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	model := &fakeModel{answer: "hypertension is elevated blood pressure"}
	vectors := &fakeVectorStore{docs: map[string][]Document{
		"what is hypertension?":      {{Content: "doc A"}},
		"what is hypertension? alt1": {{Content: "doc A"}, {Content: "doc B"}},
	}}
	eng := NewEngine(store, model, vectors, zerolog.Nop())

	var chunks []string
	err := eng.Ask(ctx, "u1", "s1", "what is hypertension?", func(c string) { chunks = append(chunks, c) })
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if len(chunks) != 1 || chunks[0] != model.answer {
		t.Fatalf("expected the streamed chunk to be forwarded, got %v", chunks)
	}

	window, err := store.Window(ctx, "u1", "s1", 10)
	if err != nil {
		t.Fatalf("Window: %v", err)
	}
	if len(window) != 2 {
		t.Fatalf("expected the exchange to be persisted, got %d envelopes", len(window))
	}
	if window[1].Content != model.answer {
		t.Fatalf("expected stored assistant content to match the streamed answer, got %q", window[1].Content)
	}
	// First turn: no history yet, so Rewrite must not be called.
	if model.rewriteCalls != 0 {
		t.Fatalf("expected no rewrite call on the first turn, got %d", model.rewriteCalls)
	}
}

func TestEngineAskRewritesOnSubsequentTurns(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if _, err := store.CreateSession(ctx, "u1", "s1"); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if err := store.Append(ctx, "u1", "s1", "first question", "first answer"); err != nil {
		t.Fatalf("seed Append: %v", err)
	}

	model := &fakeModel{answer: "second answer"}
	vectors := &fakeVectorStore{docs: map[string][]Document{}}
	eng := NewEngine(store, model, vectors, zerolog.Nop())

	if err := eng.Ask(ctx, "u1", "s1", "what about that?", func(string) {}); err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if model.rewriteCalls != 1 {
		t.Fatalf("expected a rewrite call once history exists, got %d", model.rewriteCalls)
	}
}

func TestEngineAskSkipsPersistenceOnCancellation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if _, err := store.CreateSession(ctx, "u1", "s1"); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	model := &fakeModel{streamErr: context.Canceled}
	vectors := &fakeVectorStore{docs: map[string][]Document{}}
	eng := NewEngine(store, model, vectors, zerolog.Nop())

	err := eng.Ask(ctx, "u1", "s1", "question", func(string) {})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled to propagate, got %v", err)
	}

	window, err := store.Window(ctx, "u1", "s1", 10)
	if err != nil {
		t.Fatalf("Window: %v", err)
	}
	if len(window) != 0 {
		t.Fatalf("expected no persisted exchange after a cancelled stream, got %d envelopes", len(window))
	}
}

func TestEngineAskRejectsUnknownSession(t *testing.T) {
	store := newTestStore(t)
	model := &fakeModel{}
	vectors := &fakeVectorStore{}
	eng := NewEngine(store, model, vectors, zerolog.Nop())

	err := eng.Ask(context.Background(), "u1", "no-such-session", "q", func(string) {})
	if err == nil {
		t.Fatal("expected an error for an unregistered session")
	}
}
