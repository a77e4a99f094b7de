package idempotency

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"medschool-core/internal/errs"
	"medschool-core/internal/keyedstore"
)

func newTestGate(t *testing.T) *Gate {
	t.Helper()
	store, err := keyedstore.NewLocal("")
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return New(store, zerolog.Nop(), time.Minute)
}

func TestGateNoKeyRunsEveryTime(t *testing.T) {
	g := newTestGate(t)
	var calls int32
	handler := func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		return "ok", nil
	}
	for i := 0; i < 3; i++ {
		if _, err := g.Run(context.Background(), "", handler); err != nil {
			t.Fatalf("Run: %v", err)
		}
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls with no idempotency key, got %d", calls)
	}
}

func TestGateWinnerRunsOnceLoserReplays(t *testing.T) {
	g := newTestGate(t)
	var calls int32

	first, err := g.Run(context.Background(), "order-123", func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		return map[string]any{"order_id": "order-123", "status": "created"}, nil
	})
	if err != nil {
		t.Fatalf("Run (winner): %v", err)
	}

	second, err := g.Run(context.Background(), "order-123", func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		t.Fatal("handler should not run again for a completed idempotency key")
		return nil, nil
	})
	if err != nil {
		t.Fatalf("Run (replay): %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected handler to run exactly once, ran %d times", calls)
	}

	firstMap := first.(map[string]any)
	secondMap := second.(map[string]any)
	if firstMap["order_id"] != secondMap["order_id"] {
		t.Fatalf("replayed response mismatch: %v vs %v", first, second)
	}
}

func TestGateConcurrentInvocationsYieldOneExecution(t *testing.T) {
	g := newTestGate(t)
	var calls int32

	const n = 20
	var wg sync.WaitGroup
	errsOut := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := g.Run(context.Background(), "shared-key", func(ctx context.Context) (any, error) {
				atomic.AddInt32(&calls, 1)
				time.Sleep(10 * time.Millisecond)
				return "done", nil
			})
			errsOut[i] = err
		}(i)
	}
	wg.Wait()

	if calls != 1 {
		t.Fatalf("expected exactly one handler execution across %d concurrent callers, got %d", n, calls)
	}
	var conflicts int
	for _, err := range errsOut {
		if err == nil {
			continue
		}
		e, ok := errs.As(err)
		if !ok || e.Kind != errs.KindConflict {
			t.Fatalf("unexpected error from concurrent caller: %v", err)
		}
		conflicts++
	}
	if conflicts == n {
		t.Fatalf("every caller saw a conflict; expected at least one to observe the winner's result")
	}
}

func TestGateHandlerErrorClearsRecordForRetry(t *testing.T) {
	g := newTestGate(t)
	var calls int32

	_, err := g.Run(context.Background(), "retryable", func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errs.Business(40001, "insufficient balance")
	})
	if err == nil {
		t.Fatal("expected handler error to propagate")
	}

	_, err = g.Run(context.Background(), "retryable", func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("expected retry after a failed attempt to succeed, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected handler to run on the retry after a failure, ran %d times", calls)
	}
}
