package listcache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"medschool-core/internal/keyedstore"
)

func newTestCache(t *testing.T) (*Cache, keyedstore.Store) {
	t.Helper()
	store, err := keyedstore.NewLocal("")
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	c := New(store, zerolog.Nop(), Config{
		TTL:          time.Minute,
		LockTTL:      time.Second,
		FollowMax:    time.Second,
		PollMinDelay: time.Millisecond,
		PollMaxDelay: 2 * time.Millisecond,
	})
	return c, store
}

// TestCacheStampedeSingleLoad is the scenario-1 stampede test from the
// spec: concurrent callers against an empty cache must produce
// exactly one loader execution.
func TestCacheStampedeSingleLoad(t *testing.T) {
	c, _ := newTestCache(t)

	var loads int32
	load := func(ctx context.Context) ([]string, error) {
		atomic.AddInt32(&loads, 1)
		time.Sleep(20 * time.Millisecond)
		return []string{"article-1", "article-2"}, nil
	}

	const n = 50
	var wg sync.WaitGroup
	results := make([][]string, n)
	errsOut := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.Get(context.Background(), "article_list_0", load)
			results[i] = v
			errsOut[i] = err
		}(i)
	}
	wg.Wait()

	if got := atomic.LoadInt32(&loads); got != 1 {
		t.Fatalf("expected exactly 1 loader execution, got %d", got)
	}
	for i, err := range errsOut {
		if err != nil {
			t.Fatalf("caller %d got error: %v", i, err)
		}
		if len(results[i]) != 2 {
			t.Fatalf("caller %d got %v", i, results[i])
		}
	}
}

func TestCacheStoreThenLoadLaw(t *testing.T) {
	c, _ := newTestCache(t)

	load := func(ctx context.Context) ([]string, error) {
		return []string{"a", "b", "c"}, nil
	}
	v, err := c.Get(context.Background(), "k", load)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if fmt.Sprint(v) != fmt.Sprint([]string{"a", "b", "c"}) {
		t.Fatalf("got %v", v)
	}

	// Subsequent read within T_cache must return the loaded list in
	// insertion order without invoking the loader again.
	v2, err := c.Get(context.Background(), "k", func(ctx context.Context) ([]string, error) {
		t.Fatal("loader should not run again on a cache hit")
		return nil, nil
	})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if fmt.Sprint(v2) != fmt.Sprint(v) {
		t.Fatalf("got %v want %v", v2, v)
	}
}

func TestCacheEmptyLoaderLeavesUnpopulated(t *testing.T) {
	c, store := newTestCache(t)

	v, err := c.Get(context.Background(), "empty-key", func(ctx context.Context) ([]string, error) {
		return nil, nil
	})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(v) != 0 {
		t.Fatalf("expected empty result, got %v", v)
	}

	vals, err := store.LRange(context.Background(), "empty-key", 0, -1)
	if err != nil {
		t.Fatalf("LRange: %v", err)
	}
	if len(vals) != 0 {
		t.Fatalf("cache should remain unpopulated after an empty load, got %v", vals)
	}
}
