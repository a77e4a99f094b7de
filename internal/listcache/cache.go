// Package listcache implements the cache-stampede-protected
// read-through list cache (C2): given a request for key K, return the
// cached list if present; otherwise elect exactly one loader to
// materialize it from the source of truth, write back with TTL, and
// return. Concurrent callers that lose the election must not stampede
// the source — they poll the keyed store instead.
//
// Interview explanation (grounded on the teacher's own RWMutex/WAL
// "read-heavy, write-rare" storage design, generalized to a
// cross-process election instead of an in-process one):
//
//	A single in-process mutex cannot coordinate across replicas of
//	this service, so election uses the keyed store's atomic SETNX
//	lock (C1) instead of sync.Mutex. Within one process, an
//	additional in-process singleflight.Group (the same coalescing
//	idea as golang.org/x/sync/singleflight, and the pattern the
//	IvanBrykalov/shardcache cache package builds its own
//	internal/singleflight.Group around) collapses N concurrent
//	in-process callers for the same key down to one keyed-store round
//	trip, so the common case of a local stampede never even reaches
//	Redis.
package listcache

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"medschool-core/internal/errs"
	"medschool-core/internal/keyedstore"
	"medschool-core/internal/metrics"
)

// Loader materializes the list of records for key from the opaque
// source of truth (database, search index, etc).
type Loader func(ctx context.Context) ([]string, error)

// Cache is the singleflight list cache (C2).
type Cache struct {
	store keyedstore.Store
	log   zerolog.Logger

	ttl          time.Duration // T_cache
	lockTTL      time.Duration // T_lock
	followMax    time.Duration // T_follow_max
	pollMinDelay time.Duration
	pollMaxDelay time.Duration

	sf inProcessGroup
}

// Config tunes the cache's timing knobs; zero values fall back to the
// spec's defaults.
type Config struct {
	TTL          time.Duration
	LockTTL      time.Duration
	FollowMax    time.Duration
	PollMinDelay time.Duration
	PollMaxDelay time.Duration
}

// New builds a Cache over store.
func New(store keyedstore.Store, log zerolog.Logger, cfg Config) *Cache {
	c := &Cache{
		store:        store,
		log:          log.With().Str("component", "listcache").Logger(),
		ttl:          orDefault(cfg.TTL, 5*time.Minute),
		lockTTL:      orDefault(cfg.LockTTL, 10*time.Second),
		followMax:    orDefault(cfg.FollowMax, 5*time.Second),
		pollMinDelay: orDefault(cfg.PollMinDelay, 100*time.Millisecond),
		pollMaxDelay: orDefault(cfg.PollMaxDelay, 200*time.Millisecond),
	}
	return c
}

func orDefault(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

// Get implements the full §4.2 algorithm for key, calling load on a
// cache miss when this process wins the election.
func (c *Cache) Get(ctx context.Context, key string, load Loader) ([]string, error) {
	v, err := c.sf.do(key, func() ([]string, error) {
		return c.getLocked(ctx, key, load)
	})
	return v, err
}

func (c *Cache) getLocked(ctx context.Context, key string, load Loader) ([]string, error) {
	// Step 1: read K. If non-empty, return.
	if vals, err := c.read(ctx, key); err != nil {
		return nil, err
	} else if vals != nil {
		return vals, nil
	}

	lockKey := key + ".lock"
	token, won, err := c.store.AcquireLock(ctx, lockKey, c.lockTTL, 0)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, err, "acquire list-cache lock")
	}

	if won {
		metrics.CacheLoaderElections.WithLabelValues("winner").Inc()
		return c.runWinner(ctx, key, lockKey, token, load)
	}
	metrics.CacheLoaderElections.WithLabelValues("loser").Inc()
	return c.runLoser(ctx, key)
}

// runWinner executes the election winner's path: double-check, run
// the loader, write back, and release the lock on every exit path —
// including when the loader panics or errors.
func (c *Cache) runWinner(ctx context.Context, key, lockKey, token string, load Loader) (vals []string, err error) {
	defer func() {
		// Always release, even on panic, so a wedged loader never
		// leaves the key permanently un-loadable beyond T_lock.
		if r := recover(); r != nil {
			_ = c.store.Release(context.Background(), lockKey, token)
			panic(r)
		}
		_ = c.store.Release(context.Background(), lockKey, token)
	}()

	// Double-check: another writer may have completed between the
	// initial read and winning the lock.
	if cached, err := c.read(ctx, key); err != nil {
		return nil, err
	} else if cached != nil {
		return cached, nil
	}

	loaded, err := load(ctx)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("list cache loader failed")
		return nil, errs.Wrap(errs.KindInternal, err, "load list")
	}

	// Loader returning empty is not an error: the cache is simply not
	// populated, and the call returns empty (§4.2 edge case).
	if len(loaded) == 0 {
		return []string{}, nil
	}

	if err := c.store.ReplaceList(ctx, key, loaded, c.ttl); err != nil {
		return nil, errs.Wrap(errs.KindInternal, err, "write back list cache")
	}
	return loaded, nil
}

// runLoser polls K with jittered sleeps until it sees a value or
// T_follow_max elapses, at which point it fails ServiceBusy rather
// than falling through to the source — jittered polling is an
// explicit thundering-herd mitigation so losers don't wake in lockstep.
func (c *Cache) runLoser(ctx context.Context, key string) ([]string, error) {
	deadline := time.Now().Add(c.followMax)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.jitter()):
		}

		vals, err := c.read(ctx, key)
		if err != nil {
			return nil, err
		}
		if vals != nil {
			return vals, nil
		}
		if time.Now().After(deadline) {
			metrics.CacheFollowerTimeouts.Inc()
			return nil, errs.ServiceBusy(fmt.Sprintf("list cache follower timed out waiting for %q", key))
		}
	}
}

// read returns (nil, nil) on a cache miss and a non-nil (possibly
// empty) slice on a hit. Because a successful loader run never writes
// an empty list back (§4.2 edge case: an empty load leaves the key
// unpopulated), an empty LRange always means "miss" here too — the
// two cases are indistinguishable by design, and both should re-enter
// the election rather than be treated as a populated empty result.
func (c *Cache) read(ctx context.Context, key string) ([]string, error) {
	vals, err := c.store.LRange(ctx, key, 0, -1)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, err, "read list cache")
	}
	if len(vals) == 0 {
		return nil, nil
	}
	return vals, nil
}

func (c *Cache) jitter() time.Duration {
	span := c.pollMaxDelay - c.pollMinDelay
	if span <= 0 {
		return c.pollMinDelay
	}
	return c.pollMinDelay + time.Duration(rand.Int63n(int64(span)))
}
