// Package idempotency implements the idempotency gate (C3): a
// handler annotated as idempotent accepts a client-supplied
// Idempotency-Key header, and the wrapped handler body executes
// exactly once across concurrent and retried invocations within
// T_idem; all other invocations observe either an in-progress
// sentinel or the prior response.
//
// Grounded on the other_examples idempotency middleware
// (forgo-saga api/internal/middleware/idempotency.go), which wraps
// http.Handler with an in-memory PROCESSING/DONE map keyed by a
// request fingerprint; this version generalizes that in-process map to
// the keyed store (C1) so the guarantee holds across replicas of this
// service, and narrows the sentinel model to the spec's exact
// PROCESSING/DONE(payload) states rather than a free-form cache entry.
package idempotency

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"medschool-core/internal/errs"
	"medschool-core/internal/keyedstore"
	"medschool-core/internal/metrics"
)

const processingSentinel = "\x00PROCESSING"

// Handler is the wrapped business logic: it either succeeds with a
// JSON-serializable response or returns an error.
type Handler func(ctx context.Context) (response any, err error)

// Gate wraps Handler invocations with the idempotency guarantee.
type Gate struct {
	store keyedstore.Store
	log   zerolog.Logger
	ttl   time.Duration
}

// New builds a Gate. ttl defaults to 24h (T_idem) if zero.
func New(store keyedstore.Store, log zerolog.Logger, ttl time.Duration) *Gate {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Gate{store: store, log: log.With().Str("component", "idempotency").Logger(), ttl: ttl}
}

// Run executes handler under the idempotency guarantee for key. If
// key is empty, handler runs directly — the spec's intentional
// opt-in model: callers that omit the header forgo the guarantee.
func (g *Gate) Run(ctx context.Context, key string, handler Handler) (any, error) {
	if key == "" {
		g.log.Debug().Msg("no Idempotency-Key supplied; executing without a guarantee")
		return handler(ctx)
	}
	return g.runKeyed(ctx, "idem:"+key, handler)
}

// ForceExpire deletes the idempotency record for key, regardless of
// its current state. Used by the operator CLI to unstick a caller
// stuck behind a stale PROCESSING record left by a crashed winner.
func (g *Gate) ForceExpire(ctx context.Context, key string) error {
	if err := g.store.Del(ctx, "idem:"+key); err != nil {
		return errs.Wrap(errs.KindInternal, err, "force-expire idempotency key")
	}
	return nil
}

func (g *Gate) runKeyed(ctx context.Context, storeKey string, handler Handler) (any, error) {
	won, err := g.store.SetIfAbsent(ctx, storeKey, processingSentinel, g.ttl)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, err, "idempotency setnx")
	}

	if won {
		metrics.IdempotencyOutcomes.WithLabelValues("winner").Inc()
		return g.runWinner(ctx, storeKey, handler)
	}
	metrics.IdempotencyOutcomes.WithLabelValues("loser").Inc()
	return g.readLoser(ctx, storeKey, handler)
}

// runWinner executes handler exactly once. On success the PROCESSING
// sentinel is overwritten with the serialized response at the same
// TTL; on failure the record is deleted so a genuine retry may proceed
// — a failed request is not a binding result.
func (g *Gate) runWinner(ctx context.Context, storeKey string, handler Handler) (any, error) {
	resp, err := handler(ctx)
	if err != nil {
		if delErr := g.store.Del(context.Background(), storeKey); delErr != nil {
			g.log.Error().Err(delErr).Str("key", storeKey).Msg("failed to clear idempotency record after handler error")
		}
		return nil, err
	}

	payload, marshalErr := json.Marshal(resp)
	if marshalErr != nil {
		_ = g.store.Del(context.Background(), storeKey)
		return nil, errs.Wrap(errs.KindInternal, marshalErr, "serialize idempotent response")
	}
	if err := g.store.Set(ctx, storeKey, string(payload), g.ttl); err != nil {
		g.log.Error().Err(err).Str("key", storeKey).Msg("failed to persist DONE idempotency record")
	}
	return resp, nil
}

// readLoser reads the current record. PROCESSING means another
// worker is still computing and the caller must back off (409);
// a stored payload is returned verbatim; an absent key (TTL expired
// between SETNX and GET) is treated as a brand-new request.
func (g *Gate) readLoser(ctx context.Context, storeKey string, handler Handler) (any, error) {
	val, found, err := g.store.Get(ctx, storeKey)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, err, "idempotency read")
	}
	if !found {
		return g.runKeyed(ctx, storeKey, handler)
	}
	if val == processingSentinel {
		metrics.IdempotencyOutcomes.WithLabelValues("conflict").Inc()
		return nil, errs.Conflict("request with this idempotency key is still in progress")
	}

	var decoded any
	if err := json.Unmarshal([]byte(val), &decoded); err != nil {
		return nil, errs.Wrap(errs.KindInternal, err, "decode stored idempotent response")
	}
	return decoded, nil
}
