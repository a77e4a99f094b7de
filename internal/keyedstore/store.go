// Package keyedstore gives every coordination primitive in this
// service (C2 singleflight cache, C3 idempotency gate, C7 chat
// session memory) one uniform view over an external keyed service
// with atomic conditional-set, list/hash/set ops, pub/sub, and a lock
// primitive — instead of each one importing a Redis client directly.
// All ops are asynchronous and cancellation-aware: every method takes
// a context.Context.
package keyedstore

import (
	"context"
	"time"
)

// Store is the facade every coordination primitive depends on (C1).
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// SetIfAbsent is an atomic SETNX; it returns false without error
	// if the key was already present.
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	Expire(ctx context.Context, key string, ttl time.Duration) error

	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	RPush(ctx context.Context, key string, values ...string) error

	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	SAdd(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)

	// ReplaceList performs `DEL key; RPUSH key values...; EXPIRE key ttl`
	// as one pipelined, best-effort-atomic transaction — the write-back
	// step of the singleflight list cache (C2 step 3).
	ReplaceList(ctx context.Context, key string, values []string, ttl time.Duration) error

	// AcquireLock attempts a non-blocking SETNX-with-TTL lock and
	// returns an opaque token identifying this holder, or ok=false if
	// another holder already owns the lock. blockingTimeout, if > 0,
	// polls until the lock is free or the timeout elapses.
	AcquireLock(ctx context.Context, key string, ttl, blockingTimeout time.Duration) (token string, ok bool, err error)
	// Release is a no-op (no error) if token no longer matches the
	// current holder — protects against releasing a lock that was
	// re-acquired by someone else after this holder's TTL expired.
	Release(ctx context.Context, key, token string) error

	Publish(ctx context.Context, channel, payload string) error
	Subscribe(ctx context.Context, channel string) (Subscription, error)

	Close() error
}

// Subscription is a live pub/sub channel subscription.
type Subscription interface {
	// Channel streams payloads. The Redis implementation stops and
	// closes it when the Subscribe context is cancelled or Close is
	// called; the local implementation ignores the context, and its
	// Close stops delivery without closing the channel.
	Channel() <-chan string
	Close() error
}
