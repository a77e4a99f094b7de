package keyedstore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseScript atomically compares the stored token before deleting
// the lock key — the same "fencing token" idea as a CAS-based lease
// release: only the holder that set the token may clear it, so a lock
// re-acquired by someone else after TTL expiry is never stolen back.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

// redisStore is the production Store backed by a real Redis instance
// (or cluster) via github.com/redis/go-redis/v9.
type redisStore struct {
	rdb     redis.UniversalClient
	release *redis.Script
}

// NewRedis builds a Store over an existing go-redis client. Callers
// construct the client (single-node, sentinel, or cluster) themselves
// so dial/timeout options stay in main's wiring.
func NewRedis(rdb redis.UniversalClient) Store {
	return &redisStore{rdb: rdb, release: redis.NewScript(releaseScript)}
}

func (s *redisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *redisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.rdb.Set(ctx, key, value, ttl).Err()
}

func (s *redisStore) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return s.rdb.SetNX(ctx, key, value, ttl).Result()
}

func (s *redisStore) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.rdb.Del(ctx, keys...).Err()
}

func (s *redisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.rdb.Expire(ctx, key, ttl).Err()
}

func (s *redisStore) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return s.rdb.LRange(ctx, key, start, stop).Result()
}

func (s *redisStore) RPush(ctx context.Context, key string, values ...string) error {
	if len(values) == 0 {
		return nil
	}
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return s.rdb.RPush(ctx, key, args...).Err()
}

func (s *redisStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return s.rdb.HSet(ctx, key, args...).Err()
}

func (s *redisStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return s.rdb.HGetAll(ctx, key).Result()
}

func (s *redisStore) SAdd(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	return s.rdb.SAdd(ctx, key, args...).Err()
}

func (s *redisStore) SMembers(ctx context.Context, key string) ([]string, error) {
	return s.rdb.SMembers(ctx, key).Result()
}

// ReplaceList is the winner's write-back step (C2 §4.2 step 3): one
// pipelined transaction so followers never observe a partially
// written list.
func (s *redisStore) ReplaceList(ctx context.Context, key string, values []string, ttl time.Duration) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(values) > 0 {
			args := make([]any, len(values))
			for i, v := range values {
				args[i] = v
			}
			pipe.RPush(ctx, key, args...)
		}
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	return err
}

func (s *redisStore) AcquireLock(ctx context.Context, key string, ttl, blockingTimeout time.Duration) (string, bool, error) {
	token, err := randomToken()
	if err != nil {
		return "", false, err
	}

	ok, err := s.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	if ok {
		return token, true, nil
	}
	if blockingTimeout <= 0 {
		return "", false, nil
	}

	deadline := time.Now().Add(blockingTimeout)
	ticker := time.NewTicker(25 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return "", false, ctx.Err()
		case <-ticker.C:
			if time.Now().After(deadline) {
				return "", false, nil
			}
			ok, err := s.rdb.SetNX(ctx, key, token, ttl).Result()
			if err != nil {
				return "", false, err
			}
			if ok {
				return token, true, nil
			}
		}
	}
}

func (s *redisStore) Release(ctx context.Context, key, token string) error {
	_, err := s.release.Run(ctx, s.rdb, []string{key}, token).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

func (s *redisStore) Publish(ctx context.Context, channel, payload string) error {
	return s.rdb.Publish(ctx, channel, payload).Err()
}

func (s *redisStore) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	pubsub := s.rdb.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}
	out := make(chan string, 64)
	go func() {
		defer close(out)
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return &redisSubscription{pubsub: pubsub, out: out}, nil
}

func (s *redisStore) Close() error {
	return s.rdb.Close()
}

type redisSubscription struct {
	pubsub *redis.PubSub
	out    chan string
}

func (s *redisSubscription) Channel() <-chan string { return s.out }
func (s *redisSubscription) Close() error           { return s.pubsub.Close() }

func randomToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
