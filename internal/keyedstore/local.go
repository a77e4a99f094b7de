package keyedstore

// localStore is a single-process, WAL-durable implementation of Store
// used for local development and tests that don't want a live Redis —
// the same role github.com/alicebob/miniredis/v2 plays in several of
// the retrieved example repos (gravitational-teleport, jordigilh-kubernaut,
// evalgo-org-eve). Unlike those, this one is grounded directly on the
// teacher's own storage engine (internal/store.Store: RWMutex-guarded
// map, WAL-first writes, crash recovery by replay) generalized from a
// single string Value to the facade's full string/list/hash/set model.
//
// Vector clocks and multi-replica conflict resolution are deliberately
// not carried over: a single process has no replicas to reconcile
// against, and the spec's Non-goals exclude a new consensus story.

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

type localEntry struct {
	kind      string // "string", "list", "hash", "set"
	str       string
	list      []string
	hash      map[string]string
	set       map[string]struct{}
	expiresAt time.Time // zero = no expiry
}

func (e *localEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

type localStore struct {
	mu   sync.RWMutex
	data map[string]*localEntry
	wal  *localWAL

	subMu sync.Mutex
	subs  map[string][]chan string
}

// NewLocal builds an in-memory Store. If walPath is non-empty, every
// mutation is durably logged there before it touches memory, and
// existing entries are replayed into memory on construction — the
// teacher's New()/replayWAL() sequence, generalized.
func NewLocal(walPath string) (Store, error) {
	s := &localStore{
		data: make(map[string]*localEntry),
		subs: make(map[string][]chan string),
	}
	w, err := newLocalWAL(walPath)
	if err != nil {
		return nil, fmt.Errorf("open local wal: %w", err)
	}
	s.wal = w

	entries, err := w.readAll()
	if err != nil {
		return nil, fmt.Errorf("replay local wal: %w", err)
	}
	for _, e := range entries {
		s.applyReplay(e)
	}
	return s, nil
}

func (s *localStore) applyReplay(e localWALEntry) {
	var ttl time.Duration
	if e.TTLMS > 0 {
		ttl = time.Duration(e.TTLMS) * time.Millisecond
	}
	switch e.Op {
	case opSet:
		s.data[e.Key] = &localEntry{kind: "string", str: e.Value, expiresAt: expiryFor(ttl)}
	case opDel:
		delete(s.data, e.Key)
	case opRPush:
		ent, ok := s.data[e.Key]
		if !ok || ent.kind != "list" {
			ent = &localEntry{kind: "list"}
			s.data[e.Key] = ent
		}
		ent.list = append(ent.list, e.Values...)
	case opHSet:
		ent, ok := s.data[e.Key]
		if !ok || ent.kind != "hash" {
			ent = &localEntry{kind: "hash", hash: map[string]string{}}
			s.data[e.Key] = ent
		}
		for k, v := range e.Fields {
			ent.hash[k] = v
		}
	case opSAdd:
		ent, ok := s.data[e.Key]
		if !ok || ent.kind != "set" {
			ent = &localEntry{kind: "set", set: map[string]struct{}{}}
			s.data[e.Key] = ent
		}
		for _, m := range e.Values {
			ent.set[m] = struct{}{}
		}
	case opExpire:
		if ent, ok := s.data[e.Key]; ok {
			ent.expiresAt = expiryFor(ttl)
		}
	}
}

func expiryFor(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return time.Now().Add(ttl)
}

func (s *localStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[key]
	if !ok || e.kind != "string" || e.expired(time.Now()) {
		return "", false, nil
	}
	return e.str, true, nil
}

func (s *localStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.wal.append(localWALEntry{Op: opSet, Key: key, Value: value, TTLMS: ttl.Milliseconds()}); err != nil {
		return err
	}
	s.data[key] = &localEntry{kind: "string", str: value, expiresAt: expiryFor(ttl)}
	return nil
}

func (s *localStore) SetIfAbsent(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if e, ok := s.data[key]; ok && !e.expired(now) {
		return false, nil
	}
	if err := s.wal.append(localWALEntry{Op: opSet, Key: key, Value: value, TTLMS: ttl.Milliseconds()}); err != nil {
		return false, err
	}
	s.data[key] = &localEntry{kind: "string", str: value, expiresAt: expiryFor(ttl)}
	return true, nil
}

func (s *localStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		if err := s.wal.append(localWALEntry{Op: opDel, Key: k}); err != nil {
			return err
		}
		delete(s.data, k)
	}
	return nil
}

func (s *localStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.wal.append(localWALEntry{Op: opExpire, Key: key, TTLMS: ttl.Milliseconds()}); err != nil {
		return err
	}
	if e, ok := s.data[key]; ok {
		e.expiresAt = expiryFor(ttl)
	}
	return nil
}

func (s *localStore) LRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[key]
	if !ok || e.kind != "list" || e.expired(time.Now()) {
		return nil, nil
	}
	return sliceRange(e.list, start, stop), nil
}

func sliceRange(list []string, start, stop int64) []string {
	n := int64(len(list))
	if n == 0 {
		return nil
	}
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop || start >= n {
		return nil
	}
	out := make([]string, stop-start+1)
	copy(out, list[start:stop+1])
	return out
}

func (s *localStore) RPush(_ context.Context, key string, values ...string) error {
	if len(values) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.wal.append(localWALEntry{Op: opRPush, Key: key, Values: values}); err != nil {
		return err
	}
	e, ok := s.data[key]
	if !ok || e.kind != "list" {
		e = &localEntry{kind: "list"}
		s.data[key] = e
	}
	e.list = append(e.list, values...)
	return nil
}

func (s *localStore) HSet(_ context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.wal.append(localWALEntry{Op: opHSet, Key: key, Fields: fields}); err != nil {
		return err
	}
	e, ok := s.data[key]
	if !ok || e.kind != "hash" {
		e = &localEntry{kind: "hash", hash: map[string]string{}}
		s.data[key] = e
	}
	for k, v := range fields {
		e.hash[k] = v
	}
	return nil
}

func (s *localStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[key]
	if !ok || e.kind != "hash" || e.expired(time.Now()) {
		return map[string]string{}, nil
	}
	out := make(map[string]string, len(e.hash))
	for k, v := range e.hash {
		out[k] = v
	}
	return out, nil
}

func (s *localStore) SAdd(_ context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.wal.append(localWALEntry{Op: opSAdd, Key: key, Values: members}); err != nil {
		return err
	}
	e, ok := s.data[key]
	if !ok || e.kind != "set" {
		e = &localEntry{kind: "set", set: map[string]struct{}{}}
		s.data[key] = e
	}
	for _, m := range members {
		e.set[m] = struct{}{}
	}
	return nil
}

func (s *localStore) SMembers(_ context.Context, key string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[key]
	if !ok || e.kind != "set" || e.expired(time.Now()) {
		return nil, nil
	}
	out := make([]string, 0, len(e.set))
	for m := range e.set {
		out = append(out, m)
	}
	return out, nil
}

// ReplaceList mirrors the Redis implementation's pipelined
// del-then-rpush-then-expire, but since this store is single-process
// the in-process mutex already gives us the same atomicity the Redis
// transaction provides across a network.
func (s *localStore) ReplaceList(_ context.Context, key string, values []string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.wal.append(localWALEntry{Op: opDel, Key: key}); err != nil {
		return err
	}
	if err := s.wal.append(localWALEntry{Op: opRPush, Key: key, Values: values}); err != nil {
		return err
	}
	if err := s.wal.append(localWALEntry{Op: opExpire, Key: key, TTLMS: ttl.Milliseconds()}); err != nil {
		return err
	}
	s.data[key] = &localEntry{kind: "list", list: append([]string(nil), values...), expiresAt: expiryFor(ttl)}
	return nil
}

func (s *localStore) AcquireLock(ctx context.Context, key string, ttl, blockingTimeout time.Duration) (string, bool, error) {
	token, err := randomToken()
	if err != nil {
		return "", false, err
	}
	if ok, err := s.SetIfAbsent(ctx, key, token, ttl); err != nil || ok {
		return token, ok, err
	}
	if blockingTimeout <= 0 {
		return "", false, nil
	}

	deadline := time.Now().Add(blockingTimeout)
	for {
		select {
		case <-ctx.Done():
			return "", false, ctx.Err()
		case <-time.After(jitter(20, 40)):
			if time.Now().After(deadline) {
				return "", false, nil
			}
			ok, err := s.SetIfAbsent(ctx, key, token, ttl)
			if err != nil {
				return "", false, err
			}
			if ok {
				return token, true, nil
			}
		}
	}
}

func (s *localStore) Release(_ context.Context, key, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[key]
	if !ok || e.kind != "string" || e.str != token {
		return nil // stale token — no-op, same as the Redis Lua guard
	}
	_ = s.wal.append(localWALEntry{Op: opDel, Key: key})
	delete(s.data, key)
	return nil
}

func (s *localStore) Publish(_ context.Context, channel, payload string) error {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs[channel] {
		select {
		case ch <- payload:
		default:
		}
	}
	return nil
}

func (s *localStore) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	out := make(chan string, 64)
	s.subMu.Lock()
	s.subs[channel] = append(s.subs[channel], out)
	s.subMu.Unlock()

	return &localSubscription{store: s, channel: channel, ch: out}, nil
}

func (s *localStore) removeSub(channel string, ch chan string) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	subs := s.subs[channel]
	for i, c := range subs {
		if c == ch {
			s.subs[channel] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
}

func (s *localStore) Close() error {
	return s.wal.close()
}

type localSubscription struct {
	store   *localStore
	channel string
	ch      chan string
}

func (s *localSubscription) Channel() <-chan string { return s.ch }

func (s *localSubscription) Close() error {
	s.store.removeSub(s.channel, s.ch)
	return nil
}

func jitter(minMS, maxMS int64) time.Duration {
	return time.Duration(minMS+rand.Int63n(maxMS-minMS+1)) * time.Millisecond
}
