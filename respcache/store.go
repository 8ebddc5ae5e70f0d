package respcache

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/abhissng/conduit/adapters/redis"
	"github.com/abhissng/conduit/utils/cache"
)

// Store holds encoded responses.
type Store interface {
	// Get returns the value under key and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// LRUStore keeps entries in a bounded in-process LRU.
type LRUStore struct {
	lru *cache.LRUCache[string, []byte]
}

var _ Store = (*LRUStore)(nil)

// NewLRUStore returns a store holding at most size entries.
func NewLRUStore(size int) *LRUStore {
	return &LRUStore{lru: cache.NewLRUCache[string, []byte](size)}
}

func (s *LRUStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := s.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	return bytes.Clone(v), true, nil
}

func (s *LRUStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.lru.SetWithExpiry(key, bytes.Clone(value), ttl)
	return nil
}

// Len returns the number of entries held.
func (s *LRUStore) Len() int {
	return s.lru.Len()
}

// Close stops the expiry sweep.
func (s *LRUStore) Close() {
	s.lru.StopCleanup()
}

// RedisStore shares entries between gateway replicas through Redis.
type RedisStore struct {
	rm *redis.RedisManager
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(rm *redis.RedisManager) *RedisStore {
	return &RedisStore{rm: rm}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := s.rm.Get(ctx, key)
	if errors.Is(err, redis.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.rm.Set(ctx, key, value, ttl)
}
