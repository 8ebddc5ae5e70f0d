package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a key is not found in Redis.
// This provides a distinct error type compared to the underlying redis.Nil.
var ErrNotFound = errors.New("rediswrapper: key not found")

const DefaultDialTimeout = 5 * time.Second

// Config holds the configuration for the Redis wrapper.
type Config struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// KeyPrefix is prepended to every key, so several deployments can share
	// one database.
	KeyPrefix   string        `mapstructure:"key_prefix"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// RedisManager provides a simplified interface over the go-redis client.
type RedisManager struct {
	client *redis.Client
	prefix string
}

// NewRedisManager creates the client and pings the server.
func NewRedisManager(ctx context.Context, cfg Config) (*RedisManager, error) {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})

	ctx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	return &RedisManager{client: rdb, prefix: cfg.KeyPrefix}, nil
}

// Client returns the underlying go-redis client instance for advanced use cases.
func (rw *RedisManager) Client() *redis.Client {
	return rw.client
}

func (rw *RedisManager) key(k string) string {
	return rw.prefix + k
}

// Set stores value under key. TTL of 0 means the key persists indefinitely.
func (rw *RedisManager) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := rw.client.Set(ctx, rw.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

// Get returns the bytes stored under key, or ErrNotFound.
func (rw *RedisManager) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := rw.client.Get(ctx, rw.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return val, nil
}

// Ping checks the server is reachable.
func (rw *RedisManager) Ping(ctx context.Context) error {
	return rw.client.Ping(ctx).Err()
}

// Close closes the underlying Redis client connection.
func (rw *RedisManager) Close() error {
	if rw.client != nil {
		return rw.client.Close()
	}
	return nil
}
