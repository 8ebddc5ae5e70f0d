// Package respcache short-circuits read-only gateway sub-queries with
// previously stored responses.
package respcache

import (
	"context"
	"time"

	"github.com/abhissng/conduit/adapters/log"
	"github.com/abhissng/conduit/adapters/prometheus"
	"github.com/abhissng/conduit/stitch"
	"github.com/abhissng/conduit/utils/codec"
	"github.com/abhissng/conduit/utils/constant"
)

// DefaultTTL is how long a stored response is served. Mutations do not
// invalidate entries, so this bounds how stale a read can be.
const DefaultTTL = 60 * time.Second

// lookup results
const (
	resultHit    = "hit"
	resultMiss   = "miss"
	resultBypass = "bypass"
	resultDenied = "denied"
)

// HitAuthorizer re-checks a cached response against the current caller.
// A non-nil error sends the request to the backend instead.
type HitAuthorizer func(ctx context.Context, req *stitch.Request, resp *stitch.Response) error

// Cache stores successful query responses for a fixed TTL. Without a
// HitAuthorizer a hit is returned without any authorization check, even if
// the backend would have refused the current caller.
type Cache struct {
	store     Store
	ttl       time.Duration
	authorize HitAuthorizer
	logger    *log.Log
	metrics   *prometheus.MetricsCollector
}

// Option configures a Cache.
type Option func(*Cache)

func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithHitAuthorizer(fn HitAuthorizer) Option {
	return func(c *Cache) {
		c.authorize = fn
	}
}

func WithLogger(logger *log.Log) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithMetrics(mc *prometheus.MetricsCollector) Option {
	return func(c *Cache) {
		c.metrics = mc
	}
}

// New returns a cache over store.
func New(store Store, opts ...Option) *Cache {
	c := &Cache{store: store, ttl: DefaultTTL, logger: log.NewNopLogger()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Wrap returns an executor answering from the cache when it can. It is a
// stitch.Middleware.
func (c *Cache) Wrap(service string, next stitch.Executor) stitch.Executor {
	return stitch.ExecutorFunc(func(ctx context.Context, req *stitch.Request) (*stitch.Response, error) {
		return c.execute(ctx, service, next, req)
	})
}

func (c *Cache) execute(ctx context.Context, service string, next stitch.Executor, req *stitch.Request) (*stitch.Response, error) {
	key, cacheable, err := Key(service, req)
	if err != nil || !cacheable {
		c.metrics.ObserveCacheLookup(resultBypass)
		return next.Execute(ctx, req)
	}

	if resp, ok := c.lookup(ctx, key); ok {
		if c.authorize == nil || c.authorize(ctx, req, resp) == nil {
			c.metrics.ObserveCacheLookup(resultHit)
			c.logger.Debug(constant.CacheHit, log.String("service", service), log.String("key", key))
			return resp, nil
		}
		c.metrics.ObserveCacheLookup(resultDenied)
		return next.Execute(ctx, req)
	}

	c.metrics.ObserveCacheLookup(resultMiss)
	c.logger.Debug(constant.CacheMiss, log.String("service", service), log.String("key", key))
	resp, err := next.Execute(ctx, req)
	if err != nil || resp == nil || len(resp.Errors) > 0 {
		return resp, err
	}

	raw, err := codec.Encode(resp, codec.MessagePack)
	if err != nil {
		c.logger.Warn(constant.CacheStoreFailed, log.String("key", key), log.Err(err))
		return resp, nil
	}
	if err := c.store.Set(ctx, key, raw, c.ttl); err != nil {
		c.logger.Warn(constant.CacheStoreFailed, log.String("key", key), log.Err(err))
	}
	// answer from the stored form so a miss and a later hit are identical
	if stored, err := codec.Decode[*stitch.Response](raw, codec.MessagePack); err == nil {
		return stored, nil
	}
	return resp, nil
}

func (c *Cache) lookup(ctx context.Context, key string) (*stitch.Response, bool) {
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn(constant.CacheStoreFailed, log.String("key", key), log.Err(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	resp, err := codec.Decode[*stitch.Response](raw, codec.MessagePack)
	if err != nil || resp == nil {
		c.logger.Warn(constant.CacheStoreFailed, log.String("key", key), log.Err(err))
		return nil, false
	}
	return resp, true
}
