package nats

import (
	"time"

	"github.com/abhissng/conduit/adapters/events"
	"github.com/abhissng/conduit/adapters/log"
	"github.com/nats-io/nats.go"
)

// Option configures a Transport.
type Option func(*Transport)

// WithLogger sets the logger.
func WithLogger(logger *log.Log) Option {
	return func(t *Transport) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithName sets the connection name reported to the server.
func WithName(name string) Option {
	return func(t *Transport) {
		t.name = name
	}
}

// WithConnectAttempts bounds the attempts made by Connect.
func WithConnectAttempts(attempts int) Option {
	return func(t *Transport) {
		if attempts > 0 {
			t.attempts = attempts
		}
	}
}

// WithRetryDelay sets the fixed pause between connect attempts.
func WithRetryDelay(delay time.Duration) Option {
	return func(t *Transport) {
		if delay >= 0 {
			t.retryDelay = delay
		}
	}
}

// WithDrainTimeout bounds how long Disconnect waits for in-flight work.
func WithDrainTimeout(timeout time.Duration) Option {
	return func(t *Transport) {
		if timeout > 0 {
			t.drainTimeout = timeout
		}
	}
}

// WithOnDisconnect registers a hook fired when the connection drops
// without Disconnect having been called.
func WithOnDisconnect(hook func(err error)) Option {
	return func(t *Transport) {
		t.onDisconnect = hook
	}
}

// WithMiddleware adds consumer middleware, applied after panic recovery.
func WithMiddleware(middlewares ...events.Middleware) Option {
	return func(t *Transport) {
		t.middlewares = append(t.middlewares, middlewares...)
	}
}

// WithStreamStorage selects the storage backing durable queues.
func WithStreamStorage(storage nats.StorageType) Option {
	return func(t *Transport) {
		t.storage = storage
	}
}

// WithNATSOptions appends raw connection options.
// Reconnect related options are overridden.
func WithNATSOptions(opts ...nats.Option) Option {
	return func(t *Transport) {
		t.natsOpts = append(t.natsOpts, opts...)
	}
}
