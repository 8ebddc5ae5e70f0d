package postgres

import (
	"time"

	"github.com/abhissng/conduit/adapters/log"
)

const (
	DefaultMaxConns          = 10
	DefaultMinConns          = 1
	DefaultHealthCheckPeriod = 30 * time.Second
)

// Options holds the pool settings.
type Options struct {
	dsn               string
	maxConns          int
	minConns          int
	maxConnIdleTime   time.Duration
	maxConnLifetime   time.Duration
	healthCheckPeriod time.Duration
	debugMode         bool
	logger            *log.Log
}

// Option modifies Options.
type Option func(*Options)

// NewOptions returns Options with defaults applied before opts.
func NewOptions(opts ...Option) *Options {
	o := &Options{
		maxConns:          DefaultMaxConns,
		minConns:          DefaultMinConns,
		healthCheckPeriod: DefaultHealthCheckPeriod,
		logger:            log.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithDSN sets the connection string.
func WithDSN(dsn string) Option {
	return func(o *Options) {
		o.dsn = dsn
	}
}

// WithMaxConns sets the maximum pool size.
func WithMaxConns(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.maxConns = n
		}
	}
}

// WithMinConns sets the number of connections kept open.
func WithMinConns(n int) Option {
	return func(o *Options) {
		if n >= 0 {
			o.minConns = n
		}
	}
}

// WithMaxConnIdleTime closes connections idle for longer than d.
func WithMaxConnIdleTime(d time.Duration) Option {
	return func(o *Options) {
		o.maxConnIdleTime = d
	}
}

// WithMaxConnLifetime recycles connections older than d.
func WithMaxConnLifetime(d time.Duration) Option {
	return func(o *Options) {
		o.maxConnLifetime = d
	}
}

// WithDebugMode logs every statement.
func WithDebugMode(debug bool) Option {
	return func(o *Options) {
		o.debugMode = debug
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Log) Option {
	return func(o *Options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// GetDSN returns the connection string.
func (o *Options) GetDSN() string {
	return o.dsn
}

// IsDebugMode reports whether statements are logged.
func (o *Options) IsDebugMode() bool {
	return o.debugMode
}

// GetLogger returns the configured logger.
func (o *Options) GetLogger() *log.Log {
	return o.logger
}
