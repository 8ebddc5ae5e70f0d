package stitch

import (
	"github.com/abhissng/conduit/adapters/log"
	"github.com/abhissng/conduit/adapters/prometheus"
)

type settings struct {
	logger      *log.Log
	metrics     *prometheus.MetricsCollector
	debug       bool
	middlewares []Middleware
}

// Option configures a Stitcher.
type Option func(*settings)

func newSettings(opts []Option) *settings {
	cfg := &settings{logger: log.NewNopLogger()}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithLogger sets the logger.
func WithLogger(logger *log.Log) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records backend call outcomes.
func WithMetrics(mc *prometheus.MetricsCollector) Option {
	return func(s *settings) {
		s.metrics = mc
	}
}

// WithDebug keeps backend error detail in responses.
func WithDebug(debug bool) Option {
	return func(s *settings) {
		s.debug = debug
	}
}

// WithMiddleware wraps every backend executor. The first middleware is the
// outermost.
func WithMiddleware(mw ...Middleware) Option {
	return func(s *settings) {
		s.middlewares = append(s.middlewares, mw...)
	}
}
