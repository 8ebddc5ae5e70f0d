package gateway

import (
	"context"
	"time"

	"github.com/abhissng/conduit/adapters/gin/middleware"
	"github.com/abhissng/conduit/adapters/log"
	"github.com/abhissng/conduit/adapters/prometheus"
	"github.com/abhissng/conduit/utils/constant"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = ":4000"

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger for the server
func WithLogger(logger *log.Log) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics records HTTP metrics and serves them on /metrics.
func WithMetrics(mc *prometheus.MetricsCollector) Option {
	return func(s *Server) {
		s.metrics = mc
	}
}

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(s *Server) {
		s.addr = addr
	}
}

// WithJWT enables bearer token validation on the GraphQL route.
func WithJWT(cfg middleware.JWTConfig) Option {
	return func(s *Server) {
		s.jwt = &cfg
	}
}

// WithBodyLogging logs request and response bodies.
func WithBodyLogging(enabled bool) Option {
	return func(s *Server) {
		s.logBodies = enabled
	}
}

// WithHealthCheck adds a named dependency check to /healthz.
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(s *Server) {
		s.checks[name] = check
	}
}

// WithGracefulTimeOut bounds how long Run waits for in-flight requests.
func WithGracefulTimeOut(timeout time.Duration) Option {
	return func(s *Server) {
		s.gracefulTimeOut = timeout
	}
}

func defaultServer() *Server {
	return &Server{
		addr:            DefaultAddr,
		logger:          log.NewNopLogger(),
		checks:          make(map[string]HealthCheck),
		gracefulTimeOut: constant.ServerDefaultGracefulTime,
	}
}
