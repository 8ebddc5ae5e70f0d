package rpc

import (
	"time"

	"github.com/abhissng/conduit/adapters/log"
	"github.com/abhissng/conduit/adapters/prometheus"
	"github.com/sony/gobreaker"
)

const (
	// DefaultCallTimeout applies to Invoke when ctx carries no deadline.
	DefaultCallTimeout = 30 * time.Second
	// DefaultPrefetch is the RPC convention of one delivery in flight per queue.
	DefaultPrefetch = 1
)

// outcome labels
const (
	outcomeOK       = "ok"
	outcomeError    = "error"
	outcomeTimeout  = "timeout"
	outcomeClosed   = "closed"
	outcomeRejected = "rejected"
	outcomeRequeued = "requeued"
)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithClientLogger sets the client logger.
func WithClientLogger(logger *log.Log) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClientMetrics records call outcomes and latency.
func WithClientMetrics(mc *prometheus.MetricsCollector) ClientOption {
	return func(c *Client) {
		c.metrics = mc
	}
}

// WithBreaker replaces the publish circuit breaker.
func WithBreaker(breaker *gobreaker.CircuitBreaker) ClientOption {
	return func(c *Client) {
		if breaker != nil {
			c.breaker = breaker
		}
	}
}

// WithCallTimeout sets the timeout Invoke applies when ctx has no deadline.
func WithCallTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger sets the server logger.
func WithServerLogger(logger *log.Log) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithServerMetrics records served deliveries by outcome.
func WithServerMetrics(mc *prometheus.MetricsCollector) ServerOption {
	return func(s *Server) {
		s.metrics = mc
	}
}

type serveConfig struct {
	durable  bool
	prefetch int
	consumer string
}

// ServeOption configures a single Serve call.
type ServeOption func(*serveConfig)

// WithDurableQueue declares the served queue durable.
func WithDurableQueue() ServeOption {
	return func(c *serveConfig) {
		c.durable = true
	}
}

// WithPrefetch overrides the in-flight limit of the consumer.
func WithPrefetch(n int) ServeOption {
	return func(c *serveConfig) {
		if n > 0 {
			c.prefetch = n
		}
	}
}

// WithConsumerName names the durable consumer; defaults to the queue name.
func WithConsumerName(name string) ServeOption {
	return func(c *serveConfig) {
		c.consumer = name
	}
}
