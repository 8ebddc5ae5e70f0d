package config

import (
	"github.com/abhissng/conduit/adapters/events"
	"github.com/abhissng/conduit/adapters/events/nats"
	"github.com/abhissng/conduit/adapters/log"
	"github.com/abhissng/conduit/adapters/prometheus"
	"github.com/abhissng/conduit/utils/helpers"
)

// NewLogger builds the process logger described by the log section.
func (c *Config) NewLogger() (*log.Log, error) {
	opts := []log.LoggerOption{
		log.WithServiceName(c.Service.Name),
		log.WithEnvironment(c.Service.Environment),
		log.WithLevel(log.LogLevel(c.Log.Level)),
	}
	if c.Log.File != "" {
		opts = append(opts, log.WithRotation(c.Log.File, c.Log.MaxSizeMB))
	}
	return log.NewLogger(log.NewLoggerConfig(helpers.IsProdEnvironment(), opts...))
}

// NewMetrics returns nil when metrics are disabled; every collector method
// accepts a nil receiver.
func (c *Config) NewMetrics() *prometheus.MetricsCollector {
	if !c.Metrics.Enabled {
		return nil
	}
	return prometheus.NewMetricsCollector(
		prometheus.WithServiceName(c.Service.Name),
		prometheus.WithProcessMetrics(),
	)
}

// NewTransport returns an unconnected NATS transport.
func (c *Config) NewTransport(logger *log.Log, opts ...nats.Option) *nats.Transport {
	opts = append([]nats.Option{
		nats.WithLogger(logger),
		nats.WithName(c.Service.Name),
		nats.WithConnectAttempts(c.Broker.ConnectAttempts),
		nats.WithRetryDelay(c.Broker.RetryDelay),
		nats.WithMiddleware(events.LogMiddleware(logger)),
	}, opts...)
	return nats.NewTransport(c.Broker.URL, opts...)
}
