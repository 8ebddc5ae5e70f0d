package prometheus

import "github.com/prometheus/client_golang/prometheus"

// MetricsCollectorOptions defines the options for configuring MetricsCollector.
type MetricsCollectorOptions func(*MetricsCollector)

// WithServiceName sets the namespace every metric name is prefixed with.
func WithServiceName(serviceName string) MetricsCollectorOptions {
	return func(collector *MetricsCollector) {
		collector.serviceName = serviceName
	}
}

// WithRegistry replaces the private registry.
func WithRegistry(registry *prometheus.Registry) MetricsCollectorOptions {
	return func(collector *MetricsCollector) {
		collector.registry = registry
	}
}

// WithProcessMetrics also registers the Go runtime and process collectors.
func WithProcessMetrics() MetricsCollectorOptions {
	return func(collector *MetricsCollector) {
		collector.withProcessMetrics = true
	}
}

// ServiceName returns the service name.
func (collector *MetricsCollector) ServiceName() string {
	return collector.serviceName
}

// Registry returns the Prometheus registry.
func (collector *MetricsCollector) Registry() *prometheus.Registry {
	return collector.registry
}

// HttpRequestsInFlight returns the gauge metric for the number of HTTP requests in flight.
func (collector *MetricsCollector) HttpRequestsInFlight() prometheus.Gauge {
	return collector.httpRequestsInFlight
}

// CustomMetrics returns the custom metrics.
func (collector *MetricsCollector) CustomMetrics() map[string]prometheus.Collector {
	return collector.customMetrics
}
