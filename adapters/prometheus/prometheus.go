package prometheus

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// MetricsCollector owns a private registry holding the HTTP metrics of the
// gateway and the broker side metrics of rpc, oplog, projection and respcache.
// A nil *MetricsCollector is valid and records nothing.
type MetricsCollector struct {
	registry             *prometheus.Registry
	serviceName          string
	withProcessMetrics   bool
	requestCount         *prometheus.CounterVec
	requestDuration      *prometheus.HistogramVec
	responseSize         *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge
	rpcCalls             *prometheus.CounterVec
	rpcCallDuration      *prometheus.HistogramVec
	rpcServed            *prometheus.CounterVec
	oplogPublished       *prometheus.CounterVec
	projectionApplied    *prometheus.CounterVec
	cacheLookups         *prometheus.CounterVec
	backendRequests      *prometheus.CounterVec
	backendDuration      *prometheus.HistogramVec
	customMetrics        map[string]prometheus.Collector
}

// NewMetricsCollector creates a collector and registers the default metrics.
func NewMetricsCollector(options ...MetricsCollectorOptions) *MetricsCollector {
	collector := &MetricsCollector{
		registry:      prometheus.NewRegistry(),
		customMetrics: make(map[string]prometheus.Collector),
	}
	for _, option := range options {
		option(collector)
	}
	collector.registerDefaultMetrics()
	return collector
}

func (mc *MetricsCollector) namespace() string {
	return strings.NewReplacer("-", "_", ".", "_", " ", "_").Replace(mc.serviceName)
}

func (mc *MetricsCollector) registerDefaultMetrics() {
	ns := mc.namespace()
	httpLabels := []string{"method", "path", "status_code"}

	mc.requestCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests",
	}, httpLabels)
	mc.requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests",
		Buckets:   prometheus.DefBuckets,
	}, httpLabels)
	mc.responseSize = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns,
		Name:      "http_response_size_bytes",
		Help:      "Size of HTTP responses",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
	}, httpLabels)
	mc.httpRequestsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: ns,
		Name:      "http_requests_in_flight",
		Help:      "Current number of HTTP requests in flight",
	})

	mc.rpcCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "rpc_calls_total",
		Help:      "RPC calls issued, by target queue and outcome",
	}, []string{"queue", "outcome"})
	mc.rpcCallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns,
		Name:      "rpc_call_duration_seconds",
		Help:      "Time from publishing a call to its resolution",
		Buckets:   prometheus.DefBuckets,
	}, []string{"queue"})
	mc.rpcServed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "rpc_served_total",
		Help:      "Deliveries handled by an RPC server, by queue and outcome",
	}, []string{"queue", "outcome"})
	mc.oplogPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "oplog_published_total",
		Help:      "Operation records handed to replication queues, by outcome",
	}, []string{"outcome"})
	mc.projectionApplied = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "projection_applied_total",
		Help:      "Operation records applied to the projection store",
	}, []string{"operation", "outcome"})
	mc.cacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "cache_lookups_total",
		Help:      "Response cache lookups by result",
	}, []string{"result"})

	mc.backendRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "backend_requests_total",
		Help:      "Sub-queries sent by the gateway, by backend service and outcome",
	}, []string{"service", "outcome"})
	mc.backendDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns,
		Name:      "backend_request_duration_seconds",
		Help:      "Duration of gateway sub-queries",
		Buckets:   prometheus.DefBuckets,
	}, []string{"service"})

	mc.registry.MustRegister(
		mc.requestCount,
		mc.requestDuration,
		mc.responseSize,
		mc.httpRequestsInFlight,
		mc.rpcCalls,
		mc.rpcCallDuration,
		mc.rpcServed,
		mc.oplogPublished,
		mc.projectionApplied,
		mc.cacheLookups,
		mc.backendRequests,
		mc.backendDuration,
	)
	if mc.withProcessMetrics {
		mc.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
}

// ObserveHTTP records one finished HTTP request.
func (mc *MetricsCollector) ObserveHTTP(method, path, status string, elapsed time.Duration, size int) {
	if mc == nil {
		return
	}
	mc.requestCount.WithLabelValues(method, path, status).Inc()
	mc.requestDuration.WithLabelValues(method, path, status).Observe(elapsed.Seconds())
	if size > 0 {
		mc.responseSize.WithLabelValues(method, path, status).Observe(float64(size))
	}
}

// ObserveCall records one resolved RPC call.
func (mc *MetricsCollector) ObserveCall(queue, outcome string, elapsed time.Duration) {
	if mc == nil {
		return
	}
	mc.rpcCalls.WithLabelValues(queue, outcome).Inc()
	mc.rpcCallDuration.WithLabelValues(queue).Observe(elapsed.Seconds())
}

// ObserveServed records one delivery handled by an RPC server.
func (mc *MetricsCollector) ObserveServed(queue, outcome string) {
	if mc == nil {
		return
	}
	mc.rpcServed.WithLabelValues(queue, outcome).Inc()
}

// ObservePublish records one replication publish attempt.
func (mc *MetricsCollector) ObservePublish(outcome string) {
	if mc == nil {
		return
	}
	mc.oplogPublished.WithLabelValues(outcome).Inc()
}

// ObserveApply records one operation record reaching the applier.
func (mc *MetricsCollector) ObserveApply(operation, outcome string) {
	if mc == nil {
		return
	}
	mc.projectionApplied.WithLabelValues(operation, outcome).Inc()
}

// ObserveCacheLookup records a response cache hit, miss or bypass.
func (mc *MetricsCollector) ObserveCacheLookup(result string) {
	if mc == nil {
		return
	}
	mc.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveBackend records one gateway sub-query.
func (mc *MetricsCollector) ObserveBackend(service, outcome string, elapsed time.Duration) {
	if mc == nil {
		return
	}
	mc.backendRequests.WithLabelValues(service, outcome).Inc()
	mc.backendDuration.WithLabelValues(service).Observe(elapsed.Seconds())
}

// AddCustomMetric registers an extra collector under name.
func (mc *MetricsCollector) AddCustomMetric(name string, metric prometheus.Collector) {
	mc.customMetrics[name] = metric
	mc.registry.MustRegister(metric)
}

// GetCounter creates and registers a counter.
func (mc *MetricsCollector) GetCounter(name, help string) prometheus.Counter {
	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: mc.namespace(),
		Name:      name,
		Help:      help,
	})
	mc.AddCustomMetric(name, counter)
	return counter
}

// GetGauge creates and registers a gauge.
func (mc *MetricsCollector) GetGauge(name, help string) prometheus.Gauge {
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: mc.namespace(),
		Name:      name,
		Help:      help,
	})
	mc.AddCustomMetric(name, gauge)
	return gauge
}
