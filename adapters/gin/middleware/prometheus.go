package middleware

import (
	"strconv"
	"time"

	"github.com/abhissng/conduit/adapters/prometheus"
	"github.com/abhissng/conduit/utils/constant"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// GinMiddleware returns a Gin middleware for collecting metrics
func GinMiddleware(mc *prometheus.MetricsCollector) gin.HandlerFunc {
	return func(c *gin.Context) {
		if mc == nil {
			c.Next()
			return
		}
		start := time.Now()

		mc.HttpRequestsInFlight().Inc()
		defer mc.HttpRequestsInFlight().Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		mc.ObserveHTTP(c.Request.Method, path, strconv.Itoa(c.Writer.Status()), time.Since(start), c.Writer.Size())
	}
}

// RegisterMetricsEndpoint registers the Prometheus metrics endpoint
func RegisterMetricsEndpoint(router gin.IRoutes, mc *prometheus.MetricsCollector) {
	router.GET(constant.MetricsEndpoint, gin.WrapH(promhttp.HandlerFor(
		mc.Registry(),
		promhttp.HandlerOpts{},
	)))
}
