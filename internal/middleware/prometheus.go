package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/backbill/chronicle/internal/metrics"
)

// PrometheusMiddleware records request count and latency per route. The label
// uses the route pattern (/api/v1/entities/:id), not the concrete path, so
// entity IDs don't blow up label cardinality.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		status := strconv.Itoa(c.Writer.Status())

		elapsed := time.Since(start).Seconds()
		metrics.RequestDuration.WithLabelValues(c.Request.Method, route, status).Observe(elapsed)
		metrics.RequestsTotal.WithLabelValues(c.Request.Method, route, status).Inc()
	}
}
