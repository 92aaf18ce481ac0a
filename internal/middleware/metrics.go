package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/syncroom-dev/syncroom/pkg/metrics"
)

// Metrics observes request latency per route template. Unmatched paths
// collapse into a single label so probing random URLs cannot inflate the
// series cardinality.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		metrics.APILatency.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
