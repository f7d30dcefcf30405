package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/railmadad/complaint-api/internal/service"
)

const unmatchedRoute = "unmatched"

var unobservedRoutes = map[string]struct{}{
	"/metrics": {},
	"/health":  {},
	"/ready":   {},
}

// Metrics records request latency per route template. Requests that match no
// route share a single label.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if _, skip := unobservedRoutes[route]; skip {
			return
		}
		if route == "" {
			route = unmatchedRoute
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
