package observability

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// MetricsEndpoint serves the Prometheus scrape handler. Without an exporter
// every scrape fails with 503.
func MetricsEndpoint(handler http.Handler) gin.HandlerFunc {
	if handler == nil {
		return func(c *gin.Context) {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error": "metrics exporter not initialized",
			})
		}
	}
	return gin.WrapH(handler)
}
