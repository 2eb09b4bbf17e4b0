package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stwalsh4118/covenant/internal/metrics"
)

// Metrics records the duration of every request by route template, so
// /properties/:id is one series no matter how many properties exist.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveHTTPRequest(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
