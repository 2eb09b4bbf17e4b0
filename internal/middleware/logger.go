package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stwalsh4118/covenant/internal/logger"
)

// loggerKey is the gin context key holding the request-scoped logger.
const loggerKey = "logger"

// Logger creates a middleware that logs every request once it completes. The
// request-scoped logger is stored in the context for handlers.
func Logger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestLogger := log.WithRequestID(GetRequestID(c))
		c.Set(loggerKey, requestLogger)

		c.Next()

		status := c.Writer.Status()
		fields := map[string]interface{}{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"route":       c.FullPath(),
			"status":      status,
			"duration_ms": time.Since(start).Milliseconds(),
			"ip":          c.ClientIP(),
		}
		if len(c.Request.URL.RawQuery) > 0 {
			fields["query"] = c.Request.URL.RawQuery
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}

		switch {
		case status >= 500:
			requestLogger.Error("Request completed with server error", nil, fields)
		case status >= 400:
			requestLogger.Warn("Request completed with client error", fields)
		default:
			requestLogger.Info("Request completed", fields)
		}
	}
}

// GetLogger retrieves the request logger from the Gin context.
// Returns nil if not found.
func GetLogger(c *gin.Context) *logger.Logger {
	if v, exists := c.Get(loggerKey); exists {
		if l, ok := v.(*logger.Logger); ok {
			return l
		}
	}
	return nil
}
