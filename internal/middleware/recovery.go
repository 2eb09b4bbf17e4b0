package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/stwalsh4118/covenant/internal/logger"
)

// Recovery turns a panicking handler into a 500 response in the standard
// error envelope.
func Recovery(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			requestID := GetRequestID(c)
			requestLogger := GetLogger(c)
			if requestLogger == nil {
				requestLogger = log
			}

			requestLogger.Error("Panic recovered", fmt.Errorf("panic: %v", r), map[string]interface{}{
				"request_id": requestID,
				"method":     c.Request.Method,
				"route":      c.FullPath(),
				"stack":      string(debug.Stack()),
			})

			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": gin.H{
					"code":       "INTERNAL_SERVER_ERROR",
					"message":    "An unexpected error occurred",
					"request_id": requestID,
				},
			})
		}()

		c.Next()
	}
}
