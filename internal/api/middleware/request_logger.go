package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

// RequestLogger emits one structured line per handled request.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		GetRequestLogger(c).WithFields(map[string]interface{}{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       SanitizePath(c.Request.URL.Path),
			"latency_ms": time.Since(start).Milliseconds(),
			"client":     c.ClientIP(),
		}).Info("request completed")
	}
}
