package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"volt/internal/shared/logger"
)

// Logging emits exactly one terminal log line per request: method,
// path, final status, and caller IP. Severity follows the status class.
func Logging(log logger.Interface) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		args := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		if uid, exists := c.Get(ContextUID); exists {
			args = append(args, "uid", uid)
		}

		switch {
		case status >= 500:
			log.Errorw("request completed", args...)
		case status >= 400:
			log.Warnw("request completed", args...)
		default:
			log.Infow("request completed", args...)
		}
	}
}
