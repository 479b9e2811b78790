package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// BodyLimit bounds request body buffering. Reads past the limit fail
// inside the handler's bind call and surface as a 400.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
