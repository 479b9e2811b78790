package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"volt/internal/infrastructure/ratelimit"
	"volt/internal/shared/logger"
	"volt/internal/shared/utils"
)

// RateLimit enforces the named group budgets for one route, keyed by
// client IP. If any group is exhausted the request is answered 429 with
// a Retry-After hint and the handler never runs. Limiter errors fail
// open so a rate-limit outage cannot take down all traffic.
func RateLimit(limiter ratelimit.Limiter, groups []string, log logger.Interface) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := c.ClientIP()

		for _, group := range groups {
			result, err := limiter.Allow(c.Request.Context(), identity, group)
			if err != nil {
				log.Warnw("rate limiter unavailable, allowing request", "group", group, "error", err)
				continue
			}
			if !result.Allowed {
				retryAfter := int(result.RetryAfter.Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				c.Header("Retry-After", strconv.Itoa(retryAfter))
				utils.ErrorResponse(c, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
				c.Abort()
				return
			}
		}
		c.Next()
	}
}
