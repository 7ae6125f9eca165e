package ratelimit

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Middleware rejects clients that exceed the per-second limit for scope.
func Middleware(m *Manager, scope Scope) gin.HandlerFunc {
	return func(c *gin.Context) {
		result := m.Allow(c.Request.Context(), scope, c.ClientIP())
		if !result.Reset.IsZero() {
			c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		}
		if !result.Allowed {
			// Windows are one second wide.
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests", "code": "rate_limited"})
			return
		}
		c.Next()
	}
}
