package middleware

import (
	"net/http"

	"x-sub/logger"
	"x-sub/web/security"

	"github.com/gin-gonic/gin"
)

// RateLimitMiddleware 按客户端 IP 限速，超限返回 429
func RateLimitMiddleware(limiter security.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !limiter.Allow(ip) {
			logger.Debugf("rate limited request from %s to %s", ip, c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"success": false, "msg": "too many requests"})
			return
		}
		c.Next()
	}
}
