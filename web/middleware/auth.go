package middleware

import (
	"net/http"

	"x-sub/logger"
	"x-sub/util/crypto"
	"x-sub/web/security"

	"github.com/gin-gonic/gin"
)

const (
	NodeKeyHeader  = "X-Node-Key"
	AdminKeyHeader = "X-Admin-Key"
)

// KeyAuthMiddleware 校验请求头中的共享密钥。expected 可以是明文或 bcrypt 哈希；
// 未配置密钥时拒绝全部请求。guard 非空时连续失败的客户端会被暂时封禁
func KeyAuthMiddleware(header string, expected func() string, guard *security.AuthGuard) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if guard != nil && guard.IsBlocked(ip) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"success": false, "msg": "too many failed attempts"})
			return
		}
		if !crypto.CheckKey(expected(), c.GetHeader(header)) {
			logger.Warningf("unauthorized request to %s from %s", c.Request.URL.Path, ip)
			if guard != nil {
				guard.RecordFailure(ip)
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "msg": "unauthorized"})
			return
		}
		if guard != nil {
			guard.Reset(ip)
		}
		c.Next()
	}
}
