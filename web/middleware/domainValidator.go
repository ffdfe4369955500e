package middleware

import (
	"net"
	"net/http"
	"strings"

	"x-sub/logger"

	"github.com/gin-gonic/gin"
)

// DomainValidatorMiddleware 只放行 Host 与 domain 一致的请求（忽略端口与大小写）。
// IPv6 地址可写成 "::1" 或 "[::1]"
func DomainValidatorMiddleware(domain string) gin.HandlerFunc {
	want := normalizeHost(domain)
	return func(c *gin.Context) {
		got := normalizeHost(c.Request.Host)
		if got != want {
			logger.Warningf("[DomainValidator] reject host %q from %s", c.Request.Host, c.ClientIP())
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		c.Next()
	}
}

// normalizeHost 去掉端口和 IPv6 方括号，统一小写
func normalizeHost(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	return strings.ToLower(host)
}
