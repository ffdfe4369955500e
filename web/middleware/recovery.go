package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"
	"syscall"

	"x-sub/config"
	"x-sub/logger"
	"x-sub/web/entity"

	"github.com/gin-gonic/gin"
)

// RecoveryMiddleware 捕获处理器中的 panic，返回 500 与统一的 JSON 响应。
// 客户端断开（EPIPE/ECONNRESET）只记录不回写
func RecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			route := c.Request.Method + " " + c.FullPath()

			if err, ok := rec.(error); ok && clientGone(err) {
				logger.Warningf("[PANIC RECOVER] %s: client gone: %v", route, err)
				_ = c.Error(err)
				c.Abort()
				return
			}

			if config.IsDebug() {
				logger.Errorf("[PANIC RECOVER] %s: %v\n%s", route, rec, debug.Stack())
			} else {
				logger.Errorf("[PANIC RECOVER] %s: %v", route, rec)
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, entity.Msg{
				Success: false,
				Msg:     "internal error",
			})
		}()
		c.Next()
	}
}

func clientGone(err error) bool {
	return errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET)
}
