package controller

import (
	"net/http"
	"strconv"

	"x-sub/config"
	"x-sub/web/middleware"
	"x-sub/web/security"

	"github.com/gin-gonic/gin"
)

// BaseController 提供鉴权与参数解析，guard 在同一 API 实例的控制器间共享
type BaseController struct {
	guard *security.AuthGuard
}

// checkNodeKey 节点接口鉴权
func (a *BaseController) checkNodeKey() gin.HandlerFunc {
	return middleware.KeyAuthMiddleware(middleware.NodeKeyHeader, config.GetNodeAPIKey, a.guard)
}

// checkAdminKey 管理接口鉴权
func (a *BaseController) checkAdminKey() gin.HandlerFunc {
	return middleware.KeyAuthMiddleware(middleware.AdminKeyHeader, config.GetAdminAPIKey, a.guard)
}

// paramID 解析路径中的 :id，失败时直接写出 400
func (a *BaseController) paramID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		pureJsonMsg(c, http.StatusBadRequest, false, "invalid id")
		return 0, false
	}
	return id, true
}
