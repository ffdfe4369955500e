package controller

import (
	"x-sub/web/entity"
	"x-sub/web/service"

	"github.com/gin-gonic/gin"
)

// NodeController 面向用户的节点状态与连通性测试
type NodeController struct {
	BaseController

	builder *service.SubscriptionBuilder
}

func NewNodeController(g *gin.RouterGroup, builder *service.SubscriptionBuilder) *NodeController {
	a := &NodeController{builder: builder}
	a.initRouter(g)
	return a
}

func (a *NodeController) initRouter(g *gin.RouterGroup) {
	g = g.Group("/nodes")
	g.GET("/status", a.status)
	g.POST("/test-connectivity", a.testConnectivity)
}

func (a *NodeController) status(c *gin.Context) {
	status, err := a.builder.NodeStatus(c.Request.Context(), c.Query("token"))
	jsonObj(c, status, err)
}

func (a *NodeController) testConnectivity(c *gin.Context) {
	form := &entity.ConnectivityForm{}
	if err := c.ShouldBind(form); err != nil {
		bindFailed(c, err)
		return
	}
	results, err := a.builder.TestSubscribeConnectivity(c.Request.Context(), form.Token, form.Limit)
	jsonObj(c, results, err)
}
