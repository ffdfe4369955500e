package controller

import (
	"x-sub/web/service"

	"github.com/gin-gonic/gin"
)

// TrafficController 节点流量上报
type TrafficController struct {
	BaseController

	traffic *service.TrafficAggregator
}

func NewTrafficController(g *gin.RouterGroup, base BaseController, traffic *service.TrafficAggregator) *TrafficController {
	a := &TrafficController{BaseController: base, traffic: traffic}
	a.initRouter(g)
	return a
}

func (a *TrafficController) initRouter(g *gin.RouterGroup) {
	g.POST("/traffic-report", a.checkNodeKey(), a.report)
}

func (a *TrafficController) report(c *gin.Context) {
	report := &service.TrafficReport{}
	if err := c.ShouldBindJSON(report); err != nil {
		bindFailed(c, err)
		return
	}
	res, err := a.traffic.ApplyReport(c.Request.Context(), report)
	jsonObj(c, res, err)
}
