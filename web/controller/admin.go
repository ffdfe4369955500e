package controller

import (
	"net/http"

	"x-sub/database/model"
	"x-sub/web/entity"
	"x-sub/web/service"

	"github.com/gin-gonic/gin"
)

// AdminController 节点、节点组、入口覆盖、优惠券与用户套餐的管理接口
type AdminController struct {
	BaseController

	nodes   *service.NodeRegistry
	coupons *service.CouponLedger
	quota   *service.QuotaEnforcer
}

func NewAdminController(
	g *gin.RouterGroup,
	base BaseController,
	nodes *service.NodeRegistry,
	coupons *service.CouponLedger,
	quota *service.QuotaEnforcer,
) *AdminController {
	a := &AdminController{BaseController: base, nodes: nodes, coupons: coupons, quota: quota}
	a.initRouter(g)
	return a
}

func (a *AdminController) initRouter(g *gin.RouterGroup) {
	g = g.Group("/admin")
	g.Use(a.checkAdminKey())

	g.POST("/servers", a.saveServer)
	g.DELETE("/servers/:id", a.delServer)
	g.POST("/groups", a.saveGroup)
	g.POST("/routes", a.addRoute)
	g.DELETE("/routes/:id", a.delRoute)
	g.POST("/coupons", a.addCoupon)
	g.POST("/users/:id/plan", a.assignPlan)
	g.POST("/users/:id/reset-traffic", a.resetTraffic)
}

func (a *AdminController) saveServer(c *gin.Context) {
	form := &entity.ServerForm{}
	if err := c.ShouldBindJSON(form); err != nil {
		bindFailed(c, err)
		return
	}
	show := true
	if form.Show != nil {
		show = *form.Show
	}
	s := &model.Server{
		Id:       form.Id,
		Name:     form.Name,
		Host:     form.Host,
		Port:     form.Port,
		Protocol: model.Protocol(form.Protocol),
		Sort:     form.Sort,
		Show:     show,
		Settings: model.ServerSettings{
			Network:       form.Network,
			Security:      form.Security,
			SNI:           form.SNI,
			Path:          form.Path,
			Host:          form.WSHost,
			Flow:          form.Flow,
			Cipher:        form.Cipher,
			Fingerprint:   form.Fingerprint,
			PublicKey:     form.PublicKey,
			ShortID:       form.ShortID,
			ServiceName:   form.ServiceName,
			AllowInsecure: form.AllowInsecure,
			ServerKey:     form.ServerKey,
		},
	}
	saved, err := a.nodes.Register(c.Request.Context(), s, form.GroupIDs)
	jsonObj(c, saved, err)
}

func (a *AdminController) delServer(c *gin.Context) {
	id, ok := a.paramID(c)
	if !ok {
		return
	}
	jsonMsg(c, "node removed", a.nodes.Remove(c.Request.Context(), id))
}

func (a *AdminController) saveGroup(c *gin.Context) {
	form := &entity.GroupForm{}
	if err := c.ShouldBindJSON(form); err != nil {
		bindFailed(c, err)
		return
	}
	g := &model.ServerGroup{Id: form.Id, Name: form.Name}
	jsonObj(c, g, a.nodes.SetGroup(c.Request.Context(), g))
}

func (a *AdminController) addRoute(c *gin.Context) {
	form := &entity.RouteForm{}
	if err := c.ShouldBindJSON(form); err != nil {
		bindFailed(c, err)
		return
	}
	route := &model.ServerRoute{
		ServerId: form.ServerID,
		GroupId:  form.GroupID,
		Sort:     form.Sort,
		Host:     form.Host,
		Port:     form.Port,
		Remark:   form.Remark,
		Enable:   true,
	}
	jsonObj(c, route, a.nodes.AddRoute(c.Request.Context(), route))
}

func (a *AdminController) delRoute(c *gin.Context) {
	id, ok := a.paramID(c)
	if !ok {
		return
	}
	jsonMsg(c, "route removed", a.nodes.RemoveRoute(c.Request.Context(), id))
}

func (a *AdminController) addCoupon(c *gin.Context) {
	form := &entity.CouponForm{}
	if err := c.ShouldBindJSON(form); err != nil {
		bindFailed(c, err)
		return
	}
	coupon := &model.Coupon{
		Code:          form.Code,
		Name:          form.Name,
		Type:          form.Type,
		Value:         form.Value,
		RemainingUses: form.RemainingUses,
		Unlimited:     form.Unlimited,
		StartedAt:     form.StartedAt,
		EndedAt:       form.EndedAt,
		PlanIds:       form.PlanIDs,
	}
	if err := a.coupons.Create(c.Request.Context(), coupon); err != nil {
		jsonMsg(c, "create coupon", err)
		return
	}
	c.JSON(http.StatusCreated, entity.Msg{Success: true, Obj: coupon})
}

func (a *AdminController) assignPlan(c *gin.Context) {
	id, ok := a.paramID(c)
	if !ok {
		return
	}
	form := &entity.AssignPlanForm{}
	if err := c.ShouldBindJSON(form); err != nil {
		bindFailed(c, err)
		return
	}
	u, err := a.quota.AssignPlan(c.Request.Context(), id, form.PlanID)
	jsonObj(c, u, err)
}

func (a *AdminController) resetTraffic(c *gin.Context) {
	id, ok := a.paramID(c)
	if !ok {
		return
	}
	u, err := a.quota.ResetTraffic(c.Request.Context(), id)
	jsonObj(c, u, err)
}
