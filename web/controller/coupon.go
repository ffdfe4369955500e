package controller

import (
	"x-sub/web/entity"
	"x-sub/web/service"

	"github.com/gin-gonic/gin"
)

type CouponController struct {
	BaseController

	coupons *service.CouponLedger
}

func NewCouponController(g *gin.RouterGroup, coupons *service.CouponLedger) *CouponController {
	a := &CouponController{coupons: coupons}
	a.initRouter(g)
	return a
}

func (a *CouponController) initRouter(g *gin.RouterGroup) {
	g = g.Group("/coupons")
	g.POST("/verify", a.verify)
	g.POST("/redeem", a.redeem)
}

func (a *CouponController) verify(c *gin.Context) {
	form := &entity.CouponVerifyForm{}
	if err := c.ShouldBindJSON(form); err != nil {
		bindFailed(c, err)
		return
	}
	d, err := a.coupons.Verify(c.Request.Context(), form.Code, form.PlanID)
	jsonObj(c, d, err)
}

func (a *CouponController) redeem(c *gin.Context) {
	form := &entity.CouponRedeemForm{}
	if err := c.ShouldBindJSON(form); err != nil {
		bindFailed(c, err)
		return
	}
	applied, err := a.coupons.Redeem(c.Request.Context(), form.Code, form.PlanID, form.Price)
	jsonObj(c, applied, err)
}
