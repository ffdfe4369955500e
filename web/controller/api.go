package controller

import (
	"x-sub/web/security"
	"x-sub/web/service"

	"github.com/benbjohnson/clock"
	"github.com/gin-gonic/gin"
)

// APIController 挂载全部业务接口
type APIController struct {
	BaseController

	traffic    *TrafficController
	node       *NodeController
	coupon     *CouponController
	commission *CommissionController
	admin      *AdminController
}

// Services API 层依赖的业务服务
type Services struct {
	Traffic    *service.TrafficAggregator
	Nodes      *service.NodeRegistry
	Quota      *service.QuotaEnforcer
	Builder    *service.SubscriptionBuilder
	Coupons    *service.CouponLedger
	Commission *service.CommissionLedger
}

func NewAPIController(g *gin.RouterGroup, s *Services) *APIController {
	a := &APIController{}
	a.initRouter(g, s)
	return a
}

func (a *APIController) initRouter(g *gin.RouterGroup, s *Services) {
	a.guard = security.NewAuthGuard(security.DefaultAuthGuardConfig, clock.New())

	a.traffic = NewTrafficController(g, a.BaseController, s.Traffic)
	a.node = NewNodeController(g, s.Builder)
	a.coupon = NewCouponController(g, s.Coupons)
	a.commission = NewCommissionController(g, a.BaseController, s.Commission)
	a.admin = NewAdminController(g, a.BaseController, s.Nodes, s.Coupons, s.Quota)
}
