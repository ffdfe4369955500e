package controller

import (
	"x-sub/web/entity"
	"x-sub/web/service"

	"github.com/gin-gonic/gin"
)

// CommissionController 订单返佣结算，仅限管理密钥调用
type CommissionController struct {
	BaseController

	ledger *service.CommissionLedger
}

func NewCommissionController(g *gin.RouterGroup, base BaseController, ledger *service.CommissionLedger) *CommissionController {
	a := &CommissionController{BaseController: base, ledger: ledger}
	a.initRouter(g)
	return a
}

func (a *CommissionController) initRouter(g *gin.RouterGroup) {
	g.POST("/commission/credit", a.checkAdminKey(), a.credit)
}

func (a *CommissionController) credit(c *gin.Context) {
	form := &entity.CommissionCreditForm{}
	if err := c.ShouldBindJSON(form); err != nil {
		bindFailed(c, err)
		return
	}
	res, err := a.ledger.Credit(c.Request.Context(), form.PurchaseID, form.UserID, form.Amount)
	jsonObj(c, res, err)
}
