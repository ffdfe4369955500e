package entity

import (
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
)

func TestForms_Validate(t *testing.T) {
	v := binding.Validator

	assert.NoError(t, v.ValidateStruct(&CouponRedeemForm{Code: "SPRING", PlanID: 1, Price: 100}))
	assert.Error(t, v.ValidateStruct(&CouponRedeemForm{Code: "", Price: 100}))
	assert.Error(t, v.ValidateStruct(&CouponRedeemForm{Code: "SPRING", Price: -1}))

	assert.NoError(t, v.ValidateStruct(&CommissionCreditForm{PurchaseID: "o-1", UserID: 1, Amount: 10}))
	assert.Error(t, v.ValidateStruct(&CommissionCreditForm{PurchaseID: "o-1", UserID: 1}))

	assert.NoError(t, v.ValidateStruct(&ServerForm{Name: "hk", Host: "hk.example.com", Port: 443, Protocol: "vless"}))
	assert.Error(t, v.ValidateStruct(&ServerForm{Name: "hk", Host: "hk.example.com", Port: 70000, Protocol: "vless"}))

	assert.Error(t, v.ValidateStruct(&CouponForm{Type: 3, Value: 1}))
	assert.NoError(t, v.ValidateStruct(&CouponForm{Type: 2, Value: 10}))

	assert.Error(t, v.ValidateStruct(&RouteForm{ServerID: 1, Host: "cdn", Port: -1}))
}
