package service

import (
	"context"
	"errors"
	"strings"

	"x-sub/database"
	"x-sub/database/model"
	"x-sub/database/repository"
	"x-sub/logger"
	"x-sub/util/common"
	"x-sub/util/random"

	"github.com/benbjohnson/clock"
)

// Discount 优惠券校验结果
type Discount struct {
	CouponID int64  `json:"coupon_id"`
	Code     string `json:"code"`
	Type     int    `json:"type"`
	Value    int64  `json:"value"`
}

// Apply 计算价格的优惠金额：百分比向下取整，固定金额不超过价格
func (d *Discount) Apply(price int64) int64 {
	if price <= 0 {
		return 0
	}
	switch d.Type {
	case model.CouponTypePercent:
		v := d.Value
		if v > 100 {
			v = 100
		}
		return price * v / 100
	default:
		return min(d.Value, price)
	}
}

// DiscountApplied 兑换成功
type DiscountApplied struct {
	Discount
	Price      int64 `json:"price"`
	Amount     int64 `json:"amount"`
	FinalPrice int64 `json:"final_price"`
}

// CouponLedger 优惠券校验与兑换，剩余次数通过条件更新原子扣减
type CouponLedger struct {
	couponRepo repository.CouponRepository
	metrics    *Metrics
	clock      clock.Clock
}

func NewCouponLedger(couponRepo repository.CouponRepository, metrics *Metrics, clk clock.Clock) *CouponLedger {
	return &CouponLedger{couponRepo: couponRepo, metrics: metrics, clock: clk}
}

func normalizeCode(code string) string {
	return strings.TrimSpace(code)
}

func (l *CouponLedger) check(ctx context.Context, op, code string, planID int64) (*model.Coupon, error) {
	if err := Validator().Var(normalizeCode(code), "required,coupon_code"); err != nil {
		return nil, common.NewServiceError(op, common.ErrCouponNotFound).WithCode(common.ErrCodeNotFound)
	}
	c, err := l.couponRepo.FindByCode(ctx, normalizeCode(code))
	if err != nil {
		if database.IsNotFound(err) {
			return nil, common.NewServiceError(op, common.ErrCouponNotFound).WithCode(common.ErrCodeNotFound)
		}
		return nil, common.HandleError(op, err)
	}
	now := l.clock.Now().Unix()
	if (c.StartedAt > 0 && now < c.StartedAt) || (c.EndedAt > 0 && now >= c.EndedAt) {
		return nil, common.NewServiceError(op, common.ErrCouponExpired).WithCode(common.ErrCodeForbidden)
	}
	if !c.AppliesTo(planID) {
		return nil, common.NewServiceError(op, common.ErrCouponPlanNotApplicable).WithCode(common.ErrCodeForbidden)
	}
	if !c.Unlimited && c.RemainingUses <= 0 {
		return nil, common.NewServiceError(op, common.ErrCouponExhausted).WithCode(common.ErrCodeConflict)
	}
	return c, nil
}

// Verify 只读校验，不占用次数
func (l *CouponLedger) Verify(ctx context.Context, code string, planID int64) (*Discount, error) {
	c, err := l.check(ctx, "CouponLedger.Verify", code, planID)
	if err != nil {
		return nil, err
	}
	return &Discount{CouponID: c.Id, Code: c.Code, Type: c.Type, Value: c.Value}, nil
}

// Redeem 校验并占用一次。并发兑换最后一次时只有一个调用成功，其余返回 Exhausted
func (l *CouponLedger) Redeem(ctx context.Context, code string, planID, price int64) (*DiscountApplied, error) {
	const op = "CouponLedger.Redeem"
	if price < 0 {
		return nil, invalidInput(op, "negative price")
	}
	c, err := l.check(ctx, op, code, planID)
	if err != nil {
		l.metrics.Redemptions.WithLabelValues(redeemLabel(err)).Inc()
		return nil, err
	}
	if !c.Unlimited {
		ok, err := l.couponRepo.ConsumeUse(ctx, c.Id)
		if err != nil {
			return nil, common.HandleError(op, err)
		}
		if !ok {
			l.metrics.Redemptions.WithLabelValues("exhausted").Inc()
			return nil, common.NewServiceError(op, common.ErrCouponExhausted).WithCode(common.ErrCodeConflict)
		}
	}
	d := Discount{CouponID: c.Id, Code: c.Code, Type: c.Type, Value: c.Value}
	amount := d.Apply(price)
	l.metrics.Redemptions.WithLabelValues("ok").Inc()
	return &DiscountApplied{Discount: d, Price: price, Amount: amount, FinalPrice: price - amount}, nil
}

// Create 管理端创建优惠券，未指定 code 时自动生成
func (l *CouponLedger) Create(ctx context.Context, c *model.Coupon) error {
	const op = "CouponLedger.Create"
	c.Code = normalizeCode(c.Code)
	if c.Code == "" {
		c.Code = random.CouponCode(8)
	}
	if err := Validator().Var(c.Code, "coupon_code"); err != nil {
		return invalidInput(op, "invalid coupon code %q", c.Code)
	}
	switch c.Type {
	case model.CouponTypeAmount:
		if c.Value <= 0 {
			return invalidInput(op, "amount must be positive")
		}
	case model.CouponTypePercent:
		if c.Value <= 0 || c.Value > 100 {
			return invalidInput(op, "percentage must be within (0, 100]")
		}
	default:
		return invalidInput(op, "unknown coupon type %d", c.Type)
	}
	if c.RemainingUses < 0 {
		return invalidInput(op, "remaining uses must not be negative")
	}
	if c.EndedAt > 0 && c.StartedAt > 0 && c.EndedAt <= c.StartedAt {
		return invalidInput(op, "ended_at must be after started_at")
	}
	if err := l.couponRepo.Create(ctx, c); err != nil {
		return common.HandleError(op, err)
	}
	logger.Infof("[Coupon] created %s (type %d, value %d, uses %d)", c.Code, c.Type, c.Value, c.RemainingUses)
	return nil
}

func redeemLabel(err error) string {
	switch {
	case errors.Is(err, common.ErrCouponNotFound):
		return "not_found"
	case errors.Is(err, common.ErrCouponExpired):
		return "expired"
	case errors.Is(err, common.ErrCouponExhausted):
		return "exhausted"
	case errors.Is(err, common.ErrCouponPlanNotApplicable):
		return "plan"
	default:
		return "error"
	}
}
