package model

import "slices"

// 优惠券类型
const (
	CouponTypeAmount  = 1
	CouponTypePercent = 2
)

type Coupon struct {
	Id    int64  `json:"id" gorm:"primaryKey;autoIncrement"`
	Code  string `json:"code" gorm:"size:64;uniqueIndex"`
	Name  string `json:"name"`
	Type  int    `json:"type"`
	Value int64  `json:"value"`

	RemainingUses int64 `json:"remaining_uses"`
	Unlimited     bool  `json:"unlimited"`

	StartedAt int64   `json:"started_at"`
	EndedAt   int64   `json:"ended_at"`
	PlanIds   []int64 `json:"plan_ids" gorm:"serializer:json"`

	CreatedAt int64 `json:"created_at" gorm:"autoCreateTime"`
}

// AppliesTo 空列表表示对所有套餐生效
func (c *Coupon) AppliesTo(planID int64) bool {
	return len(c.PlanIds) == 0 || slices.Contains(c.PlanIds, planID)
}
