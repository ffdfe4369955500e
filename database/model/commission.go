package model

// CommissionLog 佣金流水，(purchase_id, referrer_id) 唯一保证同一笔订单只结算一次
type CommissionLog struct {
	Id          int64  `json:"id" gorm:"primaryKey;autoIncrement"`
	PurchaseId  string `json:"purchase_id" gorm:"size:64;uniqueIndex:idx_purchase_referrer"`
	InviteeId   int64  `json:"invitee_id" gorm:"index"`
	ReferrerId  int64  `json:"referrer_id" gorm:"uniqueIndex:idx_purchase_referrer"`
	Level       int    `json:"level"`
	OrderAmount int64  `json:"order_amount"`
	Commission  int64  `json:"commission"`
	CreatedAt   int64  `json:"created_at" gorm:"autoCreateTime"`
}
