package model

// Plan 套餐。一个套餐只授予一个节点组
type Plan struct {
	Id             int64  `json:"id" gorm:"primaryKey;autoIncrement"`
	Name           string `json:"name"`
	GroupId        int64  `json:"group_id"`
	TransferEnable int64  `json:"transfer_enable"`
	SpeedLimit     int    `json:"speed_limit"`
	Price          int64  `json:"price"`
	Enable         bool   `json:"enable"`
	ResetKind      int    `json:"reset_kind"`

	// 可售时间窗，0 表示不限
	AvailableFrom  int64 `json:"available_from"`
	AvailableUntil int64 `json:"available_until"`

	// 续费时延长的有效期（天），0 表示不改变到期时间
	ValidDays int `json:"valid_days"`
}
