package model

// QuotaState 用户配额状态
type QuotaState string

const (
	QuotaActive           QuotaState = "active"
	QuotaWarned           QuotaState = "warned"
	QuotaSuspendedQuota   QuotaState = "suspended_quota"
	QuotaSuspendedExpired QuotaState = "suspended_expired"
)

// Suspended 是否处于暂停状态（流量耗尽或到期）
func (s QuotaState) Suspended() bool {
	return s == QuotaSuspendedQuota || s == QuotaSuspendedExpired
}

// 佣金发放方式
const (
	CommissionTypeSystem        = 0
	CommissionTypePeriod        = 1
	CommissionTypeFirstPurchase = 2
)

// User 订阅用户。用户不做物理删除，只封禁
type User struct {
	Id    int64  `json:"id" gorm:"primaryKey;autoIncrement"`
	Email string `json:"email" gorm:"size:191;uniqueIndex"`
	UUID  string `json:"uuid" gorm:"column:uuid;size:36;uniqueIndex"`
	Token string `json:"-" gorm:"size:64;uniqueIndex"`

	PlanId     int64 `json:"plan_id"`
	GroupId    int64 `json:"group_id" gorm:"index"`
	SpeedLimit int   `json:"speed_limit"` // Mbps，0 表示不限速

	// 流量，单位字节。TransferEnable 为 0 表示不限量
	TransferEnable int64 `json:"transfer_enable"`
	ResetKind      int   `json:"t" gorm:"column:t"`
	U              int64 `json:"u" gorm:"column:u"`
	D              int64 `json:"d" gorm:"column:d"`
	CycleStartedAt int64 `json:"cycle_started_at"`

	QuotaState    QuotaState `json:"quota_state" gorm:"size:32;default:active"`
	Banned        bool       `json:"banned"`
	ExpiredAt     int64      `json:"expired_at"` // 秒，0 表示永不过期
	RemindExpire  bool       `json:"remind_expire"`
	RemindTraffic bool       `json:"remind_traffic"`

	InviteUserId      int64 `json:"invite_user_id" gorm:"index"`
	CommissionType    int   `json:"commission_type"`
	CommissionRate    int64 `json:"commission_rate"` // 百分比，0 表示使用系统默认
	CommissionBalance int64 `json:"commission_balance"`

	CreatedAt int64 `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt int64 `json:"updated_at" gorm:"autoUpdateTime"`
}

// Used 当前周期已用流量
func (u *User) Used() int64 {
	return u.U + u.D
}

// Unlimited 是否不限流量
func (u *User) Unlimited() bool {
	return u.TransferEnable <= 0
}
