package entity

// Msg 统一的 JSON 响应
type Msg struct {
	Success bool   `json:"success"`
	Msg     string `json:"msg"`
	Obj     any    `json:"obj"`
}

// TokenForm 只携带订阅 token 的请求
type TokenForm struct {
	Token string `json:"token" form:"token" binding:"required"`
}

// ConnectivityForm 连通性测试
type ConnectivityForm struct {
	Token string `json:"token" form:"token" binding:"required"`
	Limit int    `json:"limit" form:"limit" binding:"gte=0"`
}

type CouponVerifyForm struct {
	Code   string `json:"code" binding:"required"`
	PlanID int64  `json:"plan_id" binding:"gte=0"`
}

type CouponRedeemForm struct {
	Code   string `json:"code" binding:"required"`
	PlanID int64  `json:"plan_id" binding:"gte=0"`
	Price  int64  `json:"price" binding:"gte=0"`
}

type CommissionCreditForm struct {
	PurchaseID string `json:"purchase_id" binding:"required"`
	UserID     int64  `json:"user_id" binding:"required,gt=0"`
	Amount     int64  `json:"amount" binding:"required,gt=0"`
}

// ServerForm 管理端新建或更新节点
type ServerForm struct {
	Id       int64   `json:"id"`
	Name     string  `json:"name" binding:"required"`
	Host     string  `json:"host" binding:"required"`
	Port     int     `json:"port" binding:"required,min=1,max=65535"`
	Protocol string  `json:"protocol" binding:"required"`
	Sort     int     `json:"sort"`
	Show     *bool   `json:"show"`
	GroupIDs []int64 `json:"group_ids"`

	Network       string `json:"network"`
	Security      string `json:"security"`
	SNI           string `json:"sni"`
	Path          string `json:"path"`
	WSHost        string `json:"ws_host"`
	Flow          string `json:"flow"`
	Cipher        string `json:"cipher"`
	Fingerprint   string `json:"fp"`
	PublicKey     string `json:"pbk"`
	ShortID       string `json:"sid"`
	ServiceName   string `json:"service_name"`
	AllowInsecure bool   `json:"allow_insecure"`
	ServerKey     string `json:"server_key"`
}

type GroupForm struct {
	Id   int64  `json:"id"`
	Name string `json:"name" binding:"required"`
}

type RouteForm struct {
	ServerID int64  `json:"server_id" binding:"required,gt=0"`
	GroupID  int64  `json:"group_id" binding:"gte=0"`
	Sort     int    `json:"sort"`
	Host     string `json:"host" binding:"required"`
	Port     int    `json:"port" binding:"gte=0,lte=65535"`
	Remark   string `json:"remark"`
}

type CouponForm struct {
	Code          string  `json:"code"`
	Name          string  `json:"name"`
	Type          int     `json:"type" binding:"required,oneof=1 2"`
	Value         int64   `json:"value" binding:"required,gt=0"`
	RemainingUses int64   `json:"remaining_uses" binding:"gte=0"`
	Unlimited     bool    `json:"unlimited"`
	StartedAt     int64   `json:"started_at"`
	EndedAt       int64   `json:"ended_at"`
	PlanIDs       []int64 `json:"plan_ids"`
}

type AssignPlanForm struct {
	PlanID int64 `json:"plan_id" binding:"required,gt=0"`
}
