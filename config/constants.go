package config

import "time"

// =================================================================
// 节点相关常量
// =================================================================

const (
	// MaxReportEntries 单次流量上报允许的最大条目数
	MaxReportEntries = 50000

	// NodeStopTimeout 后台任务停止超时时间
	NodeStopTimeout = 10 * time.Second
)

// =================================================================
// 订阅相关常量
// =================================================================

const (
	// TokenLength 订阅 token 长度
	TokenLength = 32

	// QRCodeSize 订阅二维码边长（像素）
	QRCodeSize = 256
)

// =================================================================
// 网络相关常量
// =================================================================

const (
	// HTTPReadHeaderTimeout HTTP 请求头读取超时
	HTTPReadHeaderTimeout = 5 * time.Second

	// ShutdownTimeout 服务关闭等待时间
	ShutdownTimeout = 5 * time.Second
)

// =================================================================
// 配额相关常量
// =================================================================

const (
	// ExpireRemindWindow 到期前多久开始置 remind_expire
	ExpireRemindWindow = 72 * time.Hour

	// SweepBatchSize 配额巡检每批读取的用户数
	SweepBatchSize = 200
)
