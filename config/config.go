package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

//go:embed version
var version string

//go:embed name
var name string

type LogLevel string

const (
	Debug   LogLevel = "debug"
	Info    LogLevel = "info"
	Notice  LogLevel = "notice"
	Warning LogLevel = "warning"
	Error   LogLevel = "error"
)

func GetVersion() string {
	return strings.TrimSpace(version)
}

func GetName() string {
	return strings.TrimSpace(name)
}

func GetLogLevel() LogLevel {
	if IsDebug() {
		return Debug
	}
	logLevel := viper.GetString("app.log_level")
	if logLevel == "" {
		return Info
	}
	return LogLevel(logLevel)
}

func IsDebug() bool {
	return viper.GetBool("app.debug")
}

func getBaseDir() string {
	exePath, err := os.Executable()
	if err != nil {
		return "."
	}
	exeDir := filepath.Dir(exePath)
	exeDirLower := strings.ToLower(filepath.ToSlash(exeDir))
	if strings.Contains(exeDirLower, "/appdata/local/temp/") || strings.Contains(exeDirLower, "/go-build") {
		wd, err := os.Getwd()
		if err != nil {
			return "."
		}
		return wd
	}
	return exeDir
}

// =================================================================
// 数据库
// =================================================================

func GetDBType() string {
	t := strings.ToLower(strings.TrimSpace(viper.GetString("db.type")))
	if t == "" {
		return "sqlite"
	}
	return t
}

func GetDBFolderPath() string {
	path := viper.GetString("paths.db_folder")
	if path != "" {
		return path
	}
	if runtime.GOOS == "windows" {
		return getBaseDir()
	}
	return "/etc/x-sub"
}

func GetDBPath() string {
	if p := viper.GetString("db.path"); p != "" {
		return p
	}
	return fmt.Sprintf("%s/%s.db", GetDBFolderPath(), GetName())
}

// GetDBDSN 返回 PostgreSQL 连接串，仅在 db.type=postgres 时使用
func GetDBDSN() string {
	return viper.GetString("db.dsn")
}

// =================================================================
// 监听
// =================================================================

func GetWebListen() string { return viper.GetString("web.listen") }
func GetWebPort() int      { return viper.GetInt("web.port") }

// GetWebDomain 非空时 API 服务只接受该域名的请求
func GetWebDomain() string { return viper.GetString("web.domain") }

func GetSubListen() string { return viper.GetString("sub.listen") }
func GetSubPort() int      { return viper.GetInt("sub.port") }

func GetSubBaseURL() string {
	return strings.TrimRight(viper.GetString("sub.base_url"), "/")
}

func GetSubCertFile() string { return viper.GetString("sub.cert_file") }
func GetSubKeyFile() string  { return viper.GetString("sub.key_file") }

// GetSubDomain 非空时订阅服务只接受该域名的请求
func GetSubDomain() string { return viper.GetString("sub.domain") }

// GetSubUpdateInterval 客户端刷新订阅的间隔（小时）
func GetSubUpdateInterval() int {
	return viper.GetInt("sub.update_interval")
}

func GetSubRateLimit() float64 { return viper.GetFloat64("sub.rate_limit") }
func GetSubRateBurst() int     { return viper.GetInt("sub.rate_burst") }

// =================================================================
// 鉴权
// =================================================================

func GetNodeAPIKey() string  { return viper.GetString("node.api_key") }
func GetAdminAPIKey() string { return viper.GetString("admin.api_key") }

// =================================================================
// 节点
// =================================================================

func GetNodeReportInterval() time.Duration {
	return viper.GetDuration("node.report_interval")
}

// GetLivenessWindow 未显式配置时为上报间隔的 3 倍
func GetLivenessWindow() time.Duration {
	if d := viper.GetDuration("node.liveness_window"); d > 0 {
		return d
	}
	return 3 * GetNodeReportInterval()
}

func GetProbeRecency() time.Duration       { return viper.GetDuration("node.probe_recency") }
func GetProbeTimeout() time.Duration       { return viper.GetDuration("node.probe_timeout") }
func GetProbeConcurrency() int             { return viper.GetInt("node.probe_concurrency") }
func GetProbeMaxNodes() int                { return viper.GetInt("node.probe_max_nodes") }
func GetLivenessCron() string              { return viper.GetString("node.liveness_cron") }
func GetQuotaSweepCron() string            { return viper.GetString("quota.sweep_cron") }
func GetQuotaWarnThreshold() float64       { return viper.GetFloat64("quota.warn_threshold") }
func GetQuotaDefaultResetKind() int        { return viper.GetInt("quota.default_reset_kind") }
func GetSubscriptionCacheSize() int        { return viper.GetInt("cache.size") }
func GetCommissionDefaultRate() int64      { return viper.GetInt64("commission.default_rate") }
func GetCommissionMaxLevels() int          { return viper.GetInt("commission.max_levels") }
func GetCommissionFirstPurchaseOnly() bool { return viper.GetBool("commission.first_purchase_only") }

// GetCommissionLevelRates 第 2 级起的佣金比例（百分比），下标 0 对应第 2 级
func GetCommissionLevelRates() []int64 {
	raw := viper.GetIntSlice("commission.level_rates")
	rates := make([]int64, 0, len(raw))
	for _, r := range raw {
		rates = append(rates, int64(r))
	}
	return rates
}

// =================================================================
// Telegram
// =================================================================

func GetTelegramEnabled() bool { return viper.GetBool("telegram.enable") }
func GetTelegramToken() string { return viper.GetString("telegram.token") }
func GetTelegramChatID() int64 { return viper.GetInt64("telegram.chat_id") }

// GetTelegramLogForwardLevel 不低于该级别的日志转发到 Telegram，为空时关闭
func GetTelegramLogForwardLevel() string { return viper.GetString("telegram.log_forward_level") }

func init() {
	// 初始化 Viper 静态配置管理
	initStaticConfig()
}
