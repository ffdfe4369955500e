package config

import (
	"errors"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀，例如 XSUB_NODE_API_KEY
const EnvPrefix = "XSUB"

// initStaticConfig 初始化 Viper 静态配置管理
func initStaticConfig() {
	viper.SetConfigName("config")
	viper.SetConfigType("toml")
	viper.AddConfigPath("/etc/x-sub")
	viper.AddConfigPath(".")
	viper.AddConfigPath(getBaseDir())

	// 环境变量设置
	viper.SetEnvPrefix(EnvPrefix)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 设置默认值
	setStaticDefaults()

	// 读取配置文件（配置文件是可选的，不存在时静默使用默认值）
	_ = viper.ReadInConfig()
}

// Reload 重新读取配置文件，文件不存在时保持当前配置
func Reload() error {
	err := viper.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return nil
	}
	return err
}

// setStaticDefaults 设置静态配置的默认值
func setStaticDefaults() {
	// 应用默认值
	viper.SetDefault("app.name", "x-sub")
	viper.SetDefault("app.debug", false)
	viper.SetDefault("app.log_level", "info")

	// 数据库
	viper.SetDefault("db.type", "sqlite")

	// 监听
	viper.SetDefault("web.listen", "")
	viper.SetDefault("web.port", 2096)
	viper.SetDefault("sub.listen", "")
	viper.SetDefault("sub.port", 2097)
	viper.SetDefault("sub.update_interval", 12)
	viper.SetDefault("sub.rate_limit", 2.0)
	viper.SetDefault("sub.rate_burst", 10)

	// 节点
	viper.SetDefault("node.report_interval", "60s")
	viper.SetDefault("node.probe_recency", "60s")
	viper.SetDefault("node.probe_timeout", "3s")
	viper.SetDefault("node.probe_concurrency", 8)
	viper.SetDefault("node.probe_max_nodes", 16)
	viper.SetDefault("node.liveness_cron", "@every 30s")

	// 流量配额
	viper.SetDefault("quota.warn_threshold", 0.8)
	viper.SetDefault("quota.default_reset_kind", 0)
	viper.SetDefault("quota.sweep_cron", "@daily")

	viper.SetDefault("cache.size", 4096)

	// 佣金
	viper.SetDefault("commission.default_rate", 10)
	viper.SetDefault("commission.max_levels", 1)
	viper.SetDefault("commission.level_rates", []int{})
	viper.SetDefault("commission.first_purchase_only", false)

	viper.SetDefault("telegram.enable", false)
	viper.SetDefault("telegram.log_forward_level", "error")

	// 平台特定默认值
	if runtime.GOOS == "windows" {
		viper.SetDefault("paths.db_folder", getBaseDir())
	} else {
		viper.SetDefault("paths.db_folder", "/etc/x-sub")
	}
}
