package bootstrap

import (
	"log"

	"x-sub/config"
	"x-sub/database"
	"x-sub/logger"
	"x-sub/util/common"
	"x-sub/web/controller"
	"x-sub/web/service"

	"github.com/joho/godotenv"
)

// App 封装应用运行时所需的所有服务实例
type App struct {
	Services *controller.Services
	Metrics  *service.Metrics
	Telegram *service.TelegramNotifier
	Notifier service.Notifier
}

// NewApp 创建并初始化应用实例
func NewApp(
	services *controller.Services,
	metrics *service.Metrics,
	tg *service.TelegramNotifier,
	notifier service.Notifier,
) *App {
	return &App{
		Services: services,
		Metrics:  metrics,
		Telegram: tg,
		Notifier: notifier,
	}
}

// InitDatabase 按配置打开数据库并迁移表结构
func InitDatabase() error {
	return database.InitDBFromConfig()
}

// InitLogger 根据配置初始化日志系统
func InitLogger() {
	level, err := common.ParseLogLevel(string(config.GetLogLevel()))
	if err != nil {
		log.Fatalf("Unknown log level: %v", config.GetLogLevel())
	}
	logger.InitLogger(level)
}

// LoadEnv 加载 .env 中的环境变量
func LoadEnv() {
	_ = godotenv.Load()
}

// Initialize 执行完整的应用初始化流程
func Initialize() (*App, error) {
	log.Printf("Starting %v %v", config.GetName(), config.GetVersion())

	LoadEnv()
	InitLogger()

	if err := InitDatabase(); err != nil {
		return nil, err
	}

	return InitializeApp()
}
