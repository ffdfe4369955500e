package main

import (
	"context"
	"fmt"

	"x-sub/bootstrap"
	"x-sub/config"
	"x-sub/database"
	"x-sub/database/model"
	"x-sub/database/repository"
	"x-sub/util/common"
	"x-sub/util/crypto"
	"x-sub/util/random"

	"github.com/google/uuid"
)

// CLI 颜色常量
const (
	Reset  = "\033[0m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
)

// initDBForCLI 初始化数据库用于 CLI 命令
func initDBForCLI() error {
	bootstrap.LoadEnv()
	return database.InitDBFromConfig()
}

func migrateDb() {
	if err := initDBForCLI(); err != nil {
		fmt.Println(Red+"Failed to migrate database（迁移数据库失败）:"+Reset, err)
		return
	}
	defer database.CloseDB()
	fmt.Println(Green + "Database migrated ---->>数据库迁移完成" + Reset)
}

func showSetting() {
	bootstrap.LoadEnv()
	fmt.Println("Current settings（当前设置）:")
	fmt.Printf("  db:        %s\n", config.GetDBType())
	fmt.Printf("  web:       %s:%d\n", config.GetWebListen(), config.GetWebPort())
	fmt.Printf("  sub:       %s:%d\n", config.GetSubListen(), config.GetSubPort())
	fmt.Printf("  sub url:   %s\n", config.GetSubBaseURL())
	fmt.Printf("  liveness:  %s (cron %q)\n", config.GetLivenessWindow(), config.GetLivenessCron())
	fmt.Printf("  sweep:     %q\n", config.GetQuotaSweepCron())
	fmt.Printf("  telegram:  %v\n", config.GetTelegramEnabled())
	if level, err := common.ParseLogLevel(string(config.GetLogLevel())); err == nil {
		fmt.Printf("  log level: %s\n", common.LogLevelName(level))
	} else {
		fmt.Println(Red+"  invalid log level:"+Reset, config.GetLogLevel())
	}
	if config.GetNodeAPIKey() == "" {
		fmt.Println(Yellow + "  node.api_key is empty, traffic reports will be rejected" + Reset)
	}
	if config.GetAdminAPIKey() == "" {
		fmt.Println(Yellow + "  admin.api_key is empty, admin endpoints are disabled" + Reset)
	}
}

func hashKey(key string) {
	if key == "" {
		fmt.Println(Red + "key is required" + Reset)
		return
	}
	hash, err := crypto.HashKey(key)
	if err != nil {
		fmt.Println(Red+"hash failed:"+Reset, err)
		return
	}
	fmt.Println(hash)
}

func addPlan(name string, groupID, transferGB, price int64, validDays int) {
	if name == "" || groupID <= 0 {
		fmt.Println(Red + "name and group are required" + Reset)
		return
	}
	if err := initDBForCLI(); err != nil {
		fmt.Println("Failed to initialize database:", err)
		return
	}
	defer database.CloseDB()

	plan := &model.Plan{
		Name:           name,
		GroupId:        groupID,
		TransferEnable: transferGB << 30,
		Price:          price,
		Enable:         true,
		ValidDays:      validDays,
	}
	if err := repository.NewPlanRepository(database.GetDB()).Save(context.Background(), plan); err != nil {
		fmt.Println(Red+"create plan failed:"+Reset, err)
		return
	}
	fmt.Printf(Green+"plan %d created"+Reset+" (%s, %s)\n", plan.Id, plan.Name, common.FormatTraffic(plan.TransferEnable))
}

func addUser(email string, planID, inviter int64) {
	if email == "" {
		fmt.Println(Red + "email is required" + Reset)
		return
	}
	app, err := bootstrap.Initialize()
	if err != nil {
		fmt.Println("Failed to initialize:", err)
		return
	}
	defer database.CloseDB()

	ctx := context.Background()
	u := &model.User{
		Email:        email,
		UUID:         uuid.NewString(),
		Token:        random.Seq(32),
		InviteUserId: inviter,
		QuotaState:   model.QuotaActive,
	}
	if err := repository.NewUserRepository(database.GetDB()).Create(ctx, u); err != nil {
		fmt.Println(Red+"create user failed:"+Reset, err)
		return
	}
	if planID > 0 {
		if _, err := app.Services.Quota.AssignPlan(ctx, u.Id, planID); err != nil {
			fmt.Println(Red+"assign plan failed:"+Reset, err)
			return
		}
	}
	fmt.Printf(Green+"user %d created"+Reset+"\n  uuid:  %s\n  token: %s\n", u.Id, u.UUID, u.Token)
	if base := config.GetSubBaseURL(); base != "" {
		fmt.Printf("  sub:   %s/subscribe/config?token=%s\n", base, u.Token)
	}
}
