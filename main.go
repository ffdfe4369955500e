package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"syscall"

	"x-sub/bootstrap"
	"x-sub/config"
	"x-sub/logger"
)

// runServers 启动 Web 与订阅服务器并处理信号
func runServers() {
	app, err := bootstrap.Initialize()
	if err != nil {
		log.Fatalf("Error initializing application: %v", err)
	}

	runtime := bootstrap.NewRuntime(app)
	ctx := context.Background()
	if err := runtime.Start(ctx); err != nil {
		log.Fatalf("Error starting servers: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	setupSignalHandler(sigCh)

	for {
		sig := <-sigCh

		if handleCustomSignal(sig, runtime) {
			continue
		}

		switch sig {
		case syscall.SIGHUP:
			logger.Info("Received SIGHUP signal. Restarting servers...")
			if err := runtime.Restart(ctx); err != nil {
				log.Fatalf("Error restarting: %v", err)
			}
		default:
			runtime.StopAll()
			log.Println("Shutting down servers.")
			return
		}
	}
}

func main() {
	if len(os.Args) < 2 {
		runServers()
		return
	}

	var showVersion bool
	flag.BoolVar(&showVersion, "v", false, "show version")

	runCmd := flag.NewFlagSet("run", flag.ExitOnError)
	migrateCmd := flag.NewFlagSet("migrate", flag.ExitOnError)
	showCmd := flag.NewFlagSet("show", flag.ExitOnError)

	hashCmd := flag.NewFlagSet("hash-key", flag.ExitOnError)
	var key string
	hashCmd.StringVar(&key, "key", "", "Key to hash for node.api_key / admin.api_key")

	planCmd := flag.NewFlagSet("plan", flag.ExitOnError)
	var planName string
	var planGroup int64
	var planTransferGB int64
	var planPrice int64
	var planValidDays int
	planCmd.StringVar(&planName, "name", "", "Plan name")
	planCmd.Int64Var(&planGroup, "group", 0, "Server group granted by the plan")
	planCmd.Int64Var(&planTransferGB, "transfer", 0, "Traffic per cycle in GB, 0 for unlimited")
	planCmd.Int64Var(&planPrice, "price", 0, "Price in cents")
	planCmd.IntVar(&planValidDays, "days", 30, "Days added to expiry on purchase")

	userCmd := flag.NewFlagSet("user", flag.ExitOnError)
	var email string
	var planID int64
	var inviter int64
	userCmd.StringVar(&email, "email", "", "User email")
	userCmd.Int64Var(&planID, "plan", 0, "Assign plan after creation")
	userCmd.Int64Var(&inviter, "inviter", 0, "Inviting user id")

	oldUsage := flag.Usage
	flag.Usage = func() {
		oldUsage()
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("    run            run web and subscription servers")
		fmt.Println("    migrate        create or upgrade database tables")
		fmt.Println("    show           show effective settings")
		fmt.Println("    hash-key       print bcrypt hash of an api key")
		fmt.Println("    plan           create a plan")
		fmt.Println("    user           create a user")
	}

	flag.Parse()
	if showVersion {
		fmt.Println(config.GetVersion())
		return
	}

	parse := func(fs *flag.FlagSet) bool {
		if err := fs.Parse(os.Args[2:]); err != nil {
			fmt.Println(err)
			return false
		}
		return true
	}

	switch os.Args[1] {
	case "run":
		if parse(runCmd) {
			runServers()
		}
	case "migrate":
		if parse(migrateCmd) {
			migrateDb()
		}
	case "show":
		if parse(showCmd) {
			showSetting()
		}
	case "hash-key":
		if parse(hashCmd) {
			hashKey(key)
		}
	case "plan":
		if parse(planCmd) {
			addPlan(planName, planGroup, planTransferGB, planPrice, planValidDays)
		}
	case "user":
		if parse(userCmd) {
			addUser(email, planID, inviter)
		}
	default:
		fmt.Println("Invalid subcommands ----->>无效命令")
		fmt.Println()
		flag.Usage()
	}
}
