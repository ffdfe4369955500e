//go:build !windows

package main

import (
	"os"
	"os/signal"
	"syscall"

	"x-sub/bootstrap"
	"x-sub/database"
	"x-sub/logger"
)

// setupSignalHandler 注册信号监听（Unix版包含 SIGUSR2）
func setupSignalHandler(sigCh chan os.Signal) {
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGINT, syscall.SIGUSR2)
}

// handleCustomSignal 处理平台特定的信号（如 SIGUSR2）
// 返回 true 表示信号已被处理，无需进一步操作
func handleCustomSignal(sig os.Signal, _ *bootstrap.Runtime) bool {
	if sig == syscall.SIGUSR2 {
		logger.Info("Received SIGUSR2 signal. Checkpointing database...")
		if err := database.Checkpoint(); err != nil {
			logger.Warning("Checkpoint failed:", err)
		}
		return true
	}
	return false
}
