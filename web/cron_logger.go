package web

import (
	"fmt"
	"strings"

	"x-sub/logger"
)

// CronLogger 实现 cron.Logger，调度细节记为 debug，任务 panic（经 cron.Recover）记为 error
type CronLogger struct{}

func (CronLogger) Info(msg string, keysAndValues ...any) {
	logger.Debugf("[Cron] %s%s", msg, formatKV(keysAndValues))
}

func (CronLogger) Error(err error, msg string, keysAndValues ...any) {
	logger.Errorf("[PANIC RECOVER] [Cron] %s: %v%s", msg, err, formatKV(keysAndValues))
}

// formatKV 把 cron 的键值对参数格式化为 " k=v k=v"
func formatKV(kv []any) string {
	var b strings.Builder
	for i := 0; i < len(kv); i += 2 {
		if i+1 < len(kv) {
			fmt.Fprintf(&b, " %v=%v", kv[i], kv[i+1])
		} else {
			fmt.Fprintf(&b, " %v", kv[i])
		}
	}
	return b.String()
}
