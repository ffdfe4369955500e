package job

import (
	"context"
	"time"

	"x-sub/logger"
	"x-sub/web/service"
)

// QuotaSweepJob 巡检全部用户，落盘到期与重置周期带来的状态变化。
// 访问路径上的惰性刷新保证正确性，巡检让长期不访问的用户也能及时收到提醒
type QuotaSweepJob struct {
	quota *service.QuotaEnforcer
}

func NewQuotaSweepJob(quota *service.QuotaEnforcer) *QuotaSweepJob {
	return &QuotaSweepJob{quota: quota}
}

func (j *QuotaSweepJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	changed, err := j.quota.SweepExpired(ctx)
	if err != nil {
		logger.Warning("QuotaSweepJob: sweep failed:", err)
		return
	}
	if changed > 0 {
		logger.Infof("QuotaSweepJob: %d users updated", changed)
	}
}
