package bootstrap

import (
	"context"

	"x-sub/web/job"
)

// RegisterJobs 注册独立于 HTTP 服务的后台任务。
// 定时任务（在线检测、配额巡检）由 Web 服务器的调度器负责
func RegisterJobs(jobManager *job.Manager, app *App) {
	// Telegram 通知发送循环
	jobManager.Register(job.NewNotifierJob(app.Telegram))
}

// jobsComponent 把 job.Manager 接入生命周期
type jobsComponent struct {
	manager *job.Manager
	status  Status
}

func (c *jobsComponent) Name() string   { return "Jobs" }
func (c *jobsComponent) Status() Status { return c.status }

func (c *jobsComponent) Start(ctx context.Context) error {
	if err := c.manager.StartAll(ctx); err != nil {
		c.status = StatusStopped
		return err
	}
	c.status = StatusRunning
	return nil
}

func (c *jobsComponent) Stop(_ context.Context) error {
	err := c.manager.StopAll()
	c.status = StatusStopped
	return err
}
