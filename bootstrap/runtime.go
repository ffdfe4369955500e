package bootstrap

import (
	"context"
	"log"

	"x-sub/config"
	"x-sub/sub"
	"x-sub/web"
	"x-sub/web/job"
)

// Runtime 封装应用运行时状态
type Runtime struct {
	App        *App
	WebServer  *web.Server
	SubServer  *sub.Server
	JobManager *job.Manager

	lifecycle *LifecycleManager
}

// NewRuntime 创建运行时实例
func NewRuntime(app *App) *Runtime {
	return &Runtime{
		App:       app,
		lifecycle: NewLifecycleManager(),
	}
}

// assemble 按启动顺序重新创建服务器与任务
func (r *Runtime) assemble() {
	r.WebServer = web.NewServer(r.App.Services, r.App.Metrics, r.App.Notifier)
	r.SubServer = sub.NewServer(r.App.Services.Builder)
	r.JobManager = job.NewManager()
	RegisterJobs(r.JobManager, r.App)

	r.lifecycle.Reset()
	r.lifecycle.Register(&jobsComponent{manager: r.JobManager})
	r.lifecycle.Register(NewServiceComponent("WebServer", r.WebServer))
	r.lifecycle.Register(NewServiceComponent("SubServer", r.SubServer))
}

// Start 启动 Web 服务器、订阅服务器与后台任务
func (r *Runtime) Start(ctx context.Context) error {
	r.assemble()
	return r.lifecycle.StartAll(ctx)
}

// StopAll 停止所有服务
func (r *Runtime) StopAll() {
	ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	r.lifecycle.StopAll(ctx)
}

// Restart 重启所有服务（用于 SIGHUP 信号处理），重新读取配置文件
func (r *Runtime) Restart(ctx context.Context) error {
	r.StopAll()
	if err := config.Reload(); err != nil {
		log.Printf("重新读取配置失败，沿用旧配置: %v", err)
	}
	if err := r.Start(ctx); err != nil {
		return err
	}
	log.Println("Servers restarted successfully.")
	return nil
}
