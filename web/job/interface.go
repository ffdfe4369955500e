package job

import "context"

// Job 独立于 HTTP 服务运行的后台任务（通知发送循环、日志转发等）。
// Start 不得阻塞；Stop 等待任务退出
type Job interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
}
