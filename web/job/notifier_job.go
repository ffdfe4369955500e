package job

import (
	"context"

	"x-sub/config"
	"x-sub/web/service"
)

// NotifierJob 管理 Telegram 通知发送循环与日志转发
type NotifierJob struct {
	tg        *service.TelegramNotifier
	forwarder *service.LogForwarder
}

func NewNotifierJob(tg *service.TelegramNotifier) *NotifierJob {
	return &NotifierJob{tg: tg}
}

func (j *NotifierJob) Name() string {
	return "TelegramNotifier"
}

func (j *NotifierJob) Start(_ context.Context) error {
	if j.tg == nil || !j.tg.Enabled() {
		return nil
	}
	j.tg.Start()
	j.forwarder = service.NewLogForwarder(j.tg, config.GetTelegramLogForwardLevel())
	if j.forwarder != nil {
		j.forwarder.Start()
	}
	return nil
}

func (j *NotifierJob) Stop() error {
	if j.forwarder != nil {
		j.forwarder.Stop()
		j.forwarder = nil
	}
	if j.tg != nil && j.tg.IsRunning() {
		j.tg.Stop()
	}
	return nil
}
