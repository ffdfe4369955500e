package service

import (
	"context"
	"time"

	"x-sub/database/model"
	"x-sub/logger"
	"x-sub/util/common"
)

// Transition 一次配额状态变化，Reset 表示周期重置
type Transition struct {
	UserID int64
	Email  string
	From   model.QuotaState
	To     model.QuotaState
	Reset  bool
	Used   int64
	Total  int64
	At     time.Time
}

// NodeTransition 节点在线状态变化
type NodeTransition struct {
	NodeID int64
	Name   string
	Live   bool
	At     time.Time
}

// Notifier 接收状态变化通知。实现必须是非阻塞或自带超时
type Notifier interface {
	QuotaChanged(ctx context.Context, t Transition)
	NodeChanged(ctx context.Context, t NodeTransition)
}

// LogNotifier 仅写日志
type LogNotifier struct{}

func (LogNotifier) QuotaChanged(_ context.Context, t Transition) {
	if t.Reset {
		logger.Infof("[Quota] user %d (%s) cycle reset", t.UserID, t.Email)
		return
	}
	logger.Noticef("[Quota] user %d (%s): %s -> %s, used %s / %s",
		t.UserID, t.Email, t.From, t.To, common.FormatTraffic(t.Used), formatTotal(t.Total))
}

func (LogNotifier) NodeChanged(_ context.Context, t NodeTransition) {
	if t.Live {
		logger.Infof("[Node] %d (%s) is online", t.NodeID, t.Name)
	} else {
		logger.Warningf("[Node] %d (%s) is offline", t.NodeID, t.Name)
	}
}

// MultiNotifier 按顺序分发给多个通知器
type MultiNotifier []Notifier

func (m MultiNotifier) QuotaChanged(ctx context.Context, t Transition) {
	for _, n := range m {
		n.QuotaChanged(ctx, t)
	}
}

func (m MultiNotifier) NodeChanged(ctx context.Context, t NodeTransition) {
	for _, n := range m {
		n.NodeChanged(ctx, t)
	}
}

// NewNotifier 组装通知链：日志始终启用，Telegram 运行时追加
func NewNotifier(tg *TelegramNotifier) Notifier {
	chain := MultiNotifier{LogNotifier{}}
	if tg != nil && tg.Enabled() {
		chain = append(chain, tg)
	}
	return chain
}

func formatTotal(total int64) string {
	if total <= 0 {
		return "∞"
	}
	return common.FormatTraffic(total)
}
