package service

import (
	"context"
	"fmt"
	"html"
	"sync"
	"time"

	"x-sub/config"
	"x-sub/database/model"
	"x-sub/logger"
	"x-sub/util/common"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"go.uber.org/atomic"
)

const tgQueueSize = 256

// TelegramNotifier 将配额与节点状态变化推送到管理员会话
type TelegramNotifier struct {
	bot    *telego.Bot
	chatID int64

	queue   chan string
	running atomic.Bool
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

// NewTelegramNotifier 未启用或配置不完整时返回禁用的实例
func NewTelegramNotifier() *TelegramNotifier {
	t := &TelegramNotifier{queue: make(chan string, tgQueueSize)}
	if !config.GetTelegramEnabled() {
		return t
	}
	token, chatID := config.GetTelegramToken(), config.GetTelegramChatID()
	if token == "" || chatID == 0 {
		logger.Warning("[tgbot] telegram.enable is set but token or chat_id is empty")
		return t
	}
	bot, err := telego.NewBot(token)
	if err != nil {
		logger.Warning("[tgbot] init bot failed:", err)
		return t
	}
	t.bot = bot
	t.chatID = chatID
	return t
}

func (t *TelegramNotifier) Enabled() bool {
	return t != nil && t.bot != nil
}

func (t *TelegramNotifier) IsRunning() bool {
	return t.running.Load()
}

// Start 启动发送协程
func (t *TelegramNotifier) Start() {
	if !t.Enabled() || !t.running.CompareAndSwap(false, true) {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.wg.Add(1)
	go t.loop(ctx)
	logger.Info("[tgbot] notifier started")
}

func (t *TelegramNotifier) Stop() {
	if !t.running.CompareAndSwap(true, false) {
		return
	}
	t.cancel()
	t.wg.Wait()
	logger.Info("[tgbot] notifier stopped")
}

func (t *TelegramNotifier) loop(ctx context.Context) {
	defer t.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-t.queue:
			sendCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			_, err := t.bot.SendMessage(sendCtx, tu.Message(tu.ID(t.chatID), msg).WithParseMode(telego.ModeHTML))
			cancel()
			if err != nil {
				logger.Warning("[tgbot] send message failed:", err)
			}
			// Telegram 对同一会话有频率限制
			time.Sleep(500 * time.Millisecond)
		}
	}
}

// enqueue 队列满时丢弃并记录
func (t *TelegramNotifier) enqueue(msg string) {
	if !t.IsRunning() {
		return
	}
	select {
	case t.queue <- msg:
	default:
		logger.Warning("[tgbot] queue full, message dropped")
	}
}

func (t *TelegramNotifier) QuotaChanged(_ context.Context, tr Transition) {
	if tr.Reset {
		return
	}
	var title string
	switch tr.To {
	case model.QuotaWarned:
		title = "⚠️ 流量即将用尽"
	case model.QuotaSuspendedQuota:
		title = "⛔ 流量已用尽"
	case model.QuotaSuspendedExpired:
		title = "⌛ 订阅已到期"
	default:
		title = "✅ 订阅已恢复"
	}
	t.enqueue(fmt.Sprintf("<b>%s</b>\r\n用户: %s (#%d)\r\n用量: %s / %s",
		title, html.EscapeString(tr.Email), tr.UserID, common.FormatTraffic(tr.Used), formatTotal(tr.Total)))
}

func (t *TelegramNotifier) NodeChanged(_ context.Context, tr NodeTransition) {
	state := "🔴 离线"
	if tr.Live {
		state = "🟢 在线"
	}
	t.enqueue(fmt.Sprintf("<b>节点%s</b>\r\n%s (#%d)", state, html.EscapeString(tr.Name), tr.NodeID))
}
