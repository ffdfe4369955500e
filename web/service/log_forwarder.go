package service

import (
	"fmt"
	"html"
	"strings"

	"x-sub/logger"
	"x-sub/util/common"

	"github.com/op/go-logging"
	"golang.org/x/time/rate"
)

// LogForwarder 把高级别日志转发到 Telegram，按速率限制防止刷屏
type LogForwarder struct {
	tg      *TelegramNotifier
	level   logging.Level
	limiter *rate.Limiter
}

// NewLogForwarder level 为空或无法解析时返回 nil
func NewLogForwarder(tg *TelegramNotifier, level string) *LogForwarder {
	if level == "" {
		return nil
	}
	lvl, err := common.ParseLogLevel(level)
	if err != nil {
		logger.Warningf("[tgbot] invalid log forward level %q", level)
		return nil
	}
	return &LogForwarder{
		tg:      tg,
		level:   lvl,
		limiter: rate.NewLimiter(rate.Limit(0.5), 5),
	}
}

// OnLog 实现 logger.LogListener
func (f *LogForwarder) OnLog(level logging.Level, message string, _ string) {
	if level > f.level {
		return
	}
	// 转发器自身的日志不再转发
	if strings.HasPrefix(message, "[tgbot]") {
		return
	}
	if !f.limiter.Allow() {
		return
	}
	f.tg.enqueue(fmt.Sprintf("<b>%s</b>\r\n<code>%s</code>", level, html.EscapeString(message)))
}

func (f *LogForwarder) Start() {
	logger.AddLogListener(f)
}

func (f *LogForwarder) Stop() {
	logger.RemoveLogListener(f)
}
