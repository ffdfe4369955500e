package logger

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/op/go-logging"
)

const moduleName = "x-sub"

// Level 日志级别，直接复用 go-logging 的定义
type Level = logging.Level

const (
	CRITICAL = logging.CRITICAL
	ERROR    = logging.ERROR
	WARNING  = logging.WARNING
	NOTICE   = logging.NOTICE
	INFO     = logging.INFO
	DEBUG    = logging.DEBUG
)

// LogListener 定义日志监听器接口
type LogListener interface {
	OnLog(level logging.Level, message string, formattedLog string)
}

// ListenerBackend 在下游后端之后把日志分发给监听器
type ListenerBackend struct {
	listeners []LogListener
	mu        sync.RWMutex
	next      logging.Backend
}

func NewListenerBackend(next logging.Backend) *ListenerBackend {
	return &ListenerBackend{
		listeners: make([]LogListener, 0),
		next:      next,
	}
}

func (b *ListenerBackend) AddListener(listener LogListener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, listener)
}

func (b *ListenerBackend) RemoveListener(listener LogListener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, l := range b.listeners {
		if l == listener {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			break
		}
	}
}

// Log 实现 logging.Backend 接口
func (b *ListenerBackend) Log(level logging.Level, calldepth int, rec *logging.Record) error {
	if b.next != nil {
		if err := b.next.Log(level, calldepth+1, rec); err != nil {
			return err
		}
	}

	b.mu.RLock()
	listeners := make([]LogListener, len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.RUnlock()

	if len(listeners) > 0 {
		formattedLog := rec.Formatted(calldepth + 1)
		for _, listener := range listeners {
			go listener.OnLog(level, rec.Message(), formattedLog)
		}
	}
	return nil
}

type bufferedLog struct {
	time  string
	level logging.Level
	log   string
}

var (
	logger          *logging.Logger
	listenerBackend *ListenerBackend

	// 请求处理是并发的，环形缓冲区需要自己的锁
	bufMu     sync.Mutex
	logBuffer []bufferedLog
)

const maxBufferSize = 2000

func init() {
	InitLogger(logging.INFO)
}

// InitLogger 初始化控制台日志，syslog 可用时优先使用 syslog
func InitLogger(level logging.Level) {
	newLogger := logging.MustGetLogger(moduleName)
	var backend logging.Backend
	var format logging.Formatter

	backend, err := logging.NewSyslogBackend("")
	if err != nil {
		backend = logging.NewLogBackend(os.Stderr, "", 0)
		format = logging.MustStringFormatter(`%{time:2006/01/02 15:04:05} %{level} - %{message}`)
	} else {
		format = logging.MustStringFormatter(`%{level} - %{message}`)
	}

	backendFormatter := logging.NewBackendFormatter(backend, format)
	backendLeveled := logging.AddModuleLevel(backendFormatter)
	backendLeveled.SetLevel(level, moduleName)

	listenerBackend = NewListenerBackend(backendLeveled)
	listenerBackendLeveled := logging.AddModuleLevel(logging.NewBackendFormatter(listenerBackend, format))
	listenerBackendLeveled.SetLevel(level, moduleName)

	newLogger.SetBackend(listenerBackendLeveled)
	logger = newLogger
}

func Debug(args ...any) {
	logger.Debug(args...)
	addToBuffer("DEBUG", fmt.Sprint(args...))
}

func Debugf(format string, args ...any) {
	logger.Debugf(format, args...)
	addToBuffer("DEBUG", fmt.Sprintf(format, args...))
}

func Info(args ...any) {
	logger.Info(args...)
	addToBuffer("INFO", fmt.Sprint(args...))
}

func Infof(format string, args ...any) {
	logger.Infof(format, args...)
	addToBuffer("INFO", fmt.Sprintf(format, args...))
}

func Notice(args ...any) {
	logger.Notice(args...)
	addToBuffer("NOTICE", fmt.Sprint(args...))
}

func Noticef(format string, args ...any) {
	logger.Noticef(format, args...)
	addToBuffer("NOTICE", fmt.Sprintf(format, args...))
}

func Warning(args ...any) {
	logger.Warning(args...)
	addToBuffer("WARNING", fmt.Sprint(args...))
}

func Warningf(format string, args ...any) {
	logger.Warningf(format, args...)
	addToBuffer("WARNING", fmt.Sprintf(format, args...))
}

func Error(args ...any) {
	logger.Error(args...)
	addToBuffer("ERROR", fmt.Sprint(args...))
}

func Errorf(format string, args ...any) {
	logger.Errorf(format, args...)
	addToBuffer("ERROR", fmt.Sprintf(format, args...))
}

func addToBuffer(level string, newLog string) {
	logLevel, _ := logging.LogLevel(level)

	bufMu.Lock()
	defer bufMu.Unlock()
	if len(logBuffer) >= maxBufferSize {
		logBuffer = logBuffer[1:]
	}
	logBuffer = append(logBuffer, bufferedLog{
		time:  time.Now().Format("2006/01/02 15:04:05"),
		level: logLevel,
		log:   newLog,
	})
}

// GetLogs 返回最近 c 条不低于 level 的日志，新日志在前
func GetLogs(c int, level string) []string {
	var output []string
	logLevel, _ := logging.LogLevel(level)

	bufMu.Lock()
	defer bufMu.Unlock()
	for i := len(logBuffer) - 1; i >= 0 && len(output) < c; i-- {
		if logBuffer[i].level <= logLevel {
			output = append(output, fmt.Sprintf("%s %s - %s", logBuffer[i].time, logBuffer[i].level, logBuffer[i].log))
		}
	}
	return output
}

func AddLogListener(listener LogListener) {
	if listenerBackend != nil {
		listenerBackend.AddListener(listener)
	}
}

func RemoveLogListener(listener LogListener) {
	if listenerBackend != nil {
		listenerBackend.RemoveListener(listener)
	}
}
