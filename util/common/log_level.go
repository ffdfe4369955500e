package common

import (
	"fmt"
	"strings"

	"x-sub/logger"
)

// ParseLogLevel 解析配置中的日志级别（app.log_level、telegram.log_forward_level），
// 大小写不敏感，warn 等同 warning
func ParseLogLevel(s string) (logger.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return logger.DEBUG, nil
	case "info":
		return logger.INFO, nil
	case "notice":
		return logger.NOTICE, nil
	case "warn", "warning":
		return logger.WARNING, nil
	case "error":
		return logger.ERROR, nil
	}
	return logger.WARNING, fmt.Errorf("%w: unknown log level %q", ErrInvalidInput, s)
}

// LogLevelName 与配置取值一致的小写名称
func LogLevelName(level logger.Level) string {
	return strings.ToLower(level.String())
}
