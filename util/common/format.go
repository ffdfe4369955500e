package common

import (
	"fmt"

	"go.uber.org/multierr"
)

// FormatTraffic 以 1024 进制格式化字节数
func FormatTraffic(trafficBytes int64) string {
	units := []string{"B", "KB", "MB", "GB", "TB", "PB"}
	size := float64(trafficBytes)
	unit := 0
	for size >= 1024 && unit < len(units)-1 {
		size /= 1024
		unit++
	}
	return fmt.Sprintf("%.2f%s", size, units[unit])
}

// Combine 合并多个错误，忽略 nil
func Combine(errs ...error) error {
	return multierr.Combine(errs...)
}
