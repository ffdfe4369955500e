package security

import (
	"log"
	"strings"

	"x-sub/logger"
)

// knownScannerErrors 已知的扫描器错误模式
var knownScannerErrors = []string{
	"tls: client offered only unsupported versions",
	"tls: no cipher suite supported by both client and server",
	"tls: client offered an unsupported, maximum protocol version of",
	"tls: unsupported SSLv2 handshake received",
	"tls: first record does not look like a TLS handshake",
	"local error: tls: bad record MAC",
	"remote error: tls: bad certificate",
	"remote error: tls: unknown certificate authority",
	"plain http request redirected to https",
	"EOF",
}

// classifyTLSError 分类TLS错误类型，从最具体到最通用
func classifyTLSError(errMsg string) string {
	switch {
	case strings.Contains(errMsg, "certificate"):
		return "certificate"
	case strings.Contains(errMsg, "cipher"):
		return "cipher_suite"
	case strings.Contains(errMsg, "record"):
		return "record"
	case strings.Contains(errMsg, "version"), strings.Contains(errMsg, "SSLv2"), strings.Contains(errMsg, "SSLv3"):
		return "protocol_version"
	case strings.Contains(errMsg, "handshake"):
		return "handshake"
	}
	return "unknown"
}

func isKnownScannerError(errMsg string) bool {
	for _, pattern := range knownScannerErrors {
		if strings.Contains(errMsg, pattern) {
			return true
		}
	}
	return false
}

// serverErrorWriter 接管 http.Server 的错误日志。
// 扫描器造成的握手失败降为 debug，避免日志噪音
type serverErrorWriter struct {
	name string
}

func (w serverErrorWriter) Write(p []byte) (int, error) {
	msg := strings.TrimSpace(string(p))
	if rest, ok := strings.CutPrefix(msg, "http: TLS handshake error from "); ok {
		client, reason, _ := strings.Cut(rest, ": ")
		if isKnownScannerError(reason) {
			logger.Debugf("[%s] TLS扫描器检测 - IP: %s, 错误: %s", w.name, client, reason)
		} else {
			logger.Warningf("[%s] TLS握手错误 - IP: %s, 类型: %s, 错误: %s", w.name, client, classifyTLSError(reason), reason)
		}
		return len(p), nil
	}
	logger.Warningf("[%s] %s", w.name, msg)
	return len(p), nil
}

// NewServerErrorLog 返回 http.Server.ErrorLog 使用的 logger
func NewServerErrorLog(name string) *log.Logger {
	return log.New(serverErrorWriter{name: name}, "", 0)
}
