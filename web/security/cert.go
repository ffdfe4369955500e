package security

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"time"

	"x-sub/logger"
)

// CertExpiryWarning 证书剩余有效期低于该值时告警
const CertExpiryWarning = 30 * 24 * time.Hour

// LoadCertificate 加载证书与私钥并检查有效期。证书已过期或尚未生效时返回错误
func LoadCertificate(certPath, keyPath string, now time.Time) (*tls.Certificate, error) {
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("加载证书失败: %w", err)
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return nil, fmt.Errorf("解析证书失败: %w", err)
	}
	cert.Leaf = leaf

	switch {
	case now.Before(leaf.NotBefore):
		return nil, fmt.Errorf("证书尚未生效: %s, 生效时间: %s", certPath, leaf.NotBefore.Format(time.DateOnly))
	case !now.Before(leaf.NotAfter):
		return nil, fmt.Errorf("证书已过期: %s, 到期时间: %s", certPath, leaf.NotAfter.Format(time.DateOnly))
	case leaf.NotAfter.Sub(now) < CertExpiryWarning:
		logger.Warningf("证书即将过期: %s, 到期时间: %s", certPath, leaf.NotAfter.Format(time.DateOnly))
	}
	return &cert, nil
}

// NewTLSConfig 无论客户端发送什么 SNI（包括 IP 或空 SNI）都返回同一张证书
func NewTLSConfig(cert *tls.Certificate) *tls.Config {
	return &tls.Config{
		Certificates: []tls.Certificate{*cert},
		MinVersion:   tls.VersionTLS12,
		GetCertificate: func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
			return cert, nil
		},
	}
}
