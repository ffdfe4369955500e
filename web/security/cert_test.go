package security

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var certNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

// createTestCert 在临时目录生成自签名证书，有效期 [notBefore, notAfter)
func createTestCert(t *testing.T, notBefore, notAfter time.Time) (certPath, keyPath string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{Organization: []string{"Test Org"}},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1")},
		DNSNames:              []string{"localhost"},
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	require.NoError(t, err)
	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	dir := t.TempDir()
	certPath = filepath.Join(dir, "cert.pem")
	keyPath = filepath.Join(dir, "key.pem")
	require.NoError(t, os.WriteFile(certPath, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o644))
	require.NoError(t, os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600))
	return certPath, keyPath
}

func TestLoadCertificate_Valid(t *testing.T) {
	certPath, keyPath := createTestCert(t, certNow.AddDate(0, 0, -1), certNow.AddDate(1, 0, 0))

	cert, err := LoadCertificate(certPath, keyPath, certNow)
	require.NoError(t, err)
	require.NotNil(t, cert.Leaf)
	assert.Equal(t, []string{"localhost"}, cert.Leaf.DNSNames)

	// 即将过期只告警
	_, err = LoadCertificate(certPath, keyPath, cert.Leaf.NotAfter.Add(-24*time.Hour))
	assert.NoError(t, err)
}

func TestLoadCertificate_Rejects(t *testing.T) {
	expiredCert, expiredKey := createTestCert(t, certNow.AddDate(-1, 0, 0), certNow.AddDate(0, 0, -1))
	_, err := LoadCertificate(expiredCert, expiredKey, certNow)
	assert.ErrorContains(t, err, "已过期")

	futureCert, futureKey := createTestCert(t, certNow.AddDate(0, 0, 1), certNow.AddDate(1, 0, 0))
	_, err = LoadCertificate(futureCert, futureKey, certNow)
	assert.ErrorContains(t, err, "尚未生效")

	_, err = LoadCertificate(filepath.Join(t.TempDir(), "missing.pem"), expiredKey, certNow)
	assert.ErrorContains(t, err, "加载证书失败")
}

func TestNewTLSConfig_AnySNI(t *testing.T) {
	certPath, keyPath := createTestCert(t, certNow.AddDate(0, 0, -1), certNow.AddDate(1, 0, 0))
	cert, err := LoadCertificate(certPath, keyPath, certNow)
	require.NoError(t, err)

	cfg := NewTLSConfig(cert)
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
	for _, sni := range []string{"", "1.2.3.4", "other.example.com"} {
		got, err := cfg.GetCertificate(&tls.ClientHelloInfo{ServerName: sni})
		require.NoError(t, err)
		assert.Same(t, cert, got)
	}
}
