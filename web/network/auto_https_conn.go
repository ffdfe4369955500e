package network

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"x-sub/logger"
)

// ErrRedirectedToHTTPS 明文 HTTP 请求已被重定向，连接随后关闭
var ErrRedirectedToHTTPS = errors.New("plain http request redirected to https")

// tlsRecordHandshake TLS 握手记录的首字节
const tlsRecordHandshake = 0x16

// AutoHttpsListener 位于 TLS 监听器之下：明文 HTTP 请求收到 307 跳转，TLS 连接原样透传
type AutoHttpsListener struct {
	net.Listener
}

func NewAutoHttpsListener(listener net.Listener) net.Listener {
	return &AutoHttpsListener{Listener: listener}
}

func (l *AutoHttpsListener) Accept() (net.Conn, error) {
	c, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}
	return NewAutoHttpsConn(c), nil
}

type AutoHttpsConn struct {
	net.Conn

	reader *bufio.Reader
	once   sync.Once
	err    error
}

func NewAutoHttpsConn(conn net.Conn) net.Conn {
	return &AutoHttpsConn{
		Conn:   conn,
		reader: bufio.NewReader(conn),
	}
}

// detectProtocol 只查看首字节，不消耗数据
func (c *AutoHttpsConn) detectProtocol() {
	first, err := c.reader.Peek(1)
	if err != nil {
		c.err = err
		return
	}
	if first[0] == tlsRecordHandshake {
		return
	}

	_ = c.Conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	request, err := http.ReadRequest(c.reader)
	if err != nil {
		c.err = fmt.Errorf("unknown protocol: %w", err)
		_ = c.Conn.Close()
		return
	}
	resp := http.Response{
		StatusCode: http.StatusTemporaryRedirect,
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header:     http.Header{},
		Close:      true,
	}
	resp.Header.Set("Location", fmt.Sprintf("https://%v%v", request.Host, request.RequestURI))
	_ = resp.Write(c.Conn)
	_ = c.Conn.Close()
	logger.Debugf("HTTP request from %s redirected to HTTPS", c.Conn.RemoteAddr())
	c.err = ErrRedirectedToHTTPS
}

func (c *AutoHttpsConn) Read(buf []byte) (int, error) {
	c.once.Do(c.detectProtocol)
	if c.err != nil {
		return 0, c.err
	}
	return c.reader.Read(buf)
}
