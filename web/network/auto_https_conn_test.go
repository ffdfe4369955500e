package network

import (
	"bufio"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listen(t *testing.T) net.Listener {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return NewAutoHttpsListener(l)
}

func TestAutoHttps_RedirectsPlainHTTP(t *testing.T) {
	l := listen(t)
	readErr := make(chan error, 1)
	go func() {
		c, err := l.Accept()
		if err != nil {
			readErr <- err
			return
		}
		_, err = c.Read(make([]byte, 16))
		readErr <- err
	}()

	conn, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	_, err = io.WriteString(conn, "GET /subscribe/config?token=abc HTTP/1.1\r\nHost: sub.example.com\r\n\r\n")
	require.NoError(t, err)

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	resp, err := http.ReadResponse(bufio.NewReader(conn), nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.Equal(t, "https://sub.example.com/subscribe/config?token=abc", resp.Header.Get("Location"))
	assert.ErrorIs(t, <-readErr, ErrRedirectedToHTTPS)
}

func TestAutoHttps_PassesThroughTLS(t *testing.T) {
	l := listen(t)
	got := make(chan []byte, 1)
	go func() {
		c, err := l.Accept()
		if err != nil {
			got <- nil
			return
		}
		defer c.Close()
		buf := make([]byte, 6)
		_, err = io.ReadFull(c, buf)
		if err != nil {
			got <- nil
			return
		}
		got <- buf
	}()

	conn, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	payload := []byte{tlsRecordHandshake, 0x03, 0x01, 'a', 'b', 'c'}
	_, err = conn.Write(payload)
	require.NoError(t, err)

	select {
	case b := <-got:
		assert.Equal(t, payload, b, "peeked bytes must not be consumed")
	case <-time.After(5 * time.Second):
		t.Fatal("timeout")
	}
}
