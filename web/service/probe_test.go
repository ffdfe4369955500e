package service

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"x-sub/database/model"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func TestProber_RealListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			_ = c.Close()
		}
	}()
	port := ln.Addr().(*net.TCPAddr).Port

	// 取一个刚释放的端口作为不可达目标
	closed, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	closedPort := closed.Addr().(*net.TCPAddr).Port
	require.NoError(t, closed.Close())

	p := NewProber(clock.New(), NewMetrics())
	res := p.Probe(context.Background(), []*model.Server{
		{Id: 1, Name: "up", Host: "127.0.0.1", Port: port, Protocol: model.VLESS},
		{Id: 2, Name: "down", Host: "127.0.0.1", Port: closedPort, Protocol: model.VLESS},
	})
	require.Len(t, res, 2)
	assert.True(t, res[0].Reachable)
	assert.False(t, res[1].Reachable)
	assert.NotEmpty(t, res[1].Error)

	_, ok := p.LastSuccess(1)
	assert.True(t, ok)
	_, ok = p.LastSuccess(2)
	assert.False(t, ok)
}

func TestProber_TimeoutAndBoundedFanOut(t *testing.T) {
	p := NewProber(clock.New(), NewMetrics())
	p.timeout = 50 * time.Millisecond
	p.concurrency = 2

	var (
		current atomic.Int64
		peak    atomic.Int64
		mu      sync.Mutex
	)
	p.SetDialer(func(ctx context.Context, network, address string) (net.Conn, error) {
		n := current.Inc()
		mu.Lock()
		if n > peak.Load() {
			peak.Store(n)
		}
		mu.Unlock()
		defer current.Dec()
		<-ctx.Done()
		return nil, ctx.Err()
	})

	servers := make([]*model.Server, 5)
	for i := range servers {
		servers[i] = &model.Server{Id: int64(i + 1), Host: "10.0.0.1", Port: 443, Protocol: model.Trojan}
	}
	start := time.Now()
	res := p.Probe(context.Background(), servers)
	elapsed := time.Since(start)

	for _, r := range res {
		assert.False(t, r.Reachable)
		assert.Contains(t, r.Error, context.DeadlineExceeded.Error())
	}
	assert.LessOrEqual(t, peak.Load(), int64(2))
	assert.Less(t, elapsed, 2*time.Second)
}

func TestProber_CallerCancellation(t *testing.T) {
	p := NewProber(clock.New(), NewMetrics())
	p.SetDialer(func(ctx context.Context, network, address string) (net.Conn, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := p.Probe(ctx, []*model.Server{{Id: 1, Host: "h", Port: 1, Protocol: model.VMESS}})
	require.Len(t, res, 1)
	assert.False(t, res[0].Reachable)
	assert.True(t, errors.Is(ctx.Err(), context.Canceled))
}

func TestProbeNetwork(t *testing.T) {
	assert.Equal(t, "udp", probeNetwork(model.Hysteria2))
	assert.Equal(t, "tcp", probeNetwork(model.Shadowsocks))
}

func TestProber_Hysteria2NeedsReply(t *testing.T) {
	// 对任意数据报回包的 UDP 服务
	echo, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer echo.Close()
	go func() {
		buf := make([]byte, 2048)
		for {
			n, addr, err := echo.ReadFrom(buf)
			if err != nil {
				return
			}
			_, _ = echo.WriteTo(buf[:n], addr)
		}
	}()

	// 只收不回
	silent, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer silent.Close()

	// 刚释放的端口，无人监听
	closed, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	closedPort := closed.LocalAddr().(*net.UDPAddr).Port
	require.NoError(t, closed.Close())

	p := NewProber(clock.New(), NewMetrics())
	p.timeout = 300 * time.Millisecond
	res := p.Probe(context.Background(), []*model.Server{
		{Id: 1, Name: "echo", Host: "127.0.0.1", Port: echo.LocalAddr().(*net.UDPAddr).Port, Protocol: model.Hysteria2},
		{Id: 2, Name: "silent", Host: "127.0.0.1", Port: silent.LocalAddr().(*net.UDPAddr).Port, Protocol: model.Hysteria2},
		{Id: 3, Name: "closed", Host: "127.0.0.1", Port: closedPort, Protocol: model.Hysteria2},
	})
	require.Len(t, res, 3)

	assert.True(t, res[0].Reachable)
	assert.False(t, res[0].Unknown)
	_, ok := p.LastSuccess(1)
	assert.True(t, ok)

	assert.False(t, res[1].Reachable)
	assert.True(t, res[1].Unknown)
	_, ok = p.LastSuccess(2)
	assert.False(t, ok)

	assert.False(t, res[2].Reachable)
	assert.NotEmpty(t, res[2].Error)
	_, ok = p.LastSuccess(3)
	assert.False(t, ok)
}

func TestQuicVersionProbe(t *testing.T) {
	b := quicVersionProbe()
	assert.Len(t, b, 1200)
	assert.Equal(t, byte(0xc0), b[0]&0xc0)
	assert.Equal(t, []byte{0x1a, 0x2a, 0x3a, 0x4a}, b[1:5])
	assert.Equal(t, byte(8), b[5])
	assert.Equal(t, byte(8), b[14])
}
