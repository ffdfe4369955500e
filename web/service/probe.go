package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"net"
	"strconv"
	"sync"
	"time"

	"x-sub/config"
	"x-sub/database/model"

	"github.com/benbjohnson/clock"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
)

// ProbeResult 单个节点的连通性结果
type ProbeResult struct {
	NodeID    int64  `json:"node_id"`
	Name      string `json:"name"`
	Address   string `json:"address"`
	Reachable bool   `json:"reachable"`
	// Unknown UDP 探测在超时内没有收到任何回应，既不算成功也不能断定离线
	Unknown   bool   `json:"unknown,omitempty"`
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// DialFunc 与 net.Dialer.DialContext 同签名，测试中可替换
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Prober 对节点做有界并发的连通性探测。超时即失败，不重试；
// 成功时间只记录在内存中，作为在线判定的补充信号
type Prober struct {
	timeout     time.Duration
	concurrency int
	dial        DialFunc
	clock       clock.Clock
	metrics     *Metrics

	lastSuccess sync.Map // node id -> time.Time
	inflight    atomic.Int64
}

func NewProber(clk clock.Clock, metrics *Metrics) *Prober {
	timeout := config.GetProbeTimeout()
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	concurrency := config.GetProbeConcurrency()
	if concurrency <= 0 {
		concurrency = 8
	}
	d := &net.Dialer{}
	return &Prober{
		timeout:     timeout,
		concurrency: concurrency,
		dial:        d.DialContext,
		clock:       clk,
		metrics:     metrics,
	}
}

// SetDialer 替换拨号函数
func (p *Prober) SetDialer(dial DialFunc) {
	p.dial = dial
}

var errNoReply = errors.New("no reply within timeout")

// probeNetwork hysteria2 基于 QUIC，走 UDP
func probeNetwork(protocol model.Protocol) string {
	if protocol == model.Hysteria2 {
		return "udp"
	}
	return "tcp"
}

// Probe 按输入顺序返回结果。ctx 取消后尚未完成的探测记为失败
func (p *Prober) Probe(ctx context.Context, servers []*model.Server) []ProbeResult {
	results := make([]ProbeResult, len(servers))
	g := new(errgroup.Group)
	g.SetLimit(p.concurrency)

	for i, s := range servers {
		g.Go(func() error {
			results[i] = p.probeOne(ctx, s)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (p *Prober) probeOne(ctx context.Context, s *model.Server) ProbeResult {
	p.inflight.Inc()
	defer p.inflight.Dec()

	addr := net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
	res := ProbeResult{NodeID: s.Id, Name: s.Name, Address: addr}

	pctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := p.clock.Now()
	network := probeNetwork(s.Protocol)
	conn, err := p.dial(pctx, network, addr)
	if err == nil && network == "udp" {
		// UDP 拨号不发包，必须收到回应才算可达
		err = exchangeQUIC(pctx, conn)
	}
	if conn != nil {
		_ = conn.Close()
	}
	if errors.Is(err, errNoReply) {
		res.Unknown = true
		res.Error = err.Error()
		p.metrics.Probes.WithLabelValues("unknown").Inc()
		return res
	}
	if err != nil {
		res.Error = err.Error()
		p.metrics.Probes.WithLabelValues("fail").Inc()
		return res
	}

	now := p.clock.Now()
	res.Reachable = true
	res.LatencyMs = now.Sub(start).Milliseconds()
	p.lastSuccess.Store(s.Id, now)
	p.metrics.Probes.WithLabelValues("ok").Inc()
	return res
}

// quicVersionProbe 使用保留版本号 0x1a2a3a4a 的 QUIC 长包头，填充到 1200 字节。
// QUIC 服务端对不支持的版本回复版本协商包；端口关闭时连接型 UDP socket 读到 ICMP 拒绝
func quicVersionProbe() []byte {
	b := make([]byte, 1200)
	b[0] = 0xc0
	binary.BigEndian.PutUint32(b[1:5], 0x1a2a3a4a)
	b[5] = 8
	_, _ = rand.Read(b[6:14])
	b[14] = 8
	_, _ = rand.Read(b[15:23])
	return b
}

func exchangeQUIC(ctx context.Context, conn net.Conn) error {
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}
	if _, err := conn.Write(quicVersionProbe()); err != nil {
		return err
	}
	buf := make([]byte, 1500)
	if _, err := conn.Read(buf); err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return errNoReply
		}
		return err
	}
	return nil
}

// LastSuccess 最近一次探测成功的时间
func (p *Prober) LastSuccess(nodeID int64) (time.Time, bool) {
	v, ok := p.lastSuccess.Load(nodeID)
	if !ok {
		return time.Time{}, false
	}
	return v.(time.Time), true
}

// Forget 节点删除后清除探测记录
func (p *Prober) Forget(nodeID int64) {
	p.lastSuccess.Delete(nodeID)
}

func (p *Prober) Inflight() int64 {
	return p.inflight.Load()
}
