package security

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	lru "github.com/hashicorp/golang-lru/v2"
)

// AuthGuardConfig 密钥校验失败的封禁策略
type AuthGuardConfig struct {
	MaxAttempts   int
	BlockDuration time.Duration
	MaxKeys       int
}

// DefaultAuthGuardConfig 连续失败 5 次封禁 15 分钟
var DefaultAuthGuardConfig = AuthGuardConfig{
	MaxAttempts:   5,
	BlockDuration: 15 * time.Minute,
	MaxKeys:       10000,
}

type authEntry struct {
	attempts     int
	blockedUntil time.Time
}

// AuthGuard 按客户端 IP 统计节点与管理密钥的校验失败次数
type AuthGuard struct {
	mu      sync.Mutex
	entries *lru.Cache[string, authEntry]
	clock   clock.Clock
	cfg     AuthGuardConfig
}

func NewAuthGuard(cfg AuthGuardConfig, clk clock.Clock) *AuthGuard {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultAuthGuardConfig.MaxAttempts
	}
	if cfg.BlockDuration <= 0 {
		cfg.BlockDuration = DefaultAuthGuardConfig.BlockDuration
	}
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = DefaultAuthGuardConfig.MaxKeys
	}
	entries, _ := lru.New[string, authEntry](cfg.MaxKeys)
	return &AuthGuard{entries: entries, clock: clk, cfg: cfg}
}

func (g *AuthGuard) IsBlocked(ip string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.entries.Peek(ip)
	return ok && g.clock.Now().Before(e.blockedUntil)
}

// RecordFailure 记录一次失败，达到上限后封禁并清零计数
func (g *AuthGuard) RecordFailure(ip string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, _ := g.entries.Get(ip)
	now := g.clock.Now()
	if !e.blockedUntil.IsZero() && !now.Before(e.blockedUntil) {
		e = authEntry{}
	}
	e.attempts++
	if e.attempts >= g.cfg.MaxAttempts {
		e = authEntry{blockedUntil: now.Add(g.cfg.BlockDuration)}
	}
	g.entries.Add(ip, e)
}

func (g *AuthGuard) Reset(ip string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.entries.Remove(ip)
}
