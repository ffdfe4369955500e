package security

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

// RateLimiter 按键（客户端 IP、节点 ID 等）限速
type RateLimiter interface {
	Allow(key string) bool
	AddWhitelist(key string)
}

// RateLimitConfig 速率限制配置
type RateLimitConfig struct {
	PerSecond float64
	Burst     int
	// 最多跟踪的键数量，超出后淘汰最久未使用的
	MaxKeys int
	// 键空闲超过该时长后清除
	IdleTTL time.Duration
}

// DefaultRateLimitConfig 默认每秒 2 次，突发 10 次
var DefaultRateLimitConfig = RateLimitConfig{
	PerSecond: 2,
	Burst:     10,
	MaxKeys:   10000,
	IdleTTL:   time.Hour,
}

// rateLimiterImpl 令牌桶速率限制器的实现
type rateLimiterImpl struct {
	limiters  *expirable.LRU[string, *rate.Limiter]
	whitelist map[string]bool
	mutex     sync.RWMutex
	limit     rate.Limit
	burst     int
}

// NewRateLimiter 创建限速器，PerSecond 不大于 0 时不限速
func NewRateLimiter(cfg RateLimitConfig) RateLimiter {
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = DefaultRateLimitConfig.MaxKeys
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultRateLimitConfig.IdleTTL
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	limit := rate.Limit(cfg.PerSecond)
	if cfg.PerSecond <= 0 {
		limit = rate.Inf
	}
	return &rateLimiterImpl{
		limiters:  expirable.NewLRU[string, *rate.Limiter](cfg.MaxKeys, nil, cfg.IdleTTL),
		whitelist: make(map[string]bool),
		limit:     limit,
		burst:     cfg.Burst,
	}
}

// Allow 检查该键是否还有令牌
func (rl *rateLimiterImpl) Allow(key string) bool {
	rl.mutex.RLock()
	white := rl.whitelist[key]
	rl.mutex.RUnlock()
	if white || rl.limit == rate.Inf {
		return true
	}

	rl.mutex.Lock()
	l, ok := rl.limiters.Get(key)
	if !ok {
		l = rate.NewLimiter(rl.limit, rl.burst)
		rl.limiters.Add(key, l)
	}
	rl.mutex.Unlock()

	return l.Allow()
}

// AddWhitelist 白名单内的键不受限制
func (rl *rateLimiterImpl) AddWhitelist(key string) {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()
	rl.whitelist[key] = true
}
