package security

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestRateLimiter_Allow_Exceed 测试超过阈值被拒绝
func TestRateLimiter_Allow_Exceed(t *testing.T) {
	limiter := NewRateLimiter(RateLimitConfig{PerSecond: 1, Burst: 1})

	assert.True(t, limiter.Allow("192.168.1.100"), "第一个请求应该被允许")
	assert.False(t, limiter.Allow("192.168.1.100"), "超过速率限制的请求应该被拒绝")
	assert.True(t, limiter.Allow("192.168.1.101"), "不同的键互不影响")

	time.Sleep(1100 * time.Millisecond)
	assert.True(t, limiter.Allow("192.168.1.100"), "等待后应该允许新请求")
}

// TestRateLimiter_Whitelist 测试白名单始终允许
func TestRateLimiter_Whitelist(t *testing.T) {
	limiter := NewRateLimiter(RateLimitConfig{PerSecond: 1, Burst: 1})
	limiter.AddWhitelist("127.0.0.1")

	for i := 0; i < 10; i++ {
		assert.True(t, limiter.Allow("127.0.0.1"))
	}
}

func TestRateLimiter_Unlimited(t *testing.T) {
	limiter := NewRateLimiter(RateLimitConfig{PerSecond: 0})
	for i := 0; i < 100; i++ {
		assert.True(t, limiter.Allow("k"))
	}
}

// TestRateLimiter_Concurrent 并发访问时突发数量不被突破
func TestRateLimiter_Concurrent(t *testing.T) {
	limiter := NewRateLimiter(RateLimitConfig{PerSecond: 0.001, Burst: 5})

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.Allow("10.0.0.1") {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 5, allowed)
}
