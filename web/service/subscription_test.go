package service

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"x-sub/database/model"
	"x-sub/util/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscriptionBuilder_Denied(t *testing.T) {
	e := newTestEnv(t)
	g := e.addGroup("g")
	e.addServer(g.Id, "n", 0)

	banned := e.addUser(withGroup(g.Id))
	require.NoError(t, e.userRepo.UpdateFields(e.ctx, banned.Id, map[string]any{"banned": true}))
	expired := e.addUser(withGroup(g.Id), withExpiry(testNow.Add(-time.Minute).Unix()))
	exhausted := e.addUser(withGroup(g.Id), withQuota(GB), withUsage(GB, 0))

	for name, token := range map[string]string{
		"empty":     "",
		"unknown":   "no-such-token",
		"banned":    banned.Token,
		"expired":   expired.Token,
		"exhausted": exhausted.Token,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := e.subs.BuildConfig(e.ctx, token, FormatLinks)
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrAccessDenied)
			assert.Equal(t, common.ErrCodeForbidden, common.GetErrorCode(err))
		})
	}
	assert.Equal(t, int64(0), e.renderer.calls.Load())
	assert.Equal(t, model.QuotaSuspendedExpired, e.reload(expired.Id).QuotaState)
}

func TestSubscriptionBuilder_CacheHit(t *testing.T) {
	e := newTestEnv(t)
	g := e.addGroup("g")
	e.addServer(g.Id, "a", 1)
	e.addServer(g.Id, "b", 2)
	u := e.addUser(withGroup(g.Id), withQuota(10*GB), withUsage(GB, 2*GB))

	first, err := e.subs.BuildConfig(e.ctx, u.Token, FormatLinks)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)
	assert.Equal(t, u.UUID+"|a@a.example.com:443|b@b.example.com:443", string(first.Document.Body))
	assert.Equal(t, UserInfo{Upload: GB, Download: 2 * GB, Total: 10 * GB}, first.UserInfo)

	second, err := e.subs.BuildConfig(e.ctx, u.Token, FormatLinks)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Same(t, first.Document, second.Document)
	assert.Equal(t, int64(1), e.renderer.calls.Load())

	// 不同格式是独立的缓存条目
	doc, err := e.subs.BuildConfig(e.ctx, u.Token, FormatJSON)
	require.NoError(t, err)
	assert.False(t, doc.CacheHit)
	assert.Equal(t, int64(1), e.renderer.calls.Load())
}

func TestSubscriptionBuilder_RerenderOnNodeChange(t *testing.T) {
	e := newTestEnv(t)
	g := e.addGroup("g")
	a := e.addServer(g.Id, "a", 1)
	u := e.addUser(withGroup(g.Id))

	_, err := e.subs.BuildConfig(e.ctx, u.Token, FormatLinks)
	require.NoError(t, err)

	e.addServer(g.Id, "b", 2)
	sub, err := e.subs.BuildConfig(e.ctx, u.Token, FormatLinks)
	require.NoError(t, err)
	assert.False(t, sub.CacheHit)
	assert.Contains(t, string(sub.Document.Body), "b@b.example.com")
	assert.Equal(t, int64(2), e.renderer.calls.Load())

	// 入口覆盖
	require.NoError(t, e.nodes.AddRoute(e.ctx, &model.ServerRoute{ServerId: a.Id, Host: "cdn.example.com", Port: 8443, Enable: true}))
	sub, err = e.subs.BuildConfig(e.ctx, u.Token, FormatLinks)
	require.NoError(t, err)
	assert.Contains(t, string(sub.Document.Body), "a@cdn.example.com:8443")
	assert.NotContains(t, string(sub.Document.Body), "a@a.example.com")

	// b 超出在线窗口后，即使缓存未被主动清除也会因指纹变化重新渲染
	e.clock.Add(2 * time.Minute)
	require.NoError(t, e.nodes.MarkSeen(e.ctx, a.Id, e.clock.Now()))
	e.clock.Add(2 * time.Minute)
	sub, err = e.subs.BuildConfig(e.ctx, u.Token, FormatLinks)
	require.NoError(t, err)
	assert.False(t, sub.CacheHit)
	assert.NotContains(t, string(sub.Document.Body), "b@")
	assert.Equal(t, int64(4), e.renderer.calls.Load())
}

func TestSubscriptionBuilder_EmptyGroup(t *testing.T) {
	e := newTestEnv(t)
	u := e.addUser()

	sub, err := e.subs.BuildConfig(e.ctx, u.Token, FormatLinks)
	require.NoError(t, err)
	assert.Equal(t, u.UUID, string(sub.Document.Body))
}

func TestSubscriptionBuilder_ConcurrentRendersCoalesce(t *testing.T) {
	e := newTestEnv(t)
	g := e.addGroup("g")
	e.addServer(g.Id, "a", 1)
	u := e.addUser(withGroup(g.Id))

	var wg sync.WaitGroup
	bodies := make([]string, 8)
	for i := range bodies {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub, err := e.subs.BuildConfig(e.ctx, u.Token, FormatLinks)
			if assert.NoError(t, err) {
				bodies[i] = string(sub.Document.Body)
			}
		}()
	}
	wg.Wait()
	for _, b := range bodies {
		assert.Equal(t, bodies[0], b)
	}
	assert.LessOrEqual(t, e.renderer.calls.Load(), int64(len(bodies)))
	assert.GreaterOrEqual(t, e.renderer.calls.Load(), int64(1))
}

func TestSubscriptionBuilder_UnsupportedFormat(t *testing.T) {
	e := newTestEnv(t)
	u := e.addUser()
	_, err := e.subs.BuildConfig(e.ctx, u.Token, FormatClash)
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	f, ok := ParseFormat("")
	assert.True(t, ok)
	assert.Equal(t, FormatLinks, f)
	_, ok = ParseFormat("surge")
	assert.False(t, ok)
}

func TestSubscriptionBuilder_ResetToken(t *testing.T) {
	e := newTestEnv(t)
	u := e.addUser()
	_, err := e.subs.BuildConfig(e.ctx, u.Token, FormatLinks)
	require.NoError(t, err)

	next, err := e.subs.ResetToken(e.ctx, u.Token)
	require.NoError(t, err)
	assert.Len(t, next, 32)
	assert.NotEqual(t, u.Token, next)

	_, err = e.subs.BuildConfig(e.ctx, u.Token, FormatLinks)
	assert.ErrorIs(t, err, common.ErrAccessDenied)
	_, err = e.subs.ResetToken(e.ctx, u.Token)
	assert.ErrorIs(t, err, common.ErrAccessDenied)

	sub, err := e.subs.BuildConfig(e.ctx, next, FormatLinks)
	require.NoError(t, err)
	assert.False(t, sub.CacheHit)
}

func TestSubscriptionBuilder_LinkAndQRCode(t *testing.T) {
	e := newTestEnv(t)
	u := e.addUser()

	link, err := e.subs.SubscribeLink(e.ctx, u.Token)
	require.NoError(t, err)
	assert.Contains(t, link, "/subscribe/config?token="+u.Token)

	png, err := e.subs.SubscribeQRCode(e.ctx, u.Token)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), png[:4])

	_, err = e.subs.SubscribeQRCode(e.ctx, "bogus")
	assert.ErrorIs(t, err, common.ErrAccessDenied)
}

func TestSubscriptionBuilder_TestConnectivity(t *testing.T) {
	e := newTestEnv(t)
	g := e.addGroup("g")
	for _, name := range []string{"a", "b", "c"} {
		e.addServer(g.Id, name, 0)
	}
	u := e.addUser(withGroup(g.Id))

	var mu sync.Mutex
	var dialed []string
	e.prober.SetDialer(func(ctx context.Context, network, address string) (net.Conn, error) {
		mu.Lock()
		dialed = append(dialed, address)
		mu.Unlock()
		c1, c2 := net.Pipe()
		_ = c2.Close()
		return c1, nil
	})

	res, err := e.subs.TestSubscribeConnectivity(e.ctx, u.Token, 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "a", res[0].Name)
	assert.Equal(t, "b", res[1].Name)
	assert.Len(t, dialed, 2)

	before := e.reload(u.Id)
	assert.Equal(t, u.U+u.D, before.U+before.D)

	status, err := e.subs.NodeStatus(e.ctx, u.Token)
	require.NoError(t, err)
	assert.Len(t, status, 3)

	_, err = e.subs.TestSubscribeConnectivity(e.ctx, "bogus", 2)
	assert.ErrorIs(t, err, common.ErrAccessDenied)
}
