package service

import (
	"strings"
	"sync"
	"testing"

	"x-sub/database/model"
	"x-sub/util/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyReport_IdempotentBySequence(t *testing.T) {
	e := newTestEnv(t)
	g := e.addGroup("g")
	node := e.addServer(g.Id, "n1", 0)
	u := e.addUser(withGroup(g.Id), withQuota(10*GB))

	res, err := e.report(node.Id, 7, TrafficEntry{UUID: u.UUID, Upload: 100, Download: 200})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)
	assert.Zero(t, res.Dropped)

	res, err = e.report(node.Id, 7, TrafficEntry{UUID: u.UUID, Upload: 100, Download: 200})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrStaleSequence)
	assert.Equal(t, common.ErrCodeConflict, common.GetErrorCode(err))
	require.NotNil(t, res)
	assert.True(t, res.Duplicate)

	// 乱序的旧序号同样拒绝
	_, err = e.report(node.Id, 3, TrafficEntry{UUID: u.UUID, Upload: 1})
	assert.ErrorIs(t, err, common.ErrStaleSequence)

	got := e.reload(u.Id)
	assert.Equal(t, int64(100), got.U)
	assert.Equal(t, int64(200), got.D)

	srv, err := e.serverRepo.FindByID(e.ctx, node.Id)
	require.NoError(t, err)
	assert.Equal(t, int64(7), srv.LastSeq)
	assert.Equal(t, e.clock.Now().UnixMilli(), srv.LastSeenAt)
}

func TestApplyReport_DropsUnknownAndMergesDuplicates(t *testing.T) {
	e := newTestEnv(t)
	g := e.addGroup("g")
	node := e.addServer(g.Id, "n1", 0)
	u := e.addUser(withGroup(g.Id))

	res, err := e.report(node.Id, 1,
		TrafficEntry{UUID: u.UUID, Upload: 10, Download: 1},
		TrafficEntry{UUID: "00000000-dead-beef-0000-000000000000", Upload: 999},
		TrafficEntry{UUID: u.UUID, Upload: 5, Download: 4},
	)
	require.NoError(t, err)
	// 按条目计数：合并前同一用户的两条都算作已应用
	assert.Equal(t, 2, res.Applied)
	assert.Equal(t, 1, res.Dropped)

	got := e.reload(u.Id)
	assert.Equal(t, int64(15), got.U)
	assert.Equal(t, int64(5), got.D)
}

func TestApplyReport_DropsMalformedEntriesOnly(t *testing.T) {
	e := newTestEnv(t)
	g := e.addGroup("g")
	node := e.addServer(g.Id, "n1", 0)
	u := e.addUser(withGroup(g.Id))

	res, err := e.report(node.Id, 1,
		TrafficEntry{UUID: u.UUID, Upload: 100},
		TrafficEntry{UUID: "", Upload: 5},
		TrafficEntry{UUID: "x", Upload: -5},
		TrafficEntry{UUID: u.UUID, Download: -1},
		TrafficEntry{UUID: strings.Repeat("a", 65), Upload: 1},
		TrafficEntry{UUID: u.UUID, Download: 7},
	)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Applied)
	assert.Equal(t, 4, res.Dropped)
	assert.False(t, res.Duplicate)

	got := e.reload(u.Id)
	assert.Equal(t, int64(100), got.U)
	assert.Equal(t, int64(7), got.D)

	// 序号已推进，重发同一报告被拒绝
	_, err = e.report(node.Id, 1, TrafficEntry{UUID: u.UUID, Upload: 100})
	assert.ErrorIs(t, err, common.ErrStaleSequence)

	// 全部条目非法时报告本身仍被接受
	res, err = e.report(node.Id, 2, TrafficEntry{UUID: "", Upload: 1})
	require.NoError(t, err)
	assert.Zero(t, res.Applied)
	assert.Equal(t, 1, res.Dropped)
	assert.Equal(t, int64(100), e.reload(u.Id).U)
}

func TestApplyReport_Invalid(t *testing.T) {
	e := newTestEnv(t)
	g := e.addGroup("g")
	node := e.addServer(g.Id, "n1", 0)
	u := e.addUser()

	tests := []struct {
		name   string
		report *TrafficReport
	}{
		{"在线数为负", &TrafficReport{NodeID: node.Id, Seq: 1, OnlineUsers: -1}},
		{"负载为负", &TrafficReport{NodeID: node.Id, Seq: 1, Load: NodeLoad{CPU: -1}}},
		{"序号为 0", &TrafficReport{NodeID: node.Id, Seq: 0}},
		{"节点为 0", &TrafficReport{NodeID: 0, Seq: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.traffic.ApplyReport(e.ctx, tt.report)
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrInvalidInput)
			assert.Equal(t, common.ErrCodeInvalidInput, common.GetErrorCode(err))
		})
	}

	// 校验失败不推进序号
	_, err := e.report(node.Id, 1, TrafficEntry{UUID: u.UUID, Upload: 1})
	assert.NoError(t, err)
}

func TestApplyReport_UnknownNode(t *testing.T) {
	e := newTestEnv(t)
	_, err := e.report(404, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrNodeNotFound)
	assert.Equal(t, common.ErrCodeNotFound, common.GetErrorCode(err))
}

func TestApplyReport_QuotaExhaustionDeniesSubscription(t *testing.T) {
	e := newTestEnv(t)
	g := e.addGroup("g")
	node := e.addServer(g.Id, "n1", 0)
	u := e.addUser(withGroup(g.Id), withQuota(10*GB), withUsage(5*GB, 4*GB))

	_, err := e.subs.BuildConfig(e.ctx, u.Token, FormatLinks)
	require.NoError(t, err)

	// 超出配额的增量也全部计入
	_, err = e.report(node.Id, 1, TrafficEntry{UUID: u.UUID, Upload: 1 * GB, Download: 512 << 20})
	require.NoError(t, err)

	got := e.reload(u.Id)
	assert.Equal(t, 10*GB+512<<20, got.Used())
	assert.Equal(t, model.QuotaSuspendedQuota, got.QuotaState)
	assert.True(t, got.RemindTraffic)
	assert.Equal(t, 1, e.notifier.quotaTo(model.QuotaSuspendedQuota))

	_, err = e.subs.BuildConfig(e.ctx, u.Token, FormatLinks)
	assert.ErrorIs(t, err, common.ErrAccessDenied)

	// 之后的上报不会让用户恢复
	_, err = e.report(node.Id, 2, TrafficEntry{UUID: u.UUID, Upload: 1})
	require.NoError(t, err)
	_, err = e.subs.BuildConfig(e.ctx, u.Token, FormatLinks)
	assert.ErrorIs(t, err, common.ErrAccessDenied)
}

func TestApplyReport_WarnThreshold(t *testing.T) {
	e := newTestEnv(t)
	g := e.addGroup("g")
	node := e.addServer(g.Id, "n1", 0)
	u := e.addUser(withGroup(g.Id), withQuota(10*GB))

	_, err := e.report(node.Id, 1, TrafficEntry{UUID: u.UUID, Download: 8 * GB})
	require.NoError(t, err)

	got := e.reload(u.Id)
	assert.Equal(t, model.QuotaWarned, got.QuotaState)
	assert.True(t, got.RemindTraffic)
	assert.Equal(t, 1, e.notifier.quotaTo(model.QuotaWarned))
}

func TestApplyReport_ConcurrentNodes(t *testing.T) {
	e := newTestEnv(t)
	g := e.addGroup("g")
	const nodes, reports = 4, 10
	var servers []*model.Server
	for i := 0; i < nodes; i++ {
		servers = append(servers, e.addServer(g.Id, "n"+string(rune('a'+i)), i))
	}
	a := e.addUser(withGroup(g.Id))
	b := e.addUser(withGroup(g.Id))

	var wg sync.WaitGroup
	for _, s := range servers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for seq := int64(1); seq <= reports; seq++ {
				// 交替顺序，验证按 id 排序加锁
				entries := []TrafficEntry{{UUID: a.UUID, Upload: 1}, {UUID: b.UUID, Download: 2}}
				if seq%2 == 0 {
					entries[0], entries[1] = entries[1], entries[0]
				}
				_, err := e.report(s.Id, seq, entries...)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(nodes*reports), e.reload(a.Id).U)
	assert.Equal(t, int64(2*nodes*reports), e.reload(b.Id).D)
}

func TestApplyReport_LazyResetBeforeAdding(t *testing.T) {
	e := newTestEnv(t)
	g := e.addGroup("g")
	node := e.addServer(g.Id, "n1", 0)
	u := e.addUser(withGroup(g.Id), withQuota(10*GB), withUsage(10*GB, 0))

	_, err := e.quota.Refresh(e.ctx, u.Id)
	require.NoError(t, err)
	assert.Equal(t, model.QuotaSuspendedQuota, e.reload(u.Id).QuotaState)

	// 跨过月初，首个上报先完成重置再累加
	e.clock.Set(testNow.AddDate(0, 1, 0))
	require.NoError(t, e.nodes.MarkSeen(e.ctx, node.Id, e.clock.Now()))
	_, err = e.report(node.Id, 1, TrafficEntry{UUID: u.UUID, Upload: 100})
	require.NoError(t, err)

	got := e.reload(u.Id)
	assert.Equal(t, int64(100), got.Used())
	assert.Equal(t, model.QuotaActive, got.QuotaState)
}
