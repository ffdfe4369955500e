package service

import (
	"testing"
	"time"

	"x-sub/database/model"
	"x-sub/util/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuotaEnforcer_Evaluate(t *testing.T) {
	e := newTestEnv(t)
	now := e.clock.Now()

	tests := []struct {
		name string
		user model.User
		want model.QuotaState
	}{
		{"不限量", model.User{U: 100 * GB}, model.QuotaActive},
		{"未达阈值", model.User{TransferEnable: 10 * GB, U: 7 * GB}, model.QuotaActive},
		{"达到告警阈值", model.User{TransferEnable: 10 * GB, U: 8 * GB}, model.QuotaWarned},
		{"恰好用尽", model.User{TransferEnable: 10 * GB, U: 4 * GB, D: 6 * GB}, model.QuotaSuspendedQuota},
		{"已到期优先", model.User{TransferEnable: 10 * GB, U: 10 * GB, ExpiredAt: now.Unix()}, model.QuotaSuspendedExpired},
		{"未到期", model.User{ExpiredAt: now.Add(time.Hour).Unix()}, model.QuotaActive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.quota.Evaluate(&tt.user, now))
		})
	}
}

func TestQuotaEnforcer_Allows(t *testing.T) {
	e := newTestEnv(t)
	assert.True(t, e.quota.Allows(&model.User{QuotaState: model.QuotaWarned}))
	assert.False(t, e.quota.Allows(&model.User{QuotaState: model.QuotaActive, Banned: true}))
	assert.False(t, e.quota.Allows(&model.User{QuotaState: model.QuotaSuspendedQuota}))
	assert.False(t, e.quota.Allows(&model.User{QuotaState: model.QuotaSuspendedExpired}))
}

func TestQuotaEnforcer_RolloverOncePerCycle(t *testing.T) {
	e := newTestEnv(t)
	u := e.addUser(withQuota(10*GB), withUsage(3*GB, 2*GB))
	e.clock.Set(testNow.AddDate(0, 1, 0))
	now := e.clock.Now()

	stale := e.reload(u.Id)
	tr, err := e.quota.Rollover(e.ctx, e.userRepo, stale, now)
	require.NoError(t, err)
	require.NotNil(t, tr)
	assert.True(t, tr.Reset)
	assert.Equal(t, 5*GB, tr.Used)

	// 加一些新流量后，用旧快照再次重置不会清零
	require.NoError(t, e.userRepo.AddTraffic(e.ctx, u.Id, 7, 0))
	old := *u
	tr, err = e.quota.Rollover(e.ctx, e.userRepo, &old, now)
	require.NoError(t, err)
	assert.Nil(t, tr)
	assert.Equal(t, int64(7), old.U, "CAS 失败后应重新加载")

	got := e.reload(u.Id)
	assert.Equal(t, int64(7), got.Used())
	assert.Equal(t, day(2026, time.April, 1).Unix(), got.CycleStartedAt)
}

func TestQuotaEnforcer_ResetKeepsExpiredSuspended(t *testing.T) {
	e := newTestEnv(t)
	u := e.addUser(withQuota(10*GB), withUsage(10*GB, 0), withExpiry(testNow.Add(24*time.Hour).Unix()))

	e.clock.Set(testNow.AddDate(0, 1, 0))
	got, err := e.quota.Refresh(e.ctx, u.Id)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.Used())
	assert.Equal(t, model.QuotaSuspendedExpired, got.QuotaState)
	assert.Equal(t, 1, e.notifier.quotaTo(model.QuotaSuspendedExpired))
}

func TestQuotaEnforcer_RefreshWithoutChangeSkipsWrite(t *testing.T) {
	e := newTestEnv(t)
	u := e.addUser(withQuota(10 * GB))
	before := e.reload(u.Id)

	got, err := e.quota.RefreshUser(e.ctx, before)
	require.NoError(t, err)
	assert.Same(t, before, got)
}

func TestQuotaEnforcer_AssignPlanReactivates(t *testing.T) {
	e := newTestEnv(t)
	g := e.addGroup("premium")
	plan := &model.Plan{Name: "p", GroupId: g.Id, TransferEnable: 100 * GB, SpeedLimit: 50, Enable: true, ValidDays: 30}
	require.NoError(t, e.db.Create(plan).Error)

	u := e.addUser(withQuota(10*GB), withUsage(10*GB, 0))
	_, err := e.quota.Refresh(e.ctx, u.Id)
	require.NoError(t, err)
	require.Equal(t, model.QuotaSuspendedQuota, e.reload(u.Id).QuotaState)

	got, err := e.quota.AssignPlan(e.ctx, u.Id, plan.Id)
	require.NoError(t, err)
	assert.Equal(t, model.QuotaActive, got.QuotaState)
	assert.Equal(t, g.Id, got.GroupId)
	assert.Equal(t, 100*GB, got.TransferEnable)
	assert.Equal(t, testNow.Unix()+30*86400, got.ExpiredAt)

	stored := e.reload(u.Id)
	assert.Equal(t, model.QuotaActive, stored.QuotaState)
	assert.Equal(t, 50, stored.SpeedLimit)

	_, err = e.quota.AssignPlan(e.ctx, u.Id, 999)
	assert.ErrorIs(t, err, common.ErrPlanNotFound)
	_, err = e.quota.AssignPlan(e.ctx, 999, plan.Id)
	assert.ErrorIs(t, err, common.ErrUserNotFound)
}

func TestQuotaEnforcer_ResetTraffic(t *testing.T) {
	e := newTestEnv(t)
	u := e.addUser(withQuota(10*GB), withUsage(9*GB, 2*GB))
	_, err := e.quota.Refresh(e.ctx, u.Id)
	require.NoError(t, err)

	got, err := e.quota.ResetTraffic(e.ctx, u.Id)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.Used())
	assert.Equal(t, model.QuotaActive, got.QuotaState)
	assert.False(t, e.reload(u.Id).RemindTraffic)
}

func TestQuotaEnforcer_SweepExpired(t *testing.T) {
	e := newTestEnv(t)
	expired := e.addUser(withExpiry(testNow.Add(-time.Minute).Unix()))
	soon := e.addUser(withExpiry(testNow.Add(24 * time.Hour).Unix()))
	fine := e.addUser(withExpiry(testNow.Add(30 * 24 * time.Hour).Unix()))

	changed, err := e.quota.SweepExpired(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, changed)

	assert.Equal(t, model.QuotaSuspendedExpired, e.reload(expired.Id).QuotaState)
	assert.True(t, e.reload(expired.Id).RemindExpire)
	assert.Equal(t, model.QuotaActive, e.reload(soon.Id).QuotaState)
	assert.True(t, e.reload(soon.Id).RemindExpire)
	assert.False(t, e.reload(fine.Id).RemindExpire)

	// 第二轮无变化
	changed, err = e.quota.SweepExpired(e.ctx)
	require.NoError(t, err)
	assert.Zero(t, changed)
}
