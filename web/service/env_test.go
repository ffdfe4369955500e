package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"x-sub/database"
	"x-sub/database/model"
	"x-sub/database/repository"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

const GB = int64(1) << 30

// fakeRenderer 输出可预测的内容并统计渲染次数
type fakeRenderer struct {
	format Format
	calls  atomic.Int64
}

func (r *fakeRenderer) Format() Format      { return r.format }
func (r *fakeRenderer) ContentType() string { return "text/plain" }

func (r *fakeRenderer) Render(in *RenderInput) ([]byte, error) {
	r.calls.Inc()
	body := in.UserUUID
	for _, n := range in.Nodes {
		for _, e := range n.Endpoints {
			body += fmt.Sprintf("|%s@%s:%d", n.Server.Name, e.Host, e.Port)
		}
	}
	return []byte(body), nil
}

// recordingNotifier 记录全部通知
type recordingNotifier struct {
	mu    sync.Mutex
	quota []Transition
	nodes []NodeTransition
}

func (n *recordingNotifier) QuotaChanged(_ context.Context, t Transition) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.quota = append(n.quota, t)
}

func (n *recordingNotifier) NodeChanged(_ context.Context, t NodeTransition) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nodes = append(n.nodes, t)
}

func (n *recordingNotifier) quotaTo(state model.QuotaState) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, t := range n.quota {
		if !t.Reset && t.To == state {
			count++
		}
	}
	return count
}

type testEnv struct {
	t        *testing.T
	ctx      context.Context
	db       *gorm.DB
	clock    *clock.Mock
	notifier *recordingNotifier
	renderer *fakeRenderer
	metrics  *Metrics

	userRepo   repository.UserRepository
	serverRepo repository.ServerRepository

	cache      *SubscriptionCache
	prober     *Prober
	quota      *QuotaEnforcer
	nodes      *NodeRegistry
	traffic    *TrafficAggregator
	subs       *SubscriptionBuilder
	coupons    *CouponLedger
	commission *CommissionLedger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := database.CreateTestDB(t)
	clk := clock.NewMock()
	clk.Set(testNow)

	e := &testEnv{
		t:          t,
		ctx:        context.Background(),
		db:         db,
		clock:      clk,
		notifier:   &recordingNotifier{},
		renderer:   &fakeRenderer{format: FormatLinks},
		metrics:    NewMetrics(),
		userRepo:   repository.NewUserRepository(db),
		serverRepo: repository.NewServerRepository(db),
	}
	cache, err := NewSubscriptionCache()
	require.NoError(t, err)
	e.cache = cache
	e.prober = NewProber(clk, e.metrics)
	e.quota = NewQuotaEnforcer(db, e.userRepo, repository.NewPlanRepository(db), NewResetPolicies(ResetMonthlyFirstDay),
		clk, e.notifier, cache, e.metrics)
	e.nodes = NewNodeRegistry(db, e.serverRepo, e.prober, cache, clk)
	e.traffic = NewTrafficAggregator(db, e.userRepo, e.serverRepo, e.quota, cache, e.metrics, clk)
	e.subs = NewSubscriptionBuilder(e.userRepo, e.nodes, e.quota, cache, e.metrics, clk,
		[]Renderer{e.renderer, &fakeRenderer{format: FormatJSON}})
	e.coupons = NewCouponLedger(repository.NewCouponRepository(db), e.metrics, clk)
	e.commission = NewCommissionLedger(db, e.userRepo, repository.NewCommissionRepository(db),
		CommissionPolicy{DefaultRate: 10, MaxLevels: 1}, e.metrics)
	return e
}

func (e *testEnv) addGroup(name string) *model.ServerGroup {
	g := &model.ServerGroup{Name: name}
	require.NoError(e.t, e.nodes.SetGroup(e.ctx, g))
	return g
}

// addServer 注册一个刚刚上报过的节点
func (e *testEnv) addServer(groupID int64, name string, sort int) *model.Server {
	s := &model.Server{
		Name: name, Host: name + ".example.com", Port: 443,
		Protocol: model.VLESS, Sort: sort, Show: true,
		Settings: model.ServerSettings{Network: "tcp", Security: "tls"},
	}
	_, err := e.nodes.Register(e.ctx, s, []int64{groupID})
	require.NoError(e.t, err)
	require.NoError(e.t, e.nodes.MarkSeen(e.ctx, s.Id, e.clock.Now()))
	return s
}

type userOpt func(u *model.User)

func withQuota(total int64) userOpt    { return func(u *model.User) { u.TransferEnable = total } }
func withGroup(id int64) userOpt       { return func(u *model.User) { u.GroupId = id } }
func withInviter(id int64) userOpt     { return func(u *model.User) { u.InviteUserId = id } }
func withExpiry(ts int64) userOpt      { return func(u *model.User) { u.ExpiredAt = ts } }
func withResetKind(kind int) userOpt   { return func(u *model.User) { u.ResetKind = kind } }
func withUsage(up, down int64) userOpt { return func(u *model.User) { u.U, u.D = up, down } }

func (e *testEnv) addUser(opts ...userOpt) *model.User {
	id := uuid.NewString()
	u := &model.User{
		Email:          id[:8] + "@example.com",
		UUID:           id,
		Token:          "tok-" + id,
		QuotaState:     model.QuotaActive,
		CycleStartedAt: monthlyFirstDay(nil, e.clock.Now()),
	}
	for _, opt := range opts {
		opt(u)
	}
	require.NoError(e.t, e.userRepo.Create(e.ctx, u))
	return u
}

func (e *testEnv) reload(id int64) *model.User {
	u, err := e.userRepo.FindByID(e.ctx, id)
	require.NoError(e.t, err)
	return u
}

func (e *testEnv) report(nodeID, seq int64, entries ...TrafficEntry) (*AppliedResult, error) {
	return e.traffic.ApplyReport(e.ctx, &TrafficReport{
		NodeID:    nodeID,
		Seq:       seq,
		Timestamp: e.clock.Now().Unix(),
		Entries:   entries,
	})
}
