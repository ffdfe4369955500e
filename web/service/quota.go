package service

import (
	"context"
	"errors"
	"time"

	"x-sub/config"
	"x-sub/database"
	"x-sub/database/model"
	"x-sub/database/repository"
	"x-sub/logger"
	"x-sub/util/common"

	"github.com/benbjohnson/clock"
	"gorm.io/gorm"
)

// QuotaEnforcer 维护用户配额状态机：Active -> Warned -> Suspended(quota)，到期优先进入 Suspended(expired)。
// 周期重置是惰性的，在周期边界之后第一次访问用户时以 cycle_started_at 做 CAS 完成
type QuotaEnforcer struct {
	db            *gorm.DB
	userRepo      repository.UserRepository
	planRepo      repository.PlanRepository
	policies      *ResetPolicies
	clock         clock.Clock
	notifier      Notifier
	cache         *SubscriptionCache
	metrics       *Metrics
	warnThreshold float64
}

func NewQuotaEnforcer(
	db *gorm.DB,
	userRepo repository.UserRepository,
	planRepo repository.PlanRepository,
	policies *ResetPolicies,
	clk clock.Clock,
	notifier Notifier,
	cache *SubscriptionCache,
	metrics *Metrics,
) *QuotaEnforcer {
	warn := config.GetQuotaWarnThreshold()
	if warn <= 0 || warn > 1 {
		warn = 0.8
	}
	return &QuotaEnforcer{
		db:            db,
		userRepo:      userRepo,
		planRepo:      planRepo,
		policies:      policies,
		clock:         clk,
		notifier:      notifier,
		cache:         cache,
		metrics:       metrics,
		warnThreshold: warn,
	}
}

// Evaluate 纯函数：根据计数器、配额和到期时间得出应处状态
func (q *QuotaEnforcer) Evaluate(u *model.User, now time.Time) model.QuotaState {
	if u.ExpiredAt > 0 && now.Unix() >= u.ExpiredAt {
		return model.QuotaSuspendedExpired
	}
	if u.Unlimited() {
		return model.QuotaActive
	}
	used := u.Used()
	if used >= u.TransferEnable {
		return model.QuotaSuspendedQuota
	}
	if float64(used) >= float64(u.TransferEnable)*q.warnThreshold {
		return model.QuotaWarned
	}
	return model.QuotaActive
}

// Allows 订阅是否可以下发
func (q *QuotaEnforcer) Allows(u *model.User) bool {
	return !u.Banned && !u.QuotaState.Suspended()
}

func (q *QuotaEnforcer) remindFlags(u *model.User, now time.Time) (remindTraffic, remindExpire bool) {
	if !u.Unlimited() {
		remindTraffic = float64(u.Used()) >= float64(u.TransferEnable)*q.warnThreshold
	}
	if u.ExpiredAt > 0 {
		remindExpire = time.Unix(u.ExpiredAt, 0).Sub(now) <= config.ExpireRemindWindow
	}
	return
}

// stale 是否需要重置周期或改写状态，无需加锁即可判断
func (q *QuotaEnforcer) stale(u *model.User, now time.Time) bool {
	if start := q.policies.CycleStart(u, now); start > 0 && u.CycleStartedAt < start {
		return true
	}
	rt, re := q.remindFlags(u, now)
	return q.Evaluate(u, now) != u.QuotaState || rt != u.RemindTraffic || re != u.RemindExpire
}

// Rollover 周期已过期时清零计数器。调用方应持有该用户的行锁；
// CAS 失败说明其他事务已完成重置，此时重新加载用户
func (q *QuotaEnforcer) Rollover(ctx context.Context, repo repository.UserRepository, u *model.User, now time.Time) (*Transition, error) {
	start := q.policies.CycleStart(u, now)
	if start == 0 || u.CycleStartedAt >= start {
		return nil, nil
	}
	next := model.QuotaActive
	if u.QuotaState == model.QuotaSuspendedExpired {
		next = model.QuotaSuspendedExpired
	}
	ok, err := repo.ResetCycle(ctx, u.Id, u.CycleStartedAt, start, next)
	if err != nil {
		return nil, err
	}
	if !ok {
		fresh, err := repo.FindByID(ctx, u.Id)
		if err != nil {
			return nil, err
		}
		*u = *fresh
		return nil, nil
	}

	tr := &Transition{
		UserID: u.Id, Email: u.Email, From: u.QuotaState, To: next,
		Reset: true, Used: u.Used(), Total: u.TransferEnable, At: now,
	}
	u.U, u.D = 0, 0
	u.CycleStartedAt = start
	u.QuotaState = next
	u.RemindTraffic = false
	if tr.Used == 0 && tr.From == tr.To {
		return nil, nil
	}
	return tr, nil
}

// Enforce 对已加锁的用户行重新评估并持久化状态，状态变化时返回 Transition
func (q *QuotaEnforcer) Enforce(ctx context.Context, repo repository.UserRepository, u *model.User, now time.Time) (*Transition, error) {
	state := q.Evaluate(u, now)
	rt, re := q.remindFlags(u, now)
	if state == u.QuotaState && rt == u.RemindTraffic && re == u.RemindExpire {
		return nil, nil
	}
	if err := repo.UpdateQuota(ctx, u.Id, state, rt, re); err != nil {
		return nil, err
	}
	var tr *Transition
	if state != u.QuotaState {
		tr = &Transition{
			UserID: u.Id, Email: u.Email, From: u.QuotaState, To: state,
			Used: u.Used(), Total: u.TransferEnable, At: now,
		}
	}
	u.QuotaState = state
	u.RemindTraffic = rt
	u.RemindExpire = re
	return tr, nil
}

// Publish 在事务提交后分发状态变化
func (q *QuotaEnforcer) Publish(ctx context.Context, transitions []Transition) {
	for _, tr := range transitions {
		if tr.Reset {
			q.metrics.Transitions.WithLabelValues("reset").Inc()
		} else {
			q.metrics.Transitions.WithLabelValues(string(tr.To)).Inc()
		}
		q.cache.InvalidateUser(tr.UserID)
		q.notifier.QuotaChanged(ctx, tr)
	}
}

// Refresh 重新加载用户并在需要时完成惰性重置与状态评估
func (q *QuotaEnforcer) Refresh(ctx context.Context, userID int64) (*model.User, error) {
	u, err := q.userRepo.FindByID(ctx, userID)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, common.NewServiceError("QuotaEnforcer.Refresh", common.ErrUserNotFound).WithCode(common.ErrCodeNotFound)
		}
		return nil, err
	}
	return q.RefreshUser(ctx, u)
}

// RefreshUser 与 Refresh 相同，但复用已读取的用户；无变化时不开启写事务
func (q *QuotaEnforcer) RefreshUser(ctx context.Context, u *model.User) (*model.User, error) {
	now := q.clock.Now()
	if !q.stale(u, now) {
		return u, nil
	}
	var transitions []Transition
	fresh, err := database.WithTxResult(ctx, q.db, func(tx *gorm.DB) (*model.User, error) {
		transitions = transitions[:0]
		repo := q.userRepo.WithTx(tx)
		locked, err := repo.LockByID(ctx, u.Id)
		if err != nil {
			return nil, err
		}
		trs, err := q.reconcile(ctx, repo, locked, now)
		transitions = append(transitions, trs...)
		return locked, err
	})
	if err != nil {
		return nil, common.HandleError("QuotaEnforcer.Refresh", err)
	}
	q.Publish(ctx, transitions)
	return fresh, nil
}

func (q *QuotaEnforcer) reconcile(ctx context.Context, repo repository.UserRepository, u *model.User, now time.Time) ([]Transition, error) {
	var out []Transition
	tr, err := q.Rollover(ctx, repo, u, now)
	if err != nil {
		return nil, err
	}
	if tr != nil {
		out = append(out, *tr)
	}
	tr, err = q.Enforce(ctx, repo, u, now)
	if err != nil {
		return nil, err
	}
	if tr != nil {
		out = append(out, *tr)
	}
	return out, nil
}

// ResetTraffic 管理员手动清零当前周期流量
func (q *QuotaEnforcer) ResetTraffic(ctx context.Context, userID int64) (*model.User, error) {
	now := q.clock.Now()
	var transitions []Transition
	u, err := database.WithTxResult(ctx, q.db, func(tx *gorm.DB) (*model.User, error) {
		transitions = transitions[:0]
		repo := q.userRepo.WithTx(tx)
		u, err := repo.LockByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		cycle := u.CycleStartedAt
		if start := q.policies.CycleStart(u, now); start > cycle {
			cycle = start
		}
		if err := repo.UpdateFields(ctx, u.Id, map[string]any{"u": 0, "d": 0, "cycle_started_at": cycle}); err != nil {
			return nil, err
		}
		u.U, u.D, u.CycleStartedAt = 0, 0, cycle
		tr, err := q.Enforce(ctx, repo, u, now)
		if tr != nil {
			transitions = append(transitions, *tr)
		}
		return u, err
	})
	if err != nil {
		return nil, q.wrapUserErr("QuotaEnforcer.ResetTraffic", err)
	}
	q.cache.InvalidateUser(userID)
	q.Publish(ctx, transitions)
	logger.Infof("[Quota] traffic of user %d reset by admin", userID)
	return u, nil
}

// AssignPlan 续费或更换套餐：复制权益到用户并重新评估，条件允许时由暂停恢复为 Active
func (q *QuotaEnforcer) AssignPlan(ctx context.Context, userID, planID int64) (*model.User, error) {
	const op = "QuotaEnforcer.AssignPlan"
	now := q.clock.Now()
	plan, err := q.planRepo.FindByID(ctx, planID)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, common.NewServiceError(op, common.ErrPlanNotFound).WithCode(common.ErrCodeNotFound)
		}
		return nil, err
	}
	if !plan.Enable {
		return nil, invalidInput(op, "plan %d is disabled", planID)
	}

	var (
		transitions []Transition
		oldGroup    int64
	)
	u, err := database.WithTxResult(ctx, q.db, func(tx *gorm.DB) (*model.User, error) {
		transitions = transitions[:0]
		repo := q.userRepo.WithTx(tx)
		u, err := repo.LockByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		oldGroup = u.GroupId
		if tr, err := q.Rollover(ctx, repo, u, now); err != nil {
			return nil, err
		} else if tr != nil {
			transitions = append(transitions, *tr)
		}

		expiredAt := u.ExpiredAt
		if plan.ValidDays > 0 {
			base := now.Unix()
			if expiredAt > base {
				base = expiredAt
			}
			expiredAt = base + int64(plan.ValidDays)*86400
		}
		fields := map[string]any{
			"plan_id":         plan.Id,
			"group_id":        plan.GroupId,
			"transfer_enable": plan.TransferEnable,
			"speed_limit":     plan.SpeedLimit,
			"t":               plan.ResetKind,
			"expired_at":      expiredAt,
		}
		if err := repo.UpdateFields(ctx, u.Id, fields); err != nil {
			return nil, err
		}
		u.PlanId, u.GroupId = plan.Id, plan.GroupId
		u.TransferEnable, u.SpeedLimit = plan.TransferEnable, plan.SpeedLimit
		u.ResetKind, u.ExpiredAt = plan.ResetKind, expiredAt

		tr, err := q.Enforce(ctx, repo, u, now)
		if tr != nil {
			transitions = append(transitions, *tr)
		}
		return u, err
	})
	if err != nil {
		return nil, q.wrapUserErr(op, err)
	}
	q.cache.InvalidateUser(userID)
	if oldGroup != u.GroupId {
		logger.Infof("[Quota] user %d moved from group %d to %d", userID, oldGroup, u.GroupId)
	}
	q.Publish(ctx, transitions)
	return u, nil
}

// SweepExpired 分批巡检全部未封禁用户，修正从未轮询过订阅的用户状态，返回被修正的人数
func (q *QuotaEnforcer) SweepExpired(ctx context.Context) (int, error) {
	var (
		afterID int64
		changed int
	)
	for {
		users, err := q.userRepo.FindBatchAfter(ctx, afterID, config.SweepBatchSize)
		if err != nil {
			return changed, err
		}
		if len(users) == 0 {
			return changed, nil
		}
		now := q.clock.Now()
		for _, u := range users {
			afterID = u.Id
			if !q.stale(u, now) {
				continue
			}
			if _, err := q.RefreshUser(ctx, u); err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return changed, err
				}
				common.IgnoreError("QuotaEnforcer.SweepExpired", err)
				continue
			}
			changed++
		}
	}
}

func (q *QuotaEnforcer) wrapUserErr(op string, err error) error {
	if database.IsNotFound(err) {
		return common.NewServiceError(op, common.ErrUserNotFound).WithCode(common.ErrCodeNotFound)
	}
	var se *common.ServiceError
	if errors.As(err, &se) {
		return err
	}
	return common.HandleError(op, err)
}
