package service

import (
	"time"

	"x-sub/database/model"
)

// 流量重置周期类型，对应 users.t
const (
	ResetMonthlyFirstDay = 0
	ResetMonthlyByExpiry = 1
	ResetNever           = 2
	ResetYearlyFirstDay  = 3
	ResetYearlyByExpiry  = 4
)

// ResetPolicy 计算 now 所在周期的起点（unix 秒）。返回 0 表示永不重置
type ResetPolicy interface {
	CycleStart(u *model.User, now time.Time) int64
}

type ResetPolicyFunc func(u *model.User, now time.Time) int64

func (f ResetPolicyFunc) CycleStart(u *model.User, now time.Time) int64 {
	return f(u, now)
}

// ResetPolicies 周期类型注册表，未知类型回落到默认类型
type ResetPolicies struct {
	policies    map[int]ResetPolicy
	defaultKind int
}

func NewResetPolicies(defaultKind int) *ResetPolicies {
	p := &ResetPolicies{
		policies: map[int]ResetPolicy{
			ResetMonthlyFirstDay: ResetPolicyFunc(monthlyFirstDay),
			ResetMonthlyByExpiry: ResetPolicyFunc(monthlyByExpiry),
			ResetNever:           ResetPolicyFunc(func(*model.User, time.Time) int64 { return 0 }),
			ResetYearlyFirstDay:  ResetPolicyFunc(yearlyFirstDay),
			ResetYearlyByExpiry:  ResetPolicyFunc(yearlyByExpiry),
		},
		defaultKind: ResetMonthlyFirstDay,
	}
	if _, ok := p.policies[defaultKind]; ok {
		p.defaultKind = defaultKind
	}
	return p
}

// Register 注册或覆盖一种周期类型
func (p *ResetPolicies) Register(kind int, policy ResetPolicy) {
	p.policies[kind] = policy
}

func (p *ResetPolicies) For(kind int) ResetPolicy {
	if policy, ok := p.policies[kind]; ok {
		return policy
	}
	return p.policies[p.defaultKind]
}

// CycleStart 用户当前周期起点
func (p *ResetPolicies) CycleStart(u *model.User, now time.Time) int64 {
	return p.For(u.ResetKind).CycleStart(u, now)
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

// anchorDate 指定年月中的锚定日，超出当月天数时取月末
func anchorDate(year int, month time.Month, day int, loc *time.Location) time.Time {
	if d := daysIn(year, month, loc); day > d {
		day = d
	}
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}

func monthlyFirstDay(_ *model.User, now time.Time) int64 {
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).Unix()
}

func monthlyByExpiry(u *model.User, now time.Time) int64 {
	if u.ExpiredAt <= 0 {
		return monthlyFirstDay(u, now)
	}
	loc := now.Location()
	day := time.Unix(u.ExpiredAt, 0).In(loc).Day()
	start := anchorDate(now.Year(), now.Month(), day, loc)
	if start.After(now) {
		prev := time.Date(now.Year(), now.Month()-1, 1, 0, 0, 0, 0, loc)
		start = anchorDate(prev.Year(), prev.Month(), day, loc)
	}
	return start.Unix()
}

func yearlyFirstDay(_ *model.User, now time.Time) int64 {
	return time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location()).Unix()
}

func yearlyByExpiry(u *model.User, now time.Time) int64 {
	if u.ExpiredAt <= 0 {
		return yearlyFirstDay(u, now)
	}
	loc := now.Location()
	exp := time.Unix(u.ExpiredAt, 0).In(loc)
	start := anchorDate(now.Year(), exp.Month(), exp.Day(), loc)
	if start.After(now) {
		start = anchorDate(now.Year()-1, exp.Month(), exp.Day(), loc)
	}
	return start.Unix()
}
