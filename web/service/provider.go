package service

import (
	"x-sub/config"

	"github.com/benbjohnson/clock"
	"github.com/google/wire"
)

// ServiceSet 包含所有服务及其相关的 Provider
var ServiceSet = wire.NewSet(
	NewClock,
	NewMetrics,
	NewResetPoliciesFromConfig,
	NewSubscriptionCache,
	NewProber,
	NewTelegramNotifier,
	NewNotifier,
	NewQuotaEnforcer,
	NewNodeRegistry,
	NewTrafficAggregator,
	NewSubscriptionBuilder,
	NewCouponLedger,
	NewCommissionPolicy,
	NewCommissionLedger,
)

// NewClock 生产环境使用系统时钟，测试中替换为 clock.NewMock
func NewClock() clock.Clock {
	return clock.New()
}

func NewResetPoliciesFromConfig() *ResetPolicies {
	return NewResetPolicies(config.GetQuotaDefaultResetKind())
}
