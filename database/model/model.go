// Package model 包含所有数据库模型定义
// 模型已按领域拆分到独立文件中：
// - protocol.go: Protocol 枚举
// - user.go: User, QuotaState
// - plan.go: Plan
// - server.go: ServerGroup, ServerGroupMember, Server, ServerRoute
// - coupon.go: Coupon
// - commission.go: CommissionLog
package model

// All 返回需要 AutoMigrate 的全部模型
func All() []any {
	return []any{
		&User{},
		&Plan{},
		&ServerGroup{},
		&ServerGroupMember{},
		&Server{},
		&ServerRoute{},
		&Coupon{},
		&CommissionLog{},
	}
}
