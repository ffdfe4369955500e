package repository

import (
	"context"

	"x-sub/database/model"

	"gorm.io/gorm"
)

// UserRepository 定义 User 数据访问接口
type UserRepository interface {
	FindByID(ctx context.Context, id int64) (*model.User, error)
	FindByToken(ctx context.Context, token string) (*model.User, error)
	// LockByUUIDs 按 id 升序加行锁读取，调用方必须处于事务中
	LockByUUIDs(ctx context.Context, uuids []string) ([]*model.User, error)
	LockByID(ctx context.Context, id int64) (*model.User, error)
	Create(ctx context.Context, user *model.User) error

	AddTraffic(ctx context.Context, id int64, up, down int64) error
	// ResetCycle 以旧周期起点做 CAS，返回是否由本次调用完成重置
	ResetCycle(ctx context.Context, id int64, prevCycle, nextCycle int64, state model.QuotaState) (bool, error)
	UpdateQuota(ctx context.Context, id int64, state model.QuotaState, remindTraffic, remindExpire bool) error
	UpdateFields(ctx context.Context, id int64, fields map[string]any) error
	// RotateToken 仅当 token 仍为 oldToken 时替换
	RotateToken(ctx context.Context, id int64, oldToken, newToken string) (bool, error)
	AddCommissionBalance(ctx context.Context, id int64, delta int64) error

	// FindBatchAfter 以 id 游标分批遍历未封禁用户
	FindBatchAfter(ctx context.Context, afterID int64, limit int) ([]*model.User, error)

	// 事务支持
	WithTx(tx *gorm.DB) UserRepository
	GetDB() *gorm.DB
}

// userRepository 实现 UserRepository 接口
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建新的 UserRepository 实例
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{
		db: db,
	}
}

// WithTx 返回使用指定事务的新 Repository 实例
func (r *userRepository) WithTx(tx *gorm.DB) UserRepository {
	return &userRepository{db: tx}
}

// GetDB 返回当前数据库连接
func (r *userRepository) GetDB() *gorm.DB {
	return r.db
}

func (r *userRepository) FindByID(ctx context.Context, id int64) (*model.User, error) {
	user := &model.User{}
	err := r.db.WithContext(ctx).First(user, id).Error
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *userRepository) FindByToken(ctx context.Context, token string) (*model.User, error) {
	user := &model.User{}
	err := r.db.WithContext(ctx).Where("token = ?", token).First(user).Error
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *userRepository) LockByUUIDs(ctx context.Context, uuids []string) ([]*model.User, error) {
	var users []*model.User
	if len(uuids) == 0 {
		return users, nil
	}
	err := forUpdate(r.db.WithContext(ctx)).Where("uuid IN ?", uuids).Order("id ASC").Find(&users).Error
	return users, err
}

func (r *userRepository) LockByID(ctx context.Context, id int64) (*model.User, error) {
	user := &model.User{}
	err := forUpdate(r.db.WithContext(ctx)).First(user, id).Error
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) AddTraffic(ctx context.Context, id int64, up, down int64) error {
	return r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(map[string]any{
		"u": gorm.Expr("u + ?", up),
		"d": gorm.Expr("d + ?", down),
	}).Error
}

func (r *userRepository) ResetCycle(ctx context.Context, id int64, prevCycle, nextCycle int64, state model.QuotaState) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ? AND cycle_started_at = ?", id, prevCycle).
		Updates(map[string]any{
			"u":                0,
			"d":                0,
			"cycle_started_at": nextCycle,
			"quota_state":      state,
			"remind_traffic":   false,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *userRepository) UpdateQuota(ctx context.Context, id int64, state model.QuotaState, remindTraffic, remindExpire bool) error {
	return r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(map[string]any{
		"quota_state":    state,
		"remind_traffic": remindTraffic,
		"remind_expire":  remindExpire,
	}).Error
}

func (r *userRepository) UpdateFields(ctx context.Context, id int64, fields map[string]any) error {
	return r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(fields).Error
}

func (r *userRepository) RotateToken(ctx context.Context, id int64, oldToken, newToken string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ? AND token = ?", id, oldToken).
		Update("token", newToken)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *userRepository) AddCommissionBalance(ctx context.Context, id int64, delta int64) error {
	return r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).
		Update("commission_balance", gorm.Expr("commission_balance + ?", delta)).Error
}

func (r *userRepository) FindBatchAfter(ctx context.Context, afterID int64, limit int) ([]*model.User, error) {
	var users []*model.User
	err := r.db.WithContext(ctx).
		Where("id > ? AND banned = ?", afterID, false).
		Order("id ASC").Limit(limit).Find(&users).Error
	return users, err
}
