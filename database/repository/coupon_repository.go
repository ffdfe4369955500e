package repository

import (
	"context"

	"x-sub/database/model"

	"gorm.io/gorm"
)

// CouponRepository 定义 Coupon 数据访问接口
type CouponRepository interface {
	FindByCode(ctx context.Context, code string) (*model.Coupon, error)
	Create(ctx context.Context, coupon *model.Coupon) error
	// ConsumeUse 原子扣减一次剩余次数，返回是否扣减成功
	ConsumeUse(ctx context.Context, id int64) (bool, error)

	WithTx(tx *gorm.DB) CouponRepository
}

type couponRepository struct {
	db *gorm.DB
}

// NewCouponRepository 创建新的 CouponRepository 实例
func NewCouponRepository(db *gorm.DB) CouponRepository {
	return &couponRepository{db: db}
}

func (r *couponRepository) WithTx(tx *gorm.DB) CouponRepository {
	return &couponRepository{db: tx}
}

func (r *couponRepository) FindByCode(ctx context.Context, code string) (*model.Coupon, error) {
	coupon := &model.Coupon{}
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(coupon).Error; err != nil {
		return nil, err
	}
	return coupon, nil
}

func (r *couponRepository) Create(ctx context.Context, coupon *model.Coupon) error {
	return r.db.WithContext(ctx).Create(coupon).Error
}

func (r *couponRepository) ConsumeUse(ctx context.Context, id int64) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Coupon{}).
		Where("id = ? AND remaining_uses > 0", id).
		Update("remaining_uses", gorm.Expr("remaining_uses - 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
