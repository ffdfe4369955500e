package repository

import (
	"context"

	"x-sub/database/model"

	"gorm.io/gorm"
)

// PlanRepository 定义 Plan 数据访问接口
type PlanRepository interface {
	FindByID(ctx context.Context, id int64) (*model.Plan, error)
	Save(ctx context.Context, plan *model.Plan) error

	WithTx(tx *gorm.DB) PlanRepository
}

type planRepository struct {
	db *gorm.DB
}

// NewPlanRepository 创建新的 PlanRepository 实例
func NewPlanRepository(db *gorm.DB) PlanRepository {
	return &planRepository{db: db}
}

func (r *planRepository) WithTx(tx *gorm.DB) PlanRepository {
	return &planRepository{db: tx}
}

func (r *planRepository) FindByID(ctx context.Context, id int64) (*model.Plan, error) {
	plan := &model.Plan{}
	if err := r.db.WithContext(ctx).First(plan, id).Error; err != nil {
		return nil, err
	}
	return plan, nil
}

func (r *planRepository) Save(ctx context.Context, plan *model.Plan) error {
	return r.db.WithContext(ctx).Save(plan).Error
}
