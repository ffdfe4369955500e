package repository

import (
	"context"

	"x-sub/database/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CommissionRepository 定义佣金流水数据访问接口
type CommissionRepository interface {
	// InsertIfAbsent 写入流水，(purchase_id, referrer_id) 已存在时返回 false
	InsertIfAbsent(ctx context.Context, log *model.CommissionLog) (bool, error)
	// HasPriorPurchase 被邀请人在该订单之前是否已产生过返佣流水
	HasPriorPurchase(ctx context.Context, inviteeID int64, purchaseID string) (bool, error)
	FindByPurchase(ctx context.Context, purchaseID string) ([]*model.CommissionLog, error)

	WithTx(tx *gorm.DB) CommissionRepository
}

type commissionRepository struct {
	db *gorm.DB
}

// NewCommissionRepository 创建新的 CommissionRepository 实例
func NewCommissionRepository(db *gorm.DB) CommissionRepository {
	return &commissionRepository{db: db}
}

func (r *commissionRepository) WithTx(tx *gorm.DB) CommissionRepository {
	return &commissionRepository{db: tx}
}

func (r *commissionRepository) InsertIfAbsent(ctx context.Context, log *model.CommissionLog) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(log)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *commissionRepository) HasPriorPurchase(ctx context.Context, inviteeID int64, purchaseID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.CommissionLog{}).
		Where("invitee_id = ? AND purchase_id <> ?", inviteeID, purchaseID).
		Count(&count).Error
	return count > 0, err
}

func (r *commissionRepository) FindByPurchase(ctx context.Context, purchaseID string) ([]*model.CommissionLog, error) {
	var logs []*model.CommissionLog
	err := r.db.WithContext(ctx).Where("purchase_id = ?", purchaseID).Order("level ASC").Find(&logs).Error
	return logs, err
}
