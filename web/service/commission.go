package service

import (
	"context"
	"strings"

	"x-sub/config"
	"x-sub/database"
	"x-sub/database/model"
	"x-sub/database/repository"
	"x-sub/logger"
	"x-sub/util/common"

	"gorm.io/gorm"
)

// CommissionCredit 一位推荐人获得的返佣
type CommissionCredit struct {
	ReferrerID int64 `json:"referrer_id"`
	Level      int   `json:"level"`
	Rate       int64 `json:"rate"`
	Amount     int64 `json:"amount"`
}

// CreditResult 一次订单结算的结果；Duplicate 表示该订单已结算过
type CreditResult struct {
	PurchaseID string             `json:"purchase_id"`
	Credits    []CommissionCredit `json:"credits"`
	Skipped    int                `json:"skipped"`
	Duplicate  bool               `json:"duplicate"`
}

// CommissionPolicy 多级返佣策略。MaxLevels 为 1 时只结算直接邀请人
type CommissionPolicy struct {
	DefaultRate       int64
	MaxLevels         int
	LevelRates        []int64 // 下标 0 对应第 2 级
	FirstPurchaseOnly bool
}

func NewCommissionPolicy() CommissionPolicy {
	p := CommissionPolicy{
		DefaultRate:       config.GetCommissionDefaultRate(),
		MaxLevels:         config.GetCommissionMaxLevels(),
		LevelRates:        config.GetCommissionLevelRates(),
		FirstPurchaseOnly: config.GetCommissionFirstPurchaseOnly(),
	}
	if p.MaxLevels < 1 {
		p.MaxLevels = 1
	}
	return p
}

// rate 第 level 级推荐人的比例，0 表示该级不结算
func (p CommissionPolicy) rate(ref *model.User, level int) int64 {
	if level == 1 {
		if ref.CommissionRate > 0 {
			return ref.CommissionRate
		}
		return p.DefaultRate
	}
	if i := level - 2; i < len(p.LevelRates) {
		return p.LevelRates[i]
	}
	return 0
}

func (p CommissionPolicy) firstOnly(ref *model.User) bool {
	switch ref.CommissionType {
	case model.CommissionTypePeriod:
		return false
	case model.CommissionTypeFirstPurchase:
		return true
	default:
		return p.FirstPurchaseOnly
	}
}

// CommissionLedger 沿邀请链为推荐人记账，(purchase_id, referrer_id) 唯一保证幂等
type CommissionLedger struct {
	db             *gorm.DB
	userRepo       repository.UserRepository
	commissionRepo repository.CommissionRepository
	policy         CommissionPolicy
	metrics        *Metrics
}

func NewCommissionLedger(
	db *gorm.DB,
	userRepo repository.UserRepository,
	commissionRepo repository.CommissionRepository,
	policy CommissionPolicy,
	metrics *Metrics,
) *CommissionLedger {
	return &CommissionLedger{
		db:             db,
		userRepo:       userRepo,
		commissionRepo: commissionRepo,
		policy:         policy,
		metrics:        metrics,
	}
}

// Credit 为一笔订单结算返佣。推荐人缺失时停止，封禁的推荐人跳过但继续向上，遇到环立即停止
func (l *CommissionLedger) Credit(ctx context.Context, purchaseID string, userID, amount int64) (*CreditResult, error) {
	const op = "CommissionLedger.Credit"
	purchaseID = strings.TrimSpace(purchaseID)
	if purchaseID == "" {
		return nil, invalidInput(op, "purchase_id is required")
	}
	if amount <= 0 {
		return nil, invalidInput(op, "amount must be positive")
	}

	result, err := database.WithTxResult(ctx, l.db, func(tx *gorm.DB) (*CreditResult, error) {
		users := l.userRepo.WithTx(tx)
		logs := l.commissionRepo.WithTx(tx)
		res := &CreditResult{PurchaseID: purchaseID, Credits: []CommissionCredit{}}

		buyer, err := users.FindByID(ctx, userID)
		if err != nil {
			return nil, err
		}

		var prior *bool
		hasPrior := func() (bool, error) {
			if prior == nil {
				v, err := logs.HasPriorPurchase(ctx, buyer.Id, purchaseID)
				if err != nil {
					return false, err
				}
				prior = &v
			}
			return *prior, nil
		}

		visited := map[int64]bool{buyer.Id: true}
		current := buyer
		for level := 1; level <= l.policy.MaxLevels; level++ {
			refID := current.InviteUserId
			if refID == 0 {
				break
			}
			if visited[refID] {
				logger.Warningf("[%s] invite chain of user %d loops at %d", op, buyer.Id, refID)
				break
			}
			visited[refID] = true

			ref, err := users.LockByID(ctx, refID)
			if err != nil {
				if database.IsNotFound(err) {
					break
				}
				return nil, err
			}
			current = ref

			if ref.Banned {
				res.Skipped++
				continue
			}
			rate := l.policy.rate(ref, level)
			if rate <= 0 {
				res.Skipped++
				continue
			}
			if l.policy.firstOnly(ref) {
				p, err := hasPrior()
				if err != nil {
					return nil, err
				}
				if p {
					res.Skipped++
					continue
				}
			}

			credit := amount * rate / 100
			inserted, err := logs.InsertIfAbsent(ctx, &model.CommissionLog{
				PurchaseId:  purchaseID,
				InviteeId:   buyer.Id,
				ReferrerId:  ref.Id,
				Level:       level,
				OrderAmount: amount,
				Commission:  credit,
			})
			if err != nil {
				return nil, err
			}
			if !inserted {
				res.Duplicate = true
				continue
			}
			if credit > 0 {
				if err := users.AddCommissionBalance(ctx, ref.Id, credit); err != nil {
					return nil, err
				}
			}
			res.Credits = append(res.Credits, CommissionCredit{ReferrerID: ref.Id, Level: level, Rate: rate, Amount: credit})
		}
		return res, nil
	})
	if err != nil {
		if database.IsNotFound(err) {
			return nil, common.NewServiceError(op, common.ErrUserNotFound).WithCode(common.ErrCodeNotFound)
		}
		return nil, common.HandleError(op, err)
	}
	l.metrics.Commissions.Add(float64(len(result.Credits)))
	if len(result.Credits) > 0 {
		logger.Infof("[Commission] purchase %s: %d credits", purchaseID, len(result.Credits))
	}
	return result, nil
}
