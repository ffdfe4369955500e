package service

import (
	"context"
	"errors"
	"sort"

	"x-sub/config"
	"x-sub/database"
	"x-sub/database/repository"
	"x-sub/logger"
	"x-sub/util/common"

	"github.com/benbjohnson/clock"
	"gorm.io/gorm"
)

// TrafficEntry 单个用户在一个上报周期内的增量
type TrafficEntry struct {
	UUID     string `json:"uuid" validate:"required,max=64"`
	Upload   int64  `json:"upload" validate:"gte=0"`
	Download int64  `json:"download" validate:"gte=0"`
}

type NodeLoad struct {
	CPU float64 `json:"cpu" validate:"gte=0"`
	Mem float64 `json:"mem" validate:"gte=0"`
}

// TrafficReport 节点推送的流量报告，seq 在节点内严格递增
type TrafficReport struct {
	NodeID      int64          `json:"node_id" validate:"gt=0"`
	Seq         int64          `json:"seq" validate:"gt=0"`
	Timestamp   int64          `json:"timestamp" validate:"gte=0"`
	Entries     []TrafficEntry `json:"entries"`
	OnlineUsers int            `json:"online_users" validate:"gte=0"`
	Load        NodeLoad       `json:"load"`
}

// AppliedResult 报告处理结果，按条目计数（合并前）。
// Applied 为归属已知用户的条目数，增量为 0 的条目也计入；
// Dropped 为未知 uuid 或字段非法的条目数，Applied+Dropped 等于报告条目总数
type AppliedResult struct {
	Applied     int          `json:"applied"`
	Dropped     int          `json:"dropped"`
	Duplicate   bool         `json:"duplicate"`
	Touched     []int64      `json:"-"`
	Transitions []Transition `json:"-"`
}

// TrafficAggregator 把节点上报的增量累加到用户计数器，并在同一事务内推进节点序号
type TrafficAggregator struct {
	db         *gorm.DB
	userRepo   repository.UserRepository
	serverRepo repository.ServerRepository
	quota      *QuotaEnforcer
	cache      *SubscriptionCache
	metrics    *Metrics
	clock      clock.Clock
}

func NewTrafficAggregator(
	db *gorm.DB,
	userRepo repository.UserRepository,
	serverRepo repository.ServerRepository,
	quota *QuotaEnforcer,
	cache *SubscriptionCache,
	metrics *Metrics,
	clk clock.Clock,
) *TrafficAggregator {
	return &TrafficAggregator{
		db:         db,
		userRepo:   userRepo,
		serverRepo: serverRepo,
		quota:      quota,
		cache:      cache,
		metrics:    metrics,
		clock:      clk,
	}
}

type delta struct {
	up, down int64
}

type mergedEntries struct {
	deltas  map[string]delta
	counts  map[string]int // uuid -> 合并前的条目数
	uuids   []string
	invalid int
}

// mergeEntries 同一报告中重复的 uuid 合并为一条。
// 字段非法的条目单独丢弃，其余条目照常应用
func mergeEntries(op string, report *TrafficReport) mergedEntries {
	m := mergedEntries{
		deltas: make(map[string]delta, len(report.Entries)),
		counts: make(map[string]int, len(report.Entries)),
		uuids:  make([]string, 0, len(report.Entries)),
	}
	for i, e := range report.Entries {
		if err := validateStruct(op, &e); err != nil {
			m.invalid++
			logger.Warningf("[%s] node %d seq %d: drop entry %d: %v", op, report.NodeID, report.Seq, i, err)
			continue
		}
		d, ok := m.deltas[e.UUID]
		if !ok {
			m.uuids = append(m.uuids, e.UUID)
		}
		d.up += e.Upload
		d.down += e.Download
		m.deltas[e.UUID] = d
		m.counts[e.UUID]++
	}
	sort.Strings(m.uuids)
	return m
}

// ApplyReport 校验并应用一份报告。
// 报告级字段非法或 seq 不大于节点已应用序号时整份拒绝（后者为 CONFLICT，Duplicate=true）；
// 非法条目与未知 uuid 逐条丢弃并计数；
// 用户行按 id 升序加锁，增量即使超出配额也全部计入
func (s *TrafficAggregator) ApplyReport(ctx context.Context, report *TrafficReport) (*AppliedResult, error) {
	const op = "TrafficAggregator.ApplyReport"
	if err := validateStruct(op, report); err != nil {
		s.metrics.Reports.WithLabelValues("invalid").Inc()
		return nil, err
	}
	if len(report.Entries) > config.MaxReportEntries {
		s.metrics.Reports.WithLabelValues("invalid").Inc()
		return nil, invalidInput(op, "too many entries: %d", len(report.Entries))
	}

	merged := mergeEntries(op, report)
	now := s.clock.Now()

	result, err := database.WithTxResult(ctx, s.db, func(tx *gorm.DB) (*AppliedResult, error) {
		servers := s.serverRepo.WithTx(tx)
		users := s.userRepo.WithTx(tx)

		node, err := servers.LockByID(ctx, report.NodeID)
		if err != nil {
			return nil, err
		}
		if report.Seq <= node.LastSeq {
			return nil, common.ErrStaleSequence
		}

		locked, err := users.LockByUUIDs(ctx, merged.uuids)
		if err != nil {
			return nil, err
		}

		res := &AppliedResult{}
		for _, u := range locked {
			if tr, err := s.quota.Rollover(ctx, users, u, now); err != nil {
				return nil, err
			} else if tr != nil {
				res.Transitions = append(res.Transitions, *tr)
			}

			d := merged.deltas[u.UUID]
			if d.up != 0 || d.down != 0 {
				if err := users.AddTraffic(ctx, u.Id, d.up, d.down); err != nil {
					return nil, err
				}
				u.U += d.up
				u.D += d.down
			}

			if tr, err := s.quota.Enforce(ctx, users, u, now); err != nil {
				return nil, err
			} else if tr != nil {
				res.Transitions = append(res.Transitions, *tr)
			}
			res.Applied += merged.counts[u.UUID]
			res.Touched = append(res.Touched, u.Id)
		}

		res.Dropped = len(report.Entries) - res.Applied

		err = servers.ApplyReport(ctx, node.Id, repository.ServerReport{
			Seq:         report.Seq,
			SeenAt:      now.UnixMilli(),
			OnlineUsers: report.OnlineUsers,
			LoadCPU:     report.Load.CPU,
			LoadMem:     report.Load.Mem,
		})
		return res, err
	})
	if err != nil {
		return s.fail(op, report, err)
	}

	if unknown := result.Dropped - merged.invalid; unknown > 0 {
		logger.Warningf("[%s] node %d seq %d: dropped %d entries with unknown uuid",
			op, report.NodeID, report.Seq, unknown)
	}
	s.cache.InvalidateUsers(result.Touched)
	s.quota.Publish(ctx, result.Transitions)

	s.metrics.Reports.WithLabelValues("ok").Inc()
	s.metrics.ReportEntries.WithLabelValues("applied").Add(float64(result.Applied))
	s.metrics.ReportEntries.WithLabelValues("dropped").Add(float64(result.Dropped))
	return result, nil
}

func (s *TrafficAggregator) fail(op string, report *TrafficReport, err error) (*AppliedResult, error) {
	switch {
	case errors.Is(err, common.ErrStaleSequence):
		s.metrics.Reports.WithLabelValues("duplicate").Inc()
		logger.Debugf("[%s] node %d: stale seq %d", op, report.NodeID, report.Seq)
		return &AppliedResult{Duplicate: true},
			common.NewServiceError(op, err).WithCode(common.ErrCodeConflict).WithContext("seq", report.Seq)
	case database.IsNotFound(err):
		s.metrics.Reports.WithLabelValues("invalid").Inc()
		return nil, common.NewServiceError(op, common.ErrNodeNotFound).WithCode(common.ErrCodeNotFound)
	default:
		s.metrics.Reports.WithLabelValues("error").Inc()
		return nil, common.HandleError(op, err)
	}
}
