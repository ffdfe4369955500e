package service

import (
	"context"
	"slices"
	"strings"
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

// Endpoint 下发给客户端的一个入口
type Endpoint struct {
	Host   string `json:"host"`
	Port   int    `json:"port"`
	Remark string `json:"remark,omitempty"`
}

// NodeStatus 节点在线与负载摘要
type NodeStatus struct {
	NodeID      int64   `json:"node_id"`
	Name        string  `json:"name"`
	Protocol    string  `json:"protocol"`
	Live        bool    `json:"live"`
	OnlineUsers int     `json:"online_users"`
	LoadCPU     float64 `json:"load_cpu"`
	LoadMem     float64 `json:"load_mem"`
	LastSeenAt  int64   `json:"last_seen_at"`
}

// NodeRegistry 维护节点、节点组与入口覆盖，并根据时间戳惰性判定节点是否在线
type NodeRegistry struct {
	db         *gorm.DB
	serverRepo repository.ServerRepository
	prober     *Prober
	cache      *SubscriptionCache
	clock      clock.Clock

	livenessWindow time.Duration
	probeRecency   time.Duration
}

func NewNodeRegistry(
	db *gorm.DB,
	serverRepo repository.ServerRepository,
	prober *Prober,
	cache *SubscriptionCache,
	clk clock.Clock,
) *NodeRegistry {
	window := config.GetLivenessWindow()
	if window <= 0 {
		window = 180 * time.Second
	}
	return &NodeRegistry{
		db:             db,
		serverRepo:     serverRepo,
		prober:         prober,
		cache:          cache,
		clock:          clk,
		livenessWindow: window,
		probeRecency:   config.GetProbeRecency(),
	}
}

func (r *NodeRegistry) validate(op string, s *model.Server) error {
	s.Host = strings.TrimSpace(s.Host)
	switch {
	case s.Host == "":
		return invalidInput(op, "host is required")
	case s.Port <= 0 || s.Port > 65535:
		return invalidInput(op, "port %d out of range", s.Port)
	case !s.Protocol.Valid():
		return invalidInput(op, "unsupported protocol %q", s.Protocol)
	}
	return nil
}

// Register 新建或更新节点并设置其所属节点组。上报维护的字段不受影响
func (r *NodeRegistry) Register(ctx context.Context, s *model.Server, groupIDs []int64) (*model.Server, error) {
	const op = "NodeRegistry.Register"
	if err := r.validate(op, s); err != nil {
		return nil, err
	}
	groupIDs = slices.Compact(slices.Sorted(slices.Values(groupIDs)))

	var affected []int64
	err := database.WithTxOn(ctx, r.db, func(tx *gorm.DB) error {
		repo := r.serverRepo.WithTx(tx)
		for _, gid := range groupIDs {
			if _, err := repo.FindGroup(ctx, gid); err != nil {
				if database.IsNotFound(err) {
					return invalidInput(op, "group %d does not exist", gid)
				}
				return err
			}
		}
		if s.Id > 0 {
			existing, err := repo.LockByID(ctx, s.Id)
			if err != nil {
				return err
			}
			s.LastSeenAt, s.LastSeq = existing.LastSeenAt, existing.LastSeq
			s.OnlineUsers, s.LoadCPU, s.LoadMem = existing.OnlineUsers, existing.LoadCPU, existing.LoadMem
			s.CreatedAt = existing.CreatedAt
			old, err := repo.GroupIDsOf(ctx, s.Id)
			if err != nil {
				return err
			}
			affected = append(affected, old...)
		}
		if err := repo.Save(ctx, s); err != nil {
			return err
		}
		affected = append(affected, groupIDs...)
		return repo.ReplaceMembership(ctx, s.Id, groupIDs)
	})
	if err != nil {
		return nil, r.wrapErr(op, err)
	}
	r.cache.InvalidateGroups(affected)
	logger.Infof("[NodeRegistry] node %d (%s) registered in groups %v", s.Id, s.Name, groupIDs)
	return s, nil
}

// Update 与 Register 相同
func (r *NodeRegistry) Update(ctx context.Context, s *model.Server, groupIDs []int64) (*model.Server, error) {
	return r.Register(ctx, s, groupIDs)
}

// Remove 删除节点及其入口覆盖与组关系，之后的订阅渲染不再包含该节点
func (r *NodeRegistry) Remove(ctx context.Context, id int64) error {
	const op = "NodeRegistry.Remove"
	var groups []int64
	err := database.WithTxOn(ctx, r.db, func(tx *gorm.DB) error {
		repo := r.serverRepo.WithTx(tx)
		if _, err := repo.LockByID(ctx, id); err != nil {
			return err
		}
		var err error
		if groups, err = repo.GroupIDsOf(ctx, id); err != nil {
			return err
		}
		if err := repo.DeleteRoutesOf(ctx, id); err != nil {
			return err
		}
		if err := repo.DeleteMembership(ctx, id); err != nil {
			return err
		}
		return repo.Delete(ctx, id)
	})
	if err != nil {
		return r.wrapErr(op, err)
	}
	r.prober.Forget(id)
	r.cache.InvalidateGroups(groups)
	logger.Infof("[NodeRegistry] node %d removed", id)
	return nil
}

// SetGroup 新建或重命名节点组
func (r *NodeRegistry) SetGroup(ctx context.Context, group *model.ServerGroup) error {
	group.Name = strings.TrimSpace(group.Name)
	if group.Name == "" {
		return invalidInput("NodeRegistry.SetGroup", "group name is required")
	}
	return common.HandleError("NodeRegistry.SetGroup", r.serverRepo.SaveGroup(ctx, group))
}

// AddRoute 为节点增加渲染期入口覆盖
func (r *NodeRegistry) AddRoute(ctx context.Context, route *model.ServerRoute) error {
	const op = "NodeRegistry.AddRoute"
	route.Host = strings.TrimSpace(route.Host)
	if route.Host == "" {
		return invalidInput(op, "host is required")
	}
	if route.Port < 0 || route.Port > 65535 {
		return invalidInput(op, "port %d out of range", route.Port)
	}
	if _, err := r.serverRepo.FindByID(ctx, route.ServerId); err != nil {
		return r.wrapErr(op, err)
	}
	if err := r.serverRepo.CreateRoute(ctx, route); err != nil {
		return common.HandleError(op, err)
	}
	r.invalidateServer(ctx, route.ServerId)
	return nil
}

func (r *NodeRegistry) RemoveRoute(ctx context.Context, id int64) error {
	const op = "NodeRegistry.RemoveRoute"
	route, err := r.serverRepo.FindRoute(ctx, id)
	if err != nil {
		if database.IsNotFound(err) {
			return common.NewServiceError(op, common.ErrNotFound).WithCode(common.ErrCodeNotFound)
		}
		return common.HandleError(op, err)
	}
	if err := r.serverRepo.DeleteRoute(ctx, id); err != nil {
		return common.HandleError(op, err)
	}
	r.invalidateServer(ctx, route.ServerId)
	return nil
}

func (r *NodeRegistry) invalidateServer(ctx context.Context, serverID int64) {
	groups, err := r.serverRepo.GroupIDsOf(ctx, serverID)
	if err != nil {
		// 无法定位受影响的组时清空全部缓存
		logger.Warningf("[NodeRegistry] load groups of node %d: %v", serverID, err)
		r.cache.Purge()
		return
	}
	r.cache.InvalidateGroups(groups)
}

// MarkSeen 记录节点活跃时间，只向前推进
func (r *NodeRegistry) MarkSeen(ctx context.Context, nodeID int64, ts time.Time) error {
	const op = "NodeRegistry.MarkSeen"
	ok, err := r.serverRepo.UpdateLastSeen(ctx, nodeID, ts.UnixMilli())
	if err != nil {
		return common.HandleError(op, err)
	}
	if !ok {
		if _, err := r.serverRepo.FindByID(ctx, nodeID); err != nil {
			return r.wrapErr(op, err)
		}
	}
	return nil
}

// Nodes 组内节点，按 sort 升序、id 升序
func (r *NodeRegistry) Nodes(ctx context.Context, groupID int64) ([]*model.Server, error) {
	servers, err := r.serverRepo.FindByGroup(ctx, groupID)
	if err != nil {
		return nil, common.HandleError("NodeRegistry.Nodes", err)
	}
	return servers, nil
}

// All 全部节点，供后台巡检使用
func (r *NodeRegistry) All(ctx context.Context) ([]*model.Server, error) {
	servers, err := r.serverRepo.FindAll(ctx)
	if err != nil {
		return nil, common.HandleError("NodeRegistry.All", err)
	}
	return servers, nil
}

// Now 注册表使用的时钟
func (r *NodeRegistry) Now() time.Time {
	return r.clock.Now()
}

// IsLive 最近一次上报在窗口内，或最近一次探测成功在 probe_recency 内
func (r *NodeRegistry) IsLive(s *model.Server, now time.Time) bool {
	if s.LastSeenAt > 0 && now.Sub(time.UnixMilli(s.LastSeenAt)) <= r.livenessWindow {
		return true
	}
	if r.probeRecency > 0 {
		if t, ok := r.prober.LastSuccess(s.Id); ok && now.Sub(t) <= r.probeRecency {
			return true
		}
	}
	return false
}

// LiveNodes 组内在线节点，顺序同 Nodes
func (r *NodeRegistry) LiveNodes(ctx context.Context, groupID int64) ([]*model.Server, error) {
	servers, err := r.Nodes(ctx, groupID)
	if err != nil {
		return nil, err
	}
	now := r.clock.Now()
	live := servers[:0]
	for _, s := range servers {
		if r.IsLive(s, now) {
			live = append(live, s)
		}
	}
	return live, nil
}

// Endpoints 对节点应用入口覆盖：每条匹配当前组（或 group_id 为 0）的启用覆盖产生一个入口，
// 没有匹配项时使用节点自身地址。routes 需按 sort、id 排好序
func (r *NodeRegistry) Endpoints(s *model.Server, routes []*model.ServerRoute, groupID int64) []Endpoint {
	var out []Endpoint
	for _, rt := range routes {
		if rt.ServerId != s.Id || !rt.Enable {
			continue
		}
		if rt.GroupId != 0 && rt.GroupId != groupID {
			continue
		}
		port := rt.Port
		if port == 0 {
			port = s.Port
		}
		out = append(out, Endpoint{Host: rt.Host, Port: port, Remark: rt.Remark})
	}
	if len(out) == 0 {
		out = append(out, Endpoint{Host: s.Host, Port: s.Port})
	}
	return out
}

// ResolveEndpoints 批量读取覆盖并计算每个节点的入口
func (r *NodeRegistry) ResolveEndpoints(ctx context.Context, servers []*model.Server, groupID int64) (map[int64][]Endpoint, error) {
	ids := make([]int64, 0, len(servers))
	for _, s := range servers {
		ids = append(ids, s.Id)
	}
	routes, err := r.serverRepo.FindRoutes(ctx, ids)
	if err != nil {
		return nil, common.HandleError("NodeRegistry.ResolveEndpoints", err)
	}
	out := make(map[int64][]Endpoint, len(servers))
	for _, s := range servers {
		out[s.Id] = r.Endpoints(s, routes, groupID)
	}
	return out, nil
}

// Status 组内全部节点的在线与负载摘要
func (r *NodeRegistry) Status(ctx context.Context, groupID int64) ([]NodeStatus, error) {
	servers, err := r.Nodes(ctx, groupID)
	if err != nil {
		return nil, err
	}
	now := r.clock.Now()
	out := make([]NodeStatus, 0, len(servers))
	for _, s := range servers {
		out = append(out, NodeStatus{
			NodeID:      s.Id,
			Name:        s.Name,
			Protocol:    string(s.Protocol),
			Live:        r.IsLive(s, now),
			OnlineUsers: s.OnlineUsers,
			LoadCPU:     s.LoadCPU,
			LoadMem:     s.LoadMem,
			LastSeenAt:  s.LastSeenAt,
		})
	}
	return out, nil
}

// TestConnectivity 探测给定节点，不修改持久化状态
func (r *NodeRegistry) TestConnectivity(ctx context.Context, servers []*model.Server) []ProbeResult {
	return r.prober.Probe(ctx, servers)
}

func (r *NodeRegistry) wrapErr(op string, err error) error {
	if database.IsNotFound(err) {
		return common.NewServiceError(op, common.ErrNodeNotFound).WithCode(common.ErrCodeNotFound)
	}
	if common.GetErrorCode(err) == common.ErrCodeInvalidInput {
		return err
	}
	return common.HandleError(op, err)
}
