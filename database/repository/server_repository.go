package repository

import (
	"context"

	"x-sub/database/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ServerReport 节点上报后需要写回的节点状态
type ServerReport struct {
	Seq         int64
	SeenAt      int64
	OnlineUsers int
	LoadCPU     float64
	LoadMem     float64
}

// ServerRepository 定义节点、节点组与入口覆盖的数据访问接口
type ServerRepository interface {
	// 节点
	FindByID(ctx context.Context, id int64) (*model.Server, error)
	LockByID(ctx context.Context, id int64) (*model.Server, error)
	FindAll(ctx context.Context) ([]*model.Server, error)
	FindByGroup(ctx context.Context, groupID int64) ([]*model.Server, error)
	Save(ctx context.Context, server *model.Server) error
	Delete(ctx context.Context, id int64) error
	ApplyReport(ctx context.Context, id int64, report ServerReport) error
	UpdateLastSeen(ctx context.Context, id int64, seenAt int64) (bool, error)

	// 节点组
	FindGroup(ctx context.Context, id int64) (*model.ServerGroup, error)
	SaveGroup(ctx context.Context, group *model.ServerGroup) error
	GroupIDsOf(ctx context.Context, serverID int64) ([]int64, error)
	ReplaceMembership(ctx context.Context, serverID int64, groupIDs []int64) error
	DeleteMembership(ctx context.Context, serverID int64) error

	// 入口覆盖
	FindRoutes(ctx context.Context, serverIDs []int64) ([]*model.ServerRoute, error)
	FindRoute(ctx context.Context, id int64) (*model.ServerRoute, error)
	CreateRoute(ctx context.Context, route *model.ServerRoute) error
	DeleteRoute(ctx context.Context, id int64) error
	DeleteRoutesOf(ctx context.Context, serverID int64) error

	// 事务支持
	WithTx(tx *gorm.DB) ServerRepository
	GetDB() *gorm.DB
}

type serverRepository struct {
	db *gorm.DB
}

// NewServerRepository 创建新的 ServerRepository 实例
func NewServerRepository(db *gorm.DB) ServerRepository {
	return &serverRepository{db: db}
}

func (r *serverRepository) WithTx(tx *gorm.DB) ServerRepository {
	return &serverRepository{db: tx}
}

func (r *serverRepository) GetDB() *gorm.DB {
	return r.db
}

func (r *serverRepository) FindByID(ctx context.Context, id int64) (*model.Server, error) {
	server := &model.Server{}
	if err := r.db.WithContext(ctx).First(server, id).Error; err != nil {
		return nil, err
	}
	return server, nil
}

func (r *serverRepository) LockByID(ctx context.Context, id int64) (*model.Server, error) {
	server := &model.Server{}
	if err := forUpdate(r.db.WithContext(ctx)).First(server, id).Error; err != nil {
		return nil, err
	}
	return server, nil
}

// FindAll 按 sort 升序，相同 sort 按 id 升序
func (r *serverRepository) FindAll(ctx context.Context) ([]*model.Server, error) {
	var servers []*model.Server
	err := r.db.WithContext(ctx).Order("sort ASC").Order("id ASC").Find(&servers).Error
	return servers, err
}

// FindByGroup 返回组内可展示的节点，排序规则同 FindAll
func (r *serverRepository) FindByGroup(ctx context.Context, groupID int64) ([]*model.Server, error) {
	var servers []*model.Server
	err := r.db.WithContext(ctx).
		Joins("JOIN server_group_members m ON m.server_id = servers.id").
		Where("m.group_id = ? AND servers.show = ?", groupID, true).
		Order("servers.sort ASC").Order("servers.id ASC").
		Find(&servers).Error
	return servers, err
}

func (r *serverRepository) Save(ctx context.Context, server *model.Server) error {
	return r.db.WithContext(ctx).Save(server).Error
}

func (r *serverRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&model.Server{}, id).Error
}

func (r *serverRepository) ApplyReport(ctx context.Context, id int64, report ServerReport) error {
	return r.db.WithContext(ctx).Model(&model.Server{}).Where("id = ?", id).Updates(map[string]any{
		"last_seq":     report.Seq,
		"last_seen_at": report.SeenAt,
		"online_users": report.OnlineUsers,
		"load_cpu":     report.LoadCPU,
		"load_mem":     report.LoadMem,
	}).Error
}

// UpdateLastSeen 只向前推进 last_seen_at
func (r *serverRepository) UpdateLastSeen(ctx context.Context, id int64, seenAt int64) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Server{}).
		Where("id = ? AND last_seen_at < ?", id, seenAt).
		Update("last_seen_at", seenAt)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *serverRepository) FindGroup(ctx context.Context, id int64) (*model.ServerGroup, error) {
	group := &model.ServerGroup{}
	if err := r.db.WithContext(ctx).First(group, id).Error; err != nil {
		return nil, err
	}
	return group, nil
}

func (r *serverRepository) SaveGroup(ctx context.Context, group *model.ServerGroup) error {
	return r.db.WithContext(ctx).Save(group).Error
}

func (r *serverRepository) GroupIDsOf(ctx context.Context, serverID int64) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).Model(&model.ServerGroupMember{}).
		Where("server_id = ?", serverID).Order("group_id ASC").Pluck("group_id", &ids).Error
	return ids, err
}

func (r *serverRepository) ReplaceMembership(ctx context.Context, serverID int64, groupIDs []int64) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("server_id = ?", serverID).Delete(&model.ServerGroupMember{}).Error; err != nil {
		return err
	}
	if len(groupIDs) == 0 {
		return nil
	}
	members := make([]model.ServerGroupMember, 0, len(groupIDs))
	for _, gid := range groupIDs {
		members = append(members, model.ServerGroupMember{GroupId: gid, ServerId: serverID})
	}
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&members).Error
}

func (r *serverRepository) DeleteMembership(ctx context.Context, serverID int64) error {
	return r.db.WithContext(ctx).Where("server_id = ?", serverID).Delete(&model.ServerGroupMember{}).Error
}

// FindRoutes 按 sort、id 升序返回启用的覆盖项
func (r *serverRepository) FindRoutes(ctx context.Context, serverIDs []int64) ([]*model.ServerRoute, error) {
	var routes []*model.ServerRoute
	if len(serverIDs) == 0 {
		return routes, nil
	}
	err := r.db.WithContext(ctx).
		Where("server_id IN ? AND enable = ?", serverIDs, true).
		Order("sort ASC").Order("id ASC").
		Find(&routes).Error
	return routes, err
}

func (r *serverRepository) FindRoute(ctx context.Context, id int64) (*model.ServerRoute, error) {
	route := &model.ServerRoute{}
	if err := r.db.WithContext(ctx).First(route, id).Error; err != nil {
		return nil, err
	}
	return route, nil
}

func (r *serverRepository) CreateRoute(ctx context.Context, route *model.ServerRoute) error {
	return r.db.WithContext(ctx).Create(route).Error
}

func (r *serverRepository) DeleteRoute(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&model.ServerRoute{}, id).Error
}

func (r *serverRepository) DeleteRoutesOf(ctx context.Context, serverID int64) error {
	return r.db.WithContext(ctx).Where("server_id = ?", serverID).Delete(&model.ServerRoute{}).Error
}
