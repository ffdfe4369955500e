package service

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"x-sub/config"
	"x-sub/database"
	"x-sub/database/model"
	"x-sub/database/repository"
	"x-sub/logger"
	"x-sub/util/common"
	"x-sub/util/random"

	"github.com/benbjohnson/clock"
	"github.com/cespare/xxhash/v2"
	"github.com/skip2/go-qrcode"
)

// Format 订阅配置语法
type Format string

const (
	FormatLinks Format = "links"
	FormatJSON  Format = "json"
	FormatClash Format = "clash"
)

// Formats 全部支持的语法
var Formats = []Format{FormatLinks, FormatJSON, FormatClash}

// ParseFormat 空值视为 links
func ParseFormat(s string) (Format, bool) {
	if s == "" {
		return FormatLinks, true
	}
	for _, f := range Formats {
		if string(f) == s {
			return f, true
		}
	}
	return "", false
}

// ConfigDocument 渲染结果，写入缓存后只读
type ConfigDocument struct {
	Format      Format
	ContentType string
	Body        []byte
	Fingerprint uint64
	GeneratedAt time.Time
}

// RenderNode 渲染输入中的一个节点及其入口
type RenderNode struct {
	Server    *model.Server
	Endpoints []Endpoint
}

// RenderInput 渲染器所需的全部数据。SpeedLimit 仅 Clash 的 hysteria2 条目能携带，
// 其余格式由节点侧限速，它只参与指纹
type RenderInput struct {
	UserUUID   string
	Email      string
	SpeedLimit int
	Nodes      []RenderNode
}

// Renderer 一种配置语法的渲染器
type Renderer interface {
	Format() Format
	ContentType() string
	Render(in *RenderInput) ([]byte, error)
}

// UserInfo 订阅响应头 Subscription-Userinfo 的内容
type UserInfo struct {
	Upload   int64
	Download int64
	Total    int64
	Expire   int64
}

// Subscription BuildConfig 的返回值
type Subscription struct {
	Document *ConfigDocument
	UserInfo UserInfo
	CacheHit bool
}

// SubscriptionBuilder 根据 token 生成用户的客户端配置。
// 无效 token、封禁或暂停一律返回 ErrAccessDenied，不区分原因
type SubscriptionBuilder struct {
	userRepo  repository.UserRepository
	nodes     *NodeRegistry
	quota     *QuotaEnforcer
	cache     *SubscriptionCache
	metrics   *Metrics
	clock     clock.Clock
	renderers map[Format]Renderer
}

func NewSubscriptionBuilder(
	userRepo repository.UserRepository,
	nodes *NodeRegistry,
	quota *QuotaEnforcer,
	cache *SubscriptionCache,
	metrics *Metrics,
	clk clock.Clock,
	renderers []Renderer,
) *SubscriptionBuilder {
	b := &SubscriptionBuilder{
		userRepo:  userRepo,
		nodes:     nodes,
		quota:     quota,
		cache:     cache,
		metrics:   metrics,
		clock:     clk,
		renderers: make(map[Format]Renderer, len(renderers)),
	}
	for _, r := range renderers {
		b.renderers[r.Format()] = r
	}
	metrics.TrackCache(cache)
	return b
}

func denied(op string) error {
	return common.NewServiceError(op, common.ErrAccessDenied).WithCode(common.ErrCodeForbidden)
}

// authorize token 换用户，刷新配额状态并判断是否允许访问
func (b *SubscriptionBuilder) authorize(ctx context.Context, op, token string) (*model.User, error) {
	if token == "" {
		return nil, denied(op)
	}
	u, err := b.userRepo.FindByToken(ctx, token)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, denied(op)
		}
		return nil, common.HandleError(op, err)
	}
	u, err = b.quota.RefreshUser(ctx, u)
	if err != nil {
		return nil, err
	}
	if !b.quota.Allows(u) {
		b.cache.InvalidateUser(u.Id)
		return nil, denied(op)
	}
	return u, nil
}

// BuildConfig 生成或复用用户的订阅配置。指纹与缓存一致时直接复用缓存
func (b *SubscriptionBuilder) BuildConfig(ctx context.Context, token string, format Format) (*Subscription, error) {
	const op = "SubscriptionBuilder.BuildConfig"
	renderer, ok := b.renderers[format]
	if !ok {
		return nil, invalidInput(op, "unsupported format %q", format)
	}

	u, err := b.authorize(ctx, op, token)
	if err != nil {
		if errors.Is(err, common.ErrAccessDenied) {
			b.metrics.Renders.WithLabelValues("denied").Inc()
		}
		return nil, err
	}

	servers, err := b.nodes.LiveNodes(ctx, u.GroupId)
	if err != nil {
		return nil, err
	}
	endpoints, err := b.nodes.ResolveEndpoints(ctx, servers, u.GroupId)
	if err != nil {
		return nil, err
	}
	in := &RenderInput{UserUUID: u.UUID, Email: u.Email, SpeedLimit: u.SpeedLimit}
	for _, s := range servers {
		in.Nodes = append(in.Nodes, RenderNode{Server: s, Endpoints: endpoints[s.Id]})
	}
	fp := Fingerprint(in, format)

	sub := &Subscription{
		UserInfo: UserInfo{Upload: u.U, Download: u.D, Total: u.TransferEnable, Expire: u.ExpiredAt},
	}
	if cached, ok := b.cache.Get(u.Id, format); ok && cached.Fingerprint == fp {
		b.metrics.Renders.WithLabelValues("hit").Inc()
		sub.Document = cached.Document
		sub.CacheHit = true
		return sub, nil
	}

	doc, err := b.cache.Do(u.Id, format, fp, func() (*ConfigDocument, error) {
		body, err := renderer.Render(in)
		if err != nil {
			return nil, err
		}
		doc := &ConfigDocument{
			Format:      format,
			ContentType: renderer.ContentType(),
			Body:        body,
			Fingerprint: fp,
			GeneratedAt: b.clock.Now(),
		}
		b.cache.Put(u.Id, format, &CachedConfig{Fingerprint: fp, GroupID: u.GroupId, Document: doc})
		return doc, nil
	})
	if err != nil {
		return nil, common.HandleError(op, err)
	}
	b.metrics.Renders.WithLabelValues("miss").Inc()
	sub.Document = doc
	return sub, nil
}

// Fingerprint 对节点集合、入口、协议参数、用户身份与限速以及格式做 xxhash
func Fingerprint(in *RenderInput, format Format) uint64 {
	h := xxhash.New()
	var buf [8]byte
	writeInt := func(v int64) {
		binary.LittleEndian.PutUint64(buf[:], uint64(v))
		_, _ = h.Write(buf[:])
	}
	writeStr := func(s string) {
		writeInt(int64(len(s)))
		_, _ = h.WriteString(s)
	}

	writeStr(string(format))
	writeStr(in.UserUUID)
	writeStr(in.Email)
	writeInt(int64(in.SpeedLimit))
	writeInt(int64(len(in.Nodes)))
	for _, n := range in.Nodes {
		s := n.Server
		writeInt(s.Id)
		writeStr(s.Name)
		writeStr(string(s.Protocol))
		writeInt(int64(s.Port))
		st := s.Settings
		for _, v := range []string{st.Network, st.Security, st.SNI, st.Path, st.Host, st.Flow,
			st.Cipher, st.Fingerprint, st.PublicKey, st.ShortID, st.ServiceName, st.ServerKey,
			strconv.FormatBool(st.AllowInsecure)} {
			writeStr(v)
		}
		writeInt(int64(len(n.Endpoints)))
		for _, e := range n.Endpoints {
			writeStr(e.Host)
			writeInt(int64(e.Port))
			writeStr(e.Remark)
		}
	}
	return h.Sum64()
}

// SubscribeLink 可分享的订阅地址
func (b *SubscriptionBuilder) SubscribeLink(ctx context.Context, token string) (string, error) {
	const op = "SubscriptionBuilder.SubscribeLink"
	if _, err := b.authorize(ctx, op, token); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/subscribe/config?token=%s", config.GetSubBaseURL(), token), nil
}

// SubscribeQRCode 订阅地址的 PNG 二维码
func (b *SubscriptionBuilder) SubscribeQRCode(ctx context.Context, token string) ([]byte, error) {
	link, err := b.SubscribeLink(ctx, token)
	if err != nil {
		return nil, err
	}
	png, err := qrcode.Encode(link, qrcode.Medium, config.QRCodeSize)
	if err != nil {
		return nil, common.HandleError("SubscriptionBuilder.SubscribeQRCode", err)
	}
	return png, nil
}

// ResetToken 轮换订阅 token，旧 token 立即失效；进行中的渲染使用各自的快照完成
func (b *SubscriptionBuilder) ResetToken(ctx context.Context, token string) (string, error) {
	const op = "SubscriptionBuilder.ResetToken"
	if token == "" {
		return "", denied(op)
	}
	u, err := b.userRepo.FindByToken(ctx, token)
	if err != nil {
		if database.IsNotFound(err) {
			return "", denied(op)
		}
		return "", common.HandleError(op, err)
	}
	if u.Banned {
		return "", denied(op)
	}
	next := random.Seq(config.TokenLength)
	ok, err := b.userRepo.RotateToken(ctx, u.Id, token, next)
	if err != nil {
		return "", common.HandleError(op, err)
	}
	if !ok {
		// 并发轮换中另一方先完成
		return "", denied(op)
	}
	b.cache.InvalidateUser(u.Id)
	logger.Infof("[Subscription] token of user %d rotated", u.Id)
	return next, nil
}

// TestSubscribeConnectivity 探测用户可用的前 limit 个节点，不修改任何持久化状态
func (b *SubscriptionBuilder) TestSubscribeConnectivity(ctx context.Context, token string, limit int) ([]ProbeResult, error) {
	const op = "SubscriptionBuilder.TestSubscribeConnectivity"
	u, err := b.authorize(ctx, op, token)
	if err != nil {
		return nil, err
	}
	max := config.GetProbeMaxNodes()
	if max <= 0 {
		max = math.MaxInt
	}
	if limit <= 0 || limit > max {
		limit = max
	}
	servers, err := b.nodes.Nodes(ctx, u.GroupId)
	if err != nil {
		return nil, err
	}
	if len(servers) > limit {
		servers = servers[:limit]
	}
	return b.nodes.TestConnectivity(ctx, servers), nil
}

// NodeStatus 用户所在组的节点状态
func (b *SubscriptionBuilder) NodeStatus(ctx context.Context, token string) ([]NodeStatus, error) {
	u, err := b.authorize(ctx, "SubscriptionBuilder.NodeStatus", token)
	if err != nil {
		return nil, err
	}
	return b.nodes.Status(ctx, u.GroupId)
}
