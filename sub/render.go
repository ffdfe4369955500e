package sub

import (
	"encoding/base64"
	"net"
	"strconv"
	"strings"

	"x-sub/database/model"
	"x-sub/web/service"
)

// NewRenderers 返回全部订阅格式的渲染器
func NewRenderers() []service.Renderer {
	return []service.Renderer{
		&LinksRenderer{},
		&JSONRenderer{},
		&ClashRenderer{},
	}
}

// proxy 一个节点入口展开后的渲染单元
type proxy struct {
	server   *model.Server
	endpoint service.Endpoint
	remark   string
	uuid     string
	// speedLimit 用户限速（Mbps，0 不限），只有 hysteria2 客户端配置能携带
	speedLimit int
}

// expand 把每个节点的入口展开为独立条目，同名条目追加序号
func expand(in *service.RenderInput) []proxy {
	var out []proxy
	seen := make(map[string]int)
	for _, n := range in.Nodes {
		for _, ep := range n.Endpoints {
			remark := n.Server.Name
			if ep.Remark != "" {
				remark += "-" + ep.Remark
			}
			seen[remark]++
			if c := seen[remark]; c > 1 {
				remark += "-" + strconv.Itoa(c)
			}
			out = append(out, proxy{server: n.Server, endpoint: ep, remark: remark, uuid: in.UserUUID, speedLimit: in.SpeedLimit})
		}
	}
	return out
}

func (p *proxy) address() string {
	return net.JoinHostPort(p.endpoint.Host, strconv.Itoa(p.endpoint.Port))
}

func (p *proxy) settings() model.ServerSettings {
	return p.server.Settings
}

// sni 未配置时使用节点域名
func (p *proxy) sni() string {
	if s := p.settings().SNI; s != "" {
		return s
	}
	if net.ParseIP(p.server.Host) == nil {
		return p.server.Host
	}
	return ""
}

func (p *proxy) network() string {
	if n := p.settings().Network; n != "" {
		return n
	}
	return "tcp"
}

func (p *proxy) tls() bool {
	sec := p.settings().Security
	return sec == "tls" || sec == "reality"
}

func (p *proxy) cipher() string {
	if c := p.settings().Cipher; c != "" {
		return c
	}
	return "aes-128-gcm"
}

// ssKeyLen 2022 系列加密的密钥长度
func ssKeyLen(cipher string) int {
	switch cipher {
	case "2022-blake3-aes-128-gcm":
		return 16
	case "2022-blake3-aes-256-gcm", "2022-blake3-chacha20-poly1305":
		return 32
	}
	return 0
}

// ssPassword 2022 系列使用 "服务端密钥:用户密钥"，用户密钥取自 uuid 前若干字节
func (p *proxy) ssPassword() string {
	n := ssKeyLen(p.cipher())
	if n == 0 {
		return p.uuid
	}
	key := strings.ReplaceAll(p.uuid, "-", "")
	if len(key) > n {
		key = key[:n]
	}
	userKey := base64.StdEncoding.EncodeToString([]byte(key))
	if sk := p.settings().ServerKey; sk != "" {
		return sk + ":" + userKey
	}
	return userKey
}
