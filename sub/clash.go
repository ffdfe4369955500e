package sub

import (
	"strconv"

	"x-sub/database/model"
	"x-sub/web/service"

	"gopkg.in/yaml.v3"
)

const clashGroupName = "Proxy"

// ClashRenderer Clash（mihomo）YAML 配置
type ClashRenderer struct{}

func (r *ClashRenderer) Format() service.Format { return service.FormatClash }
func (r *ClashRenderer) ContentType() string    { return "text/yaml; charset=utf-8" }

type clashProxy struct {
	Name              string            `yaml:"name"`
	Type              string            `yaml:"type"`
	Server            string            `yaml:"server"`
	Port              int               `yaml:"port"`
	UUID              string            `yaml:"uuid,omitempty"`
	AlterID           *int              `yaml:"alterId,omitempty"`
	Cipher            string            `yaml:"cipher,omitempty"`
	Password          string            `yaml:"password,omitempty"`
	Up                string            `yaml:"up,omitempty"`
	Down              string            `yaml:"down,omitempty"`
	UDP               bool              `yaml:"udp"`
	TLS               bool              `yaml:"tls,omitempty"`
	Flow              string            `yaml:"flow,omitempty"`
	ServerName        string            `yaml:"servername,omitempty"`
	SNI               string            `yaml:"sni,omitempty"`
	SkipCertVerify    bool              `yaml:"skip-cert-verify,omitempty"`
	ClientFingerprint string            `yaml:"client-fingerprint,omitempty"`
	Network           string            `yaml:"network,omitempty"`
	WSOpts            *clashWSOpts      `yaml:"ws-opts,omitempty"`
	GRPCOpts          map[string]string `yaml:"grpc-opts,omitempty"`
	RealityOpts       map[string]string `yaml:"reality-opts,omitempty"`
}

type clashWSOpts struct {
	Path    string            `yaml:"path,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
}

type clashGroup struct {
	Name    string   `yaml:"name"`
	Type    string   `yaml:"type"`
	Proxies []string `yaml:"proxies"`
}

type clashConfig struct {
	Proxies     []clashProxy `yaml:"proxies"`
	ProxyGroups []clashGroup `yaml:"proxy-groups"`
	Rules       []string     `yaml:"rules"`
}

func (r *ClashRenderer) Render(in *service.RenderInput) ([]byte, error) {
	cfg := clashConfig{Proxies: []clashProxy{}, Rules: []string{"MATCH," + clashGroupName}}
	names := []string{}
	for _, p := range expand(in) {
		cp, ok := genClashProxy(&p)
		if !ok {
			continue
		}
		cfg.Proxies = append(cfg.Proxies, cp)
		names = append(names, cp.Name)
	}
	names = append(names, "DIRECT")
	cfg.ProxyGroups = []clashGroup{{Name: clashGroupName, Type: "select", Proxies: names}}
	return yaml.Marshal(&cfg)
}

func genClashProxy(p *proxy) (clashProxy, bool) {
	st := p.settings()
	cp := clashProxy{
		Name:   p.remark,
		Server: p.endpoint.Host,
		Port:   p.endpoint.Port,
		UDP:    true,
	}
	switch p.server.Protocol {
	case model.VMESS:
		zero := 0
		cp.Type, cp.UUID, cp.AlterID, cp.Cipher = "vmess", p.uuid, &zero, "auto"
	case model.VLESS:
		cp.Type, cp.UUID, cp.Flow = "vless", p.uuid, st.Flow
	case model.Trojan:
		cp.Type, cp.Password = "trojan", p.uuid
	case model.Shadowsocks:
		cp.Type, cp.Cipher, cp.Password = "ss", p.cipher(), p.ssPassword()
		return cp, true
	case model.Hysteria2:
		cp.Type, cp.Password, cp.SNI, cp.SkipCertVerify = "hysteria2", p.uuid, p.sni(), st.AllowInsecure
		if p.speedLimit > 0 {
			bw := strconv.Itoa(p.speedLimit) + " Mbps"
			cp.Up, cp.Down = bw, bw
		}
		return cp, true
	default:
		return cp, false
	}

	if n := p.network(); n != "tcp" {
		cp.Network = n
	}
	switch p.network() {
	case "ws":
		cp.WSOpts = &clashWSOpts{Path: st.Path}
		if st.Host != "" {
			cp.WSOpts.Headers = map[string]string{"Host": st.Host}
		}
	case "grpc":
		cp.GRPCOpts = map[string]string{"grpc-service-name": st.ServiceName}
	}

	if p.tls() {
		// trojan 使用 sni，其余使用 servername
		if p.server.Protocol == model.Trojan {
			cp.SNI = p.sni()
		} else {
			cp.TLS = true
			cp.ServerName = p.sni()
		}
		cp.SkipCertVerify = st.AllowInsecure
		cp.ClientFingerprint = st.Fingerprint
	}
	if st.Security == "reality" {
		cp.RealityOpts = map[string]string{"public-key": st.PublicKey, "short-id": st.ShortID}
	}
	return cp, true
}
