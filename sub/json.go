package sub

import (
	"encoding/json"

	"x-sub/database/model"
	"x-sub/web/service"
)

// JSONRenderer xray 客户端配置，每个入口一个 outbound
type JSONRenderer struct{}

func (r *JSONRenderer) Format() service.Format { return service.FormatJSON }
func (r *JSONRenderer) ContentType() string    { return "application/json; charset=utf-8" }

type outbound struct {
	Tag            string         `json:"tag"`
	Protocol       string         `json:"protocol"`
	Settings       map[string]any `json:"settings,omitempty"`
	StreamSettings map[string]any `json:"streamSettings,omitempty"`
}

type clientConfig struct {
	Remarks   string     `json:"remarks"`
	Outbounds []outbound `json:"outbounds"`
}

func (r *JSONRenderer) Render(in *service.RenderInput) ([]byte, error) {
	cfg := clientConfig{Remarks: in.Email, Outbounds: []outbound{}}
	for _, p := range expand(in) {
		if ob, ok := genOutbound(&p); ok {
			cfg.Outbounds = append(cfg.Outbounds, ob)
		}
	}
	cfg.Outbounds = append(cfg.Outbounds,
		outbound{Tag: "direct", Protocol: "freedom"},
		outbound{Tag: "block", Protocol: "blackhole"},
	)
	return json.MarshalIndent(cfg, "", "  ")
}

func genOutbound(p *proxy) (outbound, bool) {
	ob := outbound{Tag: p.remark, Protocol: string(p.server.Protocol)}
	host, port := p.endpoint.Host, p.endpoint.Port

	switch p.server.Protocol {
	case model.VMESS:
		ob.Settings = map[string]any{"vnext": []any{map[string]any{
			"address": host, "port": port,
			"users": []any{map[string]any{"id": p.uuid, "security": "auto"}},
		}}}
	case model.VLESS:
		user := map[string]any{"id": p.uuid, "encryption": "none"}
		if flow := p.settings().Flow; flow != "" {
			user["flow"] = flow
		}
		ob.Settings = map[string]any{"vnext": []any{map[string]any{
			"address": host, "port": port, "users": []any{user},
		}}}
	case model.Trojan:
		ob.Settings = map[string]any{"servers": []any{map[string]any{
			"address": host, "port": port, "password": p.uuid,
		}}}
	case model.Shadowsocks:
		ob.Settings = map[string]any{"servers": []any{map[string]any{
			"address": host, "port": port, "method": p.cipher(), "password": p.ssPassword(),
		}}}
		return ob, true
	case model.Hysteria2:
		ob.Settings = map[string]any{"servers": []any{map[string]any{
			"address": host, "port": port, "password": p.uuid,
		}}}
		ob.StreamSettings = map[string]any{
			"network":     "hysteria2",
			"security":    "tls",
			"tlsSettings": tlsSettings(p),
		}
		return ob, true
	default:
		return ob, false
	}
	ob.StreamSettings = streamSettings(p)
	return ob, true
}

func tlsSettings(p *proxy) map[string]any {
	st := p.settings()
	out := map[string]any{"serverName": p.sni(), "allowInsecure": st.AllowInsecure}
	if st.Fingerprint != "" {
		out["fingerprint"] = st.Fingerprint
	}
	return out
}

// streamSettings 按网络与安全类型生成 xray streamSettings
func streamSettings(p *proxy) map[string]any {
	st := p.settings()
	out := map[string]any{"network": p.network()}
	switch p.network() {
	case "ws":
		ws := map[string]any{"path": st.Path}
		if st.Host != "" {
			ws["headers"] = map[string]any{"Host": st.Host}
		}
		out["wsSettings"] = ws
	case "httpupgrade":
		out["httpupgradeSettings"] = map[string]any{"path": st.Path, "host": st.Host}
	case "xhttp":
		out["xhttpSettings"] = map[string]any{"path": st.Path, "host": st.Host}
	case "grpc":
		out["grpcSettings"] = map[string]any{"serviceName": st.ServiceName}
	}

	switch st.Security {
	case "tls":
		out["security"] = "tls"
		out["tlsSettings"] = tlsSettings(p)
	case "reality":
		out["security"] = "reality"
		out["realitySettings"] = map[string]any{
			"serverName":  p.sni(),
			"fingerprint": st.Fingerprint,
			"publicKey":   st.PublicKey,
			"shortId":     st.ShortID,
		}
	default:
		out["security"] = "none"
	}
	return out
}
