package sub

import (
	"encoding/base64"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"x-sub/database/model"
	"x-sub/logger"
	"x-sub/web/service"
)

// LinksRenderer 通用分享链接，整体 base64 编码
type LinksRenderer struct{}

func (r *LinksRenderer) Format() service.Format { return service.FormatLinks }
func (r *LinksRenderer) ContentType() string    { return "text/plain; charset=utf-8" }

func (r *LinksRenderer) Render(in *service.RenderInput) ([]byte, error) {
	var lines []string
	for _, p := range expand(in) {
		if link := genLink(&p); link != "" {
			lines = append(lines, link)
		}
	}
	body := base64.StdEncoding.EncodeToString([]byte(strings.Join(lines, "\n")))
	return []byte(body), nil
}

func genLink(p *proxy) string {
	switch p.server.Protocol {
	case model.VMESS:
		return genVmessLink(p)
	case model.VLESS:
		return genVlessLink(p)
	case model.Trojan:
		return genTrojanLink(p)
	case model.Shadowsocks:
		return genShadowsocksLink(p)
	case model.Hysteria2:
		return genHysteria2Link(p)
	default:
		logger.Warningf("[Sub] skip node %d with unsupported protocol %s", p.server.Id, p.server.Protocol)
		return ""
	}
}

func genVmessLink(p *proxy) string {
	st := p.settings()
	obj := map[string]any{
		"v":    "2",
		"ps":   p.remark,
		"add":  p.endpoint.Host,
		"port": strconv.Itoa(p.endpoint.Port),
		"id":   p.uuid,
		"aid":  "0",
		"scy":  "auto",
		"net":  p.network(),
		"type": "none",
	}
	switch p.network() {
	case "ws", "httpupgrade", "xhttp":
		obj["path"] = st.Path
		obj["host"] = st.Host
	case "grpc":
		obj["path"] = st.ServiceName
	}
	if p.tls() {
		obj["tls"] = "tls"
		obj["sni"] = p.sni()
		if st.Fingerprint != "" {
			obj["fp"] = st.Fingerprint
		}
	}
	raw, err := json.Marshal(obj)
	if err != nil {
		return ""
	}
	return "vmess://" + base64.StdEncoding.EncodeToString(raw)
}

// streamParams vless 与 trojan 共用的传输参数
func streamParams(p *proxy) url.Values {
	st := p.settings()
	q := url.Values{}
	q.Set("type", p.network())
	switch p.network() {
	case "ws", "httpupgrade", "xhttp":
		if st.Path != "" {
			q.Set("path", st.Path)
		}
		if st.Host != "" {
			q.Set("host", st.Host)
		}
	case "grpc":
		if st.ServiceName != "" {
			q.Set("serviceName", st.ServiceName)
		}
	}
	security := st.Security
	if security == "" {
		security = "none"
	}
	q.Set("security", security)
	if p.tls() {
		if sni := p.sni(); sni != "" {
			q.Set("sni", sni)
		}
		if st.Fingerprint != "" {
			q.Set("fp", st.Fingerprint)
		}
		if st.AllowInsecure {
			q.Set("allowInsecure", "1")
		}
	}
	if security == "reality" {
		q.Set("pbk", st.PublicKey)
		if st.ShortID != "" {
			q.Set("sid", st.ShortID)
		}
	}
	return q
}

func genVlessLink(p *proxy) string {
	q := streamParams(p)
	q.Set("encryption", "none")
	if flow := p.settings().Flow; flow != "" && p.network() == "tcp" {
		q.Set("flow", flow)
	}
	u := url.URL{
		Scheme:   "vless",
		User:     url.User(p.uuid),
		Host:     p.address(),
		RawQuery: q.Encode(),
		Fragment: p.remark,
	}
	return u.String()
}

func genTrojanLink(p *proxy) string {
	u := url.URL{
		Scheme:   "trojan",
		User:     url.User(p.uuid),
		Host:     p.address(),
		RawQuery: streamParams(p).Encode(),
		Fragment: p.remark,
	}
	return u.String()
}

func genShadowsocksLink(p *proxy) string {
	userInfo := base64.StdEncoding.EncodeToString([]byte(p.cipher() + ":" + p.ssPassword()))
	return "ss://" + userInfo + "@" + p.address() + "#" + url.PathEscape(p.remark)
}

func genHysteria2Link(p *proxy) string {
	st := p.settings()
	q := url.Values{}
	if sni := p.sni(); sni != "" {
		q.Set("sni", sni)
	}
	if st.AllowInsecure {
		q.Set("insecure", "1")
	}
	u := url.URL{
		Scheme:   "hysteria2",
		User:     url.User(p.uuid),
		Host:     p.address(),
		RawQuery: q.Encode(),
		Fragment: p.remark,
	}
	return u.String()
}
