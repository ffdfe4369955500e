package model

type Protocol string

const (
	VMESS       Protocol = "vmess"
	VLESS       Protocol = "vless"
	Trojan      Protocol = "trojan"
	Shadowsocks Protocol = "shadowsocks"
	Hysteria2   Protocol = "hysteria2"
)

// Valid 是否为可分发的协议
func (p Protocol) Valid() bool {
	switch p {
	case VMESS, VLESS, Trojan, Shadowsocks, Hysteria2:
		return true
	}
	return false
}
