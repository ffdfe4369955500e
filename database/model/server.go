package model

// ServerGroup 节点组
type ServerGroup struct {
	Id   int64  `json:"id" gorm:"primaryKey;autoIncrement"`
	Name string `json:"name"`
}

// ServerGroupMember 节点与节点组的多对多关系
type ServerGroupMember struct {
	GroupId  int64 `json:"group_id" gorm:"primaryKey;autoIncrement:false"`
	ServerId int64 `json:"server_id" gorm:"primaryKey;autoIncrement:false;index"`
}

// ServerSettings 渲染客户端配置所需的传输参数
type ServerSettings struct {
	Network       string `json:"network,omitempty"`
	Security      string `json:"security,omitempty"`
	SNI           string `json:"sni,omitempty"`
	Path          string `json:"path,omitempty"`
	Host          string `json:"host,omitempty"`
	Flow          string `json:"flow,omitempty"`
	Cipher        string `json:"cipher,omitempty"`
	Fingerprint   string `json:"fp,omitempty"`
	PublicKey     string `json:"pbk,omitempty"`
	ShortID       string `json:"sid,omitempty"`
	ServiceName   string `json:"service_name,omitempty"`
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
	// Shadowsocks 服务端密码，2022 系列加密与用户密码拼接
	ServerKey string `json:"server_key,omitempty"`
}

// Server 代理节点
type Server struct {
	Id       int64          `json:"id" gorm:"primaryKey;autoIncrement"`
	Name     string         `json:"name"`
	Host     string         `json:"host"`
	Port     int            `json:"port"`
	Protocol Protocol       `json:"protocol" gorm:"size:32"`
	Settings ServerSettings `json:"settings" gorm:"serializer:json"`
	Sort     int            `json:"sort" gorm:"index"`
	Show     bool           `json:"show"`

	// 由节点上报维护
	LastSeenAt  int64   `json:"last_seen_at"` // 毫秒
	LastSeq     int64   `json:"last_seq"`
	OnlineUsers int     `json:"online_users"`
	LoadCPU     float64 `json:"load_cpu"`
	LoadMem     float64 `json:"load_mem"`

	CreatedAt int64 `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt int64 `json:"updated_at" gorm:"autoUpdateTime"`
}

// ServerRoute 渲染时生效的入口覆盖，不修改节点本身
type ServerRoute struct {
	Id       int64  `json:"id" gorm:"primaryKey;autoIncrement"`
	ServerId int64  `json:"server_id" gorm:"index"`
	GroupId  int64  `json:"group_id"` // 0 表示对所有组生效
	Sort     int    `json:"sort"`
	Host     string `json:"host"`
	Port     int    `json:"port"` // 0 表示沿用节点端口
	Enable   bool   `json:"enable"`
	Remark   string `json:"remark"`
}
