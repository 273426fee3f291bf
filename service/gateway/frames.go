package gateway

import (
	"encoding/json"
	"fmt"
)

const (
	RouteGeneral = "general"
	RouteInvites = "invites"
	RouteGame    = "game"

	ActionEcho            = "echo"
	ActionRenewConnection = "renewconnection"
	ActionProtocolError   = "protocolerror"
)

// Inbound 客户端 -> 服务端。id 只有 echo 可以省略
type Inbound struct {
	Route  string `json:"route"`
	Action string `json:"action"`
	Value  any    `json:"value,omitempty"`
	ID     *int64 `json:"id,omitempty"`
}

// MessageID 没有 id 时返回 0
func (m *Inbound) MessageID() int64 {
	if m.ID == nil {
		return 0
	}
	return *m.ID
}

// Outbound 服务端 -> 客户端。id 只有 echo 省略；replyto 关联某条入站消息
type Outbound struct {
	Sub     string `json:"sub"`
	Action  string `json:"action"`
	Value   any    `json:"value"`
	ID      int64  `json:"id,omitempty"`
	ReplyTo int64  `json:"replyto,omitempty"`
}

// ParseInbound 解析入站帧；action 为空视为非法
func ParseInbound(raw []byte) (*Inbound, error) {
	var m Inbound
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("unmarshal frame failed: %w", err)
	}
	if m.Action == "" {
		return nil, fmt.Errorf("frame without action")
	}
	return &m, nil
}

func encodeOutbound(m *Outbound) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal frame: %w", err)
	}
	return data, nil
}
