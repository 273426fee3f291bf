package gateway

import "github.com/gorilla/websocket"

// 关闭码（对客户端的稳定契约）
const (
	CodeNormal      = websocket.CloseNormalClosure   // 1000
	CodeGoingAway   = websocket.CloseGoingAway       // 1001
	CodeAbnormal    = websocket.CloseAbnormalClosure // 1006，网络断开，不会出现在线上
	CodePolicy      = websocket.ClosePolicyViolation // 1008
	CodeTooBig      = websocket.CloseMessageTooBig   // 1009
	CodeNoEchoHeard = 1014                           // 心跳失败
)

// Reason 关闭原因，替代原来对原因字符串的匹配
type Reason int

const (
	ReasonUnknown Reason = iota
	ReasonClientClosed
	ReasonClientRenew
	ReasonNetworkLost
	ReasonConnectionExpired
	ReasonLoggedOut
	ReasonMessageTooBig
	ReasonTooManySockets
	ReasonNoEchoHeard
	ReasonServerRestart
)

var reasonText = map[Reason]string{
	ReasonUnknown:           "",
	ReasonClientClosed:      "Connection closed by client",
	ReasonClientRenew:       "Connection closed by client. Renew.",
	ReasonNetworkLost:       "Network failure",
	ReasonConnectionExpired: "Connection expired",
	ReasonLoggedOut:         "Logged out",
	ReasonMessageTooBig:     "Message Too Big",
	ReasonTooManySockets:    "Too Many Sockets",
	ReasonNoEchoHeard:       "No echo heard",
	ReasonServerRestart:     "Server restarting",
}

func (r Reason) String() string { return reasonText[r] }

// 这些原因意味着客户端并非主动离开：协作方会给宽限期（例如对局自动认输倒计时）
var involuntary = map[Reason]bool{
	ReasonNetworkLost:       true,
	ReasonConnectionExpired: true,
	ReasonLoggedOut:         true,
	ReasonMessageTooBig:     true,
	ReasonTooManySockets:    true,
	ReasonNoEchoHeard:       true,
	ReasonClientRenew:       true,
}

// Closure 一次关闭：关闭码 + 结构化原因 + 由谁发起
type Closure struct {
	Code     int
	Reason   Reason
	ByClient bool
	Text     string // 客户端发来的原始原因，仅日志用
}

// Voluntary 只有客户端主动、且不在非自愿集合中的关闭才算自愿
func (c Closure) Voluntary() bool {
	if !c.ByClient || c.Code == CodeAbnormal {
		return false
	}
	return !involuntary[c.Reason]
}

func (c Closure) ReasonText() string {
	if c.Reason == ReasonUnknown {
		return c.Text
	}
	return c.Reason.String()
}

// serverClosure 网关主动断开
func serverClosure(r Reason) Closure {
	code := CodeNormal
	switch r {
	case ReasonMessageTooBig, ReasonTooManySockets:
		code = CodeTooBig
	case ReasonNoEchoHeard:
		code = CodeNoEchoHeard
	case ReasonServerRestart:
		code = CodeGoingAway
	}
	return Closure{Code: code, Reason: r}
}

// ClientClosure 把客户端发来的关闭帧（或读错误）归类
func ClientClosure(code int, text string) Closure {
	c := Closure{Code: code, ByClient: true, Text: text}
	if code == CodeAbnormal {
		c.Reason = ReasonNetworkLost
		return c
	}
	for r, s := range reasonText {
		if r != ReasonUnknown && s == text {
			c.Reason = r
			return c
		}
	}
	c.Reason = ReasonClientClosed
	return c
}
