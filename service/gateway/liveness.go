package gateway

import "time"

// LiveState 心跳状态机
//
//	Open --send--> AwaitingEcho --echo(清空)--> Open
//	AwaitingEcho --deadline--> Closed(1014)
//	Open --空闲且有订阅--> 发 renewconnection --> AwaitingEcho
//	任意 --max age--> Closed(1000)
type LiveState int

const (
	LiveOpen LiveState = iota
	LiveAwaitingEcho
	LiveClosed
)

func (s LiveState) String() string {
	switch s {
	case LiveOpen:
		return "open"
	case LiveAwaitingEcho:
		return "awaiting-echo"
	default:
		return "closed"
	}
}

// liveness 纯状态，不碰 socket 也不碰 timer；调用方持有连接锁
type liveness struct {
	state   LiveState
	pending map[int64]time.Time
}

func newLiveness() *liveness {
	return &liveness{pending: make(map[int64]time.Time)}
}

// sent 登记一条等待 echo 的出站消息
func (l *liveness) sent(id int64, deadline time.Time) bool {
	if l.state == LiveClosed {
		return false
	}
	l.pending[id] = deadline
	l.state = LiveAwaitingEcho
	return true
}

// echoed 返回 id 是否在等待表里；未知 id 由调用方记为协议违规
func (l *liveness) echoed(id int64) bool {
	if l.state == LiveClosed {
		return false
	}
	if _, ok := l.pending[id]; !ok {
		return false
	}
	delete(l.pending, id)
	if len(l.pending) == 0 {
		l.state = LiveOpen
	}
	return true
}

// deadlinePassed id 的期限到了还没 echo，返回 true 表示要以 1014 关闭
func (l *liveness) deadlinePassed(id int64) bool {
	if l.state == LiveClosed {
		return false
	}
	if _, ok := l.pending[id]; !ok {
		return false
	}
	l.close()
	return true
}

func (l *liveness) close() {
	l.state = LiveClosed
	l.pending = map[int64]time.Time{}
}

func (l *liveness) outstanding() int { return len(l.pending) }
