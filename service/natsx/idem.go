package natsx

import (
	"context"
	"strings"
	"sync"
	"time"
)

// IdemStore 记录见过的消息 id
type IdemStore interface {
	SeenOnce(key string, ttl time.Duration) (seen bool, err error)
}

// memIdem 单进程实现；过期键在写入时顺带清理
type memIdem struct {
	mu        sync.Mutex
	m         map[string]time.Time // key -> expireAt
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func NewMemIdem(defaultTTL time.Duration) IdemStore {
	return &memIdem{m: make(map[string]time.Time), ttl: defaultTTL, now: time.Now}
}

func (mi *memIdem) SeenOnce(key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = mi.ttl
	}
	now := mi.now()
	mi.mu.Lock()
	defer mi.mu.Unlock()
	if now.Sub(mi.lastSweep) > time.Minute {
		for k, exp := range mi.m {
			if !exp.After(now) {
				delete(mi.m, k)
			}
		}
		mi.lastSweep = now
	}
	if exp, ok := mi.m[key]; ok && exp.After(now) {
		return true, nil
	}
	mi.m[key] = now.Add(ttl)
	return false, nil
}

// msgIDFromHeader 标准头 Nats-Msg-Id，兼容 X-Msg-Id
func msgIDFromHeader(h map[string]string) string {
	for _, k := range []string{"Nats-Msg-Id", "nats-msg-id", "X-Msg-Id", "x-msg-id"} {
		if v, ok := h[k]; ok && v != "" {
			return v
		}
	}
	return ""
}

// NatsxIdemMiddleware 重复投递直接跳过
func NatsxIdemMiddleware(store IdemStore, ttl time.Duration) NatsxMiddleware {
	return func(next NatsxHandler) NatsxHandler {
		return func(ctx context.Context, msg NatsxMessage) error {
			id := msgIDFromHeader(msg.Header)
			if id == "" {
				// 无ID时根据 subject+内容构造一个弱ID
				id = msg.Subject + "|" + strings.TrimSpace(string(msg.Data))
			}
			if seen, _ := store.SeenOnce(id, ttl); seen {
				return nil
			}
			return next(ctx, msg)
		}
	}
}
