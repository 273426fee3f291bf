package gateway

import (
	"sync"

	"github.com/Infinite-Chess/infinitechess.org-sub008/global/config"
	"github.com/Infinite-Chess/infinitechess.org-sub008/service/session"
	"github.com/Infinite-Chess/infinitechess.org-sub008/tools/security"
)

// Registry 进程内连接表。四个索引都是派生数据，只在持锁时修改，从不把 map 交出去
type Registry struct {
	mu        sync.RWMutex
	byID      map[string]*Connection            // 主索引：connID -> conn
	byIP      map[string]map[string]*Connection // ip -> (connID -> conn)
	bySession map[string]map[string]*Connection // sid -> (connID -> conn)，轮换令牌不换桶
	byMember  map[string]map[string]*Connection // userID -> (connID -> conn)
}

func NewRegistry() *Registry {
	return &Registry{
		byID:      make(map[string]*Connection),
		byIP:      make(map[string]map[string]*Connection),
		bySession: make(map[string]map[string]*Connection),
		byMember:  make(map[string]map[string]*Connection),
	}
}

// sessionIndex 会话桶的键：优先用令牌里的 sid，旧令牌没有就用令牌哈希
func sessionIndex(token string, v session.Validation) string {
	if v.SessionID != "" {
		return v.SessionID
	}
	if token == "" {
		return ""
	}
	return security.HashToken(token)
}

func addTo(idx map[string]map[string]*Connection, key string, c *Connection) {
	if key == "" {
		return
	}
	mm := idx[key]
	if mm == nil {
		mm = make(map[string]*Connection)
		idx[key] = mm
	}
	mm[c.id] = c
}

func removeFrom(idx map[string]map[string]*Connection, key, id string) {
	if mm := idx[key]; mm != nil {
		delete(mm, id)
		if len(mm) == 0 {
			delete(idx, key)
		}
	}
}

// Register 登记连接并挂上最长存活 timer。上限在锁内复查，并发准入不会同时钻过去
func (r *Registry) Register(c *Connection, l config.Limits) error {
	r.mu.Lock()
	if _, exists := r.byID[c.id]; exists {
		r.mu.Unlock()
		return ErrConnClosed
	}
	if l.MaxSocketsPerIP > 0 && len(r.byIP[c.ip]) >= l.MaxSocketsPerIP {
		r.mu.Unlock()
		return ErrTooManySockets.WrapMsg("ip over limit", "ip", c.ip)
	}
	sk := c.sessionID
	if sk != "" && l.MaxSocketsPerSession > 0 && len(r.bySession[sk]) >= l.MaxSocketsPerSession {
		r.mu.Unlock()
		return ErrTooManySockets.WrapMsg("session over limit", "user", c.identity.UserID)
	}

	r.byID[c.id] = c
	addTo(r.byIP, c.ip, c)
	addTo(r.bySession, sk, c)
	if c.identity.IsMember() {
		addTo(r.byMember, c.identity.UserID, c)
	}
	r.mu.Unlock()

	c.armLifetime(l.MaxSocketAge)
	return nil
}

// Deregister 幂等
func (r *Registry) Deregister(c *Connection) {
	c.stopLifetime()

	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.byID[c.id]; !ok || cur != c {
		return
	}
	delete(r.byID, c.id)
	removeFrom(r.byIP, c.ip, c.id)
	if sk := c.sessionID; sk != "" {
		removeFrom(r.bySession, sk, c.id)
	}
	if c.identity.IsMember() {
		removeFrom(r.byMember, c.identity.UserID, c.id)
	}
}

func (r *Registry) Get(id string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	return c, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

func (r *Registry) CountByIP(ip string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byIP[ip])
}

func (r *Registry) CountBySession(sid string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bySession[sid])
}

func (r *Registry) CountByMember(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byMember[userID])
}

func snapshot(mm map[string]*Connection) []*Connection {
	out := make([]*Connection, 0, len(mm))
	for _, c := range mm {
		out = append(out, c)
	}
	return out
}

// ConnsForIP 返回副本，调用方可以在锁外逐个关闭
func (r *Registry) ConnsForIP(ip string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return snapshot(r.byIP[ip])
}

func (r *Registry) ConnsForSession(sid string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return snapshot(r.bySession[sid])
}

func (r *Registry) ConnsForMember(userID string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return snapshot(r.byMember[userID])
}

func (r *Registry) All() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return snapshot(r.byID)
}

// Stats 各索引的大小
type Stats struct {
	Connections int `json:"connections"`
	IPs         int `json:"ips"`
	Sessions    int `json:"sessions"`
	Members     int `json:"members"`
	LimitedIPs  int `json:"limited_ips"`
}

func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Stats{
		Connections: len(r.byID),
		IPs:         len(r.byIP),
		Sessions:    len(r.bySession),
		Members:     len(r.byMember),
	}
}
