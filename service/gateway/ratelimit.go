package gateway

import (
	"sync"
	"time"

	"github.com/Infinite-Chess/infinitechess.org-sub008/global/config"
	"golang.org/x/time/rate"
)

type ipBucket struct {
	msgs     *rate.Limiter
	bytes    *rate.Limiter
	lastSeen time.Time
}

// RateGuard 按 IP 的令牌桶：消息频率 + 字节量，外加单帧大小上限
type RateGuard struct {
	mu      sync.Mutex
	buckets map[string]*ipBucket
	limits  func() config.Limits
	now     func() time.Time
}

func NewRateGuard(limits func() config.Limits) *RateGuard {
	return &RateGuard{
		buckets: make(map[string]*ipBucket),
		limits:  limits,
		now:     time.Now,
	}
}

// Allow 扣一条消息和 size 字节；false 表示该 IP 违规
func (g *RateGuard) Allow(ip string, size int) bool {
	l := g.limits()
	if size > l.MaxMessageBytes {
		return false
	}
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()
	b := g.buckets[ip]
	if b == nil {
		b = &ipBucket{
			msgs:  rate.NewLimiter(rate.Limit(l.MessagesPerSecond), l.MessageBurst),
			bytes: rate.NewLimiter(rate.Limit(l.BytesPerSecond), l.ByteBurst),
		}
		g.buckets[ip] = b
	}
	b.lastSeen = now
	if !b.msgs.AllowN(now, 1) {
		return false
	}
	if size > 0 && !b.bytes.AllowN(now, size) {
		return false
	}
	return true
}

// Sweep 清掉空闲超过 idle 的桶
func (g *RateGuard) Sweep(idle time.Duration) int {
	cutoff := g.now().Add(-idle)
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for ip, b := range g.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(g.buckets, ip)
			n++
		}
	}
	return n
}

// Reset 限额变化后丢弃所有桶，下一帧按新限额重建
func (g *RateGuard) Reset() {
	g.mu.Lock()
	g.buckets = make(map[string]*ipBucket)
	g.mu.Unlock()
}

func (g *RateGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.buckets)
}
