package gateway

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/Infinite-Chess/infinitechess.org-sub008/global/config"
	"github.com/Infinite-Chess/infinitechess.org-sub008/logger"
	"go.uber.org/zap"
)

type Options struct {
	Config     config.Gateway
	Sessions   SessionStore
	Members    MemberStore
	BrowserIDs BrowserIDIssuer
	Invites    InvitesCollaborator
	Game       GameCollaborator
	Presence   PresenceTracker  // nil 表示不登记
	Clock      func() time.Time // 单测注入；nil => time.Now
}

// Gateway 持有 registry、限流和订阅，是唯一的共享可变状态的主人
type Gateway struct {
	cfg    config.Gateway
	limits atomic.Pointer[config.Limits]

	sessions   SessionStore
	members    MemberStore
	browserIDs BrowserIDIssuer
	invites    InvitesCollaborator
	game       GameCollaborator
	presence   PresenceTracker

	registry *Registry
	guard    *RateGuard
	subs     *Subscriptions
	router   *Router

	msgSeq   atomic.Int64 // 出站消息 id，保持在 2^53 以内，浏览器端不丢精度
	shutting atomic.Bool
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

func New(opts Options) *Gateway {
	g := &Gateway{
		cfg:        opts.Config,
		sessions:   opts.Sessions,
		members:    opts.Members,
		browserIDs: opts.BrowserIDs,
		presence:   opts.Presence,
		registry:   NewRegistry(),
		router:     NewRouter(),
		now:        opts.Clock,
	}
	if g.now == nil {
		g.now = time.Now
	}
	limits := opts.Config.Limits
	g.limits.Store(&limits)
	g.subs = NewSubscriptions(opts.Invites, opts.Game)
	g.invites = g.subs.invites
	g.game = g.subs.game
	g.guard = NewRateGuard(g.Limits)
	g.guard.now = g.now
	g.ctx, g.cancel = context.WithCancel(context.Background())
	return g
}

func (g *Gateway) Config() config.Gateway { return g.cfg }

func (g *Gateway) Limits() config.Limits { return *g.limits.Load() }

// SetLimits nacos 推送新限额时调用；已有连接的 lifetime timer 不受影响
func (g *Gateway) SetLimits(l config.Limits) {
	g.limits.Store(&l)
	g.guard.Reset()
	logger.Info("[gateway] limits updated", zap.Any("limits", l))
}

func (g *Gateway) Register(h RouteHandler) { g.router.Register(h) }

func (g *Gateway) Registry() *Registry { return g.registry }

func (g *Gateway) Subscriptions() *Subscriptions { return g.subs }

func (g *Gateway) Invites() InvitesCollaborator { return g.invites }

func (g *Gateway) Game() GameCollaborator { return g.game }

func (g *Gateway) nextMessageID() int64 {
	return g.msgSeq.Add(1) & (1<<53 - 1)
}

// trackPresence 只登记成员；失败只影响跨节点投递，记日志即可
func (g *Gateway) trackPresence(c *Connection, online bool) {
	if g.presence == nil || !c.identity.IsMember() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), g.cfg.IdentityTimeout)
	defer cancel()
	var err error
	if online {
		err = g.presence.Online(ctx, c.identity.UserID, c.id)
	} else {
		err = g.presence.Offline(ctx, c.identity.UserID, c.id)
	}
	if err != nil {
		logger.Warn("[gateway] presence update failed", zap.String("conn", c.id), zap.Bool("online", online), zap.Error(err))
	}
}

// Run 周期回收空闲的限流桶，直到 ctx 结束
func (g *Gateway) Run(ctx context.Context) {
	every := g.cfg.LimiterIdleTTL / 2
	if every <= 0 {
		every = time.Minute
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-g.ctx.Done():
			return
		case <-t.C:
			if n := g.guard.Sweep(g.cfg.LimiterIdleTTL); n > 0 {
				logger.Debug("[gateway] swept idle limiter buckets", zap.Int("n", n))
			}
		}
	}
}

// terminateIP 限流违规：该 IP 的所有连接一起断开
func (g *Gateway) terminateIP(ip string, cl Closure) int {
	conns := g.registry.ConnsForIP(ip)
	for _, c := range conns {
		c.terminate(cl)
	}
	if len(conns) > 0 {
		logger.Hostile("ip terminated", zap.String("ip", ip), zap.Int("connections", len(conns)), zap.String("reason", cl.ReasonText()))
	}
	return len(conns)
}

// SendToConnection 协作方按连接 id 推消息
func (g *Gateway) SendToConnection(connID, route, action string, value any, replyTo int64) error {
	c, ok := g.registry.Get(connID)
	if !ok {
		return ErrConnNotFound
	}
	return c.Send(route, action, value, replyTo)
}

// SendToMember 推给某个成员的所有连接，返回成功条数
func (g *Gateway) SendToMember(userID, route, action string, value any) int {
	n := 0
	for _, c := range g.registry.ConnsForMember(userID) {
		if err := c.Send(route, action, value, 0); err == nil {
			n++
		}
	}
	return n
}

// SubscribeGame 开局时由对局协作方调用
func (g *Gateway) SubscribeGame(connID string, gs GameSubscription) error {
	c, ok := g.registry.Get(connID)
	if !ok {
		return ErrConnNotFound
	}
	if !g.subs.SubscribeGame(c, gs) {
		return ErrConnClosed
	}
	return nil
}

// UnsubscribeGame 对局结束时由协作方调用，不再回调协作方
func (g *Gateway) UnsubscribeGame(connID string) error {
	c, ok := g.registry.Get(connID)
	if !ok {
		return ErrConnNotFound
	}
	g.subs.dropGame(c)
	return nil
}

// CloseSession 关闭挂在某个会话下的所有连接（退出登录），含轮换前的旧令牌建的连接
func (g *Gateway) CloseSession(sid string, r Reason) int {
	conns := g.registry.ConnsForSession(sid)
	for _, c := range conns {
		c.Terminate(r)
	}
	return len(conns)
}

func (g *Gateway) Stats() Stats {
	st := g.registry.Stats()
	st.LimitedIPs = g.guard.Len()
	return st
}

// Shutdown 以 1001 关闭所有连接，等它们清理完或 ctx 到期
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.shutting.Store(true)
	defer g.cancel()

	conns := g.registry.All()
	logger.Info("[gateway] shutting down", zap.Int("connections", len(conns)))
	for _, c := range conns {
		c.Terminate(ReasonServerRestart)
	}
	for _, c := range conns {
		select {
		case <-c.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
