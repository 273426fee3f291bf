package gateway

import (
	"sync"
	"time"

	"github.com/Infinite-Chess/infinitechess.org-sub008/logger"
	"github.com/Infinite-Chess/infinitechess.org-sub008/tools/decode"
	"github.com/Infinite-Chess/infinitechess.org-sub008/tools/errs"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Transport 一条已升级的 socket。WriteText 需要自己保证并发安全
type Transport interface {
	WriteText(data []byte) error
	WriteClose(code int, reason string) error
	Close() error
}

// Connection 一条被接纳的连接。所有 timer 归它所有，在 terminate 里统一停掉
type Connection struct {
	id           string
	identity     Identity
	ip           string
	sessionID    string
	locale       string
	verified     bool
	createdAt    time.Time
	echoQuota    *rate.Limiter // echo 只扣这里，不占 IP 桶

	gw *Gateway
	tr Transport

	mu         sync.Mutex
	invites    bool
	game       *GameSubscription
	live       *liveness
	echoTimers map[int64]*time.Timer
	idleTimer  *time.Timer
	idleGen    uint64
	lifeTimer  *time.Timer
	closed     bool

	closeOnce sync.Once
	closure   Closure
	done      chan struct{}
}

func newConnection(gw *Gateway, tr Transport, id string, res resolution, ip string) *Connection {
	l := gw.Limits()
	return &Connection{
		id:           id,
		identity:     res.identity,
		ip:           ip,
		sessionID:    res.sessionID,
		locale:       res.locale,
		verified:     res.verified,
		createdAt:    gw.now(),
		echoQuota:    rate.NewLimiter(rate.Limit(l.EchoesPerSecond), l.EchoBurst),
		gw:           gw,
		tr:           tr,
		live:         newLiveness(),
		echoTimers:   make(map[int64]*time.Timer),
		done:         make(chan struct{}),
	}
}

func (c *Connection) ID() string           { return c.id }
func (c *Connection) Identity() Identity   { return c.identity }
func (c *Connection) IP() string           { return c.ip }
func (c *Connection) Verified() bool       { return c.verified }
func (c *Connection) Locale() string       { return c.locale }
func (c *Connection) CreatedAt() time.Time { return c.createdAt }

// SessionID 连接所属的登录会话（匿名为空）
func (c *Connection) SessionID() string { return c.sessionID }

// Done 连接彻底清理完后关闭
func (c *Connection) Done() <-chan struct{} { return c.done }

// Closure 仅在 Done 之后有意义
func (c *Connection) Closure() Closure {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closure
}

func (c *Connection) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Connection) LiveState() LiveState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live.state
}

// PendingEchoes 等待 echo 的出站消息数
func (c *Connection) PendingEchoes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live.outstanding()
}

// Send 发送一条应用消息：分配消息 id、登记 echo 期限、重置空闲计时
func (c *Connection) Send(sub, action string, value any, replyTo int64) error {
	id := c.gw.nextMessageID()
	data, err := encodeOutbound(&Outbound{Sub: sub, Action: action, Value: value, ID: id, ReplyTo: replyTo})
	if err != nil {
		return err
	}
	timeout := c.gw.Limits().EchoTimeout

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrConnClosed
	}
	c.live.sent(id, c.gw.now().Add(timeout))
	c.echoTimers[id] = time.AfterFunc(timeout, func() { c.onEchoDeadline(id) })
	c.armIdleLocked()
	c.mu.Unlock()

	if err := c.tr.WriteText(data); err != nil {
		logger.Debug("[conn] write failed", zap.String("conn", c.id), zap.Error(err))
		c.terminate(Closure{Code: CodeAbnormal, Reason: ReasonNetworkLost})
		return errs.WrapMsg(err, "write frame", "conn", c.id)
	}
	return nil
}

// sendEcho echo 本身不带 id，也不进等待表
func (c *Connection) sendEcho(id int64) {
	data, err := encodeOutbound(&Outbound{Sub: RouteGeneral, Action: ActionEcho, Value: id})
	if err != nil {
		return
	}
	if c.Closed() {
		return
	}
	if err := c.tr.WriteText(data); err != nil {
		c.terminate(Closure{Code: CodeAbnormal, Reason: ReasonNetworkLost})
	}
}

func (c *Connection) sendProtocolError(err error, replyTo int64) {
	text := ErrInternal.Msg
	if ce, ok := errs.AsCode(err); ok && ce.Code != errs.ServerInternalError {
		text = ce.Msg
		if ce.Detail != "" {
			text += ": " + ce.Detail
		}
	}
	if hostile(err) {
		logger.Hostile("protocol violation",
			zap.String("conn", c.id), zap.String("ip", c.ip), zap.String("identity", c.identity.Key()), zap.Error(err))
	} else {
		logger.Warn("[conn] route handler failed", zap.String("conn", c.id), zap.Error(err))
	}
	_ = c.Send(RouteGeneral, ActionProtocolError, text, replyTo)
}

// HandleFrame 读协程对每个入站帧调用一次：大小 -> 解析 -> echo 分支 / IP 限流 -> 回 echo -> 路由
func (c *Connection) HandleFrame(data []byte) {
	if c.Closed() {
		return
	}
	if len(data) > c.gw.Limits().MaxMessageBytes {
		logger.Hostile("frame too big",
			zap.String("conn", c.id), zap.String("ip", c.ip), zap.Int("bytes", len(data)))
		c.gw.terminateIP(c.ip, serverClosure(ReasonMessageTooBig))
		return
	}

	msg, err := ParseInbound(data)
	if err == nil && msg.Action == ActionEcho {
		c.handleEcho(msg.Value)
		return
	}
	if !c.chargeIP(len(data)) {
		return
	}
	if err != nil {
		sample := data
		if len(sample) > 256 {
			sample = sample[:256]
		}
		logger.Hostile("malformed frame",
			zap.String("conn", c.id), zap.String("ip", c.ip), zap.ByteString("sample", sample), zap.Error(err))
		_ = c.Send(RouteGeneral, ActionProtocolError, ErrInvalidJSON.Msg, 0)
		return
	}
	if msg.ID == nil {
		c.sendProtocolError(ErrMissingID.WrapMsg("action "+msg.Action), 0)
		return
	}

	c.sendEcho(*msg.ID)
	if c.Closed() {
		return
	}
	if err := c.gw.router.Dispatch(&Context{Gateway: c.gw, Conn: c}, msg); err != nil {
		c.sendProtocolError(err, *msg.ID)
	}
}

// chargeIP 扣 IP 桶；超限时整个 IP 的连接都断开
func (c *Connection) chargeIP(size int) bool {
	if c.gw.guard.Allow(c.ip, size) {
		return true
	}
	logger.Hostile("rate limit exceeded",
		zap.String("conn", c.id), zap.String("ip", c.ip), zap.Int("bytes", size))
	c.gw.terminateIP(c.ip, serverClosure(ReasonMessageTooBig))
	return false
}

// handleEcho 所有 echo 先扣连接自己的额度；对不上的 echo 再额外扣 IP 额度
func (c *Connection) handleEcho(value any) {
	if !c.echoQuota.AllowN(c.gw.now(), 1) {
		logger.Hostile("echo quota exceeded", zap.String("conn", c.id), zap.String("ip", c.ip))
		c.terminate(serverClosure(ReasonMessageTooBig))
		return
	}
	id, err := decode.Int64(value)
	known := false
	if err == nil {
		c.mu.Lock()
		known = c.live.echoed(id)
		if t := c.echoTimers[id]; t != nil {
			t.Stop()
			delete(c.echoTimers, id)
		}
		c.mu.Unlock()
	}
	if known {
		return
	}
	logger.Hostile("unexpected echo",
		zap.String("conn", c.id), zap.String("ip", c.ip), zap.Any("value", value))
	c.chargeIP(0)
}

func (c *Connection) onEchoDeadline(id int64) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	delete(c.echoTimers, id)
	expired := c.live.deadlinePassed(id)
	c.mu.Unlock()
	if expired {
		logger.Info("[conn] no echo heard", zap.String("conn", c.id), zap.Int64("msg", id))
		c.terminate(serverClosure(ReasonNoEchoHeard))
	}
}

func (c *Connection) hasSubscriptionLocked() bool {
	return c.invites || c.game != nil
}

// armIdleLocked 只有存在订阅时才挂空闲探测；generation 防止旧 timer 误触发
func (c *Connection) armIdleLocked() {
	c.idleGen++
	if c.idleTimer != nil {
		c.idleTimer.Stop()
		c.idleTimer = nil
	}
	if c.closed || !c.hasSubscriptionLocked() {
		return
	}
	gen := c.idleGen
	c.idleTimer = time.AfterFunc(c.gw.Limits().InactivityProbe, func() { c.onIdle(gen) })
}

func (c *Connection) onIdle(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.idleGen || !c.hasSubscriptionLocked() {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	_ = c.Send(RouteGeneral, ActionRenewConnection, nil, 0)
}

// armLifetime 由 registry 在登记时调用
func (c *Connection) armLifetime(maxAge time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || maxAge <= 0 {
		return
	}
	c.lifeTimer = time.AfterFunc(maxAge, func() {
		c.terminate(serverClosure(ReasonConnectionExpired))
	})
}

func (c *Connection) stopLifetime() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lifeTimer != nil {
		c.lifeTimer.Stop()
		c.lifeTimer = nil
	}
}

// CloseFromClient 读协程拿到关闭帧或读错误时调用
func (c *Connection) CloseFromClient(code int, text string) {
	c.terminate(ClientClosure(code, text))
}

// Terminate 网关主动关闭
func (c *Connection) Terminate(r Reason) {
	c.terminate(serverClosure(r))
}

// terminate 唯一的清理路径：停 timer -> 关 socket -> 退订 -> 注销
func (c *Connection) terminate(cl Closure) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.closure = cl
		c.live.close()
		for id, t := range c.echoTimers {
			t.Stop()
			delete(c.echoTimers, id)
		}
		if c.idleTimer != nil {
			c.idleTimer.Stop()
			c.idleTimer = nil
		}
		if c.lifeTimer != nil {
			c.lifeTimer.Stop()
			c.lifeTimer = nil
		}
		c.mu.Unlock()

		if !cl.ByClient && cl.Code != CodeAbnormal {
			_ = c.tr.WriteClose(cl.Code, cl.ReasonText())
		}
		_ = c.tr.Close()

		voluntary := cl.Voluntary()
		c.gw.subs.UnsubscribeAll(c, voluntary)
		c.gw.registry.Deregister(c)
		c.gw.trackPresence(c, false)

		fields := []zap.Field{
			zap.String("conn", c.id),
			zap.String("identity", c.identity.Key()),
			zap.String("ip", c.ip),
			zap.Int("code", cl.Code),
			zap.String("reason", cl.ReasonText()),
			zap.Bool("voluntary", voluntary),
		}
		if !voluntary && c.gw.invites.HasOpenInvite(c) {
			fields = append(fields, zap.Bool("invite_kept_alive", true))
		}
		logger.Info("[conn] closed", fields...)
		close(c.done)
	})
}
