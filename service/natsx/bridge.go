package natsx

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Infinite-Chess/infinitechess.org-sub008/logger"
	"github.com/Infinite-Chess/infinitechess.org-sub008/service/gateway"
	"github.com/Infinite-Chess/infinitechess.org-sub008/tools/errs"
	"github.com/Infinite-Chess/infinitechess.org-sub008/tools/safe"
	"go.uber.org/zap"
)

// 协作方相关的 Biz，subject 为 <prefix>.<biz>
const (
	BizInvitesSubscribe   = "invites.subscribe"
	BizInvitesUnsubscribe = "invites.unsubscribe"
	BizInvitesAction      = "invites.action"
	BizInvitesHasOpen     = "invites.has_open"
	BizGameUnsubscribe    = "game.unsubscribe"
	BizGameAction         = "game.action"
	BizDeliver            = "gateway.deliver"
)

// Routes 网关用到的全部路由
func Routes(prefix string) []NatsxRoute {
	bizs := []string{
		BizInvitesSubscribe, BizInvitesUnsubscribe, BizInvitesAction, BizInvitesHasOpen,
		BizGameUnsubscribe, BizGameAction, BizDeliver,
	}
	out := make([]NatsxRoute, 0, len(bizs))
	for _, b := range bizs {
		out = append(out, NatsxRoute{Biz: b, Subject: prefix + "." + b})
	}
	return out
}

// ConnEvent 发给协作方的连接事件
type ConnEvent struct {
	Node      string                    `json:"node"`
	ConnID    string                    `json:"connId"`
	Kind      string                    `json:"kind"`
	BrowserID string                    `json:"browserId,omitempty"`
	UserID    string                    `json:"userId,omitempty"`
	Username  string                    `json:"username,omitempty"`
	Roles     []string                  `json:"roles,omitempty"`
	IP        string                    `json:"ip"`
	Verified  bool                      `json:"verified"`
	Locale    string                    `json:"locale,omitempty"`
	Voluntary *bool                     `json:"voluntary,omitempty"`
	Action    string                    `json:"action,omitempty"`
	Value     any                       `json:"value,omitempty"`
	ReplyTo   int64                     `json:"replyTo,omitempty"`
	Game      *gateway.GameSubscription `json:"game,omitempty"`
}

func (b *Bridge) event(c gateway.ConnRef) ConnEvent {
	id := c.Identity()
	return ConnEvent{
		Node:      b.node,
		ConnID:    c.ID(),
		Kind:      id.Kind.String(),
		BrowserID: id.BrowserID,
		UserID:    id.UserID,
		Username:  id.Username,
		Roles:     id.Roles,
		IP:        c.IP(),
		Verified:  c.Verified(),
		Locale:    c.Locale(),
	}
}

// Bridge 通过 NATS 实现邀请/对局协作方接口
type Bridge struct {
	pub     Publisher
	node    string
	timeout time.Duration
}

func NewBridge(pub Publisher, node string) *Bridge {
	safe.MustNotNil(pub, "natsx publisher")
	return &Bridge{pub: pub, node: node, timeout: 2 * time.Second}
}

func (b *Bridge) Invites() gateway.InvitesCollaborator { return invitesBridge{b} }

func (b *Bridge) Game() gateway.GameCollaborator { return gameBridge{b} }

func (b *Bridge) publish(ctx context.Context, biz string, ev ConnEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return errs.WrapMsg(err, "marshal conn event", "biz", biz)
	}
	if err := PublishOnce(ctx, b.pub, biz, data, nil, ""); err != nil {
		return errs.WrapMsg(err, "publish conn event", "biz", biz, "conn", ev.ConnID)
	}
	return nil
}

// fire 没有返回值的通知，失败只记日志
func (b *Bridge) fire(biz string, ev ConnEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()
	if err := b.publish(ctx, biz, ev); err != nil {
		logger.Warn("[natsx] notify collaborator failed", zap.String("biz", biz), zap.Error(err))
	}
}

type invitesBridge struct{ b *Bridge }

func (i invitesBridge) Subscribe(c gateway.ConnRef) {
	i.b.fire(BizInvitesSubscribe, i.b.event(c))
}

func (i invitesBridge) Unsubscribe(c gateway.ConnRef, voluntary bool) {
	ev := i.b.event(c)
	ev.Voluntary = &voluntary
	i.b.fire(BizInvitesUnsubscribe, ev)
}

type hasOpenReply struct {
	Open bool `json:"open"`
}

// HasOpenInvite 请求超时或出错都按没有处理
func (i invitesBridge) HasOpenInvite(c gateway.ConnRef) bool {
	data, err := json.Marshal(i.b.event(c))
	if err != nil {
		return false
	}
	resp, err := i.b.pub.Request(context.Background(), BizInvitesHasOpen, data)
	if err != nil {
		logger.Debug("[natsx] has_open request failed", zap.String("conn", c.ID()), zap.Error(err))
		return false
	}
	var r hasOpenReply
	if err := json.Unmarshal(resp, &r); err != nil {
		return false
	}
	return r.Open
}

func (i invitesBridge) HandleAction(ctx context.Context, c gateway.ConnRef, action string, value any, replyTo int64) error {
	ev := i.b.event(c)
	ev.Action, ev.Value, ev.ReplyTo = action, value, replyTo
	return i.b.publish(ctx, BizInvitesAction, ev)
}

type gameBridge struct{ b *Bridge }

func (g gameBridge) UnsubscribeFromGame(c gateway.ConnRef, game gateway.GameSubscription, voluntary bool) {
	ev := g.b.event(c)
	ev.Voluntary = &voluntary
	ev.Game = &game
	g.b.fire(BizGameUnsubscribe, ev)
}

func (g gameBridge) HandleAction(ctx context.Context, c gateway.ConnRef, action string, value any, replyTo int64) error {
	ev := g.b.event(c)
	ev.Action, ev.Value, ev.ReplyTo = action, value, replyTo
	return g.b.publish(ctx, BizGameAction, ev)
}
