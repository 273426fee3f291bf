package natsx

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Infinite-Chess/infinitechess.org-sub008/service/gateway"
	"github.com/Infinite-Chess/infinitechess.org-sub008/tools/decode"
)

// Deliverer 协作方通过 NATS 回推时网关暴露的能力
type Deliverer interface {
	SendToConnection(connID, route, action string, value any, replyTo int64) error
	SendToMember(userID, route, action string, value any) int
	SubscribeGame(connID string, gs gateway.GameSubscription) error
	UnsubscribeGame(connID string) error
}

// Delivery 协作方发到 <prefix>.gateway.deliver 的消息
type Delivery struct {
	Kind    string                    `json:"kind"` // send | member | subgame | unsubgame
	ConnID  string                    `json:"connId"`
	UserID  string                    `json:"userId"`
	Route   string                    `json:"route"`
	Action  string                    `json:"action"`
	Value   any                       `json:"value"`
	ReplyTo int64                     `json:"replyTo"`
	Game    *gateway.GameSubscription `json:"game"`
}

// ApplyDelivery 解码并执行一条投递
func ApplyDelivery(d Deliverer, raw []byte) error {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return fmt.Errorf("unmarshal delivery: %w", err)
	}
	dl, err := decode.Value[Delivery](m, decode.Lenient())
	if err != nil {
		return err
	}
	switch dl.Kind {
	case "send":
		return d.SendToConnection(dl.ConnID, dl.Route, dl.Action, dl.Value, dl.ReplyTo)
	case "member":
		if d.SendToMember(dl.UserID, dl.Route, dl.Action, dl.Value) == 0 {
			return fmt.Errorf("member %s has no open connection", dl.UserID)
		}
		return nil
	case "subgame":
		if dl.Game == nil {
			return fmt.Errorf("subgame without game")
		}
		return d.SubscribeGame(dl.ConnID, *dl.Game)
	case "unsubgame":
		return d.UnsubscribeGame(dl.ConnID)
	}
	return fmt.Errorf("unknown delivery kind %q", dl.Kind)
}

// ServeDeliveries 订阅投递 subject；重复的 Nats-Msg-Id 只处理一次
func (c *NatsxClient) ServeDeliveries(d Deliverer) error {
	return c.Subscribe(BizDeliver, func(_ context.Context, msg NatsxMessage) error {
		return ApplyDelivery(d, msg.Data)
	}, NatsxLogMiddleware(), NatsxIdemMiddleware(NewMemIdem(time.Minute), time.Minute))
}
