package handlers

import (
	"github.com/Infinite-Chess/infinitechess.org-sub008/logger"
	"github.com/Infinite-Chess/infinitechess.org-sub008/service/gateway"
	"github.com/Infinite-Chess/infinitechess.org-sub008/tools/decode"
	"go.uber.org/zap"
)

// General sub / unsub / feature-not-supported
type General struct{}

func NewGeneralHandler() gateway.RouteHandler { return General{} }

func (General) Route() string { return gateway.RouteGeneral }

func (General) Handle(ctx *gateway.Context, msg *gateway.Inbound) error {
	switch msg.Action {
	case "sub":
		topic, err := decode.String(msg.Value)
		if err != nil || gateway.Topic(topic) != gateway.TopicInvites {
			// game 订阅只能由对局协作方发起
			return gateway.ErrInvalidValue.WrapMsg("cannot subscribe to", "topic", msg.Value)
		}
		ctx.Gateway.Subscriptions().SubscribeInvites(ctx.Conn)
		return nil

	case "unsub":
		topic, err := decode.String(msg.Value)
		if err != nil {
			return gateway.ErrInvalidValue.WrapMsg("unsub value must be a string")
		}
		switch gateway.Topic(topic) {
		case gateway.TopicInvites, gateway.TopicGame:
			ctx.Gateway.Subscriptions().Unsubscribe(ctx.Conn, gateway.Topic(topic), true)
			return nil
		}
		return gateway.ErrInvalidValue.WrapMsg("cannot unsubscribe from", "topic", topic)

	case "feature-not-supported":
		desc, err := decode.String(msg.Value)
		if err != nil {
			return gateway.ErrInvalidValue.WrapMsg("description must be a string")
		}
		logger.Info("[general] client feature not supported",
			zap.String("conn", ctx.Conn.ID()), zap.String("feature", desc))
		return nil
	}
	return gateway.ErrUnknownAction.WrapMsg("general action " + msg.Action)
}
