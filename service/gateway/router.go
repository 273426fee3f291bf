package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/Infinite-Chess/infinitechess.org-sub008/logger"
	"github.com/Infinite-Chess/infinitechess.org-sub008/tools/errs"
	"go.uber.org/zap"
)

// Context 一次路由调用的上下文
type Context struct {
	Gateway *Gateway
	Conn    *Connection
}

// Ctx 协作方调用用的 context，带网关的生命周期
func (c *Context) Ctx() context.Context { return c.Gateway.ctx }

// Reply 对某条入站消息回复
func (c *Context) Reply(action string, value any, replyTo int64) error {
	return c.Conn.Send(RouteGeneral, action, value, replyTo)
}

// RouteHandler 一个顶层 route 的校验+处理
type RouteHandler interface {
	Route() string
	Handle(ctx *Context, msg *Inbound) error
}

type Router struct {
	mu       sync.RWMutex
	handlers map[string]RouteHandler
}

func NewRouter() *Router {
	return &Router{handlers: make(map[string]RouteHandler)}
}

func (r *Router) Register(h RouteHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[h.Route()] = h
}

func (r *Router) GetHandler(route string) RouteHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[route]
	if !ok {
		return nil
	}
	return h
}

// Dispatch handler 里的 panic 在这里兜住，转成协议错误
func (r *Router) Dispatch(ctx *Context, msg *Inbound) (err error) {
	h := r.GetHandler(msg.Route)
	if h == nil {
		return ErrUnknownRoute.WrapMsg(fmt.Sprintf("route %q", msg.Route))
	}
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("[router] handler panic",
				zap.String("route", msg.Route), zap.String("action", msg.Action), zap.Any("panic", rec))
			err = errs.ErrPanic(rec)
		}
	}()
	return h.Handle(ctx, msg)
}
