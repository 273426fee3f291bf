package natsx

import (
	"context"

	"github.com/Infinite-Chess/infinitechess.org-sub008/logger"
	"github.com/Infinite-Chess/infinitechess.org-sub008/tools/errs"
	"go.uber.org/zap"
)

// NatsxMessage 统一消息对象
type NatsxMessage struct {
	Subject string
	Data    []byte
	Header  map[string]string
}

// NatsxHandler 业务处理函数
type NatsxHandler func(ctx context.Context, msg NatsxMessage) error

// NatsxMiddleware 中间件（日志、幂等等）
type NatsxMiddleware func(NatsxHandler) NatsxHandler

// NatsxChain 组合中间件
func NatsxChain(h NatsxHandler, mws ...NatsxMiddleware) NatsxHandler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// NatsxLogMiddleware 处理失败或 panic 时记日志，不让回调协程崩掉
func NatsxLogMiddleware() NatsxMiddleware {
	return func(next NatsxHandler) NatsxHandler {
		return func(ctx context.Context, msg NatsxMessage) (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = errs.ErrPanic(r)
				}
				if err != nil {
					logger.Warn("[natsx] handler failed", zap.String("subject", msg.Subject), zap.Error(err))
				}
			}()
			return next(ctx, msg)
		}
	}
}
