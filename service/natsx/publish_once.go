package natsx

import (
	"context"

	"github.com/Infinite-Chess/infinitechess.org-sub008/tools/ids"
)

// Publisher 桥接需要的 NATS 能力；NatsxClient 实现它，单测用假的
type Publisher interface {
	Publish(ctx context.Context, biz string, data []byte, hdr map[string]string) error
	Request(ctx context.Context, biz string, data []byte) ([]byte, error)
}

// PublishOnce 带 Nats-Msg-Id 的发布，msgID 为空则用雪花 id
func PublishOnce(ctx context.Context, p Publisher, biz string, data []byte, hdr map[string]string, msgID string) error {
	if hdr == nil {
		hdr = map[string]string{}
	}
	if msgID == "" {
		msgID = ids.GenerateString()
	}
	hdr["Nats-Msg-Id"] = msgID
	return p.Publish(ctx, biz, data, hdr)
}
