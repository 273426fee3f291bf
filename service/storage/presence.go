package storage

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// presence key: gw:presence:<userID>
// hash field: connID，value: 网关节点，TTL 每次上线时续期
func presenceKey(userID string) string { return "gw:presence:" + userID }

// Presence 记录成员的连接落在哪个网关节点上，协作方据此决定把投递发给谁
type Presence struct {
	rdb  *redis.Client
	node string
	ttl  time.Duration
}

func NewPresence(rdb *redis.Client, node string, ttl time.Duration) *Presence {
	return &Presence{rdb: rdb, node: node, ttl: ttl}
}

// Online 登记一条连接并续期整个 key
func (p *Presence) Online(ctx context.Context, userID, connID string) error {
	key := presenceKey(userID)
	pipe := p.rdb.TxPipeline()
	pipe.HSet(ctx, key, connID, p.node)
	pipe.Expire(ctx, key, p.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrapf(err, "presence online %s", userID)
	}
	return nil
}

// Offline 删除一条连接，最后一条删掉后 key 自然消失
func (p *Presence) Offline(ctx context.Context, userID, connID string) error {
	if err := p.rdb.HDel(ctx, presenceKey(userID), connID).Err(); err != nil {
		return errors.Wrapf(err, "presence offline %s", userID)
	}
	return nil
}
