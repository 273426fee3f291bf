package redis

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

var (
	redisOnce sync.Once
	redisMgr  *RedisManager
)

type RedisManager struct {
	client *redis.Client
}

// Config 用于初始化 Redis
type Config struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// InitRedis 初始化 Redis 管理器（单例），Ping 失败返回错误
func InitRedis(c Config) (*redis.Client, error) {
	var initErr error
	redisOnce.Do(func() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     c.Addr,
			Password: c.Password,
			DB:       c.DB,
			PoolSize: c.PoolSize,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			initErr = errors.Wrapf(err, "ping redis %s", c.Addr)
			return
		}

		redisMgr = &RedisManager{client: rdb}
	})
	if initErr != nil {
		return nil, initErr
	}
	if redisMgr == nil {
		return nil, errors.New("redis init failed earlier")
	}
	return redisMgr.client, nil
}

// GetRedis 获取 Redis Client
func GetRedis() *redis.Client {
	if redisMgr == nil {
		panic("Redis not initialized, call InitRedis first")
	}
	return redisMgr.client
}

// CloseRedis 关闭连接
func CloseRedis() error {
	if redisMgr != nil && redisMgr.client != nil {
		return redisMgr.client.Close()
	}
	return nil
}
