package session

import (
	"context"
	"time"

	"github.com/Infinite-Chess/infinitechess.org-sub008/tools/ids"
	"github.com/Infinite-Chess/infinitechess.org-sub008/tools/security"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Member 已登录用户
type Member struct {
	UserID   string
	Username string
	Roles    []string
}

// Validation 令牌校验结果
type Validation struct {
	Valid     bool
	Member    Member
	IssuedAt  time.Time
	SessionID string // 同一次登录轮换出的令牌共用
}

// sessionKey session:<sha256(token)> -> user id；键存在即会话有效
func sessionKey(token string) string { return "session:" + security.HashToken(token) }

// RedisStore 令牌是 JWT，有效性以 redis 为准（注销/轮换时删除键）
type RedisStore struct {
	rdb  *redis.Client
	opts security.Options
	now  func() time.Time
}

func NewRedisStore(rdb *redis.Client, opts security.Options) *RedisStore {
	return &RedisStore{rdb: rdb, opts: opts, now: time.Now}
}

// Issue 签发新令牌并登记到 redis
func (s *RedisStore) Issue(ctx context.Context, m Member) (string, time.Time, error) {
	tok, _, exp, err := security.Generate(s.opts, m.UserID, m.Username, m.Roles, ids.GenerateString(), ids.GenerateString(), s.now())
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "sign session token")
	}
	if err := s.rdb.Set(ctx, sessionKey(tok), m.UserID, time.Until(exp)).Err(); err != nil {
		return "", time.Time{}, errors.Wrap(err, "store session")
	}
	return tok, exp, nil
}

func (s *RedisStore) Validate(ctx context.Context, token string) (Validation, error) {
	claims, err := security.Verify(s.opts, token)
	if err != nil {
		// 签名/过期不对不是存储错误，直接判无效
		return Validation{}, nil
	}
	owner, err := s.rdb.Get(ctx, sessionKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return Validation{}, nil
	}
	if err != nil {
		return Validation{}, errors.Wrap(err, "lookup session")
	}
	if owner != claims.UserID() {
		return Validation{}, nil
	}
	return Validation{
		Valid:     true,
		Member:    Member{UserID: claims.UserID(), Username: claims.Username, Roles: claims.Roles},
		IssuedAt:  claims.IssuedTime(),
		SessionID: claims.SessionID(),
	}, nil
}

// IssueReplacement 签发新令牌，同一个事务里作废旧令牌；新令牌沿用旧令牌的 sid
func (s *RedisStore) IssueReplacement(ctx context.Context, m Member, oldToken string) (string, time.Time, error) {
	tok, _, exp, err := security.Generate(s.opts, m.UserID, m.Username, m.Roles, ids.GenerateString(), carriedSessionID(s.opts, oldToken), s.now())
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "sign session token")
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(tok), m.UserID, time.Until(exp))
		pipe.Del(ctx, sessionKey(oldToken))
		return nil
	})
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "rotate session")
	}
	return tok, exp, nil
}

// carriedSessionID 旧令牌的 sid；解析不了就开一个新的
func carriedSessionID(opts security.Options, oldToken string) string {
	if claims, err := security.Verify(opts, oldToken); err == nil {
		return claims.SessionID()
	}
	return ids.GenerateString()
}

func (s *RedisStore) Revoke(ctx context.Context, token string) error {
	return errors.Wrap(s.rdb.Del(ctx, sessionKey(token)).Err(), "revoke session")
}
