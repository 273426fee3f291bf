package session

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// PgMembers 从账户库读取邮箱验证状态，只读
type PgMembers struct {
	pool *pgxpool.Pool
}

func NewPgMembers(ctx context.Context, databaseURL string) (*PgMembers, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "connect members db")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ping members db")
	}
	return &PgMembers{pool: pool}, nil
}

const verifiedQuery = `SELECT verified FROM members WHERE user_id = $1`

// IsVerified 用户不存在时返回 false
func (p *PgMembers) IsVerified(ctx context.Context, userID string) (bool, error) {
	var verified bool
	err := p.pool.QueryRow(ctx, verifiedQuery, userID).Scan(&verified)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "query verified user=%s", userID)
	}
	return verified, nil
}

func (p *PgMembers) Close() { p.pool.Close() }

// StaticMembers 没有账户库时使用：固定集合内的用户视为已验证
type StaticMembers map[string]bool

func (s StaticMembers) IsVerified(_ context.Context, userID string) (bool, error) {
	return s[userID], nil
}

// UUIDBrowserIDs 给没有 browser-id cookie 的访客签发一个
type UUIDBrowserIDs struct{}

func (UUIDBrowserIDs) NewBrowserID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", errors.Wrap(err, "generate browser id")
	}
	return id.String(), nil
}
