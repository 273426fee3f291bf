package gateway

import (
	"context"
	"time"

	"github.com/Infinite-Chess/infinitechess.org-sub008/service/session"
)

// ConnRef 交给协作方的只读视图，协作方拿不到 registry 也拿不到 socket
type ConnRef interface {
	ID() string
	Identity() Identity
	IP() string
	Verified() bool
	Locale() string
}

// InvitesCollaborator 邀请列表子系统
type InvitesCollaborator interface {
	Subscribe(c ConnRef)
	Unsubscribe(c ConnRef, voluntary bool)
	HasOpenInvite(c ConnRef) bool
	HandleAction(ctx context.Context, c ConnRef, action string, value any, replyTo int64) error
}

// GameCollaborator 对局子系统；voluntary=false 时由它自己决定宽限期
type GameCollaborator interface {
	UnsubscribeFromGame(c ConnRef, game GameSubscription, voluntary bool)
	HandleAction(ctx context.Context, c ConnRef, action string, value any, replyTo int64) error
}

// SessionStore 会话的权威存储
type SessionStore interface {
	Validate(ctx context.Context, token string) (session.Validation, error)
	IssueReplacement(ctx context.Context, m session.Member, oldToken string) (string, time.Time, error)
	Revoke(ctx context.Context, token string) error
}

// MemberStore 账户验证状态
type MemberStore interface {
	IsVerified(ctx context.Context, userID string) (bool, error)
}

// BrowserIDIssuer 给没有 browser-id 的访客签发
type BrowserIDIssuer interface {
	NewBrowserID() (string, error)
}

// PresenceTracker 成员连接所在节点的外部登记，可选
type PresenceTracker interface {
	Online(ctx context.Context, userID, connID string) error
	Offline(ctx context.Context, userID, connID string) error
}

type nopInvites struct{}

func (nopInvites) Subscribe(ConnRef)          {}
func (nopInvites) Unsubscribe(ConnRef, bool)  {}
func (nopInvites) HasOpenInvite(ConnRef) bool { return false }
func (nopInvites) HandleAction(context.Context, ConnRef, string, any, int64) error {
	return errCollaboratorMissing
}

type nopGame struct{}

func (nopGame) UnsubscribeFromGame(ConnRef, GameSubscription, bool) {}
func (nopGame) HandleAction(context.Context, ConnRef, string, any, int64) error {
	return errCollaboratorMissing
}
