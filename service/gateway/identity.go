package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/Infinite-Chess/infinitechess.org-sub008/logger"
	"github.com/Infinite-Chess/infinitechess.org-sub008/service/session"
	"go.uber.org/zap"
)

type IdentityKind int

const (
	Anonymous IdentityKind = iota
	Member
)

func (k IdentityKind) String() string {
	if k == Member {
		return "member"
	}
	return "anonymous"
}

// Identity 连接的归属：匿名访客（browser id）或已登录成员。连接生命周期内不可变。
type Identity struct {
	Kind      IdentityKind
	BrowserID string
	UserID    string
	Username  string
	Roles     []string
}

func AnonymousIdentity(browserID string) Identity {
	return Identity{Kind: Anonymous, BrowserID: browserID}
}

func MemberIdentity(m session.Member) Identity {
	roles := append([]string(nil), m.Roles...)
	return Identity{Kind: Member, UserID: m.UserID, Username: m.Username, Roles: roles}
}

func (i Identity) IsMember() bool { return i.Kind == Member }

func (i Identity) member() session.Member {
	return session.Member{UserID: i.UserID, Username: i.Username, Roles: i.Roles}
}

// Key 用于日志
func (i Identity) Key() string {
	if i.IsMember() {
		return "member:" + i.UserID
	}
	return "browser:" + i.BrowserID
}

// resolution Identity Resolver 的输出
type resolution struct {
	identity     Identity
	verified     bool
	sessionID    string // 仅 member，连接按它进会话桶
	locale       string
	setCookies   []*http.Cookie
}

// resolveIdentity 解析 cookie；会话校验有超时，超时或出错一律按匿名处理
func (g *Gateway) resolveIdentity(ctx context.Context, cookies map[string]string) resolution {
	names := g.cfg.CookieName
	res := resolution{locale: cookies[names.Locale]}

	if token := cookies[names.Session]; token != "" && g.sessions != nil {
		vctx, cancel := context.WithTimeout(ctx, g.cfg.IdentityTimeout)
		v, err := g.sessions.Validate(vctx, token)
		if err != nil {
			logger.Warn("[identity] session validation failed, treating as anonymous", zap.Error(err))
		} else if v.Valid {
			res.identity = MemberIdentity(v.Member)
			res.sessionID = sessionIndex(token, v)
			res.verified = g.lookupVerified(vctx, v.Member.UserID)
			if ck := g.maybeRenew(vctx, token, v); ck != nil {
				res.setCookies = append(res.setCookies, ck)
			}
			cancel()
			return res
		}
		cancel()
	}

	browserID := cookies[names.BrowserID]
	if browserID == "" && g.browserIDs != nil {
		id, err := g.browserIDs.NewBrowserID()
		if err != nil {
			logger.Warn("[identity] issue browser id failed", zap.Error(err))
		} else {
			browserID = id
			res.setCookies = append(res.setCookies, &http.Cookie{
				Name:     names.BrowserID,
				Value:    id,
				Path:     "/",
				MaxAge:   int((365 * 24 * time.Hour).Seconds()),
				Secure:   true,
				HttpOnly: false,
				SameSite: http.SameSiteStrictMode,
			})
		}
	}
	res.identity = AnonymousIdentity(browserID)
	return res
}

func (g *Gateway) lookupVerified(ctx context.Context, userID string) bool {
	if g.members == nil {
		return false
	}
	ok, err := g.members.IsVerified(ctx, userID)
	if err != nil {
		logger.Warn("[identity] verified lookup failed", zap.String("user", userID), zap.Error(err))
		return false
	}
	return ok
}
