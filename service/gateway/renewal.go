package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/Infinite-Chess/infinitechess.org-sub008/logger"
	"github.com/Infinite-Chess/infinitechess.org-sub008/service/session"
	"go.uber.org/zap"
)

// maybeRenew 令牌签发超过 RenewAfter 就换新的；失败只记日志，继续用旧令牌
func (g *Gateway) maybeRenew(ctx context.Context, token string, v session.Validation) *http.Cookie {
	if g.cfg.RenewAfter <= 0 || v.IssuedAt.IsZero() {
		return nil
	}
	if g.now().Sub(v.IssuedAt) <= g.cfg.RenewAfter {
		return nil
	}
	newToken, exp, err := g.sessions.IssueReplacement(ctx, v.Member, token)
	if err != nil {
		logger.Warn("[renewal] issue replacement failed", zap.String("user", v.Member.UserID), zap.Error(err))
		return nil
	}
	logger.Info("[renewal] session renewed", zap.String("user", v.Member.UserID), zap.Time("expires", exp))
	return g.sessionCookie(newToken, exp)
}

func (g *Gateway) sessionCookie(token string, exp time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     g.cfg.CookieName.Session,
		Value:    token,
		Path:     "/",
		Expires:  exp,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// clearSessionCookie 退出登录时下发
func (g *Gateway) clearSessionCookie() *http.Cookie {
	return &http.Cookie{
		Name:     g.cfg.CookieName.Session,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}
