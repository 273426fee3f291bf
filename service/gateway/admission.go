package gateway

import (
	"context"
	"net/http"
	"strings"

	"github.com/Infinite-Chess/infinitechess.org-sub008/logger"
	"github.com/Infinite-Chess/infinitechess.org-sub008/tools"
	"github.com/Infinite-Chess/infinitechess.org-sub008/tools/ids"
	"go.uber.org/zap"
)

// Handshake 升级请求里准入需要的全部信息
type Handshake struct {
	Secure  bool
	Origin  string
	IP      string
	Cookies map[string]string
}

func HandshakeFromRequest(r *http.Request, trustProxy bool) Handshake {
	hs := Handshake{
		Secure:  r.TLS != nil,
		Origin:  r.Header.Get("Origin"),
		Cookies: tools.ParseCookies(r),
	}
	if !hs.Secure && trustProxy && strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		hs.Secure = true
	}
	if !hs.Secure && strings.HasPrefix(strings.ToLower(hs.Origin), "https://") {
		hs.Secure = true
	}
	if trustProxy {
		hs.IP = tools.ClientIP(r)
	} else {
		hs.IP = tools.SocketIP(r)
	}
	return hs
}

// Admission 通过准入的结果。拒绝时也可能带 Set-Cookie（例如刚续期的会话），调用方照样下发
type Admission struct {
	hs  Handshake
	res resolution
}

func (a *Admission) Identity() Identity { return a.res.identity }

func (a *Admission) SetCookies() []*http.Cookie {
	if a == nil {
		return nil
	}
	return a.res.setCookies
}

// Admit 按顺序做准入检查，任何一项失败都返回 CodeError（Code 是关闭码）
func (g *Gateway) Admit(ctx context.Context, hs Handshake) (*Admission, error) {
	if g.shutting.Load() {
		return nil, ErrServerRestart.WrapMsg("")
	}
	if !hs.Secure {
		return nil, ErrNotSecure.WrapMsg("")
	}
	if !g.cfg.DevMode && hs.Origin != g.cfg.HostOrigin {
		logger.Hostile("origin rejected", zap.String("origin", hs.Origin), zap.String("ip", hs.IP))
		return nil, ErrOrigin.WrapMsg("origin " + hs.Origin)
	}
	if hs.IP == "" {
		return nil, ErrNoClientIP.WrapMsg("")
	}
	l := g.Limits()
	if l.MaxSocketsPerIP > 0 && g.registry.CountByIP(hs.IP) >= l.MaxSocketsPerIP {
		return nil, ErrTooManySockets.WrapMsg("ip over limit", "ip", hs.IP)
	}

	adm := &Admission{hs: hs, res: g.resolveIdentity(ctx, hs.Cookies)}
	id := adm.res.identity
	if id.IsMember() {
		if l.MaxSocketsPerSession > 0 && g.registry.CountBySession(adm.res.sessionID) >= l.MaxSocketsPerSession {
			return adm, ErrTooManySockets.WrapMsg("session over limit", "user", id.UserID)
		}
	} else if id.BrowserID == "" {
		return adm, ErrAuthNeeded.WrapMsg("")
	}
	return adm, nil
}

// Open 把升级好的 socket 登记成连接；上限在 registry 锁内复查
func (g *Gateway) Open(tr Transport, adm *Admission) (*Connection, error) {
	c := newConnection(g, tr, ids.GenerateString(), adm.res, adm.hs.IP)
	if err := g.registry.Register(c, g.Limits()); err != nil {
		return nil, err
	}
	g.trackPresence(c, true)
	logger.Info("[gateway] connection opened",
		zap.String("conn", c.id),
		zap.String("identity", c.identity.Key()),
		zap.String("ip", c.ip),
		zap.Bool("verified", c.verified))
	return c, nil
}
