package gateway

import (
	"net/http"

	"github.com/Infinite-Chess/infinitechess.org-sub008/global"
	"github.com/Infinite-Chess/infinitechess.org-sub008/logger"
	"github.com/Infinite-Chess/infinitechess.org-sub008/middleware/security"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HandleLogout POST /logout：作废会话、断开该会话下所有连接、清 cookie
func (g *Gateway) HandleLogout(c *gin.Context) {
	token := security.SessionToken(c)
	closed := 0
	if token != "" && g.sessions != nil {
		ctx := c.Request.Context()
		v, err := g.sessions.Validate(ctx, token)
		if err == nil {
			err = g.sessions.Revoke(ctx, token)
		}
		if err != nil {
			logger.Warn("[logout] revoke session failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, global.Fail(http.StatusServiceUnavailable, "session store unavailable"))
			return
		}
		if v.Valid {
			closed = g.CloseSession(sessionIndex(token, v), ReasonLoggedOut)
		}
	}
	http.SetCookie(c.Writer, g.clearSessionCookie())
	c.JSON(http.StatusOK, global.Sucess(gin.H{"closed": closed}))
}

// HandleHealth GET /healthz
func (g *Gateway) HandleHealth(c *gin.Context) {
	if g.shutting.Load() {
		c.JSON(http.StatusServiceUnavailable, global.Fail(http.StatusServiceUnavailable, "shutting down"))
		return
	}
	c.JSON(http.StatusOK, global.Sucess("ok"))
}

// HandleStats GET /gateway/stats
func (g *Gateway) HandleStats(c *gin.Context) {
	c.JSON(http.StatusOK, global.Sucess(g.Stats()))
}
