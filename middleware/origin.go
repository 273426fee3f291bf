package middleware

import (
	"net/http"

	"github.com/Infinite-Chess/infinitechess.org-sub008/global"
	"github.com/Infinite-Chess/infinitechess.org-sub008/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Origin 状态变更类请求（POST /logout）要求同源；devMode 下放行。
// /ws 的 Origin 由网关准入自己校验，因为拒绝要以关闭码的形式返回
func Origin(hostOrigin string, devMode bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if devMode || c.Request.Method == http.MethodGet {
			c.Next()
			return
		}
		if origin := c.GetHeader("Origin"); origin != hostOrigin {
			logger.Hostile("cross-origin request", zap.String("origin", origin), zap.String("path", c.Request.URL.Path))
			c.AbortWithStatusJSON(http.StatusForbidden, global.Fail(http.StatusForbidden, "Origin Error"))
			return
		}
		c.Next()
	}
}
