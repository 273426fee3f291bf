package security

import (
	"net/http"
	"strings"

	"github.com/Infinite-Chess/infinitechess.org-sub008/global"
	"github.com/gin-gonic/gin"
)

// context key
const (
	CtxSessionKey = "sessionToken" // string
	CtxLocaleKey  = "locale"       // string
)

type Options struct {
	// 读取哪个 cookie
	SessionCookie string // 默认 "jwt"
	LocaleCookie  string // 默认 "i18next"
	// 兼容 Authorization: Bearer xxx（脚本/测试用）
	EnableAuthorizationBearer bool
	// 没有会话时是否直接拒绝
	Required bool
}

func DefaultOptions() *Options {
	return &Options{
		SessionCookie:             "jwt",
		LocaleCookie:              "i18next",
		EnableAuthorizationBearer: true,
	}
}

func Middleware(opts *Options) gin.HandlerFunc {
	if opts == nil {
		opts = DefaultOptions()
	}
	return func(c *gin.Context) {
		token, _ := c.Cookie(opts.SessionCookie)
		token = strings.TrimSpace(token)

		if token == "" && opts.EnableAuthorizationBearer {
			if authz := strings.TrimSpace(c.GetHeader("Authorization")); authz != "" {
				if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
					token = strings.TrimSpace(authz[len("bearer "):])
				}
			}
		}
		if token != "" {
			c.Set(CtxSessionKey, token)
		}
		if locale, err := c.Cookie(opts.LocaleCookie); err == nil && locale != "" {
			c.Set(CtxLocaleKey, locale)
		}

		if token == "" && opts.Required {
			c.AbortWithStatusJSON(http.StatusUnauthorized, global.Fail(http.StatusUnauthorized, "not logged in"))
			return
		}
		c.Next()
	}
}

// SessionToken 中间件放进 context 的会话令牌
func SessionToken(c *gin.Context) string {
	return c.GetString(CtxSessionKey)
}
