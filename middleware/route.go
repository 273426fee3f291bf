package middleware

import (
	midsec "github.com/Infinite-Chess/infinitechess.org-sub008/middleware/security"
	"github.com/gin-gonic/gin"
)

// 配置选项
type RouteOpt struct {
	Session *midsec.Options // 非 nil 时先解析会话 cookie
	Origin  gin.HandlerFunc // 非 nil 时先做同源校验
}

func chain(handler gin.HandlerFunc, opt RouteOpt) []gin.HandlerFunc {
	var hs []gin.HandlerFunc
	if opt.Origin != nil {
		hs = append(hs, opt.Origin)
	}
	if opt.Session != nil {
		hs = append(hs, midsec.Middleware(opt.Session))
	}
	return append(hs, handler)
}

// 封装 POST
func POST(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	r.POST(path, chain(handler, opt)...)
}

// 封装 GET
func GET(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	r.GET(path, chain(handler, opt)...)
}
