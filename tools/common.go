package tools

import (
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// 环境变量（均可选，覆盖配置文件）：
// GATEWAY_HOST_ORIGIN   允许的 Origin，例如 https://www.infinitechess.org
// GATEWAY_DEV_MODE      true 时跳过 Origin 校验与 TLS 要求
// GATEWAY_HTTP_ADDR     HTTP 监听地址
// GATEWAY_JWT_SECRET    会话令牌 HMAC 密钥
// REDIS_ADDR / REDIS_PASSWORD / REDIS_DB
// DATABASE_URL          成员库（pgx）
// NATS_SERVERS          逗号分隔
// KAFKA_BROKERS         逗号分隔，审计日志
// NACOS_ADDR            host:port，配置热更新

func GetEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
func GetEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}
func GetEnvBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return def
	}
	return v == "true" || v == "1" || v == "yes"
}

// GetEnvDuration 接受 time.ParseDuration 格式，例如 15m / 5s
func GetEnvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// SplitList "a, b,,c" -> [a b c]
func SplitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ClientIP 依次从 CF-Connecting-IP / X-Forwarded-For 第一跳 / X-Real-IP / socket 地址取客户端 IP。
// 取不到合法 IP 时返回空串。
func ClientIP(r *http.Request) string {
	if ip := parseIP(r.Header.Get("CF-Connecting-IP")); ip != "" {
		return ip
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := xff
		if i := strings.IndexByte(xff, ','); i >= 0 {
			first = xff[:i]
		}
		if ip := parseIP(first); ip != "" {
			return ip
		}
	}
	if ip := parseIP(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	return SocketIP(r)
}

// SocketIP 只看 socket 地址，不信任任何转发头
func SocketIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		host = r.RemoteAddr
	}
	return parseIP(host)
}

func parseIP(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	ip := net.ParseIP(s)
	if ip == nil {
		return ""
	}
	return ip.String()
}

// ParseCookies 把 Cookie 头解析成扁平 map；同名 cookie 取第一个
func ParseCookies(r *http.Request) map[string]string {
	out := make(map[string]string)
	for _, c := range r.Cookies() {
		if _, ok := out[c.Name]; !ok {
			out[c.Name] = c.Value
		}
	}
	return out
}
