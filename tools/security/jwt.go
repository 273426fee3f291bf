package security

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// Options 控制签名与TTL等参数。
type Options struct {
	Secret []byte        // HMAC 密钥（生产用ENV/KMS）
	Alg    string        // HS256/HS384/HS512（默认 HS256）
	TTL    time.Duration // 令牌有效期（默认 30 天，刷新令牌是长期的）
}

func DefaultOptions(secret []byte) Options {
	return Options{Secret: secret, Alg: "HS256", TTL: 30 * 24 * time.Hour}
}

// SessionClaims 会话令牌里的声明。
type SessionClaims struct {
	Username string   `json:"username"`
	Roles    []string `json:"roles,omitempty"`
	Sid      string   `json:"sid,omitempty"` // 登录会话 id，轮换令牌时沿用
	jwtlib.RegisteredClaims
}

// UserID 即 sub
func (c *SessionClaims) UserID() string { return c.Subject }

// SessionID 没有 sid 的旧令牌退回 jti
func (c *SessionClaims) SessionID() string {
	if c.Sid != "" {
		return c.Sid
	}
	return c.ID
}

// IssuedTime iat，缺失时返回零值
func (c *SessionClaims) IssuedTime() time.Time {
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}

func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "sha256:" + hex.EncodeToString(sum[:])
}

// Generate 签发会话令牌；tokenID 写到 jti，保证同一秒内重复签发的令牌也不相同。
// sessionID 写到 sid，同一次登录轮换出来的令牌共用一个；为空时取 tokenID。
func Generate(opts Options, userID, username string, roles []string, tokenID, sessionID string, now time.Time) (token string, tokenHash string, expireAt time.Time, err error) {
	method, err := signingMethod(opts.Alg)
	if err != nil {
		return "", "", time.Time{}, err
	}
	if len(opts.Secret) == 0 {
		return "", "", time.Time{}, errors.New("empty jwt secret")
	}
	if opts.TTL <= 0 {
		opts.TTL = 30 * 24 * time.Hour
	}
	exp := now.Add(opts.TTL)
	if sessionID == "" {
		sessionID = tokenID
	}

	claims := &SessionClaims{
		Username: username,
		Roles:    roles,
		Sid:      sessionID,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   userID,
			ID:        tokenID,
			IssuedAt:  jwtlib.NewNumericDate(now),
			NotBefore: jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(exp),
		},
	}

	tok := jwtlib.NewWithClaims(method, claims)
	signed, err := tok.SignedString(opts.Secret)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return signed, HashToken(signed), exp, nil
}

// Verify 校验签名与有效期，返回声明
func Verify(opts Options, token string) (*SessionClaims, error) {
	method, err := signingMethod(opts.Alg) // 校验 alg 合法
	if err != nil {
		return nil, err
	}
	claims := &SessionClaims{}
	parsed, err := jwtlib.ParseWithClaims(token, claims, func(t *jwtlib.Token) (interface{}, error) {
		// 仅允许 HMAC 家族
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected alg: %v", t.Header["alg"])
		}
		return opts.Secret, nil
	}, jwtlib.WithValidMethods([]string{method.Alg()}), jwtlib.WithIssuedAt())
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("token without subject")
	}
	return claims, nil
}

func signingMethod(alg string) (jwtlib.SigningMethod, error) {
	switch strings.ToUpper(strings.TrimSpace(alg)) {
	case "", "HS256":
		return jwtlib.SigningMethodHS256, nil
	case "HS384":
		return jwtlib.SigningMethodHS384, nil
	case "HS512":
		return jwtlib.SigningMethodHS512, nil
	default:
		return nil, fmt.Errorf("unsupported alg: %s (use HS256/HS384/HS512)", alg)
	}
}
