package jwt

import (
	"errors"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenExpired = errors.New("token 已过期")
	ErrTokenInvalid = errors.New("token 无效")
)

// Claims WebUntis /api/token/new 返回的 Bearer Token 声明
// 签名密钥只有服务端持有，这里只读取声明，不做签名校验
type Claims struct {
	Tenant   string `json:"tenant_id"`
	Username string `json:"username"`
	jwtv5.RegisteredClaims
}

// Token 已解析的 Bearer Token
type Token struct {
	Raw    string
	Claims *Claims
}

// Parse 解析 Token 声明（不校验签名）
func Parse(raw string) (*Token, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrTokenInvalid
	}

	claims := &Claims{}
	if _, _, err := jwtv5.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, ErrTokenInvalid
	}
	return &Token{Raw: raw, Claims: claims}, nil
}

// ExpiresAt 过期时间；Token 未声明 exp 时返回零值
func (t *Token) ExpiresAt() time.Time {
	if t.Claims.ExpiresAt == nil {
		return time.Time{}
	}
	return t.Claims.ExpiresAt.Time
}

// Valid 在 now + leeway 时刻是否仍然有效
// 未声明 exp 的 Token 视为一直有效
func (t *Token) Valid(now time.Time, leeway time.Duration) error {
	exp := t.ExpiresAt()
	if exp.IsZero() {
		return nil
	}
	if !now.Add(leeway).Before(exp) {
		return ErrTokenExpired
	}
	return nil
}
