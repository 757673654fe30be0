package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

type Claims struct {
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

// TokenCodec 签发和校验 access / refresh 两种 JWT。
// access token 是无状态的；refresh token 还需要调用方去存储中确认记录存在。
type TokenCodec struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewTokenCodec(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *TokenCodec {
	return &TokenCodec{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
}

func (c *TokenCodec) RefreshTTL() time.Duration {
	return c.refreshTTL
}

func (c *TokenCodec) IssueAccess(userID string) (string, error) {
	return c.sign(userID, TokenTypeAccess, c.accessTTL, c.accessSecret)
}

func (c *TokenCodec) IssueRefresh(userID string) (string, error) {
	return c.sign(userID, TokenTypeRefresh, c.refreshTTL, c.refreshSecret)
}

func (c *TokenCodec) VerifyAccess(token string) (string, error) {
	return c.verify(token, TokenTypeAccess, c.accessSecret)
}

func (c *TokenCodec) VerifyRefresh(token string) (string, error) {
	return c.verify(token, TokenTypeRefresh, c.refreshSecret)
}

func (c *TokenCodec) sign(userID string, typ string, ttl time.Duration, secret []byte) (string, error) {
	now := c.now()

	// jti 保证同一秒内为同一用户签发的 token 也互不相同，refresh_tokens.token 上有唯一约束
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	})

	return token.SignedString(secret)
}

func (c *TokenCodec) verify(tokenString string, typ string, secret []byte) (string, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", ErrInvalidToken
	}

	if claims.Type != typ || claims.Subject == "" {
		return "", ErrInvalidToken
	}

	return claims.Subject, nil
}
