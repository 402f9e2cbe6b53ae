// Package auth issues and validates the JWTs used by the HTTP layer and the
// websocket hub.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/swiftel/request-handler/internal/app/domain/user"
	apperrors "github.com/swiftel/request-handler/internal/errors"
)

// Claims are the token claims carried by an authenticated session.
type Claims struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Issuer signs and validates tokens with an HMAC secret.
type Issuer struct {
	secret      []byte
	ttl         time.Duration
	rememberTTL time.Duration
}

// NewIssuer builds an Issuer. rememberTTL applies when a login asks to stay
// signed in.
func NewIssuer(secret string, ttl, rememberTTL time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	if rememberTTL <= 0 {
		rememberTTL = 30 * 24 * time.Hour
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, rememberTTL: rememberTTL}
}

// Issue signs a token for the given user.
func (i *Issuer) Issue(u user.User, remember bool) (string, error) {
	ttl := i.ttl
	if remember {
		ttl = i.rememberTTL
	}
	now := time.Now().UTC()

	claims := Claims{
		UserID: u.ID,
		Name:   u.Name,
		Role:   string(u.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", apperrors.Internal("sign token", err)
	}
	return signed, nil
}

// Parse validates a token string and returns its claims.
func (i *Issuer) Parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperrors.InvalidToken(nil).WithDetails("method", token.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		return nil, apperrors.InvalidToken(err)
	}
	if !token.Valid {
		return nil, apperrors.InvalidToken(nil)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, apperrors.InvalidToken(nil).WithDetails("reason", "invalid claims type")
	}
	return claims, nil
}
