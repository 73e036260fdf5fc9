// Package auth provides authorization helpers for facilitator clients
// that require bearer authentication.
package auth

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// NewJWTProvider returns an AuthorizationProvider-compatible function that
// mints a short-lived HS256 bearer token per facilitator request. Tokens
// are not cached; facilitator calls are infrequent enough that minting
// per call keeps expiry handling trivial.
func NewJWTProvider(secret []byte, issuer string, ttl time.Duration) func(*http.Request) string {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return func(*http.Request) string {
		now := time.Now()
		claims := jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		}
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		signed, err := token.SignedString(secret)
		if err != nil {
			return ""
		}
		return "Bearer " + signed
	}
}
