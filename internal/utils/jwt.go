// Package utils holds small helpers shared by the binaries.
package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessToken is a signed HS256 JWT and its expiry.
type AccessToken struct {
	Token string
	Exp   time.Time
}

// NewAccessToken signs a token whose sub and role claims are what
// JWTAuth stores in the request context.  A zero ttl means no exp claim.
func NewAccessToken(secret, userID, role string, ttl time.Duration) (AccessToken, error) {
	if secret == "" || userID == "" {
		return AccessToken{}, errors.New("secret and user id are required")
	}
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
	}
	if role != "" {
		claims["role"] = role
	}
	var exp time.Time
	if ttl > 0 {
		exp = now.Add(ttl)
		claims["exp"] = exp.Unix()
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}
