package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var errNoExpiry = errors.New("auth: token has no exp claim")

// ExpiresAt decodes the token's exp claim without verifying the signature.
func ExpiresAt(token string) (time.Time, error) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, errNoExpiry
	}
	return claims.ExpiresAt.Time, nil
}

// TokenExpiresWithin reports whether the token expires within buffer. Undecodable tokens
// count as expiring. Tokens without an exp claim never expire.
func TokenExpiresWithin(token string, buffer time.Duration) bool {
	exp, err := ExpiresAt(token)
	if errors.Is(err, errNoExpiry) {
		return false
	} else if err != nil {
		return true
	}
	return time.Until(exp) <= buffer
}
