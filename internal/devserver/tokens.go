package devserver

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type tokenType string

const (
	accessToken  tokenType = "access"
	refreshToken tokenType = "refresh"
)

var (
	errWrongTokenType = errors.New("wrong token type")
	errTokenExpired   = errors.New("token expired")
)

type claims struct {
	Type tokenType `json:"type"`
	jwt.RegisteredClaims
}

// tokenIssuer mints and validates HS256 token pairs.
type tokenIssuer struct {
	cfg *Config
	now func() time.Time
}

func (ti *tokenIssuer) pair(subject string) (access string, refresh string, err error) {
	access, err = ti.mint(subject, accessToken, ti.cfg.AccessTokenSecret, ti.cfg.AccessTokenExpiry)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate access token: %w", err)
	}

	refresh, err = ti.mint(subject, refreshToken, ti.cfg.RefreshTokenSecret, ti.cfg.RefreshTokenExpiry)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return access, refresh, nil
}

func (ti *tokenIssuer) mint(subject string, typ tokenType, secret string, expiry time.Duration) (string, error) {
	now := ti.now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   subject,
			Issuer:    ti.cfg.TokenIssuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Type: typ,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return token.SignedString([]byte(secret))
}

func (ti *tokenIssuer) validateAccess(token string) (*claims, error) {
	return ti.validate(token, accessToken, ti.cfg.AccessTokenSecret)
}

func (ti *tokenIssuer) validateRefresh(token string) (*claims, error) {
	return ti.validate(token, refreshToken, ti.cfg.RefreshTokenSecret)
}

func (ti *tokenIssuer) validate(token string, typ tokenType, secret string) (*claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(ti.cfg.TokenIssuer),
		jwt.WithTimeFunc(ti.now),
	)

	c := &claims{}
	_, err := parser.ParseWithClaims(token, c, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, errTokenExpired
	} else if err != nil {
		return nil, fmt.Errorf("invalid %s token: %w", typ, err)
	}

	if c.Type != typ {
		return nil, fmt.Errorf("invalid %s token: %w, got %q", typ, errWrongTokenType, c.Type)
	}
	return c, nil
}
