package devserver

import (
	"errors"
	"fmt"
	"time"

	"github.com/ulule/limiter/v3"
)

const (
	DefaultAddr               = "127.0.0.1:3000"
	DefaultBasePath           = "/api"
	DefaultTokenIssuer        = "netprep-devserver"
	DefaultAccessTokenExpiry  = 15 * time.Minute
	DefaultRefreshTokenExpiry = 7 * 24 * time.Hour
	DefaultRateLimit          = "600-M"

	DemoEmail    = "demo@netprep.test"
	DemoPassword = "demo123"
)

var (
	ErrNoSecret        = errors.New("devserver: token secrets are required")
	ErrInvalidExpiry   = errors.New("devserver: token expiry must be positive")
	ErrInvalidBasePath = errors.New("devserver: base path must start with /")
)

type Config struct {
	Addr               string            `mapstructure:"addr"`
	BasePath           string            `mapstructure:"base_path"`
	TokenIssuer        string            `mapstructure:"token_issuer"`
	AccessTokenSecret  string            `mapstructure:"access_token_secret"`
	RefreshTokenSecret string            `mapstructure:"refresh_token_secret"`
	AccessTokenExpiry  time.Duration     `mapstructure:"access_token_expiry"`
	RefreshTokenExpiry time.Duration     `mapstructure:"refresh_token_expiry"`
	RateLimit          string            `mapstructure:"rate_limit"`
	Users              map[string]string `mapstructure:"users"`
}

// DefaultConfig returns a config with development secrets and the demo user.
func DefaultConfig() *Config {
	return &Config{
		Addr:               DefaultAddr,
		BasePath:           DefaultBasePath,
		TokenIssuer:        DefaultTokenIssuer,
		AccessTokenSecret:  "dev-access-secret",
		RefreshTokenSecret: "dev-refresh-secret",
		AccessTokenExpiry:  DefaultAccessTokenExpiry,
		RefreshTokenExpiry: DefaultRefreshTokenExpiry,
		RateLimit:          DefaultRateLimit,
		Users:              map[string]string{DemoEmail: DemoPassword},
	}
}

func (c *Config) Validate() error {
	if c.AccessTokenSecret == "" || c.RefreshTokenSecret == "" {
		return ErrNoSecret
	}
	if c.AccessTokenExpiry <= 0 || c.RefreshTokenExpiry <= 0 {
		return ErrInvalidExpiry
	}
	if c.BasePath != "" && c.BasePath[0] != '/' {
		return ErrInvalidBasePath
	}
	if _, err := limiter.NewRateFromFormatted(c.RateLimit); err != nil {
		return fmt.Errorf("devserver: rate limit %q: %w", c.RateLimit, err)
	}
	return nil
}
