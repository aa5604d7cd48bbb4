// Package config loads client settings from the config file, NETPREP_* environment
// variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DefaultBaseURL           = "http://localhost:3000/api"
	DefaultTimeout           = 10 * time.Second
	DefaultMaxRetries        = 3
	DefaultRetryBaseDelay    = time.Second
	DefaultProbeInterval     = 30 * time.Second
	DefaultProbeTimeout      = 5 * time.Second
	DefaultHealthPath        = "/health"
	DefaultQueueMaxAge       = 5 * time.Minute
	DefaultQueueMaxRequeues  = 5
	DefaultTokenExpiryBuffer = 60 * time.Second
	DefaultInactivityTimeout = 30 * time.Minute

	EnvPrefix = "NETPREP"
)

var (
	home, _            = os.UserHomeDir()
	DefaultDir         = filepath.Join(home, ".netprep")
	DefaultConfigPath  = filepath.Join(DefaultDir, "config.json")
	DefaultDataDir     = filepath.Join(DefaultDir, "data")
	DefaultLogFilePath = filepath.Join(DefaultDir, "logs", "netprep.log")
)

var (
	ErrNoBaseURL       = errors.New("config: base url missing")
	ErrInvalidBaseURL  = errors.New("config: base url must be an absolute http(s) url")
	ErrInvalidTimeout  = errors.New("config: timeout must be positive")
	ErrInvalidRetries  = errors.New("config: max retries must not be negative")
	ErrNoDataDir       = errors.New("config: data dir missing")
	ErrInvalidDuration = errors.New("config: durations must not be negative")
)

type Config struct {
	BaseURL           string        `mapstructure:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RetryBaseDelay    time.Duration `mapstructure:"retry_base_delay"`
	ProbeInterval     time.Duration `mapstructure:"probe_interval"`
	ProbeTimeout      time.Duration `mapstructure:"probe_timeout"`
	HealthPath        string        `mapstructure:"health_path"`
	QueueMaxAge       time.Duration `mapstructure:"queue_max_age"`
	QueueMaxRequeues  int           `mapstructure:"queue_max_requeues"`
	DataDir           string        `mapstructure:"data_dir"`
	RememberMe        bool          `mapstructure:"remember_me"`
	TokenExpiryBuffer time.Duration `mapstructure:"token_expiry_buffer"`
	InactivityTimeout time.Duration `mapstructure:"inactivity_timeout"`
	// MetricsFile receives the client metrics in Prometheus text format on exit. Empty disables it.
	MetricsFile string `mapstructure:"metrics_file"`

	// Path is the config file that was read, if any.
	Path string `mapstructure:"-"`
}

// SetDefaults registers every key on v so environment variables can override all of them.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("base_url", DefaultBaseURL)
	v.SetDefault("timeout", DefaultTimeout)
	v.SetDefault("max_retries", DefaultMaxRetries)
	v.SetDefault("retry_base_delay", DefaultRetryBaseDelay)
	v.SetDefault("probe_interval", DefaultProbeInterval)
	v.SetDefault("probe_timeout", DefaultProbeTimeout)
	v.SetDefault("health_path", DefaultHealthPath)
	v.SetDefault("queue_max_age", DefaultQueueMaxAge)
	v.SetDefault("queue_max_requeues", DefaultQueueMaxRequeues)
	v.SetDefault("data_dir", DefaultDataDir)
	v.SetDefault("remember_me", false)
	v.SetDefault("token_expiry_buffer", DefaultTokenExpiryBuffer)
	v.SetDefault("inactivity_timeout", DefaultInactivityTimeout)
	v.SetDefault("metrics_file", "")
}

// LoadDotEnv loads .env files into the process environment. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config: load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads path (or ~/.netprep/config.json when empty) into v, layers NETPREP_* environment
// variables on top and returns the validated result. A missing config file is not an error.
func Load(v *viper.Viper, path string) (*Config, error) {
	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(DefaultDir)
		v.SetConfigName("config")
		v.SetConfigType("json")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config read '%s': %w", v.ConfigFileUsed(), err)
		}
		slog.Debug("config file not found, using defaults", "path", path)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config decode: %w", err)
	}
	cfg.Path = v.ConfigFileUsed()
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrNoBaseURL
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidBaseURL, c.BaseURL)
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.MaxRetries < 0 || c.QueueMaxRequeues < 0 {
		return ErrInvalidRetries
	}
	if c.RetryBaseDelay < 0 || c.ProbeInterval < 0 || c.ProbeTimeout < 0 ||
		c.QueueMaxAge < 0 || c.TokenExpiryBuffer < 0 || c.InactivityTimeout < 0 {
		return ErrInvalidDuration
	}
	if c.DataDir == "" {
		return ErrNoDataDir
	}
	return nil
}

// HealthURL is the probe target.
func (c *Config) HealthURL() string {
	return c.BaseURL + "/" + strings.TrimLeft(c.HealthPath, "/")
}

// DBPath is the SQLite file holding the durable token scope and local progress.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "netprep.db")
}

// LockPath is the file locked while a command runs.
func (c *Config) LockPath() string {
	return filepath.Join(c.DataDir, "netprep.lock")
}
