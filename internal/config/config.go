package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"

	"github.com/GriffinCanCode/curlx/pkg/curl"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported config file format")
	ErrInvalid           = errors.New("invalid config")
)

// Config holds all application configuration.
type Config struct {
	Client    ClientConfig    `yaml:"client" toml:"client"`
	Logging   LogConfig       `yaml:"logging" toml:"logging"`
	Retry     RetryConfig     `yaml:"retry" toml:"retry"`
	RateLimit RateLimitConfig `yaml:"rate_limit" toml:"rate_limit"`
	Breaker   BreakerConfig   `yaml:"breaker" toml:"breaker"`
	Metrics   MetricsConfig   `yaml:"metrics" toml:"metrics"`
	Scratch   ScratchConfig   `yaml:"scratch" toml:"scratch"`
}

// ClientConfig mirrors curl.Config.
type ClientConfig struct {
	Headers               map[string]string `envconfig:"CURLX_HEADERS" yaml:"headers" toml:"headers"`
	UserAgent             string            `envconfig:"CURLX_USER_AGENT" yaml:"user_agent" toml:"user_agent"`
	VerifySSL             bool              `envconfig:"CURLX_VERIFY_SSL" yaml:"verify_ssl" toml:"verify_ssl"`
	FollowLocation        bool              `envconfig:"CURLX_FOLLOW_LOCATION" yaml:"follow_location" toml:"follow_location"`
	CookieJar             string            `envconfig:"CURLX_COOKIE_JAR" yaml:"cookie_jar" toml:"cookie_jar"`
	PersistSessionCookies bool              `envconfig:"CURLX_PERSIST_SESSION_COOKIES" yaml:"persist_session_cookies" toml:"persist_session_cookies"`
	Compression           bool              `envconfig:"CURLX_COMPRESSION" yaml:"compression" toml:"compression"`
	ConnectTimeout        int               `envconfig:"CURLX_CONNECT_TIMEOUT" yaml:"connect_timeout" toml:"connect_timeout"`
	Timeout               int               `envconfig:"CURLX_TIMEOUT" yaml:"timeout" toml:"timeout"`
	Proxy                 string            `envconfig:"CURLX_PROXY" yaml:"proxy" toml:"proxy"`
	PreProxy              string            `envconfig:"CURLX_PRE_PROXY" yaml:"pre_proxy" toml:"pre_proxy"`
	Debug                 bool              `envconfig:"CURLX_DEBUG" yaml:"debug" toml:"debug"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" yaml:"level" toml:"level"`
	Development bool   `envconfig:"LOG_DEV" yaml:"development" toml:"development"`
}

// RetryConfig holds retry middleware configuration. Max 0 disables it.
type RetryConfig struct {
	Max     int      `envconfig:"CURLX_RETRY_MAX" yaml:"max" toml:"max"`
	WaitMin Duration `envconfig:"CURLX_RETRY_WAIT_MIN" yaml:"wait_min" toml:"wait_min"`
	WaitMax Duration `envconfig:"CURLX_RETRY_WAIT_MAX" yaml:"wait_max" toml:"wait_max"`
}

// RateLimitConfig holds client side rate limiting. 0 rps is unlimited.
type RateLimitConfig struct {
	RequestsPerSecond float64 `envconfig:"CURLX_RATE_LIMIT_RPS" yaml:"rps" toml:"rps"`
	Burst             int     `envconfig:"CURLX_RATE_LIMIT_BURST" yaml:"burst" toml:"burst"`
}

// BreakerConfig holds per-host circuit breaker configuration.
type BreakerConfig struct {
	Enabled  bool     `envconfig:"CURLX_BREAKER_ENABLED" yaml:"enabled" toml:"enabled"`
	Failures uint32   `envconfig:"CURLX_BREAKER_FAILURES" yaml:"failures" toml:"failures"`
	Cooldown Duration `envconfig:"CURLX_BREAKER_COOLDOWN" yaml:"cooldown" toml:"cooldown"`
}

// MetricsConfig holds metrics export configuration.
type MetricsConfig struct {
	File string `envconfig:"CURLX_METRICS_FILE" yaml:"file" toml:"file"`
}

// ScratchConfig selects file backed capture buffers when Dir is set.
type ScratchConfig struct {
	Dir string `envconfig:"CURLX_SCRATCH_DIR" yaml:"dir" toml:"dir"`
}

// Duration is a time.Duration written as "1.5s" in files and env vars.
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Load loads configuration from environment variables over Default.
func Load() (*Config, error) {
	cfg := Default()
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// LoadFile reads a .yaml, .yml or .toml file over Default, then applies
// environment variables on top.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Client: ClientConfig{
			Headers:        map[string]string{},
			UserAgent:      curl.DefaultUserAgent,
			VerifySSL:      true,
			FollowLocation: true,
			Compression:    true,
			ConnectTimeout: curl.DefaultConnectTimeout,
			Timeout:        curl.DefaultTimeout,
		},
		Logging: LogConfig{
			Level:       "warn",
			Development: false,
		},
		Retry: RetryConfig{
			Max:     0,
			WaitMin: Duration(time.Second),
			WaitMax: Duration(30 * time.Second),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 0,
			Burst:             1,
		},
		Breaker: BreakerConfig{
			Enabled:  false,
			Failures: 5,
			Cooldown: Duration(30 * time.Second),
		},
	}
}

// Validate reports every out of range setting at once.
func (c *Config) Validate() error {
	err := c.ClientConfig().Validate()
	if _, lerr := zapcore.ParseLevel(c.Logging.Level); lerr != nil {
		err = multierr.Append(err, fmt.Errorf("%w: log level: %v", ErrInvalid, lerr))
	}
	if c.Retry.Max < 0 {
		err = multierr.Append(err, fmt.Errorf("%w: retry max must not be negative", ErrInvalid))
	}
	if c.Retry.WaitMin > c.Retry.WaitMax {
		err = multierr.Append(err, fmt.Errorf("%w: retry wait min %s exceeds max %s", ErrInvalid, c.Retry.WaitMin.Std(), c.Retry.WaitMax.Std()))
	}
	if c.RateLimit.RequestsPerSecond < 0 {
		err = multierr.Append(err, fmt.Errorf("%w: rate limit must not be negative", ErrInvalid))
	}
	if c.Breaker.Enabled && c.Breaker.Failures == 0 {
		err = multierr.Append(err, fmt.Errorf("%w: breaker failures must be positive", ErrInvalid))
	}
	return err
}

// ClientConfig converts the client section to curl.Config.
func (c *Config) ClientConfig() curl.Config {
	cc := c.Client
	cfg := curl.Config{
		Headers:               cc.Headers,
		UserAgent:             cc.UserAgent,
		Insecure:              !cc.VerifySSL,
		FollowLocation:        cc.FollowLocation,
		CookieJar:             cc.CookieJar,
		PersistSessionCookies: cc.PersistSessionCookies,
		Compression:           cc.Compression,
		ConnectTimeout:        cc.ConnectTimeout,
		Timeout:               cc.Timeout,
		Proxy:                 cc.Proxy,
		PreProxy:              cc.PreProxy,
		Debug:                 cc.Debug,
	}
	return cfg.Clone()
}
