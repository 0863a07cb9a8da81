package curl

import (
	"errors"
	"fmt"
	"maps"
)

const (
	DefaultUserAgent      = "Curl client"
	DefaultConnectTimeout = 10
	DefaultTimeout        = 60
	MaxRedirects          = 10
)

// Config holds the client-scoped settings applied to every exchange. All
// fields are independent; every combination is valid. The zero value
// verifies certificates, and non-positive timeouts fall back to the
// defaults when the config is executed.
type Config struct {
	// Headers are sent with every request. Request headers override them
	// by case-insensitive name.
	Headers   map[string]string
	UserAgent string
	// Insecure disables peer and hostname verification. It is an opt-out
	// and never the default.
	Insecure       bool
	FollowLocation bool
	// CookieJar is the path of a Netscape format cookie file read before
	// and written after each exchange. Empty disables cookies.
	CookieJar             string
	PersistSessionCookies bool
	Compression           bool
	// Timeouts are in whole seconds.
	ConnectTimeout int
	Timeout        int
	Proxy          string
	PreProxy       string
	Debug          bool
}

// DefaultConfig returns the settings of a zero-configuration client.
func DefaultConfig() Config {
	return Config{
		Headers:        map[string]string{},
		UserAgent:      DefaultUserAgent,
		FollowLocation: true,
		Compression:    true,
		ConnectTimeout: DefaultConnectTimeout,
		Timeout:        DefaultTimeout,
	}
}

// Clone returns a copy that shares no maps with c.
func (c Config) Clone() Config {
	out := c
	out.Headers = maps.Clone(c.Headers)
	if out.Headers == nil {
		out.Headers = map[string]string{}
	}
	return out
}

// withDefaults fills unset timeouts so a zero Config is a valid plain request.
func (c Config) withDefaults() Config {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

var ErrInvalidConfig = errors.New("invalid client config")

// Validate checks the ranges setters enforce.
func (c Config) Validate() error {
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("%w: connect timeout must be positive, got %d", ErrInvalidConfig, c.ConnectTimeout)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive, got %d", ErrInvalidConfig, c.Timeout)
	}
	for name := range c.Headers {
		if name == "" {
			return fmt.Errorf("%w: empty header name", ErrInvalidConfig)
		}
	}
	return nil
}
