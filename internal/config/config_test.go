package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/curlx/pkg/curl"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Client config matches a zero-configuration curl client
	assert.Equal(t, curl.DefaultConfig(), cfg.ClientConfig())

	// Logging config
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	// Resilience is off by default
	assert.Equal(t, 0, cfg.Retry.Max)
	assert.Equal(t, time.Second, cfg.Retry.WaitMin.Std())
	assert.Equal(t, float64(0), cfg.RateLimit.RequestsPerSecond)
	assert.False(t, cfg.Breaker.Enabled)

	require.NoError(t, cfg.Validate())
}

func TestLoadOrDefault(t *testing.T) {
	cfg := LoadOrDefault()

	assert.NotNil(t, cfg)
	assert.Equal(t, curl.DefaultUserAgent, cfg.Client.UserAgent)
}

func TestLoadWithEnvVars(t *testing.T) {
	t.Setenv("CURLX_USER_AGENT", "agent/2.0")
	t.Setenv("CURLX_VERIFY_SSL", "false")
	t.Setenv("CURLX_HEADERS", "X-A:1,X-B:2")
	t.Setenv("CURLX_TIMEOUT", "5")
	t.Setenv("CURLX_RETRY_MAX", "3")
	t.Setenv("CURLX_RETRY_WAIT_MIN", "250ms")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "agent/2.0", cfg.Client.UserAgent)
	assert.False(t, cfg.Client.VerifySSL)
	assert.Equal(t, map[string]string{"X-A": "1", "X-B": "2"}, cfg.Client.Headers)
	assert.Equal(t, 5, cfg.Client.Timeout)
	assert.Equal(t, 3, cfg.Retry.Max)
	assert.Equal(t, 250*time.Millisecond, cfg.Retry.WaitMin.Std())
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Untouched fields keep their defaults
	assert.True(t, cfg.Client.FollowLocation)
	assert.Equal(t, curl.DefaultConnectTimeout, cfg.Client.ConnectTimeout)
}

func TestLoadRejectsMalformedEnv(t *testing.T) {
	t.Setenv("CURLX_TIMEOUT", "soon")

	_, err := Load()
	assert.Error(t, err)
	assert.Equal(t, curl.DefaultTimeout, LoadOrDefault().Client.Timeout)
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFileYAML(t *testing.T) {
	path := writeFile(t, "curlx.yaml", `
client:
  user_agent: from-yaml
  follow_location: false
  headers:
    Accept: application/json
retry:
  max: 2
  wait_max: 5s
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "from-yaml", cfg.Client.UserAgent)
	assert.False(t, cfg.Client.FollowLocation)
	assert.Equal(t, "application/json", cfg.Client.Headers["Accept"])
	assert.Equal(t, 2, cfg.Retry.Max)
	assert.Equal(t, 5*time.Second, cfg.Retry.WaitMax.Std())
	assert.True(t, cfg.Client.VerifySSL)
}

func TestLoadFileTOML(t *testing.T) {
	path := writeFile(t, "curlx.toml", `
[client]
user_agent = "from-toml"
timeout = 15

[breaker]
enabled = true
cooldown = "1m"
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "from-toml", cfg.Client.UserAgent)
	assert.Equal(t, 15, cfg.Client.Timeout)
	assert.True(t, cfg.Breaker.Enabled)
	assert.Equal(t, time.Minute, cfg.Breaker.Cooldown.Std())
	assert.Equal(t, uint32(5), cfg.Breaker.Failures)
}

func TestLoadFileEnvWins(t *testing.T) {
	path := writeFile(t, "curlx.yml", "client:\n  user_agent: from-file\n  timeout: 20\n")
	t.Setenv("CURLX_USER_AGENT", "from-env")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Client.UserAgent)
	assert.Equal(t, 20, cfg.Client.Timeout)
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile(writeFile(t, "curlx.json", "{}"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadFile(writeFile(t, "bad.toml", "[client\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Client.Timeout = 0
	cfg.Logging.Level = "loud"
	cfg.Retry.Max = -1
	cfg.Retry.WaitMin = Duration(time.Minute)
	cfg.RateLimit.RequestsPerSecond = -1
	cfg.Breaker.Enabled = true
	cfg.Breaker.Failures = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, curl.ErrInvalidConfig)
	assert.ErrorIs(t, err, ErrInvalid)
	for _, want := range []string{"timeout", "log level", "retry max", "wait min", "rate limit", "breaker"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestClientConfigIsDetached(t *testing.T) {
	cfg := Default()
	cfg.Client.Headers["X-A"] = "1"

	cc := cfg.ClientConfig()
	cc.Headers["X-A"] = "2"
	assert.Equal(t, "1", cfg.Client.Headers["X-A"])
}
