// Package config provides 12-factor configuration management for curlx.
//
// Settings start from Default, are overlaid by an optional YAML or TOML
// file, then by environment variables. CLI flags override all of them.
//
// Configuration Sections:
//   - Client: everything the curl client applies to every exchange
//   - Logging: Log level and output format
//   - Retry, RateLimit, Breaker: resilience middleware
//   - Metrics: Prometheus textfile export
//   - Scratch: where header and trace capture buffers live
//
// Example Usage:
//
//	cfg, err := config.LoadFile("curlx.yaml")
//	client := curl.New(curl.WithConfig(cfg.ClientConfig()))
//
// Environment Variables:
//   - CURLX_USER_AGENT, CURLX_VERIFY_SSL, CURLX_FOLLOW_LOCATION, CURLX_HEADERS
//   - CURLX_COOKIE_JAR, CURLX_PERSIST_SESSION_COOKIES, CURLX_COMPRESSION
//   - CURLX_CONNECT_TIMEOUT, CURLX_TIMEOUT, CURLX_PROXY, CURLX_PRE_PROXY, CURLX_DEBUG
//   - LOG_LEVEL, LOG_DEV
//   - CURLX_RETRY_MAX, CURLX_RETRY_WAIT_MIN, CURLX_RETRY_WAIT_MAX
//   - CURLX_RATE_LIMIT_RPS, CURLX_RATE_LIMIT_BURST
//   - CURLX_BREAKER_ENABLED, CURLX_BREAKER_FAILURES, CURLX_BREAKER_COOLDOWN
//   - CURLX_METRICS_FILE, CURLX_SCRATCH_DIR
package config
