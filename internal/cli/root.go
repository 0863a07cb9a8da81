// Package cli implements the curlx command line.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

// Global flags shared by every request command.
var (
	configPath     string
	userAgent      string
	headerLines    []string
	insecure       bool
	followLocation bool
	cookieJar      string
	sessionCookies bool
	compressed     bool
	connectTimeout int
	maxTime        int
	proxyURL       string
	preProxyURL    string
	verbose        bool
	include        bool
	writeInfo      bool
	retryMax       int
	rateLimit      float64
	breaker        bool
	metricsFile    string
	scratchDir     string
	logLevel       string
	logDev         bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "curlx",
	Short: "A small curl-like HTTP client",
	Long: `curlx performs one HTTP exchange per invocation and writes the response
body to stdout. Logs, traces and transfer info go to stderr.

Get started:
  curlx get https://example.com
  curlx post https://example.com/form -F name=value -F upload=@file.txt
  curlx post https://example.com/api --json '{"a":1}'
  curlx download https://example.com/file.tar.gz -o file.tar.gz
  curlx echo --addr 127.0.0.1:8080

Settings are read from --config (YAML or TOML), then CURLX_* environment
variables, then flags.`,
	Version:       fmt.Sprintf("%s (built %s)", version, buildTime),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "Path to a YAML or TOML configuration file")
	pf.StringVarP(&userAgent, "user-agent", "A", "", "User-Agent to send")
	pf.StringArrayVarP(&headerLines, "header", "H", nil, `Extra header "Name: value", repeatable`)
	pf.BoolVarP(&insecure, "insecure", "k", false, "Skip TLS peer and hostname verification")
	pf.BoolVarP(&followLocation, "location", "L", true, "Follow redirects")
	pf.StringVarP(&cookieJar, "cookie-jar", "b", "", "Netscape cookie file to read and write")
	pf.BoolVar(&sessionCookies, "session-cookies", false, "Keep session cookies in the cookie jar")
	pf.BoolVar(&compressed, "compressed", true, "Request and decode gzip, deflate and zstd bodies")
	pf.IntVar(&connectTimeout, "connect-timeout", 0, "Connect timeout in seconds")
	pf.IntVarP(&maxTime, "max-time", "m", 0, "Whole exchange timeout in seconds")
	pf.StringVarP(&proxyURL, "proxy", "x", "", "HTTP proxy URL")
	pf.StringVar(&preProxyURL, "preproxy", "", "SOCKS pre-proxy URL")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Write the debug trace to stderr")
	pf.BoolVarP(&include, "include", "i", false, "Write the status line and response headers before the body")
	pf.BoolVar(&writeInfo, "write-info", false, "Write transfer info as JSON to stderr")
	pf.IntVar(&retryMax, "retry", 0, "Retry transport failures, 429 and 5xx this many times")
	pf.Float64Var(&rateLimit, "rate", 0, "Maximum exchanges per second, 0 for unlimited")
	pf.BoolVar(&breaker, "breaker", false, "Enable the per-host circuit breaker")
	pf.StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics to this file on exit")
	pf.StringVar(&scratchDir, "scratch-dir", "", "Keep header and trace capture in temp files under this directory")
	pf.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.BoolVar(&logDev, "log-dev", false, "Human readable development logs")
}

// SetVersion sets the version info
func SetVersion(v, bt string) {
	version = v
	buildTime = bt
	rootCmd.Version = fmt.Sprintf("%s (built %s)", version, buildTime)
}
