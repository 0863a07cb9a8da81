package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/curlx/internal/config"
	"github.com/GriffinCanCode/curlx/internal/headers"
	"github.com/GriffinCanCode/curlx/internal/logging"
	"github.com/GriffinCanCode/curlx/internal/monitoring"
	"github.com/GriffinCanCode/curlx/internal/resilience"
	"github.com/GriffinCanCode/curlx/pkg/curl"
)

// runtime is everything one command invocation needs.
type runtime struct {
	cfg     *config.Config
	logger  *logging.Logger
	metrics *monitoring.Metrics
	client  *curl.Client
}

func newRuntime(cmd *cobra.Command) (*runtime, error) {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	// -v surfaces retry notices unless a level was asked for explicitly.
	if verbose && !cmd.Flags().Changed("log-level") && logger.Level() > zap.InfoLevel {
		logger.SetLevel(zap.InfoLevel)
	}

	metrics := monitoring.NewMetrics()
	opts := []curl.Option{
		curl.WithConfig(cfg.ClientConfig()),
		curl.WithLogger(logger.Logger),
		curl.WithObserver(metrics),
		curl.WithMiddleware(middleware(cfg, logger.Logger)...),
	}
	if cfg.Scratch.Dir != "" {
		opts = append(opts, curl.WithScratchDir(cfg.Scratch.Dir))
	}

	return &runtime{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		client:  curl.New(opts...),
	}, nil
}

// middleware puts the retrier outermost so the breaker and the rate
// limiter see every attempt it makes.
func middleware(cfg *config.Config, logger *zap.Logger) []curl.Middleware {
	var mw []curl.Middleware
	if cfg.Retry.Max > 0 {
		mw = append(mw, resilience.Retry(resilience.RetryConfig{
			MaxRetries: cfg.Retry.Max,
			MinWait:    cfg.Retry.WaitMin.Std(),
			MaxWait:    cfg.Retry.WaitMax.Std(),
			Logger:     logger,
		}))
	}
	if cfg.Breaker.Enabled {
		failures := cfg.Breaker.Failures
		mw = append(mw, resilience.Breaker(resilience.NewBreakers(resilience.Settings{
			Cooldown: cfg.Breaker.Cooldown.Std(),
			ShouldTrip: func(counts resilience.Counts) bool {
				return counts.ConsecutiveFailures >= failures
			},
			OnStateChange: func(host string, from, to resilience.State) {
				logger.Warn("circuit state changed",
					zap.String("host", host),
					zap.Stringer("from", from),
					zap.Stringer("to", to))
			},
		})))
	}
	if cfg.RateLimit.RequestsPerSecond > 0 {
		mw = append(mw, resilience.RateLimit(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))
	}
	return mw
}

// close flushes metrics and logs.
func (r *runtime) close() error {
	var err error
	if r.cfg.Metrics.File != "" {
		if werr := r.metrics.WriteTextfile(r.cfg.Metrics.File); werr != nil {
			err = multierr.Append(err, fmt.Errorf("failed to write metrics: %w", werr))
		}
	}
	snap := r.metrics.Snapshot()
	r.logger.Debug("session summary",
		zap.Int64("exchanges", snap.TotalExchanges),
		zap.Int64("errors", snap.TotalErrors),
		zap.Duration("elapsed", time.Duration(snap.TotalDuration*float64(time.Second))))
	// Sync fails on stderr for some platforms; nothing to act on.
	_ = r.logger.Sync()
	return err
}

func loadConfig(flags *pflag.FlagSet) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if err := applyFlags(cfg, flags); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFlags overrides cfg with every flag given on the command line.
func applyFlags(cfg *config.Config, flags *pflag.FlagSet) error {
	c := &cfg.Client
	set := func(name string, apply func()) {
		if flags.Changed(name) {
			apply()
		}
	}

	set("user-agent", func() { c.UserAgent = userAgent })
	set("insecure", func() { c.VerifySSL = !insecure })
	set("location", func() { c.FollowLocation = followLocation })
	set("cookie-jar", func() { c.CookieJar = cookieJar })
	set("session-cookies", func() { c.PersistSessionCookies = sessionCookies })
	set("compressed", func() { c.Compression = compressed })
	set("connect-timeout", func() { c.ConnectTimeout = connectTimeout })
	set("max-time", func() { c.Timeout = maxTime })
	set("proxy", func() { c.Proxy = proxyURL })
	set("preproxy", func() { c.PreProxy = preProxyURL })
	set("verbose", func() { c.Debug = verbose })
	set("retry", func() { cfg.Retry.Max = retryMax })
	set("rate", func() { cfg.RateLimit.RequestsPerSecond = rateLimit })
	set("breaker", func() { cfg.Breaker.Enabled = breaker })
	set("metrics-file", func() { cfg.Metrics.File = metricsFile })
	set("scratch-dir", func() { cfg.Scratch.Dir = scratchDir })
	set("log-level", func() { cfg.Logging.Level = logLevel })
	set("log-dev", func() { cfg.Logging.Development = logDev })

	if c.Headers == nil {
		c.Headers = map[string]string{}
	}
	for _, line := range headerLines {
		name, value, ok := headers.Parse(line)
		if !ok {
			return fmt.Errorf("invalid header %q, want \"Name: value\"", line)
		}
		c.Headers[name] = value
	}
	return nil
}
