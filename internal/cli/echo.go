package cli

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/curlx/internal/echo"
	"github.com/GriffinCanCode/curlx/internal/logging"
)

var (
	echoAddr    string
	echoMetrics bool
)

var echoCmd = &cobra.Command{
	Use:   "echo",
	Short: "Run a local server that echoes requests back",
	Long: `Run an httpbin style server for trying curlx out: /get, /post, /put,
/delete, /anything, /headers, /status/{code}, /redirect/{n}, /redirect-to,
/cookies, /cookies/set, /gzip, /deflate, /zstd, /bytes/{n}, /delay/{s}.

Example:
  curlx echo --addr 127.0.0.1:8080 --metrics`,
	Args: cobra.NoArgs,
	RunE: runEcho,
}

func init() {
	echoCmd.Flags().StringVar(&echoAddr, "addr", "127.0.0.1:8080", "Listen address")
	echoCmd.Flags().BoolVar(&echoMetrics, "metrics", false, "Expose Go runtime metrics on /metrics")
	rootCmd.AddCommand(echoCmd)
}

func runEcho(cmd *cobra.Command, args []string) error {
	level := logLevel
	if level == "" {
		level = "info"
	}
	logger, err := logging.New(logging.Config{Level: level, Development: logDev})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	gin.SetMode(gin.ReleaseMode)
	opts := echo.Options{Logger: logger.Logger}
	if echoMetrics {
		opts.Gatherer = prometheus.DefaultGatherer
	}

	ln, err := net.Listen("tcp", echoAddr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return echo.Serve(ctx, ln, echo.NewRouter(opts), logger.Logger)
}
