package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/curlx/pkg/curl"
)

var (
	outputPath    string
	requestMethod string
)

var downloadCmd = &cobra.Command{
	Use:   "download URL",
	Short: "Stream a response body into a file",
	Long: `Stream a response body into a file, creating parent directories. The
file is removed if the exchange fails. Use -o - to stream to stdout.

Example:
  curlx download https://example.com/archive.tar.gz -o out/archive.tar.gz
  curlx download https://example.com/export -X POST -d '{"q":1}' -o export.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runDownload,
}

func init() {
	downloadCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Destination file, - for stdout")
	downloadCmd.Flags().StringVarP(&requestMethod, "request", "X", "GET", "Request method")
	_ = downloadCmd.MarkFlagRequired("output")
	bodyFlags(downloadCmd)
	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, args []string) error {
	method := curl.Method(strings.ToUpper(requestMethod))
	switch method {
	case curl.MethodGet, curl.MethodPost, curl.MethodPut, curl.MethodDelete:
	default:
		return fmt.Errorf("unsupported method %q", requestMethod)
	}

	payload, err := payloadFromFlags()
	if err != nil {
		return err
	}

	return runExchange(cmd, func(ctx context.Context, c *curl.Client) ([]byte, error) {
		if outputPath == "-" {
			return nil, c.DownloadTo(ctx, args[0], cmd.OutOrStdout(), method, payload)
		}
		return nil, c.Download(ctx, args[0], outputPath, method, payload)
	})
}
