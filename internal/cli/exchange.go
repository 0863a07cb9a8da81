package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/GriffinCanCode/curlx/internal/headers"
	"github.com/GriffinCanCode/curlx/pkg/curl"
	"github.com/GriffinCanCode/curlx/pkg/transport"
)

// Body flags, bound by post, put and download.
var (
	dataRaw    string
	formFields []string
	jsonBody   string
)

var getCmd = &cobra.Command{
	Use:   "get URL",
	Short: "Send a GET request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExchange(cmd, func(ctx context.Context, c *curl.Client) ([]byte, error) {
			return c.Get(ctx, args[0])
		})
	},
}

var postCmd = &cobra.Command{
	Use:   "post URL",
	Short: "Send a POST request",
	Long: `Send a POST request with a raw body (-d), a multipart form (-F) or a
JSON document (--json).

Example:
  curlx post https://example.com/api --json '{"a":1}'
  curlx post https://example.com/upload -F note=hello -F file=@report.pdf
  curlx post https://example.com/raw -d @body.bin`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("json") {
			if dataRaw != "" || len(formFields) > 0 {
				return fmt.Errorf("--json cannot be combined with -d or -F")
			}
			return runExchange(cmd, func(ctx context.Context, c *curl.Client) ([]byte, error) {
				return c.PostJSON(ctx, args[0], jsonBody)
			})
		}
		payload, err := payloadFromFlags()
		if err != nil {
			return err
		}
		return runExchange(cmd, func(ctx context.Context, c *curl.Client) ([]byte, error) {
			return c.Post(ctx, args[0], payload)
		})
	},
}

var putCmd = &cobra.Command{
	Use:   "put URL",
	Short: "Send a PUT request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := payloadFromFlags()
		if err != nil {
			return err
		}
		return runExchange(cmd, func(ctx context.Context, c *curl.Client) ([]byte, error) {
			return c.Put(ctx, args[0], payload)
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete URL",
	Short: "Send a DELETE request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExchange(cmd, func(ctx context.Context, c *curl.Client) ([]byte, error) {
			return c.Delete(ctx, args[0])
		})
	},
}

func init() {
	for _, cmd := range []*cobra.Command{postCmd, putCmd} {
		bodyFlags(cmd)
	}
	postCmd.Flags().StringVar(&jsonBody, "json", "", "Send this JSON document with Content-Type: application/json")
	rootCmd.AddCommand(getCmd, postCmd, putCmd, deleteCmd)
}

func bodyFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&dataRaw, "data", "d", "", "Raw body, or @file to send a file's contents")
	cmd.Flags().StringArrayVarP(&formFields, "form", "F", nil, "Multipart field name=value or name=@path[;type=mime][;filename=name]")
}

// runExchange builds the client, runs call and writes its outcome: the
// body to stdout, diagnostics to stderr.
func runExchange(cmd *cobra.Command, call func(ctx context.Context, c *curl.Client) ([]byte, error)) (err error) {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, rt.close()) }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	body, err := call(ctx, rt.client)
	writeDiagnostics(cmd.ErrOrStderr(), rt.client)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if include {
		writeHead(out, rt.client)
	}
	_, err = out.Write(body)
	return err
}

func writeHead(w io.Writer, c *curl.Client) {
	proto, _ := c.Info()[transport.InfoHTTPVersion].(string)
	if proto == "" {
		proto = "HTTP"
	}
	fmt.Fprintf(w, "%s %d\r\n", proto, c.StatusCode())
	for _, line := range headers.Format(c.ResponseHeaders()) {
		fmt.Fprintf(w, "%s\r\n", line)
	}
	fmt.Fprint(w, "\r\n")
}

func writeDiagnostics(w io.Writer, c *curl.Client) {
	if trace, ok := c.Trace(); ok && verbose {
		fmt.Fprint(w, trace)
	}
	if writeInfo {
		doc, err := sonic.ConfigStd.MarshalIndent(c.Info(), "", "  ")
		if err != nil {
			fmt.Fprintf(w, "cannot render transfer info: %v\n", err)
			return
		}
		fmt.Fprintf(w, "%s\n", doc)
	}
}

func payloadFromFlags() (curl.Payload, error) {
	switch {
	case dataRaw != "" && len(formFields) > 0:
		return nil, fmt.Errorf("-d and -F are mutually exclusive")
	case len(formFields) > 0:
		return parseForm(formFields)
	case strings.HasPrefix(dataRaw, "@"):
		data, err := os.ReadFile(dataRaw[1:])
		if err != nil {
			return nil, fmt.Errorf("failed to read body: %w", err)
		}
		return curl.Raw(data), nil
	case dataRaw != "":
		return curl.Text(dataRaw), nil
	}
	return nil, nil
}

func parseForm(fields []string) (curl.Form, error) {
	form := curl.Form{}
	for _, field := range fields {
		name, value, ok := strings.Cut(field, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid form field %q, want name=value or name=@path", field)
		}
		if !strings.HasPrefix(value, "@") {
			form[name] = curl.Value(value)
			continue
		}

		parts := strings.Split(value[1:], ";")
		file := curl.File{Path: parts[0]}
		for _, attr := range parts[1:] {
			k, v, _ := strings.Cut(attr, "=")
			switch strings.TrimSpace(k) {
			case "type":
				file.ContentType = v
			case "filename":
				file.Name = v
			default:
				return nil, fmt.Errorf("unknown form attribute %q in %q", k, field)
			}
		}
		form[name] = file
	}
	return form, nil
}
