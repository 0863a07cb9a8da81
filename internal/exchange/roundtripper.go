package exchange

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/GriffinCanCode/curlx/pkg/transport"
	"github.com/hashicorp/go-cleanhttp"
	"golang.org/x/net/proxy"
)

// newRoundTripper builds the HTTP/1.1 transport for one exchange. It starts
// from cleanhttp's non-pooled transport, so nothing outlives the handle.
func newRoundTripper(s transport.Settings) (*http.Transport, error) {
	tr := cleanhttp.DefaultTransport()

	dialer := &net.Dialer{
		Timeout:   s.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}
	tr.DialContext = dialer.DialContext
	if s.ConnectTimeout > 0 {
		tr.TLSHandshakeTimeout = s.ConnectTimeout
	}

	tr.DisableCompression = true
	tr.ForceAttemptHTTP2 = false
	tr.TLSNextProto = map[string]func(string, *tls.Conn) http.RoundTripper{}

	if s.Insecure {
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // explicit opt-out
	}

	if s.Proxy != "" {
		u, err := parseProxyURL(s.Proxy)
		if err != nil {
			return nil, err
		}
		tr.Proxy = http.ProxyURL(u)
	}

	if s.PreProxy != "" {
		u, err := parseProxyURL(s.PreProxy)
		if err != nil {
			return nil, err
		}
		d, err := proxy.FromURL(u, dialer)
		if err != nil {
			return nil, fmt.Errorf("pre-proxy %q: %w", s.PreProxy, err)
		}
		tr.DialContext = dialContext(d)
	}

	return tr, nil
}

// parseProxyURL accepts curl style proxies, where a bare host:port means
// an HTTP proxy.
func parseProxyURL(raw string) (*url.URL, error) {
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy %q: %w", raw, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid proxy %q: missing host", raw)
	}
	return u, nil
}

func dialContext(d proxy.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext
	}
	return func(_ context.Context, network, addr string) (net.Conn, error) {
		return d.Dial(network, addr)
	}
}
