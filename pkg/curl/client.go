package curl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"github.com/GriffinCanCode/curlx/internal/headers"
	"go.uber.org/zap"
)

// Client is the mutable facade over an Executor. Setters return the client
// for chaining. Each call snapshots the config, so setters may run
// concurrently with requests; the Last* getters describe the most recently
// completed call.
type Client struct {
	mu     sync.RWMutex
	cfg    Config
	doer   Doer
	logger *zap.Logger

	last lastExchange
}

type lastExchange struct {
	status int
	header Header
	info   Info
	trace  string
	traced bool
}

// New creates a client with DefaultConfig unless WithConfig is given.
func New(opts ...Option) *Client {
	s := newSettings(opts)
	cfg := DefaultConfig()
	if s.config != nil {
		cfg = *s.config
	}

	var doer Doer = s.executor()
	for i := len(s.middleware) - 1; i >= 0; i-- {
		doer = s.middleware[i](doer)
	}

	return &Client{
		cfg:    cfg,
		doer:   doer,
		logger: s.logger.Named("curl.client"),
		last:   lastExchange{header: Header{}, info: Info{}},
	}
}

// Do executes req with a snapshot of the client's config and records the
// outcome for the getters. State from an earlier call never leaks into a
// later one.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	c.mu.Lock()
	c.last = lastExchange{header: Header{}, info: Info{}}
	cfg := c.cfg.Clone()
	c.mu.Unlock()

	resp, err := c.doer.Execute(ctx, cfg, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	var xerr *TransportExchangeError
	switch {
	case err == nil:
		c.last = lastExchange{
			status: resp.StatusCode,
			header: resp.Header,
			info:   resp.Info,
			trace:  resp.Trace,
			traced: cfg.Debug,
		}
	case errors.As(err, &xerr):
		c.last.status = xerr.StatusCode
		c.last.info = xerr.Info
		c.last.trace = xerr.Trace
		c.last.traced = cfg.Debug
	}
	return resp, err
}

func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	return c.bytes(c.Do(ctx, Request{Method: MethodGet, URL: url}))
}

// Post sends payload, which may be nil.
func (c *Client) Post(ctx context.Context, url string, payload Payload) ([]byte, error) {
	return c.bytes(c.Do(ctx, Request{Method: MethodPost, URL: url, Payload: payload}))
}

func (c *Client) Put(ctx context.Context, url string, payload Payload) ([]byte, error) {
	return c.bytes(c.Do(ctx, Request{Method: MethodPut, URL: url, Payload: payload}))
}

func (c *Client) Delete(ctx context.Context, url string) ([]byte, error) {
	return c.bytes(c.Do(ctx, Request{Method: MethodDelete, URL: url}))
}

// PostJSON posts json verbatim with Content-Type: application/json. An
// empty json sends no body.
func (c *Client) PostJSON(ctx context.Context, url, json string) ([]byte, error) {
	req := Request{
		Method: MethodPost,
		URL:    url,
		Header: map[string]string{"Content-Type": "application/json"},
	}
	if json != "" {
		req.Payload = Text(json)
	}
	return c.bytes(c.Do(ctx, req))
}

// Download writes the response body to the file at path, creating parent
// directories. The file is removed when the exchange fails.
func (c *Client) Download(ctx context.Context, url, path string, method Method, payload Payload) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &SinkOpenError{Path: path, Err: err}
	}
	f, err := os.Create(path)
	if err != nil {
		return &SinkOpenError{Path: path, Err: err}
	}

	err = c.DownloadTo(ctx, url, f, method, payload)
	if cerr := f.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("close %s: %w", path, cerr)
	}
	if err != nil {
		if rerr := os.Remove(path); rerr != nil {
			c.logger.Warn("failed to remove partial download", zap.String("path", path), zap.Error(rerr))
		}
		return err
	}
	return nil
}

// DownloadTo streams the response body into w. An empty method means GET.
func (c *Client) DownloadTo(ctx context.Context, url string, w io.Writer, method Method, payload Payload) error {
	if w == nil {
		return &SinkOpenError{Path: "<nil>", Err: errors.New("nil writer")}
	}
	if method == "" {
		method = MethodGet
	}
	_, err := c.Do(ctx, Request{Method: method, URL: url, Payload: payload, Sink: w})
	return err
}

func (c *Client) bytes(resp *Response, err error) ([]byte, error) {
	if err != nil {
		return nil, err
	}
	return resp.Bytes(), nil
}

// Config returns a snapshot of the current settings.
func (c *Client) Config() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg.Clone()
}

func (c *Client) update(fn func(*Config)) *Client {
	c.mu.Lock()
	fn(&c.cfg)
	c.mu.Unlock()
	return c
}

// SetHeader inserts or overwrites a default header by exact name.
func (c *Client) SetHeader(name, value string) *Client {
	if name == "" {
		c.logger.Warn("ignoring header with empty name")
		return c
	}
	return c.update(func(cfg *Config) { cfg.Headers[name] = value })
}

// RemoveHeader deletes a default header by exact name.
func (c *Client) RemoveHeader(name string) *Client {
	return c.update(func(cfg *Config) { delete(cfg.Headers, name) })
}

func (c *Client) ClearHeaders() *Client {
	return c.update(func(cfg *Config) { cfg.Headers = map[string]string{} })
}

// Headers returns a copy of the default headers.
func (c *Client) Headers() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.cfg.Headers)
}

func (c *Client) SetUserAgent(ua string) *Client {
	return c.update(func(cfg *Config) { cfg.UserAgent = ua })
}

// SetVerifySSL(false) disables certificate verification. Insecure.
func (c *Client) SetVerifySSL(verify bool) *Client {
	if !verify {
		c.logger.Warn("TLS certificate verification disabled")
	}
	return c.update(func(cfg *Config) { cfg.Insecure = !verify })
}

func (c *Client) SetFollowLocation(follow bool) *Client {
	return c.update(func(cfg *Config) { cfg.FollowLocation = follow })
}

// SetCookieJar sets the cookie file path; empty disables cookies.
func (c *Client) SetCookieJar(path string) *Client {
	return c.update(func(cfg *Config) { cfg.CookieJar = path })
}

func (c *Client) SetPersistSessionCookies(persist bool) *Client {
	return c.update(func(cfg *Config) { cfg.PersistSessionCookies = persist })
}

func (c *Client) SetCompression(on bool) *Client {
	return c.update(func(cfg *Config) { cfg.Compression = on })
}

// SetConnectTimeout ignores non-positive values.
func (c *Client) SetConnectTimeout(seconds int) *Client {
	if seconds <= 0 {
		c.logger.Warn("ignoring non-positive connect timeout", zap.Int("seconds", seconds))
		return c
	}
	return c.update(func(cfg *Config) { cfg.ConnectTimeout = seconds })
}

// SetTimeout ignores non-positive values.
func (c *Client) SetTimeout(seconds int) *Client {
	if seconds <= 0 {
		c.logger.Warn("ignoring non-positive timeout", zap.Int("seconds", seconds))
		return c
	}
	return c.update(func(cfg *Config) { cfg.Timeout = seconds })
}

// SetProxy routes through proxy (http://, https://, socks5:// or bare
// host:port). Empty removes it.
func (c *Client) SetProxy(proxy string) *Client {
	return c.update(func(cfg *Config) { cfg.Proxy = proxy })
}

// SetPreProxy sets a SOCKS proxy dialed before Proxy. Empty removes it.
func (c *Client) SetPreProxy(proxy string) *Client {
	return c.update(func(cfg *Config) { cfg.PreProxy = proxy })
}

func (c *Client) SetDebug(on bool) *Client {
	return c.update(func(cfg *Config) { cfg.Debug = on })
}

// StatusCode of the last call, 0 when it failed before a response.
func (c *Client) StatusCode() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last.status
}

func (c *Client) ResponseHeaders() Header {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.last.header)
}

// ResponseHeader looks name up case-insensitively in the last response.
func (c *Client) ResponseHeader(name string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return headers.Lookup(c.last.header, name)
}

func (c *Client) Info() Info {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.last.info)
}

// Trace of the last call; false unless debug was enabled for it.
func (c *Client) Trace() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last.trace, c.last.traced
}
