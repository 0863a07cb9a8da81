// Package exchange implements the transport the curl executor drives, on
// top of resty.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/GriffinCanCode/curlx/internal/headers"
	"github.com/GriffinCanCode/curlx/pkg/transport"
	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var (
	ErrHandleClosed = errors.New("exchange handle closed")
	ErrHandleUsed   = errors.New("exchange handle already used")
)

// Transport opens resty-backed handles.
type Transport struct {
	logger *zap.Logger
}

// New creates a transport. A nil logger disables transport logging.
func New(logger *zap.Logger) *Transport {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transport{logger: logger.Named("exchange")}
}

// Open returns a fresh handle owning its own resty client.
func (t *Transport) Open() (transport.Handle, error) {
	client := resty.New().
		SetLogger(t.logger.Sugar()).
		SetCookieJar(nil)
	return &handle{logger: t.logger, client: client}, nil
}

type handle struct {
	logger *zap.Logger
	client *resty.Client

	mu     sync.Mutex
	used   bool
	closed bool
	rt     *http.Transport
	jar    *fileJar
	files  []*os.File
	body   io.ReadCloser
}

func (h *handle) Exchange(ctx context.Context, opts []transport.Option) (*transport.Result, error) {
	result := &transport.Result{Info: map[string]interface{}{}}

	h.mu.Lock()
	switch {
	case h.closed:
		h.mu.Unlock()
		return result, ErrHandleClosed
	case h.used:
		h.mu.Unlock()
		return result, ErrHandleUsed
	}
	h.used = true
	h.mu.Unlock()

	s, err := transport.Compile(opts)
	if err != nil {
		return result, err
	}
	result.Info[transport.InfoURL] = s.URL

	rt, err := newRoundTripper(s)
	if err != nil {
		return result, err
	}
	h.rt = rt
	h.client.SetTransport(rt).SetTimeout(s.Timeout)

	if s.CookieJar != "" {
		jar, err := openJar(s.CookieJar, s.CookieSession)
		if err != nil {
			return result, err
		}
		h.jar = jar
		h.client.SetCookieJar(jar)
	}

	hdrSink := &countingWriter{w: io.Discard}
	if s.HeaderSink != nil {
		hdrSink.w = s.HeaderSink
	}
	pr := newProbe(s.VerboseSink)

	explicit := make(map[string]string, len(s.Headers))
	for _, line := range s.Headers {
		if name, value, ok := headers.Parse(line); ok {
			explicit[name] = value
		}
	}

	h.client.SetRedirectPolicy(redirectPolicy(s, hdrSink, pr))
	h.client.SetPreRequestHook(func(_ *resty.Client, r *http.Request) error {
		if s.HasRawBody && !headers.Has(explicit, "Content-Type") {
			r.Header.Del("Content-Type")
		}
		if !headers.Has(explicit, "Accept") {
			r.Header.Set("Accept", "*/*")
		}
		if s.UserAgent == "" && !headers.Has(explicit, "User-Agent") {
			r.Header.Del("User-Agent")
		}
		pr.request(r)
		return nil
	})

	req := h.client.R().
		SetContext(pr.attach(ctx)).
		SetDoNotParseResponse(true)
	if s.UserAgent != "" {
		req.SetHeader("User-Agent", s.UserAgent)
	}
	if s.Compression && !headers.Has(explicit, "Accept-Encoding") {
		req.SetHeader("Accept-Encoding", acceptEncoding)
	}
	for name, value := range explicit {
		req.SetHeader(name, value)
	}

	switch {
	case s.HasRawBody:
		req.SetBody(s.RawBody)
	case s.HasForm:
		if err := h.attachForm(req, s.Form); err != nil {
			return result, err
		}
	}

	resp, execErr := req.Execute(s.Method, s.URL)

	var raw *http.Response
	if resp != nil {
		raw = resp.RawResponse
	}
	if raw != nil {
		h.mu.Lock()
		h.body = raw.Body
		h.mu.Unlock()

		result.StatusCode = raw.StatusCode
		writeHeaderBlock(hdrSink, raw)
		pr.response(raw)
	}

	var downloaded int64
	if execErr == nil && raw != nil {
		downloaded, execErr = copyBody(s, raw)
	}

	fillInfo(result.Info, s, raw, pr.snapshot(), hdrSink.n, downloaded)
	if execErr != nil {
		return result, execErr
	}
	return result, nil
}

// Close releases the connection, any opened upload files and writes the
// cookie jar back.
func (h *handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true

	var err error
	if h.body != nil {
		err = multierr.Append(err, h.body.Close())
	}
	for _, f := range h.files {
		err = multierr.Append(err, f.Close())
	}
	h.files = nil
	if h.jar != nil {
		err = multierr.Append(err, h.jar.Save())
	}
	if h.rt != nil {
		h.rt.CloseIdleConnections()
	}
	return err
}

func (h *handle) attachForm(req *resty.Request, fields []transport.Field) error {
	text := make(map[string]string)
	for _, f := range fields {
		if !f.IsFile() {
			text[f.Name] = f.Value
			continue
		}

		file, err := os.Open(f.Path)
		if err != nil {
			return fmt.Errorf("open form file %q: %w", f.Name, err)
		}
		h.mu.Lock()
		h.files = append(h.files, file)
		h.mu.Unlock()

		contentType := f.ContentType
		if contentType == "" {
			mt, err := mimetype.DetectFile(f.Path)
			if err != nil {
				return fmt.Errorf("detect content type of %q: %w", f.Path, err)
			}
			contentType = mt.String()
		}
		fileName := f.FileName
		if fileName == "" {
			fileName = filepath.Base(f.Path)
		}
		req.SetMultipartField(f.Name, fileName, contentType, file)
	}
	// Always multipart, even with text fields only.
	req.SetMultipartFormData(text)
	return nil
}

func redirectPolicy(s transport.Settings, hdrSink io.Writer, pr *probe) resty.RedirectPolicyFunc {
	return func(req *http.Request, via []*http.Request) error {
		if !s.Follow {
			return http.ErrUseLastResponse
		}
		if len(via) > s.MaxRedirects {
			return fmt.Errorf("%w: maximum (%d) redirects followed", transport.ErrTooManyRedirects, s.MaxRedirects)
		}
		if s.AutoReferer {
			req.Header.Set("Referer", via[len(via)-1].URL.String())
		} else {
			req.Header.Del("Referer")
		}
		if req.Response != nil {
			writeHeaderBlock(hdrSink, req.Response)
			pr.response(req.Response)
		}
		pr.redirected(req)
		return nil
	}
}

// writeHeaderBlock writes a response's status line and headers, terminated
// by a blank line. The block is rebuilt from resp.Header: names are
// canonical and Transfer-Encoding, which net/http consumes, is missing.
func writeHeaderBlock(w io.Writer, resp *http.Response) {
	fmt.Fprintf(w, "%s %s\r\n", resp.Proto, resp.Status)
	resp.Header.Write(w)
	io.WriteString(w, "\r\n")
}

func copyBody(s transport.Settings, resp *http.Response) (int64, error) {
	body := io.ReadCloser(io.NopCloser(resp.Body))
	if s.Compression {
		decoded, err := decodeBody(resp.Body, resp.Header.Get("Content-Encoding"))
		if err != nil {
			return 0, fmt.Errorf("decode %s body: %w", resp.Header.Get("Content-Encoding"), err)
		}
		body = decoded
	}
	defer body.Close()

	sink := s.BodySink
	if sink == nil {
		sink = io.Discard
	}
	n, err := io.Copy(sink, body)
	if err != nil {
		return n, fmt.Errorf("transfer body: %w", err)
	}
	return n, nil
}

func fillInfo(info map[string]interface{}, s transport.Settings, resp *http.Response, t timings, headerSize, downloaded int64) {
	info[transport.InfoHTTPCode] = 0
	info[transport.InfoHeaderSize] = headerSize
	info[transport.InfoSizeDownload] = downloaded
	info[transport.InfoSizeUpload] = int64(0)
	info[transport.InfoRedirectCount] = t.redirects
	info[transport.InfoRedirectURL] = ""
	info[transport.InfoContentType] = ""
	info[transport.InfoPrimaryIP] = ""
	info[transport.InfoPrimaryPort] = 0
	info[transport.InfoNameLookupTime] = t.nameLookup
	info[transport.InfoConnectTime] = t.connect
	info[transport.InfoAppConnectTime] = t.appConnect
	info[transport.InfoStartTransfer] = t.startTransfer
	info[transport.InfoTotalTime] = t.total
	info[transport.InfoConnectionReused] = t.reused
	info[transport.InfoHTTPVersion] = ""

	if t.remote != nil {
		if host, port, err := net.SplitHostPort(t.remote.String()); err == nil {
			info[transport.InfoPrimaryIP] = host
			if p, err := net.LookupPort("tcp", port); err == nil {
				info[transport.InfoPrimaryPort] = p
			}
		}
	}

	if resp == nil {
		return
	}
	info[transport.InfoHTTPCode] = resp.StatusCode
	info[transport.InfoContentType] = resp.Header.Get("Content-Type")
	info[transport.InfoHTTPVersion] = resp.Proto
	if resp.Request != nil {
		info[transport.InfoURL] = resp.Request.URL.String()
		if resp.Request.ContentLength > 0 {
			info[transport.InfoSizeUpload] = resp.Request.ContentLength
		}
	}
	if !s.Follow && resp.StatusCode >= 300 && resp.StatusCode < 400 {
		if loc, err := resp.Location(); err == nil {
			info[transport.InfoRedirectURL] = loc.String()
		}
	}
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
