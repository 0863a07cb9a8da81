package curl

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/GriffinCanCode/curlx/internal/exchange"
	"github.com/GriffinCanCode/curlx/internal/headers"
	"github.com/GriffinCanCode/curlx/internal/scratch"
	"github.com/GriffinCanCode/curlx/internal/shared/id"
	"github.com/GriffinCanCode/curlx/internal/tracefmt"
	"github.com/GriffinCanCode/curlx/pkg/transport"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Doer executes one request under an explicit config. Executor is the
// base Doer; middleware wraps it.
type Doer interface {
	Execute(ctx context.Context, cfg Config, req Request) (*Response, error)
}

// DoerFunc adapts a function to Doer.
type DoerFunc func(ctx context.Context, cfg Config, req Request) (*Response, error)

func (f DoerFunc) Execute(ctx context.Context, cfg Config, req Request) (*Response, error) {
	return f(ctx, cfg, req)
}

// Middleware decorates a Doer, e.g. with retries or rate limiting.
type Middleware func(Doer) Doer

// Executor performs exactly one exchange per call and releases every
// handle and scratch buffer it acquired before returning.
type Executor struct {
	transport transport.Transport
	scratch   scratch.Allocator
	observer  Observer
	logger    *zap.Logger
}

// NewExecutor builds an executor. Without options it uses the resty
// transport and in-memory scratch buffers.
func NewExecutor(opts ...Option) *Executor {
	return newSettings(opts).executor()
}

// outcome is what survives resource release.
type outcome struct {
	status int
	info   Info
	header []byte
	trace  string
	err    error
}

// Execute runs req with cfg. Only transport failures are errors; any HTTP
// status is a normal Response.
func (e *Executor) Execute(ctx context.Context, cfg Config, req Request) (*Response, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	log := e.logger.With(
		zap.String("request_id", string(id.NewRequestID())),
		zap.String("method", string(req.Method)),
		zap.String("url", req.URL),
	)

	var body bytes.Buffer
	sink := req.Sink
	if sink == nil {
		sink = &body
	}

	out, err := e.run(ctx, cfg, req, sink, log)
	if err == nil && out.err != nil {
		err = &TransportExchangeError{
			URL:        req.URL,
			StatusCode: out.status,
			Message:    out.err.Error(),
			Info:       out.info,
			Trace:      out.trace,
			Err:        out.err,
		}
	}

	elapsed := time.Since(start)
	e.observer.ExchangeDone(req.Method, out.status, elapsed, err)
	if err != nil {
		log.Warn("exchange failed",
			zap.String("kind", ErrorKind(err)),
			zap.Int("status", out.status),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return nil, err
	}

	resp := &Response{
		StatusCode: out.status,
		Header:     Header(headers.Decode(out.header)),
		Info:       out.info,
		Trace:      out.trace,
	}
	if req.Sink != nil {
		resp.Body = Streamed{}
	} else {
		resp.Body = Buffered(body.Bytes())
	}

	log.Debug("exchange done",
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", elapsed))
	return resp, nil
}

// run acquires the handle and scratch buffers, performs the exchange and
// copies out everything needed afterwards. Every acquired resource is
// released by the single deferred block, on every path.
func (e *Executor) run(ctx context.Context, cfg Config, req Request, body io.Writer, log *zap.Logger) (out outcome, err error) {
	res := &resources{observer: e.observer}
	defer func() {
		if rerr := res.release(); rerr != nil {
			log.Warn("failed to release exchange resources", zap.Error(rerr))
		}
	}()

	handle, err := e.transport.Open()
	if err != nil {
		return out, &TransportInitError{Err: err}
	}
	res.track(ResourceHandle, handle)

	hdr, err := e.scratch.Allocate(scratch.KindHeaders)
	if err != nil {
		return out, &TransportInitError{Err: fmt.Errorf("header buffer: %w", err)}
	}
	res.track(ResourceHeaders, hdr)

	var verbose scratch.Buffer
	if cfg.Debug {
		verbose, err = e.scratch.Allocate(scratch.KindVerbose)
		if err != nil {
			return out, &TraceCaptureError{Err: fmt.Errorf("verbose buffer: %w", err)}
		}
		res.track(ResourceVerbose, verbose)
	}

	s := sinks{header: hdr, body: body}
	if verbose != nil {
		s.verbose = verbose
	}
	result, xerr := handle.Exchange(ctx, buildOptions(cfg, req, s))
	if result != nil {
		out.status = result.StatusCode
		out.info = Info(result.Info)
	}
	if out.info == nil {
		out.info = Info{}
	}

	if cfg.Debug {
		out.trace, err = captureTrace(verbose, out.info)
		if err != nil {
			return outcome{}, &TraceCaptureError{Err: err}
		}
	}

	out.header, err = hdr.ReadAll()
	if err != nil && xerr == nil {
		xerr = fmt.Errorf("read response headers: %w", err)
	}
	out.err = xerr
	return out, nil
}

func captureTrace(verbose scratch.Buffer, info Info) (string, error) {
	if err := verbose.Rewind(); err != nil {
		return "", fmt.Errorf("rewind verbose output: %w", err)
	}
	data, err := verbose.ReadAll()
	if err != nil {
		return "", fmt.Errorf("read verbose output: %w", err)
	}
	return tracefmt.Build(data, info)
}

type tracked struct {
	kind   string
	closer io.Closer
}

// resources releases in reverse acquisition order and keeps going past
// failures.
type resources struct {
	observer Observer
	items    []tracked
}

func (r *resources) track(kind string, c io.Closer) {
	r.items = append(r.items, tracked{kind: kind, closer: c})
	r.observer.ResourceOpened(kind)
}

func (r *resources) release() error {
	var err error
	for i := len(r.items) - 1; i >= 0; i-- {
		it := r.items[i]
		if cerr := it.closer.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("close %s: %w", it.kind, cerr))
		}
		r.observer.ResourceClosed(it.kind)
	}
	r.items = nil
	return err
}

// Option configures an Executor or a Client.
type Option func(*settings)

type settings struct {
	transport  transport.Transport
	scratch    scratch.Allocator
	observer   Observer
	logger     *zap.Logger
	config     *Config
	middleware []Middleware
}

func newSettings(opts []Option) *settings {
	s := &settings{}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.transport == nil {
		s.transport = exchange.New(s.logger)
	}
	if s.scratch == nil {
		s.scratch = scratch.Memory{}
	}
	if s.observer == nil {
		s.observer = nopObserver{}
	}
	return s
}

func (s *settings) executor() *Executor {
	return &Executor{
		transport: s.transport,
		scratch:   s.scratch,
		observer:  s.observer,
		logger:    s.logger.Named("curl"),
	}
}

// WithTransport replaces the resty transport.
func WithTransport(t transport.Transport) Option {
	return func(s *settings) { s.transport = t }
}

// WithLogger sets the logger for the executor and the default transport.
func WithLogger(l *zap.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithObserver reports exchanges and resources to o.
func WithObserver(o Observer) Option {
	return func(s *settings) { s.observer = o }
}

// WithScratchDir keeps scratch buffers in temporary files under dir
// instead of memory.
func WithScratchDir(dir string) Option {
	return func(s *settings) { s.scratch = scratch.TempFile{Dir: dir} }
}

// WithConfig sets a Client's initial config.
func WithConfig(cfg Config) Option {
	return func(s *settings) {
		c := cfg.Clone()
		s.config = &c
	}
}

// WithMiddleware wraps a Client's executor; the first middleware is the
// outermost.
func WithMiddleware(m ...Middleware) Option {
	return func(s *settings) { s.middleware = append(s.middleware, m...) }
}

func withScratch(a scratch.Allocator) Option {
	return func(s *settings) { s.scratch = a }
}
