package curl

import (
	"io"
	"sort"
	"time"

	"github.com/GriffinCanCode/curlx/internal/headers"
	"github.com/GriffinCanCode/curlx/pkg/transport"
)

// sinks are the per-exchange writers the transport fills.
type sinks struct {
	header  io.Writer
	body    io.Writer
	verbose io.Writer
}

type derivation func(cfg Config, req Request) []transport.Option

// derivations are independent of each other; their order does not matter.
var derivations = []derivation{
	targetOptions,
	methodOptions,
	tlsOptions,
	cookieOptions,
	redirectOptions,
	proxyOptions,
	compressionOptions,
}

// buildOptions maps a config and a request to the transport option list.
// It has no side effects.
func buildOptions(cfg Config, req Request, s sinks) []transport.Option {
	var opts []transport.Option
	for _, derive := range derivations {
		opts = append(opts, derive(cfg, req)...)
	}
	return append(opts, sinkOptions(s)...)
}

func targetOptions(cfg Config, req Request) []transport.Option {
	return []transport.Option{
		transport.URL(req.URL),
		transport.ConnectTimeout(time.Duration(cfg.ConnectTimeout) * time.Second),
		transport.Timeout(time.Duration(cfg.Timeout) * time.Second),
		transport.UserAgent(cfg.UserAgent),
		transport.Headers(headers.Format(headers.Merge(cfg.Headers, req.Header))),
	}
}

func methodOptions(_ Config, req Request) []transport.Option {
	opts := []transport.Option{transport.Method(string(req.Method))}
	if !req.Method.hasBody() {
		return opts
	}
	switch p := req.Payload.(type) {
	case Raw:
		opts = append(opts, transport.RawBody([]byte(p)))
	case Form:
		opts = append(opts, transport.Form(formFields(p)))
	}
	return opts
}

func formFields(form Form) []transport.Field {
	names := make([]string, 0, len(form))
	for name := range form {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]transport.Field, 0, len(form))
	for _, name := range names {
		switch v := form[name].(type) {
		case Value:
			fields = append(fields, transport.Field{Name: name, Value: string(v)})
		case File:
			fields = append(fields, transport.Field{
				Name:        name,
				Path:        v.Path,
				FileName:    v.Name,
				ContentType: v.ContentType,
			})
		case nil:
			fields = append(fields, transport.Field{Name: name})
		}
	}
	return fields
}

func tlsOptions(cfg Config, _ Request) []transport.Option {
	if !cfg.Insecure {
		return nil
	}
	return []transport.Option{transport.Insecure(true)}
}

func cookieOptions(cfg Config, _ Request) []transport.Option {
	if cfg.CookieJar == "" {
		return nil
	}
	opts := []transport.Option{transport.CookieJar(cfg.CookieJar)}
	if cfg.PersistSessionCookies {
		opts = append(opts, transport.CookieSession(true))
	}
	return opts
}

func redirectOptions(cfg Config, _ Request) []transport.Option {
	if !cfg.FollowLocation {
		return nil
	}
	return []transport.Option{
		transport.FollowRedirects(true),
		transport.MaxRedirects(MaxRedirects),
		transport.AutoReferer(true),
	}
}

func proxyOptions(cfg Config, _ Request) []transport.Option {
	var opts []transport.Option
	if cfg.Proxy != "" {
		opts = append(opts, transport.Proxy(cfg.Proxy))
	}
	if cfg.PreProxy != "" {
		opts = append(opts, transport.PreProxy(cfg.PreProxy))
	}
	return opts
}

func compressionOptions(cfg Config, _ Request) []transport.Option {
	if !cfg.Compression {
		return nil
	}
	return []transport.Option{transport.Compression(true)}
}

func sinkOptions(s sinks) []transport.Option {
	var opts []transport.Option
	if s.header != nil {
		opts = append(opts, transport.HeaderSink(s.header))
	}
	if s.body != nil {
		opts = append(opts, transport.BodySink(s.body))
	}
	if s.verbose != nil {
		opts = append(opts, transport.VerboseSink(s.verbose))
	}
	return opts
}
