package exchange

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"sort"
	"sync"
	"time"
)

// probe follows one exchange through net/http/httptrace. It records the
// timings reported as connection info and, when a verbose sink is set,
// writes curl style protocol lines into it.
type probe struct {
	mu sync.Mutex
	w  io.Writer

	start       time.Time
	dnsDone     time.Time
	connectDone time.Time
	tlsDone     time.Time
	gotConn     time.Time
	firstByte   time.Time

	remote    net.Addr
	reused    bool
	redirects int

	pending string
}

func newProbe(w io.Writer) *probe {
	return &probe{w: w, start: time.Now()}
}

func (p *probe) attach(ctx context.Context) context.Context {
	return httptrace.WithClientTrace(ctx, &httptrace.ClientTrace{
		GetConn: func(hostPort string) {
			p.printf("*   Trying %s...\n", hostPort)
		},
		DNSDone: func(info httptrace.DNSDoneInfo) {
			p.mark(&p.dnsDone)
			if info.Err != nil {
				p.printf("* Could not resolve host: %v\n", info.Err)
			}
		},
		ConnectDone: func(network, addr string, err error) {
			p.mark(&p.connectDone)
			if err != nil {
				p.printf("* connect to %s failed: %v\n", addr, err)
				return
			}
			p.printf("* Connected to %s (%s)\n", addr, network)
		},
		TLSHandshakeDone: func(state tls.ConnectionState, err error) {
			p.mark(&p.tlsDone)
			if err != nil {
				p.printf("* TLS handshake failed: %v\n", err)
				return
			}
			p.printf("* SSL connection using %s / %s\n",
				tls.VersionName(state.Version), tls.CipherSuiteName(state.CipherSuite))
			if len(state.PeerCertificates) > 0 {
				cert := state.PeerCertificates[0]
				p.printf("* Server certificate:\n*  subject: %s\n*  issuer: %s\n", cert.Subject, cert.Issuer)
			}
		},
		GotConn: func(info httptrace.GotConnInfo) {
			p.mu.Lock()
			p.gotConn = time.Now()
			p.reused = info.Reused
			if info.Conn != nil {
				p.remote = info.Conn.RemoteAddr()
			}
			p.mu.Unlock()
			if info.Reused {
				p.printf("* Re-using existing connection\n")
			}
		},
		WroteHeaderField: func(key string, values []string) {
			p.mu.Lock()
			defer p.mu.Unlock()
			p.flushRequestLine()
			for _, v := range values {
				p.writef("> %s: %s\n", key, v)
			}
		},
		WroteHeaders: func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			p.flushRequestLine()
			p.writef(">\n")
		},
		WroteRequest: func(info httptrace.WroteRequestInfo) {
			if info.Err != nil {
				p.printf("* write failed: %v\n", info.Err)
			}
		},
		GotFirstResponseByte: func() {
			p.mark(&p.firstByte)
		},
	})
}

// request queues the request line for r; it is written just before the
// first header field goes out.
func (p *probe) request(r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = fmt.Sprintf("> %s %s HTTP/1.1\n", r.Method, r.URL.RequestURI())
}

func (p *probe) redirected(to *http.Request) {
	p.mu.Lock()
	p.redirects++
	p.mu.Unlock()
	p.printf("* Issue another request to this URL: '%s'\n", to.URL)
	p.request(to)
}

func (p *probe) response(resp *http.Response) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.w == nil {
		return
	}
	p.writef("< %s %s\n", resp.Proto, resp.Status)
	keys := make([]string, 0, len(resp.Header))
	for k := range resp.Header {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range resp.Header[k] {
			p.writef("< %s: %s\n", k, v)
		}
	}
	p.writef("<\n")
}

func (p *probe) printf(format string, args ...interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writef(format, args...)
}

// writef requires p.mu.
func (p *probe) writef(format string, args ...interface{}) {
	if p.w == nil {
		return
	}
	fmt.Fprintf(p.w, format, args...)
}

// flushRequestLine requires p.mu.
func (p *probe) flushRequestLine() {
	if p.pending == "" {
		return
	}
	p.writef("%s", p.pending)
	p.pending = ""
}

func (p *probe) mark(t *time.Time) {
	p.mu.Lock()
	*t = time.Now()
	p.mu.Unlock()
}

type timings struct {
	nameLookup    float64
	connect       float64
	appConnect    float64
	startTransfer float64
	total         float64
	remote        net.Addr
	reused        bool
	redirects     int
}

func (p *probe) snapshot() timings {
	p.mu.Lock()
	defer p.mu.Unlock()
	since := func(t time.Time) float64 {
		if t.IsZero() {
			return 0
		}
		return t.Sub(p.start).Seconds()
	}
	return timings{
		nameLookup:    since(p.dnsDone),
		connect:       since(p.connectDone),
		appConnect:    since(p.tlsDone),
		startTransfer: since(p.firstByte),
		total:         time.Since(p.start).Seconds(),
		remote:        p.remote,
		reused:        p.reused,
		redirects:     p.redirects,
	}
}
