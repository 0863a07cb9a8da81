package curl

import "github.com/GriffinCanCode/curlx/internal/headers"

// Header maps response header names to values. Names are in net/http's
// canonical form rather than the server's spelling, and Transfer-Encoding
// is not reported.
type Header map[string]string

// Get looks name up case-insensitively.
func (h Header) Get(name string) (string, bool) {
	return headers.Lookup(h, name)
}

// Info is the transport's metadata about an exchange, keyed like
// curl_getinfo (url, http_code, total_time, ...).
type Info map[string]interface{}

// Body is either Buffered or Streamed.
type Body interface {
	isBody()
}

// Buffered holds the whole body.
type Buffered []byte

func (Buffered) isBody() {}

// Streamed marks a body written to the request's Sink.
type Streamed struct{}

func (Streamed) isBody() {}

// Response is the result of one exchange. It is not modified after it is
// returned.
type Response struct {
	StatusCode int
	Header     Header
	Body       Body
	Info       Info
	// Trace is set only when debug was enabled for the exchange.
	Trace string
}

// Bytes returns the buffered body, or nil when it was streamed.
func (r *Response) Bytes() []byte {
	if b, ok := r.Body.(Buffered); ok {
		return b
	}
	return nil
}
