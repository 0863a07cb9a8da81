package curl

import (
	"errors"
	"fmt"
)

var (
	ErrTransportInit     = errors.New("transport init failed")
	ErrTransportExchange = errors.New("transport exchange failed")
	ErrSinkOpen          = errors.New("cannot open output sink")
	ErrTraceCapture      = errors.New("trace capture failed")
	ErrInvalidRequest    = errors.New("invalid request")
)

// TransportInitError means no transport handle could be acquired.
type TransportInitError struct {
	Err error
}

func (e *TransportInitError) Error() string {
	return fmt.Sprintf("%v: %v", ErrTransportInit, e.Err)
}

func (e *TransportInitError) Unwrap() error        { return e.Err }
func (e *TransportInitError) Is(target error) bool { return target == ErrTransportInit }

// TransportExchangeError means the transport reported a failure: DNS,
// refused connection, timeout, TLS, too many redirects. Status, Info and
// Trace hold what was observed before the failure.
type TransportExchangeError struct {
	URL        string
	StatusCode int
	Message    string
	Info       Info
	Trace      string
	Err        error
}

func (e *TransportExchangeError) Error() string {
	return fmt.Sprintf("connection error to %s (status %d): %s", e.URL, e.StatusCode, e.Message)
}

func (e *TransportExchangeError) Unwrap() error        { return e.Err }
func (e *TransportExchangeError) Is(target error) bool { return target == ErrTransportExchange }

// SinkOpenError means the download destination could not be opened.
type SinkOpenError struct {
	Path string
	Err  error
}

func (e *SinkOpenError) Error() string {
	return fmt.Sprintf("%v %s: %v", ErrSinkOpen, e.Path, e.Err)
}

func (e *SinkOpenError) Unwrap() error        { return e.Err }
func (e *SinkOpenError) Is(target error) bool { return target == ErrSinkOpen }

// TraceCaptureError means debug output could not be read back or
// rendered. The exchange's results are discarded.
type TraceCaptureError struct {
	Err error
}

func (e *TraceCaptureError) Error() string {
	return fmt.Sprintf("%v: %v", ErrTraceCapture, e.Err)
}

func (e *TraceCaptureError) Unwrap() error        { return e.Err }
func (e *TraceCaptureError) Is(target error) bool { return target == ErrTraceCapture }

// ErrorKind names the class of err for logs and metrics.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTransportInit):
		return "init"
	case errors.Is(err, ErrTransportExchange):
		return "exchange"
	case errors.Is(err, ErrSinkOpen):
		return "sink"
	case errors.Is(err, ErrTraceCapture):
		return "trace"
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrInvalidConfig):
		return "invalid"
	default:
		return "other"
	}
}
