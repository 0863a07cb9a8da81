package resilience

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/GriffinCanCode/curlx/pkg/curl"
	"github.com/GriffinCanCode/curlx/pkg/transport"
)

// scripted answers each call with the next outcome in turn.
type scripted struct {
	calls    atomic.Int32
	outcomes []func(req curl.Request) (*curl.Response, error)
}

func (s *scripted) Execute(_ context.Context, _ curl.Config, req curl.Request) (*curl.Response, error) {
	i := int(s.calls.Add(1)) - 1
	if i >= len(s.outcomes) {
		i = len(s.outcomes) - 1
	}
	return s.outcomes[i](req)
}

func status(code int) func(curl.Request) (*curl.Response, error) {
	return func(curl.Request) (*curl.Response, error) {
		return &curl.Response{StatusCode: code, Header: curl.Header{}, Body: curl.Buffered(fmt.Sprint(code))}, nil
	}
}

func refused(req curl.Request) (*curl.Response, error) {
	return nil, &curl.TransportExchangeError{URL: req.URL, Message: "connection refused", Err: errors.New("connection refused")}
}

func fastRetry(t *testing.T, retries int) curl.Middleware {
	return Retry(RetryConfig{
		MaxRetries: retries,
		MinWait:    time.Millisecond,
		MaxWait:    2 * time.Millisecond,
		Logger:     zaptest.NewLogger(t),
	})
}

func get(url string) curl.Request {
	return curl.Request{Method: curl.MethodGet, URL: url}
}

func TestRetryUntilSuccess(t *testing.T) {
	next := &scripted{outcomes: []func(curl.Request) (*curl.Response, error){
		refused, status(http.StatusServiceUnavailable), status(http.StatusOK),
	}}

	resp, err := fastRetry(t, 3)(next).Execute(context.Background(), curl.DefaultConfig(), get("http://example.com"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), next.calls.Load())
}

func TestRetryGivesUpAfterMax(t *testing.T) {
	next := &scripted{outcomes: []func(curl.Request) (*curl.Response, error){status(http.StatusBadGateway)}}

	resp, err := fastRetry(t, 2)(next).Execute(context.Background(), curl.DefaultConfig(), get("http://example.com"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, int32(3), next.calls.Load())
}

func TestRetrySkipsNonRetryable(t *testing.T) {
	tests := []struct {
		name    string
		outcome func(curl.Request) (*curl.Response, error)
	}{
		{"client error", status(http.StatusNotFound)},
		{"not implemented", status(http.StatusNotImplemented)},
		{"init error", func(curl.Request) (*curl.Response, error) {
			return nil, &curl.TransportInitError{Err: errors.New("no handle")}
		}},
		{"redirect cap", func(req curl.Request) (*curl.Response, error) {
			cause := fmt.Errorf("%w: maximum (10) redirects followed", transport.ErrTooManyRedirects)
			return nil, &curl.TransportExchangeError{URL: req.URL, Message: cause.Error(), Err: cause}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := &scripted{outcomes: []func(curl.Request) (*curl.Response, error){tt.outcome}}
			_, _ = fastRetry(t, 3)(next).Execute(context.Background(), curl.DefaultConfig(), get("http://example.com"))
			assert.Equal(t, int32(1), next.calls.Load())
		})
	}
}

func TestRetryNeverRepeatsDownloads(t *testing.T) {
	next := &scripted{outcomes: []func(curl.Request) (*curl.Response, error){refused}}

	req := get("http://example.com")
	req.Sink = &bytes.Buffer{}
	_, err := fastRetry(t, 3)(next).Execute(context.Background(), curl.DefaultConfig(), req)
	assert.ErrorIs(t, err, curl.ErrTransportExchange)
	assert.Equal(t, int32(1), next.calls.Load())
}

func TestRetryStopsOnCancel(t *testing.T) {
	next := &scripted{outcomes: []func(curl.Request) (*curl.Response, error){refused}}
	mw := Retry(RetryConfig{MaxRetries: 5, MinWait: time.Hour, MaxWait: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := mw(next).Execute(ctx, curl.DefaultConfig(), get("http://example.com"))
	assert.ErrorIs(t, err, curl.ErrTransportExchange)
	assert.Equal(t, int32(1), next.calls.Load())
}

func TestBreakerMiddlewareTrips(t *testing.T) {
	breakers := NewBreakers(Settings{
		Cooldown:   time.Minute,
		ShouldTrip: func(counts Counts) bool { return counts.ConsecutiveFailures >= 2 },
	})
	next := &scripted{outcomes: []func(curl.Request) (*curl.Response, error){
		status(http.StatusInternalServerError), refused,
	}}
	doer := Breaker(breakers)(next)

	resp, err := doer.Execute(context.Background(), curl.DefaultConfig(), get("http://flaky.example/a"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	_, err = doer.Execute(context.Background(), curl.DefaultConfig(), get("http://flaky.example/b"))
	require.Error(t, err)
	assert.Equal(t, StateOpen, breakers.For("flaky.example").State())

	_, err = doer.Execute(context.Background(), curl.DefaultConfig(), get("http://flaky.example/c"))
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.ErrorIs(t, err, curl.ErrTransportExchange)
	assert.Equal(t, int32(2), next.calls.Load())
}

func TestBreakerMiddlewareCounts4xxAsSuccess(t *testing.T) {
	breakers := NewBreakers(Settings{
		ShouldTrip: func(counts Counts) bool { return counts.ConsecutiveFailures >= 1 },
	})
	next := &scripted{outcomes: []func(curl.Request) (*curl.Response, error){status(http.StatusNotFound)}}

	_, err := Breaker(breakers)(next).Execute(context.Background(), curl.DefaultConfig(), get("http://example.com/missing"))
	require.NoError(t, err)
	assert.Equal(t, StateClosed, breakers.For("example.com").State())
	assert.Equal(t, uint32(1), breakers.For("example.com").Counts().TotalSuccesses)
}

func TestRateLimitWaits(t *testing.T) {
	next := &scripted{outcomes: []func(curl.Request) (*curl.Response, error){status(http.StatusOK)}}
	doer := RateLimit(20, 1)(next)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := doer.Execute(context.Background(), curl.DefaultConfig(), get("http://example.com"))
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestRateLimitHonoursContext(t *testing.T) {
	next := &scripted{outcomes: []func(curl.Request) (*curl.Response, error){status(http.StatusOK)}}
	doer := RateLimit(0.001, 1)(next)

	_, err := doer.Execute(context.Background(), curl.DefaultConfig(), get("http://example.com"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = doer.Execute(ctx, curl.DefaultConfig(), get("http://example.com"))
	require.Error(t, err)
	assert.Equal(t, int32(1), next.calls.Load())
}

func TestRateLimitUnlimited(t *testing.T) {
	next := &scripted{outcomes: []func(curl.Request) (*curl.Response, error){status(http.StatusOK)}}
	doer := RateLimit(0, 0)(next)

	for i := 0; i < 50; i++ {
		_, err := doer.Execute(context.Background(), curl.DefaultConfig(), get("http://example.com"))
		require.NoError(t, err)
	}
	assert.Equal(t, int32(50), next.calls.Load())
}
