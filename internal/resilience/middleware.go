package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/curlx/pkg/curl"
	"github.com/GriffinCanCode/curlx/pkg/transport"
)

// Breaker rejects exchanges to hosts whose circuit is open. A transport
// failure or a 5xx status counts as a failure.
func Breaker(breakers *Breakers) curl.Middleware {
	return func(next curl.Doer) curl.Doer {
		return curl.DoerFunc(func(ctx context.Context, cfg curl.Config, req curl.Request) (*curl.Response, error) {
			circuit := breakers.For(hostOf(req.URL))
			done, err := circuit.Allow()
			if err != nil {
				return nil, &curl.TransportExchangeError{
					URL:     req.URL,
					Message: err.Error(),
					Err:     err,
				}
			}

			resp, err := next.Execute(ctx, cfg, req)
			done(!failed(resp, err))
			return resp, err
		})
	}
}

func failed(resp *curl.Response, err error) bool {
	if err != nil {
		return errors.Is(err, curl.ErrTransportExchange)
	}
	return resp.StatusCode >= http.StatusInternalServerError
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Host
}

// RetryConfig defines retry behavior
type RetryConfig struct {
	MaxRetries int
	MinWait    time.Duration
	MaxWait    time.Duration
	Logger     *zap.Logger
}

// Retry re-executes exchanges that failed at the transport or answered
// 429 or 5xx, waiting between attempts with capped exponential backoff.
// Downloads are never retried: bytes already written to the sink cannot be
// taken back.
func Retry(rc RetryConfig) curl.Middleware {
	if rc.MinWait <= 0 {
		rc.MinWait = time.Second
	}
	if rc.MaxWait <= 0 {
		rc.MaxWait = 30 * time.Second
	}
	if rc.Logger == nil {
		rc.Logger = zap.NewNop()
	}

	return func(next curl.Doer) curl.Doer {
		return curl.DoerFunc(func(ctx context.Context, cfg curl.Config, req curl.Request) (*curl.Response, error) {
			for attempt := 0; ; attempt++ {
				resp, err := next.Execute(ctx, cfg, req)
				if req.Sink != nil || attempt >= rc.MaxRetries {
					return resp, err
				}

				httpResp, cause, retryable := classify(resp, err)
				if !retryable {
					return resp, err
				}
				// The policy also returns an error for retryable 5xx answers.
				if retry, _ := retryablehttp.DefaultRetryPolicy(ctx, httpResp, cause); !retry {
					return resp, err
				}

				wait := retryablehttp.DefaultBackoff(rc.MinWait, rc.MaxWait, attempt, httpResp)
				rc.Logger.Info("retrying exchange",
					zap.String("url", req.URL),
					zap.Int("attempt", attempt+1),
					zap.Duration("wait", wait),
					zap.Error(err))

				timer := time.NewTimer(wait)
				select {
				case <-ctx.Done():
					timer.Stop()
					return resp, err
				case <-timer.C:
				}
			}
		})
	}
}

// classify turns an exchange outcome into what the retry policy expects.
// Only transport failures and completed responses are candidates; invalid
// requests and local capture errors would fail the same way again.
func classify(resp *curl.Response, err error) (*http.Response, error, bool) {
	if err != nil {
		var xerr *curl.TransportExchangeError
		if !errors.As(err, &xerr) || errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrTooManyRequests) ||
			errors.Is(err, transport.ErrTooManyRedirects) {
			return nil, nil, false
		}
		cause := xerr.Err
		if cause == nil {
			cause = xerr
		}
		return nil, cause, true
	}

	header := make(http.Header, len(resp.Header))
	for k, v := range resp.Header {
		header.Set(k, v)
	}
	return &http.Response{StatusCode: resp.StatusCode, Header: header}, nil, true
}

// RateLimit spaces exchanges to at most rps per second with the given
// burst. Waiting honours ctx.
func RateLimit(rps float64, burst int) curl.Middleware {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(limit, burst)

	return func(next curl.Doer) curl.Doer {
		return curl.DoerFunc(func(ctx context.Context, cfg curl.Config, req curl.Request) (*curl.Response, error) {
			if err := limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limit error: %w", err)
			}
			return next.Execute(ctx, cfg, req)
		})
	}
}
