// Package resilience provides curl.Middleware that make exchanges survive
// flaky upstreams: per-host circuit breaking, retries with backoff, and
// client side rate limiting.
//
// Compose them with curl.WithMiddleware; the first middleware listed is
// the outermost:
//
//	curl.New(curl.WithMiddleware(
//		resilience.Retry(resilience.RetryConfig{MaxRetries: 3}),
//		resilience.Breaker(resilience.NewBreakers(resilience.Settings{})),
//		resilience.RateLimit(10, 10),
//	))
package resilience
