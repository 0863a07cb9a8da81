// Package curl is a configurable HTTP client facade.
//
// A Client holds client-scoped settings (timeouts, TLS policy, cookie jar,
// proxies, compression, user agent, default headers, debug tracing) and
// issues one blocking exchange per call through an Executor:
//
//	c := curl.New().SetUserAgent("probe/1.0").SetDebug(true)
//	body, err := c.Get(ctx, "https://example.com/")
//	if err != nil {
//		var xerr *curl.TransportExchangeError
//		if errors.As(err, &xerr) { ... }
//	}
//	trace, _ := c.Trace()
//
// Only transport failures are errors. A 404 or 500 is a normal response;
// callers inspect StatusCode.
//
// The Executor can also be used directly with an explicit Config, which
// avoids the Client's mutable state entirely.
package curl
