// Package monitoring exports client exchanges as Prometheus metrics.
//
// Metrics satisfies curl.Observer, so an executor built with
// curl.WithObserver(metrics) counts every exchange and tracks the
// handles and scratch buffers it holds open.
package monitoring
