package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/GriffinCanCode/curlx/pkg/curl"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	ExchangesTotal   *prometheus.CounterVec
	ExchangeErrors   *prometheus.CounterVec
	ExchangeDuration *prometheus.HistogramVec
	OpenResources    *prometheus.GaugeVec

	registry *prometheus.Registry

	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds current metric values for the CLI summary
type Snapshot struct {
	TotalExchanges int64
	TotalErrors    int64
	TotalDuration  float64 // sum of all exchange durations
	OpenResources  int64
}

var _ curl.Observer = (*Metrics)(nil)

// NewMetrics registers the client metrics on a private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		ExchangesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "curlx_exchanges_total",
				Help: "Total number of completed exchanges",
			},
			[]string{"method", "code"},
		),
		ExchangeErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "curlx_exchange_errors_total",
				Help: "Total number of failed exchanges",
			},
			[]string{"kind"},
		),
		ExchangeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "curlx_exchange_duration_seconds",
				Help:    "Exchange duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"method"},
		),
		OpenResources: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "curlx_open_resources",
				Help: "Number of transport handles and scratch buffers currently open",
			},
			[]string{"kind"},
		),
	}
}

// Registry exposes the metrics registry for /metrics and textfile export.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ExchangeDone records a finished exchange
func (m *Metrics) ExchangeDone(method curl.Method, status int, elapsed time.Duration, err error) {
	code := "0"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	m.ExchangesTotal.WithLabelValues(string(method), code).Inc()
	m.ExchangeDuration.WithLabelValues(string(method)).Observe(elapsed.Seconds())
	if err != nil {
		m.ExchangeErrors.WithLabelValues(curl.ErrorKind(err)).Inc()
	}

	m.mu.Lock()
	m.snapshot.TotalExchanges++
	m.snapshot.TotalDuration += elapsed.Seconds()
	if err != nil {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// ResourceOpened increments the open gauge for kind
func (m *Metrics) ResourceOpened(kind string) {
	m.OpenResources.WithLabelValues(kind).Inc()
	m.mu.Lock()
	m.snapshot.OpenResources++
	m.mu.Unlock()
}

// ResourceClosed decrements the open gauge for kind
func (m *Metrics) ResourceClosed(kind string) {
	m.OpenResources.WithLabelValues(kind).Dec()
	m.mu.Lock()
	m.snapshot.OpenResources--
	m.mu.Unlock()
}

// Snapshot returns the current counters
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// WriteTextfile dumps every metric in the text exposition format, for the
// node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
