package monitoring

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/curlx/pkg/curl"
)

func TestExchangeDone(t *testing.T) {
	m := NewMetrics()

	m.ExchangeDone(curl.MethodGet, 200, 10*time.Millisecond, nil)
	m.ExchangeDone(curl.MethodGet, 200, 20*time.Millisecond, nil)
	m.ExchangeDone(curl.MethodPost, 0, time.Millisecond, &curl.TransportExchangeError{Err: errors.New("refused")})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ExchangesTotal.WithLabelValues("GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExchangesTotal.WithLabelValues("POST", "0")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExchangeErrors.WithLabelValues("exchange")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.ExchangeDuration))

	snap := m.Snapshot()
	assert.Equal(t, int64(3), snap.TotalExchanges)
	assert.Equal(t, int64(1), snap.TotalErrors)
	assert.InDelta(t, 0.031, snap.TotalDuration, 1e-9)
}

func TestResourceGauge(t *testing.T) {
	m := NewMetrics()

	m.ResourceOpened(curl.ResourceHandle)
	m.ResourceOpened(curl.ResourceHeaders)
	assert.Equal(t, int64(2), m.Snapshot().OpenResources)

	m.ResourceClosed(curl.ResourceHeaders)
	m.ResourceClosed(curl.ResourceHandle)

	assert.Equal(t, 0.0, testutil.ToFloat64(m.OpenResources.WithLabelValues(curl.ResourceHandle)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.OpenResources.WithLabelValues(curl.ResourceHeaders)))
	assert.Equal(t, int64(0), m.Snapshot().OpenResources)
}

func TestRegistriesAreIndependent(t *testing.T) {
	a, b := NewMetrics(), NewMetrics()
	a.ExchangeDone(curl.MethodGet, 204, time.Millisecond, nil)

	assert.Equal(t, 0.0, testutil.ToFloat64(b.ExchangesTotal.WithLabelValues("GET", "204")))
}

func TestWriteTextfile(t *testing.T) {
	m := NewMetrics()
	m.ExchangeDone(curl.MethodDelete, 404, time.Millisecond, nil)

	path := filepath.Join(t.TempDir(), "curlx.prom")
	require.NoError(t, m.WriteTextfile(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(raw), `curlx_exchanges_total{code="404",method="DELETE"} 1`))
}
