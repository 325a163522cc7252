package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserve(t *testing.T) {
	registry := prometheus.NewRegistry()
	c, err := New("bunny", registry)
	require.NoError(t, err)

	c.Observe(OpUpload, StatusCode(201), 20*time.Millisecond, 5)
	c.Observe(OpUpload, CodeOK, 10*time.Millisecond, 7)
	c.Observe(OpList, StatusCode(404), time.Millisecond, 0)
	c.Observe(OpDelete, StatusCode(0), time.Millisecond, 0)

	assert.Equal(t, float64(1), testutil.ToFloat64(c.requests.WithLabelValues(OpUpload, "201")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.requests.WithLabelValues(OpUpload, CodeOK)))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.requests.WithLabelValues(OpList, "404")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.requests.WithLabelValues(OpDelete, CodeTransportError)))
	assert.Equal(t, float64(12), testutil.ToFloat64(c.transferred.WithLabelValues(OpUpload)))
	assert.Equal(t, 1, testutil.CollectAndCount(c.transferred))
}

func TestNewReusesRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first, err := New("bunny", registry)
	require.NoError(t, err)
	second, err := New("bunny", registry)
	require.NoError(t, err)

	second.Observe(OpDownload, StatusCode(200), time.Millisecond, 3)
	assert.Equal(t, float64(1), testutil.ToFloat64(first.requests.WithLabelValues(OpDownload, "200")))
}

func TestNilRegistererAndNilCollector(t *testing.T) {
	c, err := New("bunny", nil)
	require.NoError(t, err)
	c.Observe(OpList, CodeOK, time.Millisecond, 0)

	var nilCollector *Collector
	assert.NotPanics(t, func() {
		nilCollector.Observe(OpList, CodeOK, time.Millisecond, 0)
	})
}
