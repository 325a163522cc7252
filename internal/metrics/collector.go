package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Operation labels shared by the client and the sandbox.
const (
	OpList     = "list"
	OpUpload   = "upload"
	OpDownload = "download"
	OpDelete   = "delete"
)

// Code labels that are not HTTP status codes.
const (
	// CodeOK labels successful requests whose exact status is not known.
	CodeOK = "ok"
	// CodeTransportError labels requests that never received an HTTP status.
	CodeTransportError = "error"
)

// Collector records storage request counts, latencies and payload sizes.
type Collector struct {
	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	transferred *prometheus.CounterVec
}

// New creates a Collector under namespace and registers it with reg. When the
// metrics are already registered on reg, the existing collectors are reused.
func New(namespace string, reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of storage requests by operation and status code",
		}, []string{"operation", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Storage request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		transferred: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transferred_bytes_total",
			Help:      "Payload bytes uploaded or downloaded",
		}, []string{"operation"}),
	}
	if reg == nil {
		return c, nil
	}

	var err error
	if c.requests, err = register(reg, c.requests); err != nil {
		return nil, err
	}
	if c.duration, err = register(reg, c.duration); err != nil {
		return nil, err
	}
	if c.transferred, err = register(reg, c.transferred); err != nil {
		return nil, err
	}
	return c, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, col T) (T, error) {
	if err := reg.Register(col); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return col, err
	}
	return col, nil
}

// StatusCode renders an HTTP status as a code label; non-positive values map
// to CodeTransportError.
func StatusCode(status int) string {
	if status <= 0 {
		return CodeTransportError
	}
	return strconv.Itoa(status)
}

// Observe records one request under the given code label.
func (c *Collector) Observe(op string, code string, elapsed time.Duration, bytes int) {
	if c == nil {
		return
	}
	c.requests.WithLabelValues(op, code).Inc()
	c.duration.WithLabelValues(op).Observe(elapsed.Seconds())
	if bytes > 0 {
		c.transferred.WithLabelValues(op).Add(float64(bytes))
	}
}
