// Package sandbox serves in-memory storage zones over the Bunny Edge Storage
// wire protocol so the SDK and CLI can run without network access.
package sandbox

import (
	"encoding/json"
	"errors"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/bunnystorage/storage_sdk_go/internal/bunnyapi"
	"github.com/bunnystorage/storage_sdk_go/internal/memzone"
	"github.com/bunnystorage/storage_sdk_go/internal/metrics"
)

const metricsNamespace = "bunny_sandbox"

// Config controls authentication and fault injection.
type Config struct {
	// AccessKey is required on every storage request when non-empty.
	AccessKey string
	// Latency is added before each storage request is handled.
	Latency time.Duration
	Fail    FailConfig
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRegistry records request metrics on reg and serves them on /metrics.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.registry = reg
	}
}

// WithRandom replaces the source used to decide injected failures.
func WithRandom(next func() float64) Option {
	return func(s *Server) {
		if next != nil {
			s.random = next
		}
	}
}

// Server routes storage requests to the zone named by the first path segment.
type Server struct {
	cfg      Config
	zones    map[string]*memzone.Zone
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *metrics.Collector
	random   func() float64
	router   *chi.Mux
}

// New builds a server over zones.
func New(cfg Config, zones []*memzone.Zone, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		zones:  make(map[string]*memzone.Zone, len(zones)),
		logger: zap.NewNop(),
		random: rand.Float64,
	}
	for _, z := range zones {
		s.zones[z.Name()] = z
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry != nil {
		col, err := metrics.New(metricsNamespace, s.registry)
		if err != nil {
			return nil, err
		}
		s.metrics = col
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if s.registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}
	r.Group(func(r chi.Router) {
		r.Use(s.observe, s.inject, s.authenticate)
		r.Get("/{zone}/*", s.handleGet)
		r.Put("/{zone}/*", s.handlePut)
		r.Delete("/{zone}/*", s.handleDelete)
	})
	s.router = r
	return s, nil
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		op := operation(r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		n := 0
		if status < 300 {
			switch op {
			case metrics.OpUpload:
				n = int(r.ContentLength)
			case metrics.OpDownload:
				n = ww.BytesWritten()
			}
		}
		s.metrics.Observe(op, metrics.StatusCode(status), time.Since(start), n)
		s.logger.Debug("sandbox request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("operation", op),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) inject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Latency > 0 {
			timer := time.NewTimer(s.cfg.Latency)
			select {
			case <-timer.C:
			case <-r.Context().Done():
				timer.Stop()
				return
			}
		}
		if s.cfg.Fail.Rate > 0 && s.random() < s.cfg.Fail.Rate {
			code := s.cfg.Fail.Code
			if code == 0 {
				code = http.StatusInternalServerError
			}
			writeStatus(w, code, "failure injected")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.AccessKey != "" && r.Header.Get("AccessKey") != s.cfg.AccessKey {
			writeStatus(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) zone(w http.ResponseWriter, r *http.Request) (*memzone.Zone, bool) {
	z, ok := s.zones[chi.URLParam(r, "zone")]
	if !ok {
		writeStatus(w, http.StatusNotFound, "Storage zone not found")
	}
	return z, ok
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	z, ok := s.zone(w, r)
	if !ok {
		return
	}
	path := chi.URLParam(r, "*")
	if path == "" || strings.HasSuffix(path, "/") {
		entries, err := z.List(r.Context(), path)
		if err != nil {
			writeZoneError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, entries)
		return
	}

	data, err := z.Get(r.Context(), path)
	if err != nil {
		writeZoneError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	z, ok := s.zone(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeStatus(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := z.Put(r.Context(), chi.URLParam(r, "*"), body, ""); err != nil {
		writeZoneError(w, err)
		return
	}
	writeStatus(w, http.StatusCreated, "File uploaded.")
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	z, ok := s.zone(w, r)
	if !ok {
		return
	}
	if err := z.Delete(r.Context(), chi.URLParam(r, "*")); err != nil {
		writeZoneError(w, err)
		return
	}
	writeStatus(w, http.StatusOK, "File deleted successfully.")
}

func operation(r *http.Request) string {
	switch r.Method {
	case http.MethodPut:
		return metrics.OpUpload
	case http.MethodDelete:
		return metrics.OpDelete
	default:
		if strings.HasSuffix(r.URL.Path, "/") {
			return metrics.OpList
		}
		return metrics.OpDownload
	}
}

func writeZoneError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, memzone.ErrNotFound):
		writeStatus(w, http.StatusNotFound, "Object Not Found")
	case errors.Is(err, memzone.ErrInvalidPath):
		writeStatus(w, http.StatusBadRequest, err.Error())
	default:
		writeStatus(w, http.StatusInternalServerError, err.Error())
	}
}

func writeStatus(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(bunnyapi.NewStatusReply(code, message))
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
