package bunnystorage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/bunnystorage/storage_sdk_go/internal/bunnyapi"
	"github.com/bunnystorage/storage_sdk_go/internal/httpx"
	"github.com/bunnystorage/storage_sdk_go/internal/metrics"
)

const metricsNamespace = "bunnystorage_client"

// Option configures a Client.
type Option func(*options)

type options struct {
	httpClient *http.Client
	baseURL    string
	logger     *zap.Logger
	registerer prometheus.Registerer
}

// WithHTTPClient sets the HTTP client used for requests. The default client
// has no timeout; supply one here to bound requests.
func WithHTTPClient(h *http.Client) Option {
	return func(o *options) {
		o.httpClient = h
	}
}

// WithBaseURL replaces the https://{region}/{zone} endpoint, e.g. to target a
// local sandbox.
func WithBaseURL(u string) Option {
	return func(o *options) {
		o.baseURL = u
	}
}

// WithLogger enables debug logging of every request.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMetrics registers request metrics on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// Backend performs storage operations on already normalised paths.
type Backend interface {
	// List returns the entries of dir. dir has no leading or trailing slash;
	// the empty string is the zone root.
	List(ctx context.Context, dir string) ([]File, error)
	Put(ctx context.Context, path string, data []byte) error
	Get(ctx context.Context, path string) ([]byte, error)
	Delete(ctx context.Context, path string) error
}

// Client talks to a single storage zone. It is safe for concurrent use.
type Client struct {
	backend Backend
	logger  *zap.Logger
	metrics *metrics.Collector
}

// New constructs an HTTP-backed client for cfg.
func New(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	o := buildOptions(opts)

	baseURL := cfg.BaseURL()
	if strings.TrimSpace(o.baseURL) != "" {
		baseURL = o.baseURL
	}
	httpOpts := []httpx.Option{
		httpx.WithHeaders(http.Header{"AccessKey": {cfg.AccessKey}}),
		httpx.WithLogger(o.logger),
	}
	if o.httpClient != nil {
		httpOpts = append(httpOpts, httpx.WithHTTPClient(o.httpClient))
	}
	cl, err := httpx.NewClient(baseURL, httpOpts...)
	if err != nil {
		return nil, fmt.Errorf("bunnystorage: %w", err)
	}
	return newClient(&httpBackend{client: cl}, o)
}

// NewWithBackend allows callers to provide a custom backend (e.g., mocks).
func NewWithBackend(b Backend) *Client {
	return &Client{backend: b, logger: zap.NewNop()}
}

func buildOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return o
}

func newClient(b Backend, o options) (*Client, error) {
	c := &Client{backend: b, logger: o.logger}
	if o.registerer != nil {
		col, err := metrics.New(metricsNamespace, o.registerer)
		if err != nil {
			return nil, fmt.Errorf("bunnystorage: register metrics: %w", err)
		}
		c.metrics = col
	}
	return c, nil
}

// ListFiles returns the entries of the directory at path, exactly as reported
// by the service. Leading and trailing slashes in path are ignored; "" lists
// the zone root. A non-2xx response yields a *ListError.
func (c *Client) ListFiles(ctx context.Context, path string) ([]File, error) {
	if c == nil || c.backend == nil {
		return nil, errors.New("bunnystorage: client is nil")
	}
	dir := strings.Trim(path, "/")

	start := time.Now()
	files, err := c.backend.List(ctx, dir)
	c.observe(metrics.OpList, start, 0, err)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("listed files", zap.String("path", dir), zap.Int("count", len(files)))
	return files, nil
}

// UploadFile stores the payload of src at remotePath/name, where name is the
// base name of the local file or the name given to FromBytes. An empty
// remotePath uploads to the zone root. A non-2xx response yields an
// *UploadError.
func (c *Client) UploadFile(ctx context.Context, src Source, remotePath string) error {
	if c == nil || c.backend == nil {
		return errors.New("bunnystorage: client is nil")
	}
	if src == nil {
		return fmt.Errorf("%w: upload source is nil", ErrInvalidArgument)
	}
	data, name, err := src.load()
	if err != nil {
		return err
	}
	fullPath := name
	if remotePath != "" {
		fullPath = remotePath + "/" + name
	}

	start := time.Now()
	err = c.backend.Put(ctx, fullPath, data)
	c.observe(metrics.OpUpload, start, len(data), err)
	if err != nil {
		return err
	}
	c.logger.Debug("uploaded file", zap.String("path", fullPath), zap.Int("bytes", len(data)))
	return nil
}

// DownloadFile returns the full content of the object at path. A non-2xx
// response yields a *DownloadError.
func (c *Client) DownloadFile(ctx context.Context, path string) ([]byte, error) {
	if c == nil || c.backend == nil {
		return nil, errors.New("bunnystorage: client is nil")
	}

	start := time.Now()
	data, err := c.backend.Get(ctx, path)
	c.observe(metrics.OpDownload, start, len(data), err)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// DeleteFile removes the object or directory at path. A non-2xx response
// yields a *DeleteError.
func (c *Client) DeleteFile(ctx context.Context, path string) error {
	if c == nil || c.backend == nil {
		return errors.New("bunnystorage: client is nil")
	}

	start := time.Now()
	err := c.backend.Delete(ctx, path)
	c.observe(metrics.OpDelete, start, 0, err)
	return err
}

func (c *Client) observe(op string, start time.Time, n int, err error) {
	if c.metrics == nil {
		return
	}
	code := metrics.CodeOK
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) {
			code = metrics.StatusCode(se.StatusCode)
		} else {
			code = metrics.CodeTransportError
		}
		n = 0
	}
	c.metrics.Observe(op, code, time.Since(start), n)
}

type httpBackend struct {
	client *httpx.Client
}

func (b *httpBackend) List(ctx context.Context, dir string) ([]File, error) {
	path := ""
	if dir != "" {
		path = dir + "/"
	}
	resp, err := b.client.Do(ctx, &httpx.Request{Method: http.MethodGet, Path: path})
	if err != nil {
		var httpErr *httpx.HTTPError
		if errors.As(err, &httpErr) {
			se, _ := asStatusError(httpErr)
			return nil, &ListError{StatusError: se, Body: string(httpErr.Body)}
		}
		return nil, err
	}
	body, err := httpx.ReadAllAndClose(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("bunnystorage: read listing: %w", err)
	}
	var files []File
	if err := json.Unmarshal(body, &files); err != nil {
		return nil, fmt.Errorf("bunnystorage: decode listing: %w", err)
	}
	return files, nil
}

func (b *httpBackend) Put(ctx context.Context, path string, data []byte) error {
	resp, err := b.client.Do(ctx, &httpx.Request{
		Method: http.MethodPut,
		Path:   path,
		Header: http.Header{"Content-Type": {"application/octet-stream"}},
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		if se, ok := asStatusError(err); ok {
			return &UploadError{StatusError: se}
		}
		return err
	}
	_, err = httpx.ReadAllAndClose(resp.Body)
	return err
}

func (b *httpBackend) Get(ctx context.Context, path string) ([]byte, error) {
	resp, err := b.client.Do(ctx, &httpx.Request{Method: http.MethodGet, Path: path})
	if err != nil {
		if se, ok := asStatusError(err); ok {
			return nil, &DownloadError{StatusError: se}
		}
		return nil, err
	}
	data, err := httpx.ReadAllAndClose(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("bunnystorage: read download: %w", err)
	}
	return data, nil
}

func (b *httpBackend) Delete(ctx context.Context, path string) error {
	resp, err := b.client.Do(ctx, &httpx.Request{Method: http.MethodDelete, Path: path})
	if err != nil {
		if se, ok := asStatusError(err); ok {
			return &DeleteError{StatusError: se}
		}
		return err
	}
	_, err = httpx.ReadAllAndClose(resp.Body)
	return err
}

func asStatusError(err error) (StatusError, bool) {
	var httpErr *httpx.HTTPError
	if !errors.As(err, &httpErr) {
		return StatusError{}, false
	}
	se := StatusError{StatusCode: httpErr.StatusCode, Status: httpErr.Status}
	if reply, ok := bunnyapi.ParseStatusReply(httpErr.Body); ok {
		se.Message = reply.Message
	}
	return se, true
}
