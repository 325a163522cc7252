package bunnystorage_test

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/bunnystorage/storage_sdk_go/pkg/bunnystorage"
)

const (
	testKey  = "zone-password"
	testZone = "my-zone"
)

type recordedRequest struct {
	Method      string
	URI         string
	AccessKey   string
	ContentType string
	Body        string
}

type recorder struct {
	mu       sync.Mutex
	requests []recordedRequest
	status   int
	body     string
}

func (r *recorder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	body, _ := io.ReadAll(req.Body)
	r.mu.Lock()
	r.requests = append(r.requests, recordedRequest{
		Method:      req.Method,
		URI:         req.RequestURI,
		AccessKey:   req.Header.Get("AccessKey"),
		ContentType: req.Header.Get("Content-Type"),
		Body:        string(body),
	})
	status, respBody := r.status, r.body
	r.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = io.WriteString(w, respBody)
}

func (r *recorder) last(t *testing.T) recordedRequest {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.requests)
	return r.requests[len(r.requests)-1]
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

func newRecordingClient(t *testing.T, status int, body string, opts ...bunnystorage.Option) (*bunnystorage.Client, *recorder) {
	t.Helper()
	rec := &recorder{status: status, body: body}
	srv := httptest.NewServer(rec)
	t.Cleanup(srv.Close)

	opts = append([]bunnystorage.Option{bunnystorage.WithBaseURL(srv.URL + "/" + testZone)}, opts...)
	client, err := bunnystorage.New(bunnystorage.Config{AccessKey: testKey, StorageZone: testZone}, opts...)
	require.NoError(t, err)
	return client, rec
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := bunnystorage.New(bunnystorage.Config{StorageZone: testZone})
	assert.ErrorIs(t, err, bunnystorage.ErrInvalidArgument)

	_, err = bunnystorage.New(bunnystorage.Config{AccessKey: testKey, StorageZone: "  "})
	assert.ErrorIs(t, err, bunnystorage.ErrInvalidArgument)

	_, err = bunnystorage.New(bunnystorage.Config{AccessKey: testKey, StorageZone: testZone}, bunnystorage.WithBaseURL("not a url"))
	assert.Error(t, err)
}

func TestConfigBaseURL(t *testing.T) {
	cfg := bunnystorage.Config{AccessKey: testKey, StorageZone: testZone}
	assert.Equal(t, "https://storage.bunnycdn.com/my-zone", cfg.BaseURL())

	cfg.Region = "ny.storage.bunnycdn.com"
	assert.Equal(t, "https://ny.storage.bunnycdn.com/my-zone", cfg.BaseURL())
}

func TestListFilesStripsSlashes(t *testing.T) {
	client, rec := newRecordingClient(t, http.StatusOK, "[]")
	ctx := context.Background()

	_, err := client.ListFiles(ctx, "/foo/")
	require.NoError(t, err)
	first := rec.last(t)

	_, err = client.ListFiles(ctx, "foo")
	require.NoError(t, err)
	second := rec.last(t)

	assert.Equal(t, "/my-zone/foo/", first.URI)
	assert.Equal(t, first.URI, second.URI)
	assert.Equal(t, http.MethodGet, second.Method)
	assert.Equal(t, testKey, second.AccessKey)

	_, err = client.ListFiles(ctx, "//a/b//")
	require.NoError(t, err)
	assert.Equal(t, "/my-zone/a/b/", rec.last(t).URI)
}

func TestListFilesRoot(t *testing.T) {
	client, rec := newRecordingClient(t, http.StatusOK, "[]")

	files, err := client.ListFiles(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, files)
	assert.Equal(t, "/my-zone/", rec.last(t).URI)

	_, err = client.ListFiles(context.Background(), "/")
	require.NoError(t, err)
	assert.Equal(t, "/my-zone/", rec.last(t).URI)
}

func TestListFilesDecodesDescriptors(t *testing.T) {
	body := `[{
		"Guid": "c9b7b3c4-8c5e-4b6c-9d1b-5f4f0e3b6a11",
		"StorageZoneName": "my-zone",
		"Path": "/my-zone/f/",
		"ObjectName": "hello.txt",
		"Length": 2,
		"LastChanged": "2024-05-01T12:30:00.25",
		"IsDirectory": false,
		"ServerId": 42,
		"ArrayNumber": 3,
		"UserId": "user-1",
		"ContentType": "",
		"DateCreated": "2024-05-01T12:29:59",
		"LastRead": null,
		"Checksum": "8F434346648F6B96DF89DDA901C5176B10A6D83961DD3C1AC88B59B2DC327AA4",
		"ReplicatedZones": "DE"
	}]`
	client, _ := newRecordingClient(t, http.StatusOK, body)

	files, err := client.ListFiles(context.Background(), "f")
	require.NoError(t, err)
	require.Len(t, files, 1)

	f := files[0]
	assert.Equal(t, "c9b7b3c4-8c5e-4b6c-9d1b-5f4f0e3b6a11", f.GUID)
	assert.Equal(t, "my-zone", f.StorageZoneName)
	assert.Equal(t, "/my-zone/f/", f.Path)
	assert.Equal(t, "hello.txt", f.ObjectName)
	assert.Equal(t, int64(2), f.Length)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 30, 0, 250_000_000, time.UTC), f.LastChanged.Time)
	assert.False(t, f.IsDirectory)
	assert.Equal(t, 42, f.ServerID)
	assert.Equal(t, 3, f.ArrayNumber)
	assert.Equal(t, "user-1", f.UserID)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 29, 59, 0, time.UTC), f.DateCreated.Time)
	assert.True(t, f.LastRead.IsZero())
	assert.Equal(t, "8F434346648F6B96DF89DDA901C5176B10A6D83961DD3C1AC88B59B2DC327AA4", f.Checksum)
}

func TestListFilesRejectsMalformedBody(t *testing.T) {
	client, _ := newRecordingClient(t, http.StatusOK, `{"not":"an array"}`)
	_, err := client.ListFiles(context.Background(), "")
	assert.Error(t, err)

	var listErr *bunnystorage.ListError
	assert.False(t, errors.As(err, &listErr))
}

func TestUploadFromLocalPath(t *testing.T) {
	client, rec := newRecordingClient(t, http.StatusCreated, "")

	local := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(local, []byte("local payload"), 0o600))

	require.NoError(t, client.UploadFile(context.Background(), bunnystorage.FromLocalPath(local), "dir"))

	req := rec.last(t)
	assert.Equal(t, http.MethodPut, req.Method)
	assert.Equal(t, "/my-zone/dir/a.txt", req.URI)
	assert.Equal(t, "application/octet-stream", req.ContentType)
	assert.Equal(t, testKey, req.AccessKey)
	assert.Equal(t, "local payload", req.Body)
}

func TestUploadFromBytesWithoutRemotePath(t *testing.T) {
	client, rec := newRecordingClient(t, http.StatusCreated, "")

	require.NoError(t, client.UploadFile(context.Background(), bunnystorage.FromBytes([]byte("b"), "b.txt"), ""))
	assert.Equal(t, "/my-zone/b.txt", rec.last(t).URI)
}

func TestUploadFromBytesRequiresName(t *testing.T) {
	client, rec := newRecordingClient(t, http.StatusCreated, "")

	err := client.UploadFile(context.Background(), bunnystorage.FromBytes([]byte("b"), ""), "dir")
	assert.ErrorIs(t, err, bunnystorage.ErrInvalidArgument)

	err = client.UploadFile(context.Background(), nil, "dir")
	assert.ErrorIs(t, err, bunnystorage.ErrInvalidArgument)
	assert.Zero(t, rec.count())
}

func TestUploadMissingLocalFile(t *testing.T) {
	client, rec := newRecordingClient(t, http.StatusCreated, "")

	err := client.UploadFile(context.Background(), bunnystorage.FromLocalPath(filepath.Join(t.TempDir(), "missing.txt")), "")
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Zero(t, rec.count())
}

func TestUploadEscapesPath(t *testing.T) {
	client, rec := newRecordingClient(t, http.StatusCreated, "")

	require.NoError(t, client.UploadFile(context.Background(), bunnystorage.FromBytes(nil, "a b.txt"), "my dir"))
	assert.Equal(t, "/my-zone/my%20dir/a%20b.txt", rec.last(t).URI)
}

func TestDownloadAndDelete(t *testing.T) {
	client, rec := newRecordingClient(t, http.StatusOK, "content")
	ctx := context.Background()

	data, err := client.DownloadFile(ctx, "f/hello.txt")
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))
	req := rec.last(t)
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "/my-zone/f/hello.txt", req.URI)

	require.NoError(t, client.DeleteFile(ctx, "f/hello.txt"))
	req = rec.last(t)
	assert.Equal(t, http.MethodDelete, req.Method)
	assert.Equal(t, "/my-zone/f/hello.txt", req.URI)
	assert.Equal(t, testKey, req.AccessKey)
}

func TestNon2xxResponsesAreTyped(t *testing.T) {
	client, rec := newRecordingClient(t, http.StatusNotFound, `{"HttpCode":404,"Message":"Object Not Found"}`)
	ctx := context.Background()

	_, err := client.ListFiles(ctx, "missing")
	var listErr *bunnystorage.ListError
	require.ErrorAs(t, err, &listErr)
	assert.Equal(t, http.StatusNotFound, listErr.StatusCode)
	assert.Equal(t, "Not Found", listErr.Status)
	assert.Equal(t, `{"HttpCode":404,"Message":"Object Not Found"}`, listErr.Body)
	assert.Contains(t, listErr.Error(), "list files: 404 Not Found")

	err = client.UploadFile(ctx, bunnystorage.FromBytes([]byte("x"), "x.txt"), "")
	var uploadErr *bunnystorage.UploadError
	require.ErrorAs(t, err, &uploadErr)
	assert.Equal(t, http.StatusNotFound, uploadErr.StatusCode)
	assert.Equal(t, "bunnystorage: upload file: Not Found", uploadErr.Error())
	assert.Equal(t, "Object Not Found", uploadErr.Message)

	_, err = client.DownloadFile(ctx, "x.txt")
	var downloadErr *bunnystorage.DownloadError
	require.ErrorAs(t, err, &downloadErr)
	assert.Equal(t, "bunnystorage: download file: Not Found", downloadErr.Error())

	err = client.DeleteFile(ctx, "x.txt")
	var deleteErr *bunnystorage.DeleteError
	require.ErrorAs(t, err, &deleteErr)
	assert.Equal(t, "bunnystorage: delete file: Not Found", deleteErr.Error())

	for _, e := range []error{listErr, uploadErr, downloadErr, deleteErr} {
		assert.True(t, bunnystorage.IsNotFound(e))
		var se *bunnystorage.StatusError
		require.ErrorAs(t, e, &se)
		assert.Equal(t, http.StatusNotFound, se.StatusCode)
	}

	// One round trip per call.
	assert.Equal(t, 4, rec.count())
}

func TestServerErrorIsNotNotFound(t *testing.T) {
	client, rec := newRecordingClient(t, http.StatusServiceUnavailable, "busy")

	err := client.DeleteFile(context.Background(), "x")
	var deleteErr *bunnystorage.DeleteError
	require.ErrorAs(t, err, &deleteErr)
	assert.Equal(t, http.StatusServiceUnavailable, deleteErr.StatusCode)
	assert.Equal(t, "Service Unavailable", deleteErr.Status)
	assert.Empty(t, deleteErr.Message)
	assert.False(t, bunnystorage.IsNotFound(err))
	assert.Equal(t, 1, rec.count())
}

func TestTransportErrorsAreReturnedUnchanged(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	baseURL := srv.URL
	srv.Close()

	client, err := bunnystorage.New(bunnystorage.Config{AccessKey: testKey, StorageZone: testZone}, bunnystorage.WithBaseURL(baseURL))
	require.NoError(t, err)

	_, err = client.ListFiles(context.Background(), "")
	var urlErr *url.Error
	assert.ErrorAs(t, err, &urlErr)
	var se *bunnystorage.StatusError
	assert.False(t, errors.As(err, &se))
}

func TestContextCancellation(t *testing.T) {
	client, _ := newRecordingClient(t, http.StatusOK, "[]")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.ListFiles(ctx, "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWithHTTPClient(t *testing.T) {
	var used bool
	hc := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		used = true
		return http.DefaultTransport.RoundTrip(r)
	})}
	client, _ := newRecordingClient(t, http.StatusOK, "[]", bunnystorage.WithHTTPClient(hc))

	_, err := client.ListFiles(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, used)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestWithMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	client, _ := newRecordingClient(t, http.StatusNotFound, "", bunnystorage.WithMetrics(reg))
	ctx := context.Background()

	_, _ = client.ListFiles(ctx, "")
	_, _ = client.DownloadFile(ctx, "x")

	expected := `
# HELP bunnystorage_client_requests_total Total number of storage requests by operation and status code
# TYPE bunnystorage_client_requests_total counter
bunnystorage_client_requests_total{code="404",operation="download"} 1
bunnystorage_client_requests_total{code="404",operation="list"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "bunnystorage_client_requests_total"))
}

func TestWithLoggerDoesNotLogAccessKey(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	client, _ := newRecordingClient(t, http.StatusOK, "[]", bunnystorage.WithLogger(zap.New(core)))

	_, err := client.ListFiles(context.Background(), "f")
	require.NoError(t, err)

	entries := logs.FilterMessage("storage request").All()
	require.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	assert.Equal(t, int64(http.StatusOK), ctx["status"])
	for _, entry := range logs.All() {
		for _, v := range entry.ContextMap() {
			if s, ok := v.(string); ok {
				assert.NotContains(t, s, testKey)
			}
		}
	}
}

func TestNewWithBackend(t *testing.T) {
	backend := &stubBackend{files: []bunnystorage.File{{ObjectName: "x"}}}
	client := bunnystorage.NewWithBackend(backend)

	files, err := client.ListFiles(context.Background(), "/dir/")
	require.NoError(t, err)
	assert.Equal(t, "dir", backend.lastDir)
	assert.Equal(t, backend.files, files)

	require.NoError(t, client.UploadFile(context.Background(), bunnystorage.FromBytes([]byte("1"), "n"), "d"))
	assert.Equal(t, "d/n", backend.lastPut)
}

type stubBackend struct {
	files   []bunnystorage.File
	lastDir string
	lastPut string
}

func (s *stubBackend) List(_ context.Context, dir string) ([]bunnystorage.File, error) {
	s.lastDir = dir
	return s.files, nil
}

func (s *stubBackend) Put(_ context.Context, path string, _ []byte) error {
	s.lastPut = path
	return nil
}

func (s *stubBackend) Get(context.Context, string) ([]byte, error) { return nil, nil }

func (s *stubBackend) Delete(context.Context, string) error { return nil }
