package bunnystorage

import (
	"context"
	"errors"
	"net/http"

	"github.com/bunnystorage/storage_sdk_go/internal/bunnyapi"
	"github.com/bunnystorage/storage_sdk_go/internal/memzone"
)

// NewMock returns a client backed by an empty in-memory storage zone. The zone
// follows the service's observable behaviour: uploads create parent
// directories, deleting a directory removes its contents, and missing paths
// produce the same 404 errors as the HTTP client.
func NewMock(zone string, opts ...Option) (*Client, error) {
	return newClient(&memBackend{zone: memzone.New(zone)}, buildOptions(opts))
}

type memBackend struct {
	zone *memzone.Zone
}

func (b *memBackend) List(ctx context.Context, dir string) ([]File, error) {
	entries, err := b.zone.List(ctx, dir)
	if err != nil {
		if code, msg, ok := memStatus(err); ok {
			return nil, &ListError{StatusError: statusError(code, msg), Body: string(bunnyapi.NewStatusReply(code, msg))}
		}
		return nil, err
	}
	files := make([]File, 0, len(entries))
	for _, e := range entries {
		files = append(files, fileFromEntry(e))
	}
	return files, nil
}

func (b *memBackend) Put(ctx context.Context, path string, data []byte) error {
	if _, err := b.zone.Put(ctx, path, data, ""); err != nil {
		if code, msg, ok := memStatus(err); ok {
			return &UploadError{StatusError: statusError(code, msg)}
		}
		return err
	}
	return nil
}

func (b *memBackend) Get(ctx context.Context, path string) ([]byte, error) {
	data, err := b.zone.Get(ctx, path)
	if err != nil {
		if code, msg, ok := memStatus(err); ok {
			return nil, &DownloadError{StatusError: statusError(code, msg)}
		}
		return nil, err
	}
	return data, nil
}

func (b *memBackend) Delete(ctx context.Context, path string) error {
	if err := b.zone.Delete(ctx, path); err != nil {
		if code, msg, ok := memStatus(err); ok {
			return &DeleteError{StatusError: statusError(code, msg)}
		}
		return err
	}
	return nil
}

// memStatus maps zone errors to the status reply the service answers with.
func memStatus(err error) (int, string, bool) {
	switch {
	case errors.Is(err, memzone.ErrNotFound):
		return http.StatusNotFound, "Object Not Found", true
	case errors.Is(err, memzone.ErrInvalidPath):
		return http.StatusBadRequest, err.Error(), true
	default:
		return 0, "", false
	}
}

func fileFromEntry(e memzone.Entry) File {
	return File{
		GUID:            e.GUID,
		StorageZoneName: e.StorageZoneName,
		Path:            e.Path,
		ObjectName:      e.ObjectName,
		Length:          e.Length,
		LastChanged:     Timestamp{e.LastChanged},
		IsDirectory:     e.IsDirectory,
		ServerID:        e.ServerID,
		ArrayNumber:     e.ArrayNumber,
		UserID:          e.UserID,
		ContentType:     e.ContentType,
		DateCreated:     Timestamp{e.DateCreated},
		LastRead:        Timestamp{e.LastRead},
		Checksum:        e.Checksum,
	}
}
