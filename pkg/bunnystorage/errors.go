package bunnystorage

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusError carries the HTTP status of a failed storage request. Each
// operation wraps it in its own error type.
type StatusError struct {
	StatusCode int
	// Status is the reason phrase, e.g. "Not Found".
	Status string
	// Message is the service's explanation from a {"HttpCode","Message"}
	// reply body, if there was one.
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%d %s", e.StatusCode, e.Status)
}

// ListError reports a non-2xx response from the listing endpoint.
type ListError struct {
	StatusError
	// Body is the raw response body.
	Body string
}

func (e *ListError) Error() string {
	return fmt.Sprintf("bunnystorage: list files: %d %s: response: %s", e.StatusCode, e.Status, e.Body)
}

func (e *ListError) Unwrap() error { return &e.StatusError }

// UploadError reports a non-2xx response to an upload.
type UploadError struct {
	StatusError
}

func (e *UploadError) Error() string {
	return "bunnystorage: upload file: " + e.Status
}

func (e *UploadError) Unwrap() error { return &e.StatusError }

// DownloadError reports a non-2xx response to a download.
type DownloadError struct {
	StatusError
}

func (e *DownloadError) Error() string {
	return "bunnystorage: download file: " + e.Status
}

func (e *DownloadError) Unwrap() error { return &e.StatusError }

// DeleteError reports a non-2xx response to a delete.
type DeleteError struct {
	StatusError
}

func (e *DeleteError) Error() string {
	return "bunnystorage: delete file: " + e.Status
}

func (e *DeleteError) Unwrap() error { return &e.StatusError }

// IsNotFound reports whether err is a storage error carrying a 404 status.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

func statusError(code int, message string) StatusError {
	return StatusError{StatusCode: code, Status: http.StatusText(code), Message: message}
}
