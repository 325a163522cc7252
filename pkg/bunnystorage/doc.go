// Package bunnystorage exposes a client for the Bunny.net Edge Storage API.
// It covers the four file operations of a storage zone (list, upload,
// download, delete) and maps each non-2xx response to an operation-specific
// error type. Requests are made exactly once; callers impose timeouts through
// the context or a custom http.Client.
//
// NewMock and NewFromEnv provide an in-memory zone with the same contract for
// local development and tests.
package bunnystorage
