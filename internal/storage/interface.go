package storage

import (
	"context"
	"io"
)

// ObjectStorage is the blob store used for corpus exports and ingest manifests.
// Keys are relative to the configured prefix.
type ObjectStorage interface {
	// EnsureBucket creates the bucket when the backend allows it.
	EnsureBucket(ctx context.Context) error

	// Upload writes an object.
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// Download opens an object for reading. The caller closes it.
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// GetURL returns the public URL of an object.
	GetURL(key string) string

	// Delete removes an object.
	Delete(ctx context.Context, key string) error

	// Exists reports whether an object is present.
	Exists(ctx context.Context, key string) (bool, error)
}
