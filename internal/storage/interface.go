package storage

import (
	"context"
	"io"
)

// ObjectStore defines the interface for object storage operations
type ObjectStore interface {
	// EnsureBucket makes sure the backing bucket exists
	EnsureBucket(ctx context.Context) error

	// Put uploads an object to storage
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// Get downloads an object from storage
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete deletes an object from storage
	Delete(ctx context.Context, key string) error

	// Exists checks if an object exists
	Exists(ctx context.Context, key string) (bool, error)
}
