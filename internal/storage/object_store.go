package storage

import (
	"context"
	"io"
)

type Object struct {
	Name string
	Size int64
}

// ObjectStore is a durable object store bound to a single bucket (or local
// directory). The upload pipeline receives one by dependency injection so
// tests can substitute a local implementation.
type ObjectStore interface {
	Bucket() string

	CreateBucket(ctx context.Context) error

	PutObject(ctx context.Context, key string, data io.Reader) error

	GetObject(ctx context.Context, key string) (io.ReadCloser, error)

	ObjectExists(ctx context.Context, key string) (bool, error)

	ListObjects(ctx context.Context, prefix string) ([]Object, error)

	DeleteObjects(ctx context.Context, prefix string) error

	// ObjectURL returns the externally reachable URL for a stored object.
	// This is what gets handed to the remote training service.
	ObjectURL(key string) string
}
