package storage

import (
	"context"
	"errors"
	"io"
)

var ErrInvalidKey = errors.New("storage: invalid object key")

// Store persists blobs under slash-separated keys. Put overwrites an existing object.
type Store interface {
	Put(ctx context.Context, key, contentType string, r io.Reader) (size int64, err error)
	// URL returns an address an external service can fetch the object from.
	URL(ctx context.Context, key string) (string, error)
	Close() error
}
