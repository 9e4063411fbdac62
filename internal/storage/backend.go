// Package storage defines the Backend interface for the client's durable
// slots and a factory for the supported backends.
package storage

import (
	"context"
	"io/fs"
)

// ErrNotFound is matched (via errors.Is) by the error Get returns for a key
// that was never written or was deleted. Backends wrap fs.ErrNotExist.
var ErrNotFound = fs.ErrNotExist

// Backend stores small named blobs. Put replaces the whole value.
type Backend interface {
	// Get returns the value stored at key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put replaces the value at key.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Type returns the backend type identifier ("local", "s3").
	Type() string
}
