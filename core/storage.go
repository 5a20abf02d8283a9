package core

import (
	"context"
	"errors"
)

// ErrNotFound is returned by BlobStore.Get when the key has no value.
var ErrNotFound = errors.New("not found")

type (
	// BlobStore is the durable storage behind the asset registries. Each
	// key holds one opaque value that is always replaced whole; the last
	// writer wins.
	BlobStore interface {
		// Get returns the value stored under key, or ErrNotFound.
		Get(ctx context.Context, key string) ([]byte, error)

		// Put replaces the value stored under key.
		Put(ctx context.Context, key string, data []byte) error

		// Delete removes key entirely. Deleting an absent key is not an error.
		Delete(ctx context.Context, key string) error
	}
)
