package port

import (
	"context"
	"errors"
)

// ErrNotFound is returned by KVStore.Get when nothing was ever stored under the key.
var ErrNotFound = errors.New("key not found")

type KVStore interface {
	// Get returns the blob stored under key, or ErrNotFound
	Get(ctx context.Context, key string) ([]byte, error)

	// Set overwrites the blob stored under key
	Set(ctx context.Context, key string, value []byte) error
}
