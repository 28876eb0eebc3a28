// Package blob provides key-value byte storage for persisted snapshots.
// Backends hold whole values per key; there are no partial updates.
package blob

import (
	"context"
	"errors"
)

// Sentinel errors.
var (
	ErrNotFound      = errors.New("blob not found")
	ErrUnknownDriver = errors.New("unknown blob driver")
	ErrClosed        = errors.New("blob store closed")
)

// Store loads and saves whole values by key.
type Store interface {
	// Load returns the value for key or ErrNotFound.
	Load(ctx context.Context, key string) ([]byte, error)
	// Save replaces the value for key.
	Save(ctx context.Context, key string, value []byte) error
	// Close releases backend resources.
	Close() error
}
