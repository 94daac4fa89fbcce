// Package kvstore provides the flat string key-value persistence the record
// cache is built on.
package kvstore

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("key not found")

type Store interface {
	// Get returns ErrNotFound when the key does not exist
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, keys ...string) error
	// Keys lists every key held by the store
	Keys(ctx context.Context) ([]string, error)
	// Clear removes every key held by the store
	Clear(ctx context.Context) error
	Close() error
}
