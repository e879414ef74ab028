// Package store defines the key-value capability contract the update
// strategies need: plain reads and writes, versioned reads, add-if-absent and
// compare-and-swap by version.
//
// A Store value is one connection. It must not be shared between workers;
// open one per worker through a DialFunc.
package store

import (
	"context"
	"time"
)

// Item is a value together with the version it was read at.
type Item struct {
	Value   []byte
	Version Version
}

type Store interface {
	// Get returns (value, true, nil) on hit and (nil, false, nil) on miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Gets is Get plus the version token needed by CompareAndSwap.
	Gets(ctx context.Context, key string) (Item, bool, error)

	// Set overwrites unconditionally. ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Add stores value only if key is absent. It returns false, nil when the
	// key already exists.
	Add(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// CompareAndSwap stores value only if the key is still at ver. It returns
	// false, nil when another write landed first or the key disappeared.
	CompareAndSwap(ctx context.Context, key string, value []byte, ttl time.Duration, ver Version) (bool, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	Close(ctx context.Context) error
}

// DialFunc opens a new, independent connection.
type DialFunc func(ctx context.Context) (Store, error)
