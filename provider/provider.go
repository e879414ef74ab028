// Package provider defines the raw byte store underneath the in-process
// CAS store (see store/inproc).
//
// Implementations MUST be byte-for-byte transparent: Get returns exactly the
// bytes previously passed to Set for a key. The in-process store keeps its
// version and expiry inside those bytes, so any transform that is not fully
// reversed reads back as a corrupt entry.
//
// Providers do not need to be atomic across calls. store/inproc serializes
// every read-check-write itself.
package provider

import (
	"context"
	"time"
)

// Provider is a minimal byte store with TTLs. Safe for concurrent use.
type Provider interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value. ttl is advisory; store/inproc enforces expiry itself.
	// Returns ok=false when the store dropped the write under pressure.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) (ok bool, err error)

	// Del removes a key. Missing keys are not an error.
	Del(ctx context.Context, key string) error

	Close(ctx context.Context) error
}
