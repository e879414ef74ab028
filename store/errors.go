package store

import (
	"errors"
	"fmt"
)

// ErrBadVersion is returned when a Version from another backend (or the zero
// Version) is passed to CompareAndSwap.
var ErrBadVersion = errors.New("store: version token not issued by this store")

// ConnectionError means the store could not be reached or the connection
// dropped. Callers treat it as fatal for the worker that owns the connection.
type ConnectionError struct {
	Backend string
	Addr    string
	Op      string
	Err     error
}

func (e *ConnectionError) Error() string {
	if e.Addr == "" {
		return fmt.Sprintf("%s %s: %v", e.Backend, e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s %s: %v", e.Backend, e.Op, e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// IsConnection reports whether err (or anything it wraps) is a ConnectionError.
func IsConnection(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}
