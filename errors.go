package getapplyset

import (
	"errors"
	"fmt"
)

// Conflicts drive the atomic retry loop. They are never returned on their
// own; they only show up as BoundExceededError.Last.
var (
	ErrAddConflict     = errors.New("getapplyset: key created concurrently")
	ErrVersionConflict = errors.New("getapplyset: version changed since read")
)

// BoundExceededError is returned by Atomic when MaxAttempts is set and the
// update did not land within that many tries.
type BoundExceededError struct {
	Key      string
	Attempts int
	Last     error
}

func (e *BoundExceededError) Error() string {
	if e.Last == nil {
		return fmt.Sprintf("update %q: gave up after %d attempts", e.Key, e.Attempts)
	}
	return fmt.Sprintf("update %q: gave up after %d attempts: last: %v", e.Key, e.Attempts, e.Last)
}

func (e *BoundExceededError) Unwrap() error { return e.Last }

// WorkerError carries which worker failed and on which iteration.
type WorkerError struct {
	Worker    int
	Iteration int
	Err       error
}

func (e *WorkerError) Error() string {
	if e.Iteration < 0 {
		return fmt.Sprintf("worker %d: %v", e.Worker, e.Err)
	}
	return fmt.Sprintf("worker %d iteration %d: %v", e.Worker, e.Iteration, e.Err)
}

func (e *WorkerError) Unwrap() error { return e.Err }
