// Package stats counts CAS loop events with lock-free counters.
package stats

import (
	"fmt"
	"sync/atomic"
	"time"

	gas "github.com/unkn0wn-root/getapplyset"
)

type Hooks struct {
	addConflicts     atomic.Uint64
	versionConflicts atomic.Uint64
	storeErrors      atomic.Uint64
	applied          atomic.Uint64
	attempts         atomic.Uint64
	maxAttempts      atomic.Uint64
	workers          atomic.Uint64
	workerNanos      atomic.Int64
}

var _ gas.Hooks = (*Hooks)(nil)

func New() *Hooks { return &Hooks{} }

func (h *Hooks) AddConflict(string, int)          { h.addConflicts.Add(1) }
func (h *Hooks) VersionConflict(string, int)      { h.versionConflicts.Add(1) }
func (h *Hooks) StoreError(string, string, error) { h.storeErrors.Add(1) }

func (h *Hooks) Applied(_ string, attempts int) {
	h.applied.Add(1)
	n := uint64(attempts)
	h.attempts.Add(n)
	for {
		cur := h.maxAttempts.Load()
		if n <= cur || h.maxAttempts.CompareAndSwap(cur, n) {
			return
		}
	}
}

func (h *Hooks) WorkerDone(_, _ int, elapsed time.Duration) {
	h.workers.Add(1)
	h.workerNanos.Add(int64(elapsed))
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	AddConflicts     uint64
	VersionConflicts uint64
	StoreErrors      uint64
	Applied          uint64
	Attempts         uint64 // summed over applied updates
	MaxAttempts      uint64
	Workers          uint64
	WorkerTime       time.Duration
}

func (h *Hooks) Snapshot() Snapshot {
	return Snapshot{
		AddConflicts:     h.addConflicts.Load(),
		VersionConflicts: h.versionConflicts.Load(),
		StoreErrors:      h.storeErrors.Load(),
		Applied:          h.applied.Load(),
		Attempts:         h.attempts.Load(),
		MaxAttempts:      h.maxAttempts.Load(),
		Workers:          h.workers.Load(),
		WorkerTime:       time.Duration(h.workerNanos.Load()),
	}
}

// Retries is the number of extra passes the loop needed.
func (s Snapshot) Retries() uint64 {
	if s.Attempts < s.Applied {
		return 0
	}
	return s.Attempts - s.Applied
}

// Fields renders the snapshot for a structured log line.
func (s Snapshot) Fields() gas.Fields {
	return gas.Fields{
		"applied":           s.Applied,
		"retries":           s.Retries(),
		"add_conflicts":     s.AddConflicts,
		"version_conflicts": s.VersionConflicts,
		"store_errors":      s.StoreErrors,
		"max_attempts":      s.MaxAttempts,
		"workers":           s.Workers,
	}
}

func (s Snapshot) String() string {
	return fmt.Sprintf("applied=%d retries=%d add_conflicts=%d version_conflicts=%d store_errors=%d max_attempts=%d",
		s.Applied, s.Retries(), s.AddConflicts, s.VersionConflicts, s.StoreErrors, s.MaxAttempts)
}
