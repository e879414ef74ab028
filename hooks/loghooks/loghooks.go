// Package loghooks writes CAS loop events to a *slog.Logger.
package loghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"
	"time"

	gas "github.com/unkn0wn-root/getapplyset"
)

type Options struct {
	// Sampling to avoid floods under heavy contention; 0/1 = log all.
	ConflictEvery uint64
	AppliedEvery  uint64
	// Only log applied updates that needed at least this many attempts.
	SlowAttempts int
	// Optional key redactor. nil logs the key as is; Hash redacts.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	conflictCtr atomic.Uint64
	appliedCtr  atomic.Uint64
}

var _ gas.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

// Hash is a redactor that logs a SHA-256 prefix instead of the key.
func Hash(k string) string {
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func (h *Hooks) key(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	return k
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) AddConflict(key string, attempt int) {
	if h.l == nil || !sample(h.opts.ConflictEvery, &h.conflictCtr) {
		return
	}
	h.l.Debug("getapplyset.add_conflict",
		"key", h.key(key),
		"attempt", attempt)
}

func (h *Hooks) VersionConflict(key string, attempt int) {
	if h.l == nil || !sample(h.opts.ConflictEvery, &h.conflictCtr) {
		return
	}
	h.l.Debug("getapplyset.version_conflict",
		"key", h.key(key),
		"attempt", attempt)
}

func (h *Hooks) StoreError(key, op string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("getapplyset.store_error",
		"key", h.key(key),
		"op", op,
		"err", err)
}

func (h *Hooks) Applied(key string, attempts int) {
	if h.l == nil || attempts < h.opts.SlowAttempts || !sample(h.opts.AppliedEvery, &h.appliedCtr) {
		return
	}
	h.l.Debug("getapplyset.applied",
		"key", h.key(key),
		"attempts", attempts)
}

func (h *Hooks) WorkerDone(worker, iterations int, elapsed time.Duration) {
	if h.l == nil {
		return
	}
	h.l.Info("getapplyset.worker_done",
		"worker", worker,
		"iterations", iterations,
		"elapsed", elapsed)
}
