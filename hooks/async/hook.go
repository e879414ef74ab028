// Package asynchook moves hook delivery off the workers' retry loop.
//
// usage:
//
//	raw := loghooks.New(slog.Default(), loghooks.Options{ConflictEvery: 100})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	res, err := getapplyset.Run(ctx, getapplyset.Options{
//	    Strategy: getapplyset.Atomic{Hooks: hooks},
//	    Hooks:    hooks,
//	    ...
//	})
//
// Events are dropped, never queued unbounded, when the sink falls behind.
// Dropped reports how many.
package asynchook

import (
	"sync"
	"sync/atomic"
	"time"

	gas "github.com/unkn0wn-root/getapplyset"
)

type Hooks struct {
	inner   gas.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex // guards closed against concurrent sends
	closed  bool
	dropped atomic.Uint64
}

var _ gas.Hooks = (*Hooks)(nil)

func New(inner gas.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains the queue and waits for the workers. Events after Close are
// dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) AddConflict(k string, a int)     { h.try(func() { h.inner.AddConflict(k, a) }) }
func (h *Hooks) VersionConflict(k string, a int) { h.try(func() { h.inner.VersionConflict(k, a) }) }
func (h *Hooks) Applied(k string, a int)         { h.try(func() { h.inner.Applied(k, a) }) }
func (h *Hooks) StoreError(k, op string, err error) {
	h.try(func() { h.inner.StoreError(k, op, err) })
}
func (h *Hooks) WorkerDone(w, n int, d time.Duration) {
	h.try(func() { h.inner.WorkerDone(w, n, d) })
}
