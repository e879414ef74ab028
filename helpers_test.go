package getapplyset

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	pr "github.com/unkn0wn-root/getapplyset/provider"
	"github.com/unkn0wn-root/getapplyset/store"
	"github.com/unkn0wn-root/getapplyset/store/inproc"
)

type memProvider struct {
	mu sync.Mutex
	m  map[string][]byte
}

var _ pr.Provider = (*memProvider)(nil)

func newMemProvider() *memProvider { return &memProvider{m: make(map[string][]byte)} }

func (p *memProvider) Get(_ context.Context, key string) ([]byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.m[key]
	return v, ok, nil
}

func (p *memProvider) Set(_ context.Context, key string, value []byte, _ time.Duration) (bool, error) {
	p.mu.Lock()
	p.m[key] = append([]byte(nil), value...)
	p.mu.Unlock()
	return true, nil
}

func (p *memProvider) Del(_ context.Context, key string) error {
	p.mu.Lock()
	delete(p.m, key)
	p.mu.Unlock()
	return nil
}

func (p *memProvider) Close(context.Context) error { return nil }

func newShared(t *testing.T) *inproc.Shared {
	t.Helper()
	s := inproc.NewShared(newMemProvider())
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

// wrapDial decorates every connection a DialFunc hands out.
func wrapDial(d store.DialFunc, wrap func(store.Store) store.Store) store.DialFunc {
	return func(ctx context.Context) (store.Store, error) {
		st, err := d(ctx)
		if err != nil {
			return nil, err
		}
		return wrap(st), nil
	}
}

// slowReads widens the gap between a read and the write that follows it.
type slowReads struct {
	store.Store
	delay time.Duration
}

func (s slowReads) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, ok, err := s.Store.Get(ctx, key)
	time.Sleep(s.delay)
	return v, ok, err
}

func (s slowReads) Gets(ctx context.Context, key string) (store.Item, bool, error) {
	it, ok, err := s.Store.Gets(ctx, key)
	time.Sleep(s.delay)
	return it, ok, err
}

// contended makes the first addFails Adds and casFails CASes lose, as if
// another writer got there first, without touching the data.
type contended struct {
	store.Store
	addFails, casFails atomic.Int32
	gets               atomic.Int32
}

func (c *contended) Gets(ctx context.Context, key string) (store.Item, bool, error) {
	c.gets.Add(1)
	return c.Store.Gets(ctx, key)
}

func (c *contended) Add(ctx context.Context, key string, v []byte, ttl time.Duration) (bool, error) {
	if c.addFails.Add(-1) >= 0 {
		return false, nil
	}
	return c.Store.Add(ctx, key, v, ttl)
}

func (c *contended) CompareAndSwap(ctx context.Context, key string, v []byte, ttl time.Duration, ver store.Version) (bool, error) {
	if c.casFails.Add(-1) >= 0 {
		return false, nil
	}
	return c.Store.CompareAndSwap(ctx, key, v, ttl, ver)
}

var errTransient = errors.New("transient: server busy")

// flaky fails the first n Gets with a retryable error.
type flaky struct {
	store.Store
	n atomic.Int32
}

func (f *flaky) Gets(ctx context.Context, key string) (store.Item, bool, error) {
	if f.n.Add(-1) >= 0 {
		return store.Item{}, false, errTransient
	}
	return f.Store.Gets(ctx, key)
}

// countingHooks records every event.
type countingHooks struct {
	add, version, storeErr, applied, workers atomic.Int64
}

func (h *countingHooks) AddConflict(string, int)            { h.add.Add(1) }
func (h *countingHooks) VersionConflict(string, int)        { h.version.Add(1) }
func (h *countingHooks) StoreError(string, string, error)   { h.storeErr.Add(1) }
func (h *countingHooks) Applied(string, int)                { h.applied.Add(1) }
func (h *countingHooks) WorkerDone(int, int, time.Duration) { h.workers.Add(1) }
