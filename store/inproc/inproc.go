// Package inproc implements store.Store inside the process, on top of any
// byte provider (BigCache, Ristretto, ...).
//
// Each entry is framed with its version and expiry (internal/wire). A single
// mutex per Shared serializes every read-check-write, which is what makes Add
// and CompareAndSwap atomic here. Versions come from one counter per Shared,
// so a key that is deleted and recreated never reuses a version.
package inproc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/unkn0wn-root/getapplyset/internal/wire"
	pr "github.com/unkn0wn-root/getapplyset/provider"
	"github.com/unkn0wn-root/getapplyset/store"
)

const backend = "inproc"

var (
	ErrClosed   = errors.New("inproc: connection closed")
	ErrRejected = errors.New("inproc: provider rejected write")
)

// Shared is the backing state that per-worker handles point at.
type Shared struct {
	mu  sync.Mutex
	p   pr.Provider
	ver uint64
	now func() time.Time
}

func NewShared(p pr.Provider) *Shared {
	return &Shared{p: p, now: time.Now}
}

// Dial returns a new handle. Closing a handle does not close the provider.
func (s *Shared) Dial(context.Context) (store.Store, error) {
	return &Store{s: s}, nil
}

// Close closes the underlying provider.
func (s *Shared) Close(ctx context.Context) error {
	return s.p.Close(ctx)
}

// Store is one handle onto a Shared.
type Store struct {
	s      *Shared
	mu     sync.RWMutex
	closed bool
}

var _ store.Store = (*Store)(nil)

func (c *Store) shared(op string) (*Shared, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, &store.ConnectionError{Backend: backend, Op: op, Err: ErrClosed}
	}
	return c.s, nil
}

// load reads a live entry. Corrupt or expired frames are deleted and read as
// a miss. Caller holds s.mu.
func (s *Shared) load(ctx context.Context, key string) (wire.Entry, bool, error) {
	raw, ok, err := s.p.Get(ctx, key)
	if err != nil {
		return wire.Entry{}, false, fmt.Errorf("inproc get %q: %w", key, err)
	}
	if !ok {
		return wire.Entry{}, false, nil
	}
	e, err := wire.Decode(raw)
	if err != nil || e.Expired(s.now().UnixNano()) {
		_ = s.p.Del(ctx, key) // self-heal
		return wire.Entry{}, false, nil
	}
	return e, true, nil
}

// store writes value as a new version. Caller holds s.mu.
func (s *Shared) store(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.ver++
	e := wire.Entry{Version: s.ver, Payload: value}
	if ttl > 0 {
		e.ExpiresAt = s.now().Add(ttl).UnixNano()
	}
	ok, err := s.p.Set(ctx, key, wire.Encode(e), ttl)
	if err != nil {
		return fmt.Errorf("inproc set %q: %w", key, err)
	}
	if !ok {
		return fmt.Errorf("inproc set %q: %w", key, ErrRejected)
	}
	return nil
}

func (c *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	it, ok, err := c.gets(ctx, "get", key)
	return it.Value, ok, err
}

func (c *Store) Gets(ctx context.Context, key string) (store.Item, bool, error) {
	return c.gets(ctx, "gets", key)
}

func (c *Store) gets(ctx context.Context, op, key string) (store.Item, bool, error) {
	s, err := c.shared(op)
	if err != nil {
		return store.Item{}, false, err
	}
	s.mu.Lock()
	e, ok, err := s.load(ctx, key)
	s.mu.Unlock()
	if err != nil || !ok {
		return store.Item{}, false, err
	}
	return store.Item{
		Value:   append([]byte(nil), e.Payload...),
		Version: store.SeqVersion(e.Version),
	}, true, nil
}

func (c *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s, err := c.shared("set")
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store(ctx, key, value, ttl)
}

func (c *Store) Add(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	s, err := c.shared("add")
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok, err := s.load(ctx, key)
	if err != nil {
		return false, err
	}
	if ok {
		return false, nil
	}
	if err := s.store(ctx, key, value, ttl); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Store) CompareAndSwap(ctx context.Context, key string, value []byte, ttl time.Duration, ver store.Version) (bool, error) {
	if ver.Ref() != nil || ver.Seq() == 0 {
		return false, store.ErrBadVersion
	}
	s, err := c.shared("cas")
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok, err := s.load(ctx, key)
	if err != nil {
		return false, err
	}
	if !ok || cur.Version != ver.Seq() {
		return false, nil
	}
	if err := s.store(ctx, key, value, ttl); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Store) Delete(ctx context.Context, key string) error {
	s, err := c.shared("delete")
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.p.Del(ctx, key); err != nil {
		return fmt.Errorf("inproc delete %q: %w", key, err)
	}
	return nil
}

// Close invalidates this handle only. Safe to call more than once.
func (c *Store) Close(context.Context) error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}
