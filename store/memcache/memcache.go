// Package memcache implements store.Store on memcached through
// bradfitz/gomemcache.
//
// gomemcache always reads with "gets", so every Get carries a cas id. The id
// is unexported on *memcache.Item; the Item itself is the version token.
package memcache

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"sync/atomic"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/unkn0wn-root/getapplyset/store"
)

const backend = "memcache"

// maxRelativeTTL is memcached's limit for relative expirations; larger values
// are read as absolute unix times.
const maxRelativeTTL = 30 * 24 * time.Hour

var ErrClosed = errors.New("memcache: store closed")

type Store struct {
	c      *memcache.Client
	addr   string
	closed atomic.Bool
}

var _ store.Store = (*Store)(nil)

type Config struct {
	Addr         string
	Timeout      time.Duration // per-operation socket timeout; 0 => gomemcache default
	MaxIdleConns int
}

// New creates a client without contacting the server.
func New(cfg Config) *Store {
	c := memcache.New(cfg.Addr)
	if cfg.Timeout > 0 {
		c.Timeout = cfg.Timeout
	}
	if cfg.MaxIdleConns > 0 {
		c.MaxIdleConns = cfg.MaxIdleConns
	}
	return &Store{c: c, addr: cfg.Addr}
}

// Dialer returns a store.DialFunc that builds a fresh client per call and
// pings the server before handing it out.
func Dialer(cfg Config) store.DialFunc {
	return func(ctx context.Context) (store.Store, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s := New(cfg)
		if err := s.c.Ping(); err != nil {
			return nil, &store.ConnectionError{Backend: backend, Addr: cfg.Addr, Op: "dial", Err: err}
		}
		return s, nil
	}
}

// expiration converts ttl to memcached seconds. Sub-second TTLs round up so
// they do not turn into "never expires".
func expiration(ttl time.Duration) int32 {
	if ttl <= 0 {
		return 0
	}
	if ttl > maxRelativeTTL {
		abs := time.Now().Add(ttl).Unix()
		if abs > math.MaxInt32 {
			return math.MaxInt32
		}
		return int32(abs)
	}
	secs := int32(ttl / time.Second)
	if ttl%time.Second != 0 {
		secs++
	}
	return secs
}

func (s *Store) wrap(op, key string, err error) error {
	var ne net.Error
	var cte *memcache.ConnectTimeoutError
	switch {
	case errors.As(err, &cte), errors.As(err, &ne) && !ne.Timeout(), errors.Is(err, memcache.ErrNoServers):
		return &store.ConnectionError{Backend: backend, Addr: s.addr, Op: op, Err: err}
	default:
		return fmt.Errorf("memcache %s %q: %w", op, key, err)
	}
}

// live checks cancellation before each call; gomemcache takes no context.
func (s *Store) live(ctx context.Context, op string) error {
	if s.closed.Load() {
		return &store.ConnectionError{Backend: backend, Addr: s.addr, Op: op, Err: ErrClosed}
	}
	return ctx.Err()
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	it, ok, err := s.Gets(ctx, key)
	return it.Value, ok, err
}

func (s *Store) Gets(ctx context.Context, key string) (store.Item, bool, error) {
	if err := s.live(ctx, "gets"); err != nil {
		return store.Item{}, false, err
	}
	it, err := s.c.Get(key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return store.Item{}, false, nil
	}
	if err != nil {
		return store.Item{}, false, s.wrap("gets", key, err)
	}
	return store.Item{Value: it.Value, Version: store.RefVersion(it)}, true, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.live(ctx, "set"); err != nil {
		return err
	}
	if err := s.c.Set(&memcache.Item{Key: key, Value: value, Expiration: expiration(ttl)}); err != nil {
		return s.wrap("set", key, err)
	}
	return nil
}

func (s *Store) Add(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if err := s.live(ctx, "add"); err != nil {
		return false, err
	}
	err := s.c.Add(&memcache.Item{Key: key, Value: value, Expiration: expiration(ttl)})
	if errors.Is(err, memcache.ErrNotStored) {
		return false, nil
	}
	if err != nil {
		return false, s.wrap("add", key, err)
	}
	return true, nil
}

func (s *Store) CompareAndSwap(ctx context.Context, key string, value []byte, ttl time.Duration, ver store.Version) (bool, error) {
	read, ok := ver.Ref().(*memcache.Item)
	if !ok || read == nil || read.Key != key {
		return false, store.ErrBadVersion
	}
	if err := s.live(ctx, "cas"); err != nil {
		return false, err
	}
	// copy keeps the unexported cas id from the read
	next := *read
	next.Value = value
	next.Expiration = expiration(ttl)

	err := s.c.CompareAndSwap(&next)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, memcache.ErrCASConflict),
		errors.Is(err, memcache.ErrNotStored),
		errors.Is(err, memcache.ErrCacheMiss): // NOT_FOUND: key vanished since the read
		return false, nil
	default:
		return false, s.wrap("cas", key, err)
	}
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.live(ctx, "delete"); err != nil {
		return err
	}
	err := s.c.Delete(key)
	if err == nil || errors.Is(err, memcache.ErrCacheMiss) {
		return nil
	}
	return s.wrap("delete", key, err)
}

// Close marks the store closed and closes the client's idle sockets.
// Safe to call more than once.
func (s *Store) Close(context.Context) error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.c.Close()
}
