// Package redis implements store.Store on Redis.
//
// Redis has no per-key CAS token, so each counter key is a hash with two
// fields: "v" (the value) and "ver" (bumped on every write). Add, Set and
// CompareAndSwap run as Lua scripts, which makes the version check and the
// write one atomic step on the server.
//
// Versions restart at 1 when a key is recreated after a Delete. Tokens read
// before the Delete can therefore match the new incarnation; callers delete
// the counter key only before any worker starts.
package redis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/getapplyset/store"
)

const backend = "redis"

var ErrNilClient = errors.New("redis store: nil client")

const (
	fieldValue   = "v"
	fieldVersion = "ver"
)

// ARGV[1]=value ARGV[2]=ttl ms (<=0 keeps no expiry)
var setScript = goredis.NewScript(`
redis.call('HSET', KEYS[1], 'v', ARGV[1])
local ver = redis.call('HINCRBY', KEYS[1], 'ver', 1)
if tonumber(ARGV[2]) > 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
else
  redis.call('PERSIST', KEYS[1])
end
return ver
`)

// returns 1 when stored, 0 when the key exists
var addScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1], 'v', ARGV[1], 'ver', 1)
if tonumber(ARGV[2]) > 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 1
`)

// ARGV[3]=expected version. returns 1 swapped, 0 stale, -1 missing
var casScript = goredis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'ver')
if not cur then
  return -1
end
if cur ~= ARGV[3] then
  return 0
end
redis.call('HSET', KEYS[1], 'v', ARGV[1])
redis.call('HINCRBY', KEYS[1], 'ver', 1)
if tonumber(ARGV[2]) > 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
else
  redis.call('PERSIST', KEYS[1])
end
return 1
`)

type Store struct {
	rdb         goredis.UniversalClient
	addr        string
	closeClient bool
}

var _ store.Store = (*Store)(nil)

type Config struct {
	Client      goredis.UniversalClient
	Addr        string // informational, used in errors
	CloseClient bool   // set true only if this store exclusively owns the client
}

func New(cfg Config) (*Store, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	return &Store{rdb: cfg.Client, addr: cfg.Addr, closeClient: cfg.CloseClient}, nil
}

// Dialer returns a store.DialFunc that opens a dedicated single-connection
// client per call and pings it.
func Dialer(opts goredis.Options) store.DialFunc {
	return func(ctx context.Context) (store.Store, error) {
		o := opts
		if o.PoolSize == 0 {
			o.PoolSize = 1
		}
		c := goredis.NewClient(&o)
		if err := c.Ping(ctx).Err(); err != nil {
			_ = c.Close()
			return nil, &store.ConnectionError{Backend: backend, Addr: o.Addr, Op: "dial", Err: err}
		}
		return &Store{rdb: c, addr: o.Addr, closeClient: true}, nil
	}
}

func ttlMillis(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	ms := ttl.Milliseconds()
	if ms == 0 {
		ms = 1
	}
	return ms
}

// wrap marks transport failures as connection errors. Everything else
// (script errors, WRONGTYPE, ...) is returned with op context only.
func (s *Store) wrap(op, key string, err error) error {
	var ne net.Error
	switch {
	case errors.Is(err, goredis.ErrClosed), errors.As(err, &ne) && !ne.Timeout():
		return &store.ConnectionError{Backend: backend, Addr: s.addr, Op: op, Err: err}
	default:
		return fmt.Errorf("redis %s %q: %w", op, key, err)
	}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := s.rdb.HGet(ctx, key, fieldValue).Bytes()
	if err == goredis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, s.wrap("get", key, err)
	}
	return b, true, nil
}

func (s *Store) Gets(ctx context.Context, key string) (store.Item, bool, error) {
	vals, err := s.rdb.HMGet(ctx, key, fieldValue, fieldVersion).Result()
	if err != nil {
		return store.Item{}, false, s.wrap("gets", key, err)
	}
	if len(vals) != 2 || vals[0] == nil || vals[1] == nil {
		return store.Item{}, false, nil
	}
	v, ok := vals[0].(string)
	if !ok {
		return store.Item{}, false, fmt.Errorf("redis gets %q: unexpected value type %T", key, vals[0])
	}
	verStr, _ := vals[1].(string)
	ver, err := strconv.ParseUint(verStr, 10, 64)
	if err != nil {
		return store.Item{}, false, fmt.Errorf("redis gets %q: version parse: %w", key, err)
	}
	return store.Item{Value: []byte(v), Version: store.SeqVersion(ver)}, true, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := setScript.Run(ctx, s.rdb, []string{key}, value, ttlMillis(ttl)).Err(); err != nil {
		return s.wrap("set", key, err)
	}
	return nil
}

func (s *Store) Add(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	n, err := addScript.Run(ctx, s.rdb, []string{key}, value, ttlMillis(ttl)).Int64()
	if err != nil {
		return false, s.wrap("add", key, err)
	}
	return n == 1, nil
}

func (s *Store) CompareAndSwap(ctx context.Context, key string, value []byte, ttl time.Duration, ver store.Version) (bool, error) {
	if ver.Ref() != nil || ver.Seq() == 0 {
		return false, store.ErrBadVersion
	}
	n, err := casScript.Run(ctx, s.rdb, []string{key}, value, ttlMillis(ttl), strconv.FormatUint(ver.Seq(), 10)).Int64()
	if err != nil {
		return false, s.wrap("cas", key, err)
	}
	return n == 1, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return s.wrap("delete", key, err)
	}
	return nil
}

// Close releases the underlying redis client only when this store owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (s *Store) Close(context.Context) error {
	if s.closeClient {
		if err := s.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}
