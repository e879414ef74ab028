package memcache

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	gas "github.com/unkn0wn-root/getapplyset"
	"github.com/unkn0wn-root/getapplyset/store"
)

func dialFake(t *testing.T) (*fakeServer, store.DialFunc) {
	t.Helper()
	f := startFake(t)
	return f, Dialer(Config{Addr: f.Addr(), Timeout: time.Second})
}

func mustDial(t *testing.T, dial store.DialFunc) store.Store {
	t.Helper()
	st, err := dial(context.Background())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = st.Close(context.Background()) })
	return st
}

func TestExpiration(t *testing.T) {
	cases := []struct {
		ttl  time.Duration
		want int32
	}{
		{0, 0},
		{-time.Second, 0},
		{time.Second, 1},
		{1500 * time.Millisecond, 2},
		{time.Millisecond, 1},
		{24 * time.Hour, 86400},
	}
	for _, tc := range cases {
		if got := expiration(tc.ttl); got != tc.want {
			t.Fatalf("expiration(%v) = %d want %d", tc.ttl, got, tc.want)
		}
	}
	// beyond 30 days memcached wants an absolute unix time
	if got := expiration(31 * 24 * time.Hour); int64(got) < time.Now().Unix() {
		t.Fatalf("long TTL should be absolute, got %d", got)
	}
}

func TestAddGetsCASRoundTrip(t *testing.T) {
	ctx := context.Background()
	_, dial := dialFake(t)
	a, b := mustDial(t, dial), mustDial(t, dial)

	if _, ok, err := a.Gets(ctx, "k"); err != nil || ok {
		t.Fatalf("expected miss: ok=%v err=%v", ok, err)
	}
	if ok, err := a.Add(ctx, "k", []byte("0"), time.Hour); err != nil || !ok {
		t.Fatalf("Add: ok=%v err=%v", ok, err)
	}
	if ok, err := b.Add(ctx, "k", []byte("0"), time.Hour); err != nil || ok {
		t.Fatalf("second Add should conflict: ok=%v err=%v", ok, err)
	}

	it, ok, err := a.Gets(ctx, "k")
	if err != nil || !ok || string(it.Value) != "0" {
		t.Fatalf("Gets: %q ok=%v err=%v", it.Value, ok, err)
	}
	if err := b.Set(ctx, "k", []byte("3"), time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if swapped, err := a.CompareAndSwap(ctx, "k", []byte("3"), time.Hour, it.Version); err != nil || swapped {
		t.Fatalf("stale CAS: swapped=%v err=%v", swapped, err)
	}

	fresh, _, _ := a.Gets(ctx, "k")
	if swapped, err := a.CompareAndSwap(ctx, "k", []byte("4"), time.Hour, fresh.Version); err != nil || !swapped {
		t.Fatalf("fresh CAS: swapped=%v err=%v", swapped, err)
	}
	if v, _, _ := b.Get(ctx, "k"); string(v) != "4" {
		t.Fatalf("value = %q want 4", v)
	}

	if err := a.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := a.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete absent: %v", err)
	}
	// key vanished after the read: NOT_FOUND is a failed swap, not an error
	if swapped, err := a.CompareAndSwap(ctx, "k", []byte("7"), time.Hour, fresh.Version); err != nil || swapped {
		t.Fatalf("CAS on deleted key: swapped=%v err=%v", swapped, err)
	}
}

func TestCASRejectsForeignToken(t *testing.T) {
	st := New(Config{Addr: "127.0.0.1:1"})
	ctx := context.Background()
	for _, v := range []store.Version{{}, store.SeqVersion(3), store.RefVersion(&memcache.Item{Key: "other"})} {
		if _, err := st.CompareAndSwap(ctx, "k", nil, 0, v); !errors.Is(err, store.ErrBadVersion) {
			t.Fatalf("version %v: got %v", v, err)
		}
	}
}

func TestClosedStore(t *testing.T) {
	_, dial := dialFake(t)
	st, err := dial(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	_ = st.Close(context.Background())
	if _, _, err := st.Get(context.Background(), "k"); !errors.Is(err, ErrClosed) || !store.IsConnection(err) {
		t.Fatalf("expected ConnectionError(ErrClosed), got %v", err)
	}
}

func TestCloseReleasesSockets(t *testing.T) {
	f, dial := dialFake(t)
	st, err := dial(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := st.Get(context.Background(), "k"); err != nil {
		t.Fatal(err)
	}
	if err := st.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	f.waitIdle(t, 2*time.Second)

	if err := st.Close(context.Background()); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestRunAtomicOverMemcache(t *testing.T) {
	for _, c := range []int{2, 8} {
		t.Run(fmt.Sprintf("C=%d", c), func(t *testing.T) {
			f, dial := dialFake(t)
			res, err := gas.Run(context.Background(), gas.Options{
				Key:         "counter",
				Iterations:  100,
				Concurrency: c,
				Strategy:    gas.Atomic{},
				Dial:        dial,
			})
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if !res.Match() || res.Lost() != 0 {
				t.Fatalf("lost updates: %s", res)
			}
			// driver and workers closed every connection they opened
			f.waitIdle(t, 2*time.Second)
		})
	}
}

func TestRunNonAtomicOverMemcacheLosesUpdates(t *testing.T) {
	_, dial := dialFake(t)
	res, err := gas.Run(context.Background(), gas.Options{
		Key:         "counter",
		Iterations:  200,
		Concurrency: 8,
		Strategy:    gas.NonAtomic{},
		Dial:        dial,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Match() || res.Lost() <= 0 {
		t.Fatalf("expected lost updates, got %s lost=%d", res, res.Lost())
	}
}

func TestDialUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	_, err = Dialer(Config{Addr: addr, Timeout: 200 * time.Millisecond})(context.Background())
	if !store.IsConnection(err) {
		t.Fatalf("expected ConnectionError, got %T: %v", err, err)
	}
}

func TestDialHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Dialer(Config{Addr: "127.0.0.1:1"})(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
