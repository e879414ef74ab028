package getapplyset

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/unkn0wn-root/getapplyset/sequence"
	"github.com/unkn0wn-root/getapplyset/store"
)

// DefaultTTL is the expiration written with every update (one day).
const DefaultTTL = 24 * time.Hour

// NonAtomic reads, computes and writes with no version check.
// Two workers that interleave between Get and Set lose an update.
type NonAtomic struct {
	TTL time.Duration // 0 => DefaultTTL
}

var _ Strategy = NonAtomic{}

func (NonAtomic) Name() string { return "nonatomic" }

func (s NonAtomic) Update(ctx context.Context, st store.Store, key string, next NextFunc) error {
	cur, ok, err := st.Get(ctx, key)
	if err != nil {
		return err
	}
	val, err := next(cur, ok)
	if err != nil {
		return err
	}
	return st.Set(ctx, key, val, coalesce(s.TTL, DefaultTTL))
}

// Atomic is the optimistic get-apply-set loop. Each pass reads the value
// with its version and writes the successor only if the version is unchanged
// (or, for an absent key, only if it is still absent). Conflicts restart the
// loop immediately, with no backoff.
//
// The loop is unbounded unless MaxAttempts > 0.
type Atomic struct {
	TTL         time.Duration // 0 => DefaultTTL
	MaxAttempts int           // 0 => retry until the update lands
	Hooks       Hooks         // nil => NopHooks
}

var _ Strategy = Atomic{}

func (Atomic) Name() string { return "atomic" }

type outcome int

const (
	applied outcome = iota
	addConflict
	versionConflict
)

func (s Atomic) Update(ctx context.Context, st store.Store, key string, next NextFunc) error {
	ttl := coalesce(s.TTL, DefaultTTL)
	hooks := coalesce[Hooks](s.Hooks, NopHooks{})

	var last error
	for attempt := 1; ; attempt++ {
		if s.MaxAttempts > 0 && attempt > s.MaxAttempts {
			return &BoundExceededError{Key: key, Attempts: s.MaxAttempts, Last: last}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		res, op, err := s.try(ctx, st, key, next, ttl)
		switch {
		case err != nil && (op == "next" || fatal(err)):
			return err
		case err != nil:
			hooks.StoreError(key, op, err)
			last = err
		case res == addConflict:
			hooks.AddConflict(key, attempt)
			last = ErrAddConflict
		case res == versionConflict:
			hooks.VersionConflict(key, attempt)
			last = ErrVersionConflict
		default:
			hooks.Applied(key, attempt)
			return nil
		}
	}
}

// try is one pass of the loop. op names the call that failed; "next" errors
// are deterministic and never retried.
func (s Atomic) try(ctx context.Context, st store.Store, key string, next NextFunc, ttl time.Duration) (outcome, string, error) {
	it, ok, err := st.Gets(ctx, key)
	if err != nil {
		return 0, "gets", err
	}

	if !ok {
		val, err := next(nil, false)
		if err != nil {
			return 0, "next", err
		}
		stored, err := st.Add(ctx, key, val, ttl)
		if err != nil {
			return 0, "add", err
		}
		if !stored {
			return addConflict, "add", nil
		}
		return applied, "add", nil
	}

	val, err := next(it.Value, true)
	if err != nil {
		return 0, "next", err
	}
	swapped, err := st.CompareAndSwap(ctx, key, val, ttl, it.Version)
	if err != nil {
		return 0, "cas", err
	}
	if !swapped {
		return versionConflict, "cas", nil
	}
	return applied, "cas", nil
}

// fatal errors end the loop: corrupt data, a dead connection, a token the
// store does not recognise, or cancellation. Anything else is retried.
func fatal(err error) bool {
	var pe *sequence.ParseError
	switch {
	case errors.As(err, &pe),
		store.IsConnection(err),
		errors.Is(err, store.ErrBadVersion),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return true
	}
	return false
}

// StrategyOptions are passed to the registered strategy constructors.
type StrategyOptions struct {
	TTL         time.Duration
	MaxAttempts int // atomic only
	Hooks       Hooks
}

var strategies = map[string]func(StrategyOptions) Strategy{
	"atomic": func(o StrategyOptions) Strategy {
		return Atomic{TTL: o.TTL, MaxAttempts: o.MaxAttempts, Hooks: o.Hooks}
	},
	"nonatomic": func(o StrategyOptions) Strategy {
		return NonAtomic{TTL: o.TTL}
	},
}

// NewStrategy builds the strategy registered under name.
func NewStrategy(name string, o StrategyOptions) (Strategy, error) {
	ctor, ok := strategies[name]
	if !ok {
		return nil, fmt.Errorf("getapplyset: unknown strategy %q (want %s)", name, StrategyNames())
	}
	return ctor(o), nil
}

// StrategyNames lists the registered strategies as "atomic|nonatomic".
func StrategyNames() string {
	names := make([]string, 0, len(strategies))
	for n := range strategies {
		names = append(names, n)
	}
	sort.Strings(names)
	return strings.Join(names, "|")
}
