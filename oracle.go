package getapplyset

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/unkn0wn-root/getapplyset/sequence"
	"github.com/unkn0wn-root/getapplyset/store"
)

const absent = "<absent>"

// Expected replays next n times starting from an absent key. It never
// touches a store. ok is false when n == 0.
func Expected(next NextFunc, n int) (val []byte, ok bool, err error) {
	for i := 0; i < n; i++ {
		val, err = next(val, ok)
		if err != nil {
			return nil, false, fmt.Errorf("oracle step %d: %w", i+1, err)
		}
		ok = true
	}
	return val, ok, nil
}

// Result compares the oracle's value with what the store holds.
type Result struct {
	Key      string
	Strategy string
	Updates  int // workers × iterations

	Expected, Actual       string // display form
	ExpectedRaw, ActualRaw []byte
	ExpectedPresent        bool
	ActualPresent          bool

	// Applied is how many updates the stored value accounts for, when it is
	// on the walk; -1 otherwise.
	Applied int
	Elapsed time.Duration
}

// Match reports whether the stored value equals the oracle's.
func (r Result) Match() bool {
	return r.ExpectedPresent == r.ActualPresent && bytes.Equal(r.ExpectedRaw, r.ActualRaw)
}

// Lost is the number of updates missing from the stored value, or -1 when
// the stored value cannot be placed on the walk.
func (r Result) Lost() int {
	if r.Applied < 0 {
		return -1
	}
	return r.Updates - r.Applied
}

func (r Result) String() string {
	return fmt.Sprintf("expected: %s, actual: %s", r.Expected, r.Actual)
}

// Verify computes the expected value of updates accepted writes and reads
// the actual one from st.
func Verify(ctx context.Context, st store.Store, key string, seq sequence.Sequencer, updates int) (Result, error) {
	res := Result{Key: key, Updates: updates, Expected: absent, Actual: absent, Applied: -1}

	exp, ok, err := Expected(seq.Next, updates)
	if err != nil {
		return res, err
	}
	res.ExpectedRaw, res.ExpectedPresent = exp, ok
	if ok {
		res.Expected = seq.Format(exp)
	}

	act, ok, err := st.Get(ctx, key)
	if err != nil {
		return res, fmt.Errorf("verify read %q: %w", key, err)
	}
	res.ActualRaw, res.ActualPresent = act, ok
	if !ok {
		res.Applied = 0
		return res, nil
	}
	res.Actual = seq.Format(act)
	if v, err := seq.Decode(act); err == nil {
		if n, ok := sequence.Index(v); ok {
			res.Applied = n
		}
	}
	return res, nil
}
