// Package sequence defines the deterministic value sequence the counter walks:
//
//	absent -> 0 -> 3 -> 4 -> 7 -> 8 -> 11 -> ...
//
// Even values step by 3, odd values step by 1. The walk is strictly increasing
// and its n-th term has a closed form, so an oracle can predict the final value
// of n accepted updates without replaying the store.
package sequence

import (
	"fmt"

	"github.com/unkn0wn-root/getapplyset/codec"
)

// Next returns the successor of i.
func Next(i int64) int64 {
	if i%2 == 0 {
		return i + 3
	}
	return i + 1
}

// Nth returns the value after n applications starting from absent.
// ok is false for n <= 0 (the key is still absent).
func Nth(n int) (v int64, ok bool) {
	if n <= 0 {
		return 0, false
	}
	k := int64(n - 1)
	return 4*(k/2) + 3*(k%2), true
}

// Trace returns the first n values of the walk.
func Trace(n int) []int64 {
	if n <= 0 {
		return nil
	}
	out := make([]int64, 0, n)
	v := int64(0)
	out = append(out, v)
	for len(out) < n {
		v = Next(v)
		out = append(out, v)
	}
	return out
}

// ParseError reports a stored value that the codec could not decode.
// It means the key holds something no correct update could have written.
type ParseError struct {
	Raw []byte
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("sequence: cannot parse stored value %q: %v", e.Raw, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Sequencer applies Next to encoded values.
// The zero value uses the decimal text codec.
type Sequencer struct {
	Codec codec.Codec[int64]
}

func New(c codec.Codec[int64]) Sequencer { return Sequencer{Codec: c} }

func (s Sequencer) codec() codec.Codec[int64] {
	if s.Codec == nil {
		return codec.Decimal{}
	}
	return s.Codec
}

// Next encodes the successor of raw. When ok is false the key is absent and
// the first value of the walk is returned.
func (s Sequencer) Next(raw []byte, ok bool) ([]byte, error) {
	if !ok {
		return s.codec().Encode(0)
	}
	cur, err := s.Decode(raw)
	if err != nil {
		return nil, err
	}
	return s.codec().Encode(Next(cur))
}

// Decode parses a stored value, failing with *ParseError.
func (s Sequencer) Decode(raw []byte) (int64, error) {
	v, err := s.codec().Decode(raw)
	if err != nil {
		return 0, &ParseError{Raw: append([]byte(nil), raw...), Err: err}
	}
	return v, nil
}

// Format decodes raw for display. Values that do not decode are quoted as-is.
func (s Sequencer) Format(raw []byte) string {
	v, err := s.Decode(raw)
	if err != nil {
		return fmt.Sprintf("%q", raw)
	}
	return fmt.Sprint(v)
}

// Index is the inverse of Nth: the number of applications from absent that
// produce v. ok is false when v is not on the walk.
func Index(v int64) (n int, ok bool) {
	switch {
	case v < 0:
		return 0, false
	case v%4 == 0:
		return int(v/2) + 1, true
	case v%4 == 3:
		return int((v-3)/2) + 2, true
	default:
		return 0, false
	}
}
