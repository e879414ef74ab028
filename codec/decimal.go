package codec

import "strconv"

// Decimal stores an int64 as its base-10 text form ("19").
// This is the representation memcached's own incr/decr understands,
// so values stay readable with any plain client.
type Decimal struct{}

var _ Codec[int64] = Decimal{}

func (Decimal) Encode(v int64) ([]byte, error) { return strconv.AppendInt(nil, v, 10), nil }
func (Decimal) Decode(b []byte) (int64, error) { return strconv.ParseInt(string(b), 10, 64) }
