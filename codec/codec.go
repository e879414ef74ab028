package codec

import (
	"fmt"
	"sort"
	"strings"
)

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// DefaultName is the codec used when none is configured.
const DefaultName = "decimal"

// MaxCounterBytes bounds what ByName codecs will decode. Every registered
// encoding of an int64 fits well inside it.
const MaxCounterBytes = 64

var counters = map[string]func() (Codec[int64], error){
	"decimal": func() (Codec[int64], error) { return Decimal{}, nil },
	"json":    func() (Codec[int64], error) { return JSON[int64]{}, nil },
	"msgpack": func() (Codec[int64], error) { return Msgpack[int64]{}, nil },
	"cbor": func() (Codec[int64], error) {
		c, err := NewCBOR[int64](true)
		if err != nil {
			return nil, err
		}
		return c, nil
	},
	"protobuf": func() (Codec[int64], error) { return Int64Proto{}, nil },
}

// ByName returns the counter codec registered under name, wrapped in a
// Limit of MaxCounterBytes. An empty name selects DefaultName.
func ByName(name string) (Codec[int64], error) {
	if name == "" {
		name = DefaultName
	}
	ctor, ok := counters[name]
	if !ok {
		return nil, fmt.Errorf("codec: unknown codec %q (want %s)", name, Names())
	}
	c, err := ctor()
	if err != nil {
		return nil, err
	}
	return Limit[int64]{Inner: c, MaxDecode: MaxCounterBytes}, nil
}

// Names lists the registered counter codecs as "a|b|c".
func Names() string {
	names := make([]string, 0, len(counters))
	for n := range counters {
		names = append(names, n)
	}
	sort.Strings(names)
	return strings.Join(names, "|")
}
