package codec

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Int64Proto encodes the counter as a google.protobuf.Int64Value message.
// Absent and zero are still distinct at the store level; an empty payload
// decodes to 0 as protobuf defines.
type Int64Proto struct{}

var _ Codec[int64] = Int64Proto{}

func (Int64Proto) Encode(v int64) ([]byte, error) {
	return proto.Marshal(wrapperspb.Int64(v))
}

func (Int64Proto) Decode(b []byte) (int64, error) {
	var m wrapperspb.Int64Value
	if err := proto.Unmarshal(b, &m); err != nil {
		return 0, err
	}
	return m.GetValue(), nil
}
