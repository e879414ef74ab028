package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const (
	formatVersion byte = 1
	headerLen          = 4 + 1 + 8 + 8 + 4
)

var (
	ErrCorrupt = errors.New("getapplyset: corrupt entry")
	magic4     = [...]byte{'G', 'A', 'S', 'E'}
)

// Entry is one versioned value as kept by the in-process stores.
// ExpiresAt is unix nanoseconds; 0 means the entry never expires.
type Entry struct {
	Version   uint64
	ExpiresAt int64
	Payload   []byte
}

// Expired reports whether the entry is past its deadline at now (unix nanos).
func (e Entry) Expired(now int64) bool {
	return e.ExpiresAt != 0 && now >= e.ExpiresAt
}

// Encode frames e as:
//
//	magic(4) | fmt(1) | version(u64 be) | expiresAt(i64 be) | vlen(u32 be) | payload(vlen)
func Encode(e Entry) []byte {
	var buf bytes.Buffer
	buf.Grow(headerLen + len(e.Payload))

	buf.Write(magic4[:])
	buf.WriteByte(formatVersion)

	var u8 [8]byte
	var u4 [4]byte

	binary.BigEndian.PutUint64(u8[:], e.Version)
	buf.Write(u8[:])

	binary.BigEndian.PutUint64(u8[:], uint64(e.ExpiresAt))
	buf.Write(u8[:])

	binary.BigEndian.PutUint32(u4[:], uint32(len(e.Payload)))
	buf.Write(u4[:])

	buf.Write(e.Payload)
	return buf.Bytes()
}

// Decode parses a frame produced by Encode. The payload aliases b.
// Trailing bytes are rejected.
func Decode(b []byte) (Entry, error) {
	if len(b) < headerLen || !bytes.Equal(b[:4], magic4[:]) || b[4] != formatVersion {
		return Entry{}, ErrCorrupt
	}
	off := 5

	ver := binary.BigEndian.Uint64(b[off : off+8])
	off += 8

	exp := int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8

	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen < 0 || vlen != len(b)-off {
		return Entry{}, ErrCorrupt
	}

	return Entry{Version: ver, ExpiresAt: exp, Payload: b[off : off+vlen]}, nil
}
