package wire

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
)

func mustDecode(t *testing.T, b []byte) Entry {
	t.Helper()
	e, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	return e
}

func TestRoundTripEmptyAndNonEmpty(t *testing.T) {
	cases := []Entry{
		{Version: 0, ExpiresAt: 0, Payload: nil},
		{Version: 42, ExpiresAt: 1_700_000_000_000_000_000, Payload: []byte("19")},
		{Version: math.MaxUint64, ExpiresAt: math.MaxInt64, Payload: []byte{0, 1, 2, 3, 4}},
	}
	for _, tc := range cases {
		got := mustDecode(t, Encode(tc))
		if got.Version != tc.Version || got.ExpiresAt != tc.ExpiresAt {
			t.Fatalf("header mismatch: got %+v want %+v", got, tc)
		}
		if !bytes.Equal(got.Payload, tc.Payload) {
			t.Fatalf("payload mismatch: got %x want %x", got.Payload, tc.Payload)
		}
	}
}

func TestRejectsTrailingBytes(t *testing.T) {
	enc := Encode(Entry{Version: 7, Payload: []byte("x")})
	enc = append(enc, 0xDE, 0xAD)
	if _, err := Decode(enc); err == nil {
		t.Fatalf("expected error on trailing bytes")
	}
}

func TestCorruptHeadersAndLengths(t *testing.T) {
	enc := Encode(Entry{Version: 1, Payload: []byte("abc")})

	badMagic := append([]byte(nil), enc...)
	badMagic[0] = 'X'
	if _, err := Decode(badMagic); err == nil {
		t.Fatalf("expected error on bad magic")
	}

	badFmt := append([]byte(nil), enc...)
	badFmt[4] = formatVersion + 1
	if _, err := Decode(badFmt); err == nil {
		t.Fatalf("expected error on bad format version")
	}

	// vlen sits after magic(4) fmt(1) version(8) expiresAt(8)
	tooLong := append([]byte(nil), enc...)
	binary.BigEndian.PutUint32(tooLong[21:25], uint32(len("abc")+1))
	if _, err := Decode(tooLong); err == nil {
		t.Fatalf("expected error on vlen beyond buffer")
	}

	if _, err := Decode(enc[:len(enc)-1]); err == nil {
		t.Fatalf("expected error on truncated buffer")
	}
	if _, err := Decode([]byte("19")); err == nil {
		t.Fatalf("expected error on foreign bytes")
	}
}

func TestExpired(t *testing.T) {
	if (Entry{}).Expired(math.MaxInt64) {
		t.Fatalf("ExpiresAt=0 never expires")
	}
	e := Entry{ExpiresAt: 100}
	if e.Expired(99) || !e.Expired(100) || !e.Expired(101) {
		t.Fatalf("deadline boundary wrong")
	}
}
