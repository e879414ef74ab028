package store

import "fmt"

// Version is an opaque CAS token. It is only meaningful to the backend that
// produced it and only until the next successful write to the same key.
//
// Backends with numeric versions use SeqVersion; backends whose token lives
// inside a client object (gomemcache keeps the cas id unexported on its Item)
// use RefVersion.
type Version struct {
	seq uint64
	ref any
}

func SeqVersion(n uint64) Version { return Version{seq: n} }
func RefVersion(ref any) Version  { return Version{ref: ref} }

func (v Version) Seq() uint64 { return v.seq }
func (v Version) Ref() any    { return v.ref }

func (v Version) IsZero() bool { return v.seq == 0 && v.ref == nil }

func (v Version) String() string {
	if v.ref != nil {
		return fmt.Sprintf("ref(%T)", v.ref)
	}
	return fmt.Sprintf("v%d", v.seq)
}
