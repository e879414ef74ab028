package memcache

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeServer speaks the subset of the memcached text protocol gomemcache
// uses here: version, gets, set, add, cas, delete.
type fakeServer struct {
	ln  net.Listener
	mu  sync.Mutex
	m   map[string]fakeEntry
	cas uint64
	wg  sync.WaitGroup

	open atomic.Int32 // client connections not yet closed
}

type fakeEntry struct {
	flags uint32
	val   []byte
	cas   uint64
}

func startFake(t *testing.T) *fakeServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	f := &fakeServer{ln: ln, m: make(map[string]fakeEntry)}
	f.wg.Add(1)
	go f.serve()
	t.Cleanup(func() {
		_ = ln.Close()
		f.wg.Wait()
	})
	return f
}

func (f *fakeServer) Addr() string { return f.ln.Addr().String() }

// waitIdle waits until every client connection has been closed by its peer.
func (f *fakeServer) waitIdle(t *testing.T, d time.Duration) {
	t.Helper()
	deadline := time.Now().Add(d)
	for f.open.Load() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("%d connection(s) still open after %s", f.open.Load(), d)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (f *fakeServer) serve() {
	defer f.wg.Done()
	for {
		c, err := f.ln.Accept()
		if err != nil {
			return
		}
		f.open.Add(1)
		go f.handle(c)
	}
}

func (f *fakeServer) handle(c net.Conn) {
	defer f.open.Add(-1)
	defer c.Close()
	rw := bufio.NewReadWriter(bufio.NewReader(c), bufio.NewWriter(c))
	for {
		line, err := rw.ReadString('\n')
		if err != nil {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			return
		}
		switch parts[0] {
		case "version":
			fmt.Fprintf(rw, "VERSION fake\r\n")
		case "gets", "get":
			f.mu.Lock()
			for _, k := range parts[1:] {
				if e, ok := f.m[k]; ok {
					fmt.Fprintf(rw, "VALUE %s %d %d %d\r\n", k, e.flags, len(e.val), e.cas)
					rw.Write(e.val)
					rw.WriteString("\r\n")
				}
			}
			f.mu.Unlock()
			rw.WriteString("END\r\n")
		case "set", "add", "cas":
			if len(parts) < 5 {
				return
			}
			flags, _ := strconv.ParseUint(parts[2], 10, 32)
			n, _ := strconv.Atoi(parts[4])
			data := make([]byte, n+2)
			if _, err := io.ReadFull(rw, data); err != nil {
				return
			}
			rw.WriteString(f.store(parts, uint32(flags), data[:n]) + "\r\n")
		case "delete":
			f.mu.Lock()
			_, ok := f.m[parts[1]]
			delete(f.m, parts[1])
			f.mu.Unlock()
			if ok {
				rw.WriteString("DELETED\r\n")
			} else {
				rw.WriteString("NOT_FOUND\r\n")
			}
		default:
			rw.WriteString("ERROR\r\n")
		}
		if err := rw.Flush(); err != nil {
			return
		}
	}
}

func (f *fakeServer) store(parts []string, flags uint32, val []byte) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := parts[1]
	cur, exists := f.m[key]
	switch parts[0] {
	case "add":
		if exists {
			return "NOT_STORED"
		}
	case "cas":
		if !exists {
			return "NOT_FOUND"
		}
		want, _ := strconv.ParseUint(parts[5], 10, 64)
		if cur.cas != want {
			return "EXISTS"
		}
	}
	f.cas++
	f.m[key] = fakeEntry{flags: flags, val: append([]byte(nil), val...), cas: f.cas}
	return "STORED"
}
