package zap

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	gas "github.com/unkn0wn-root/getapplyset"
)

func TestFieldsAndLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := ZapLogger{L: zap.New(core)}

	l.Debug("worker started", gas.Fields{"worker": 1})
	l.Warn("close failed", gas.Fields{"err": errors.New("eof"), "addr": "x"})
	l.Info("nothing", nil)

	entries := logs.AllUntimed()
	if len(entries) != 3 {
		t.Fatalf("entries = %d", len(entries))
	}
	if entries[0].Level != zapcore.DebugLevel || entries[0].ContextMap()["worker"] != int64(1) {
		t.Fatalf("debug entry = %+v", entries[0])
	}
	w := entries[1]
	if w.Level != zapcore.WarnLevel || w.ContextMap()["err"] != "eof" {
		t.Fatalf("warn entry = %+v", w.ContextMap())
	}
	if w.Context[0].Key != "addr" {
		t.Fatalf("fields not sorted: %v", w.Context)
	}
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, "warn")
	if err != nil {
		t.Fatal(err)
	}
	l.Info("hidden", nil)
	l.Error("shown", gas.Fields{"key": "k"})
	_ = l.Sync()
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Fatalf("output = %q", out)
	}

	if _, err := New(&buf, "loud"); err == nil {
		t.Fatal("expected bad level error")
	}
}

func TestNewSerializesWrites(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, "info")
	if err != nil {
		t.Fatal(err)
	}
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				l.Info("tick", gas.Fields{"worker": w})
			}
		}()
	}
	wg.Wait()
	if n := strings.Count(buf.String(), "tick"); n != 400 {
		t.Fatalf("lines = %d want 400", n)
	}
}
