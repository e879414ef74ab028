package logrus

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	gas "github.com/unkn0wn-root/getapplyset"
)

func TestFields(t *testing.T) {
	l, hook := test.NewNullLogger()
	l.SetLevel(logrus.DebugLevel)
	lg := LogrusLogger{E: logrus.NewEntry(l)}

	lg.Warn("close failed", gas.Fields{"err": errors.New("eof"), "worker": 3})
	e := hook.LastEntry()
	if e == nil || e.Level != logrus.WarnLevel || e.Message != "close failed" {
		t.Fatalf("entry = %+v", e)
	}
	if err, _ := e.Data[logrus.ErrorKey].(error); err == nil || err.Error() != "eof" {
		t.Fatalf("err field = %v", e.Data)
	}
	if e.Data["worker"] != 3 {
		t.Fatalf("worker field = %v", e.Data)
	}

	lg.Debug("plain", nil)
	if len(hook.AllEntries()) != 2 {
		t.Fatalf("entries = %d", len(hook.AllEntries()))
	}
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, "info")
	if err != nil {
		t.Fatal(err)
	}
	l.Debug("hidden", nil)
	l.Info("run complete", gas.Fields{"match": true})
	if out := buf.String(); strings.Contains(out, "hidden") || !strings.Contains(out, "match=true") {
		t.Fatalf("output = %q", out)
	}
	if _, err := New(&buf, "loud"); err == nil {
		t.Fatal("expected bad level error")
	}
}
