// Package logrus adapts a *logrus.Entry to getapplyset.Logger.
package logrus

import (
	"io"

	"github.com/sirupsen/logrus"

	gas "github.com/unkn0wn-root/getapplyset"
)

var _ gas.Logger = LogrusLogger{}

type LogrusLogger struct{ E *logrus.Entry }

// New builds a text logger writing to w at level.
func New(w io.Writer, level string) (LogrusLogger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return LogrusLogger{}, err
	}
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(lvl)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return LogrusLogger{E: logrus.NewEntry(l)}, nil
}

func (l LogrusLogger) Debug(msg string, f gas.Fields) { l.with(f).Debug(msg) }
func (l LogrusLogger) Info(msg string, f gas.Fields)  { l.with(f).Info(msg) }
func (l LogrusLogger) Warn(msg string, f gas.Fields)  { l.with(f).Warn(msg) }
func (l LogrusLogger) Error(msg string, f gas.Fields) { l.with(f).Error(msg) }

// with routes an "err" field through WithError so formatters and hooks see
// it under logrus.ErrorKey.
func (l LogrusLogger) with(f gas.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
	e := l.E
	fs := make(logrus.Fields, len(f))
	for k, v := range f {
		if err, ok := v.(error); ok && k == "err" {
			e = e.WithError(err)
			continue
		}
		fs[k] = v
	}
	return e.WithFields(fs)
}

