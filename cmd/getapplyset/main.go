// Command getapplyset races workers on one key with the chosen update
// strategy and prints the expected and actual final values.
//
//	getapplyset --host 127.0.0.1 --port 11211 --key ctr --iter 1000 --method atomic
//	expected: 1999, actual: 1999
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	goredis "github.com/redis/go-redis/v9"

	gas "github.com/unkn0wn-root/getapplyset"
	"github.com/unkn0wn-root/getapplyset/codec"
	asynchook "github.com/unkn0wn-root/getapplyset/hooks/async"
	"github.com/unkn0wn-root/getapplyset/hooks/loghooks"
	"github.com/unkn0wn-root/getapplyset/hooks/stats"
	"github.com/unkn0wn-root/getapplyset/internal/config"
	logruslog "github.com/unkn0wn-root/getapplyset/log/logrus"
	sloglog "github.com/unkn0wn-root/getapplyset/log/slog"
	zaplog "github.com/unkn0wn-root/getapplyset/log/zap"
	"github.com/unkn0wn-root/getapplyset/provider/bigcache"
	"github.com/unkn0wn-root/getapplyset/provider/ristretto"
	"github.com/unkn0wn-root/getapplyset/sequence"
	"github.com/unkn0wn-root/getapplyset/store"
	"github.com/unkn0wn-root/getapplyset/store/inproc"
	"github.com/unkn0wn-root/getapplyset/store/memcache"
	"github.com/unkn0wn-root/getapplyset/store/redis"
)

const (
	exitOK    = 0
	exitFail  = 1
	exitParse = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args, os.Getenv, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, getenv func(string) string, stdout, stderr io.Writer) int {
	cfg, set, err := config.Load(args, getenv)
	if errors.Is(err, config.ErrHelp) {
		set.PrintUsage(stdout)
		return exitOK
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		set.PrintUsage(stderr)
		return exitFail
	}

	logger, flush, err := newLogger(cfg, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFail
	}
	defer flush()

	c, err := codec.ByName(cfg.Codec)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFail
	}

	dial, closeBackend, err := openBackend(cfg)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFail
	}
	defer func() {
		if err := closeBackend(context.Background()); err != nil {
			logger.Warn("backend close failed", gas.Fields{"err": err})
		}
	}()

	counts := stats.New()
	hooks := gas.Hooks(counts)
	drain := func() {}
	if cfg.Verbose {
		lh := loghooks.New(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelDebug})),
			loghooks.Options{ConflictEvery: 100, SlowAttempts: 2})
		async := asynchook.New(lh, 1, 4096)
		defer async.Close()
		drain = async.Close
		hooks = gas.MultiHooks{counts, async}
	}

	strategy, err := gas.NewStrategy(cfg.Method, gas.StrategyOptions{
		TTL:         cfg.TTL,
		MaxAttempts: cfg.MaxAttempts,
		Hooks:       hooks,
	})
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFail
	}

	res, err := gas.Run(ctx, gas.Options{
		Key:         cfg.Key,
		Iterations:  cfg.Iterations,
		Strategy:    strategy,
		Dial:        dial,
		Concurrency: cfg.Concurrency,
		Sequencer:   sequence.New(c),
		Logger:      logger,
		Hooks:       hooks,
	})
	// queued hook events are written to stderr; flush them before our own output
	drain()
	if err != nil {
		fmt.Fprintln(stderr, err)
		var pe *sequence.ParseError
		if errors.As(err, &pe) {
			return exitParse
		}
		return exitFail
	}

	fmt.Fprintln(stdout, res)
	if cfg.Verbose {
		s := counts.Snapshot()
		fmt.Fprintf(stderr, "%s lost=%d elapsed=%s\n", s, res.Lost(), res.Elapsed)
	}
	return exitOK
}

func newLogger(cfg config.Config, w io.Writer) (gas.Logger, func(), error) {
	switch cfg.Logger {
	case "logrus":
		l, err := logruslog.New(w, cfg.LogLevel)
		return l, func() {}, err
	case "slog":
		l, err := sloglog.New(w, cfg.LogLevel)
		return l, func() {}, err
	default:
		l, err := zaplog.New(w, cfg.LogLevel)
		if err != nil {
			return nil, nil, err
		}
		return l, func() { _ = l.Sync() }, nil
	}
}

// openBackend is newDialer; tests swap it to inject a store.
var openBackend = newDialer

// newDialer returns the per-connection dial func for cfg.Backend and a
// cleanup for whatever the connections share.
func newDialer(cfg config.Config) (store.DialFunc, func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	switch cfg.Backend {
	case "memcache":
		return memcache.Dialer(memcache.Config{Addr: cfg.Addr()}), noop, nil
	case "redis":
		return redis.Dialer(goredis.Options{Addr: cfg.Addr()}), noop, nil
	case "bigcache":
		p, err := bigcache.New(bigcache.Config{})
		if err != nil {
			return nil, nil, err
		}
		sh := inproc.NewShared(p)
		return sh.Dial, sh.Close, nil
	case "ristretto":
		p, err := ristretto.New(ristretto.Config{})
		if err != nil {
			return nil, nil, err
		}
		sh := inproc.NewShared(p)
		return sh.Dial, sh.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}
