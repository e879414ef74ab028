package getapplyset

import (
	"context"
	"fmt"

	"github.com/unkn0wn-root/getapplyset/sequence"
	"github.com/unkn0wn-root/getapplyset/store"
)

// DefaultConcurrency is the number of workers when Options.Concurrency is 0.
const DefaultConcurrency = 2

// NextFunc computes the value to write from the current one.
// ok is false when the key is absent.
type NextFunc func(raw []byte, ok bool) ([]byte, error)

// Strategy performs exactly one accepted update of key.
type Strategy interface {
	Name() string
	Update(ctx context.Context, st store.Store, key string, next NextFunc) error
}

// Options configure one Run.
// Key, Iterations, Strategy and Dial are required; others have sensible defaults.
type Options struct {
	// Required
	Key        string
	Iterations int // per worker, >= 1
	Strategy   Strategy
	Dial       store.DialFunc // called once for the driver and once per worker

	Concurrency int                // 0 => DefaultConcurrency
	Sequencer   sequence.Sequencer // zero value => decimal text
	Logger      Logger             // nil => NopLogger
	Hooks       Hooks              // nil => NopHooks
}

func (o Options) withDefaults() (Options, error) {
	if o.Key == "" {
		return o, fmt.Errorf("getapplyset: key is required")
	}
	if o.Iterations < 1 {
		return o, fmt.Errorf("getapplyset: iterations must be >= 1, got %d", o.Iterations)
	}
	if o.Strategy == nil {
		return o, fmt.Errorf("getapplyset: strategy is required")
	}
	if o.Dial == nil {
		return o, fmt.Errorf("getapplyset: dial func is required")
	}
	if o.Concurrency < 0 {
		return o, fmt.Errorf("getapplyset: concurrency must be >= 0, got %d", o.Concurrency)
	}
	o.Concurrency = coalesce(o.Concurrency, DefaultConcurrency)
	o.Logger = coalesce[Logger](o.Logger, NopLogger{})
	o.Hooks = coalesce[Hooks](o.Hooks, NopHooks{})
	return o, nil
}

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
