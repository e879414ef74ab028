package getapplyset

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/unkn0wn-root/getapplyset/store"
)

// Run resets Key, races Concurrency workers on it (each with its own
// connection, each applying Strategy Iterations times) and then verifies the
// stored value against the oracle.
//
// The first worker error aborts the run: the other workers see a cancelled
// context, and Run returns that error with no Result, since a missing worker
// would make the expected value meaningless.
func Run(ctx context.Context, opts Options) (Result, error) {
	o, err := opts.withDefaults()
	if err != nil {
		return Result{}, err
	}

	admin, err := o.Dial(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("driver: %w", err)
	}
	res, err := o.run(ctx, admin)
	if cerr := admin.Close(ctx); cerr != nil {
		o.Logger.Warn("driver connection close failed", Fields{"err": cerr})
	}
	return res, err
}

func (o Options) run(ctx context.Context, admin store.Store) (Result, error) {
	if err := admin.Delete(ctx, o.Key); err != nil {
		return Result{}, fmt.Errorf("driver: reset %q: %w", o.Key, err)
	}
	o.Logger.Debug("key reset", Fields{"key": o.Key})

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < o.Concurrency; w++ {
		w := w
		g.Go(func() error { return o.worker(gctx, w) })
	}
	if err := g.Wait(); err != nil {
		o.Logger.Error("run aborted", Fields{"key": o.Key, "strategy": o.Strategy.Name(), "err": err})
		return Result{}, err
	}
	elapsed := time.Since(start)

	updates := o.Concurrency * o.Iterations
	res, err := Verify(ctx, admin, o.Key, o.Sequencer, updates)
	if err != nil {
		return Result{}, err
	}
	res.Strategy = o.Strategy.Name()
	res.Elapsed = elapsed

	o.Logger.Info("run complete", Fields{
		"key":      o.Key,
		"strategy": res.Strategy,
		"workers":  o.Concurrency,
		"updates":  updates,
		"expected": res.Expected,
		"actual":   res.Actual,
		"match":    res.Match(),
		"lost":     res.Lost(),
		"elapsed":  elapsed,
	})
	return res, nil
}

func (o Options) worker(ctx context.Context, id int) (err error) {
	conn, err := o.Dial(ctx)
	if err != nil {
		return &WorkerError{Worker: id, Iteration: -1, Err: err}
	}
	defer func() {
		if cerr := conn.Close(context.Background()); cerr != nil {
			err = multierr.Append(err, &WorkerError{Worker: id, Iteration: -1, Err: cerr})
		}
	}()

	o.Logger.Debug("worker started", Fields{"worker": id, "iterations": o.Iterations})
	start := time.Now()
	for i := 0; i < o.Iterations; i++ {
		if err := o.Strategy.Update(ctx, conn, o.Key, o.Sequencer.Next); err != nil {
			return &WorkerError{Worker: id, Iteration: i, Err: err}
		}
	}
	elapsed := time.Since(start)
	o.Hooks.WorkerDone(id, o.Iterations, elapsed)
	o.Logger.Debug("worker done", Fields{"worker": id, "elapsed": elapsed})
	return nil
}
