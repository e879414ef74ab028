// Package getapplyset checks that a cache's compare-and-swap really is atomic
// by racing several workers on one shared counter key.
//
// Each worker repeatedly reads the counter, computes the next value of a fixed
// walk (see package sequence) and writes it back. Two strategies do that:
//
//   - NonAtomic: Get then Set. Two workers that read the same value both write
//     its successor and one update is lost. This is the control group.
//   - Atomic: Gets then CompareAndSwap (or Add when the key is absent),
//     retrying on conflict. Every accepted write is based on the version it
//     read, so no update is lost under any interleaving.
//
// After all workers finish, the oracle replays the walk workers×iterations
// times and the verifier compares that with the stored value:
//
//	res, err := getapplyset.Run(ctx, getapplyset.Options{
//	    Key:         "counter",
//	    Iterations:  5,
//	    Concurrency: 2,
//	    Strategy:    getapplyset.Atomic{},
//	    Dial:        memcache.Dialer(memcache.Config{Addr: "127.0.0.1:11211"}),
//	})
//	fmt.Println(res) // expected: 19, actual: 19
//
// Components:
//   - store.Store: the capability contract (get, gets, set, add, cas, delete),
//     with memcached, Redis and in-process (BigCache/Ristretto) backends.
//   - Strategy: one update of the counter.
//   - Run: the concurrent driver, oracle and verifier.
package getapplyset
