package getapplyset

import "time"

// Hooks are lightweight callbacks for the events that explain a run: how
// often the CAS loop had to retry and why.
// Implementations MUST be cheap and non-blocking; they are called from the
// workers' hot loop. Wrap slow sinks with hooks/async.
type Hooks interface {
	// Add-if-absent lost to another writer that created the key first.
	AddConflict(key string, attempt int)

	// CompareAndSwap was rejected because the version moved.
	VersionConflict(key string, attempt int)

	// A store call inside the retry loop failed with a non-fatal error.
	// op ∈ {"gets", "add", "cas"}
	StoreError(key, op string, err error)

	// An atomic update was accepted on its attempts-th try.
	Applied(key string, attempts int)

	// A worker finished all of its iterations.
	WorkerDone(worker, iterations int, elapsed time.Duration)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) AddConflict(string, int)            {}
func (NopHooks) VersionConflict(string, int)        {}
func (NopHooks) StoreError(string, string, error)   {}
func (NopHooks) Applied(string, int)                {}
func (NopHooks) WorkerDone(int, int, time.Duration) {}

// MultiHooks fans every event out to each member in order.
type MultiHooks []Hooks

var _ Hooks = MultiHooks(nil)

func (m MultiHooks) AddConflict(k string, a int) {
	for _, h := range m {
		h.AddConflict(k, a)
	}
}

func (m MultiHooks) VersionConflict(k string, a int) {
	for _, h := range m {
		h.VersionConflict(k, a)
	}
}

func (m MultiHooks) StoreError(k, op string, err error) {
	for _, h := range m {
		h.StoreError(k, op, err)
	}
}

func (m MultiHooks) Applied(k string, a int) {
	for _, h := range m {
		h.Applied(k, a)
	}
}

func (m MultiHooks) WorkerDone(w, n int, d time.Duration) {
	for _, h := range m {
		h.WorkerDone(w, n, d)
	}
}
