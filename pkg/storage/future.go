package storage

import "sync"

// Future is a single-resolution completion handle, the Go stand-in for
// std::promise<bool>/std::future<bool> (SPEC_FULL.md §4.2). A Future is
// resolved exactly once by the disk scheduler's background goroutine and
// observed by exactly one waiter.
type Future struct {
	done chan bool
	once sync.Once
}

// NewFuture returns an unresolved future.
func NewFuture() *Future {
	return &Future{done: make(chan bool, 1)}
}

// Resolve completes the future with ok. Only the first call takes
// effect; later calls are silently ignored, guarding against a request
// being completed twice.
func (f *Future) Resolve(ok bool) {
	f.once.Do(func() {
		f.done <- ok
	})
}

// Wait blocks until the future is resolved and returns the outcome.
func (f *Future) Wait() bool {
	return <-f.done
}
