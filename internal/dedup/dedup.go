// Package dedup coalesces concurrent operations that share a key, so that at
// most one runs at a time while every concurrent caller observes its outcome.
// It is used to stop identical backend fetches from piling up when many
// clients ask for the same data at once.
package dedup

import (
	"context"
	"errors"
	"sync"

	"trackboard/internal/logging"
)

// ErrAborted is observed by waiters when the leading call exits without
// settling, which only happens if create panics.
var ErrAborted = errors.New("in-flight operation aborted")

// operation is a single in-flight call.
type operation[T any] struct {
	done chan struct{}

	// value and err are written once before done is closed and only read
	// after done is closed.
	value T
	err   error
}

// Deduper tracks in-flight operations by key. Each instance owns its table;
// a key in one Deduper never interacts with the same key in another.
type Deduper[T any] struct {
	mu       sync.Mutex
	inflight map[string]*operation[T]
}

func New[T any]() *Deduper[T] {
	return &Deduper[T]{
		inflight: make(map[string]*operation[T]),
	}
}

// Deduplicate returns the result of create(). If an operation for key is
// already in flight, create is not invoked and the call waits for the
// in-flight operation's outcome instead. Keys are compared by exact string
// equality; no normalization is performed.
//
// Cancelling ctx detaches this caller only. The underlying operation is never
// cancelled and runs to completion in the goroutine that started it.
func (d *Deduper[T]) Deduplicate(ctx context.Context, key string, create func() (T, error)) (T, error) {
	d.mu.Lock()
	if op, ok := d.inflight[key]; ok {
		d.mu.Unlock()
		logging.FromContext(ctx).InfoContext(ctx, "Joining in-flight operation", "key", key)

		select {
		case <-op.done:
			return op.value, op.err
		case <-ctx.Done():
			var empty T
			return empty, ctx.Err()
		}
	}

	op := &operation[T]{done: make(chan struct{})}
	d.inflight[key] = op
	d.mu.Unlock()
	logging.FromContext(ctx).InfoContext(ctx, "Starting deduplicated operation", "key", key)

	// Settle the operation even if create panics, so waiters are released
	// and the key does not stay claimed forever.
	settled := false
	defer func() {
		if settled {
			return
		}
		op.err = ErrAborted
		d.remove(key, op)
		close(op.done)
	}()

	op.value, op.err = create()
	settled = true
	// The entry must leave the table before waiters wake, so a caller that
	// re-calls after observing the outcome starts a fresh operation instead
	// of re-joining the settled one.
	d.remove(key, op)
	close(op.done)

	return op.value, op.err
}

// Forget drops the in-flight operation for key, if any. The operation itself
// keeps running and already-joined callers still receive its outcome, but new
// calls for key start fresh. Used to invalidate results known to be stale.
func (d *Deduper[T]) Forget(key string) {
	d.mu.Lock()
	delete(d.inflight, key)
	d.mu.Unlock()
}

// Clear drops all in-flight operations without cancelling or settling them.
// Intended for teardown and tests, not for steady-state use.
func (d *Deduper[T]) Clear() {
	d.mu.Lock()
	d.inflight = make(map[string]*operation[T])
	d.mu.Unlock()
}

// remove deletes the table entry for key, but only if it still belongs to op.
// Clear, Forget or a successor registration may have replaced it, and their
// state must not be clobbered by a settling predecessor.
func (d *Deduper[T]) remove(key string, op *operation[T]) {
	d.mu.Lock()
	if current, ok := d.inflight[key]; ok && current == op {
		delete(d.inflight, key)
	}
	d.mu.Unlock()
}
