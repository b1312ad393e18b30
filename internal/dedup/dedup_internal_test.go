package dedup

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trackboard/internal/logging"
)

// joinObservingHandler signals every time a call reports joining an in-flight
// operation. Tests use it to release a blocked leader only after a waiter is
// committed to the shared operation, which no amount of channel plumbing in
// the create functions can guarantee on its own.
type joinObservingHandler struct {
	slog.Handler
	joined chan struct{}
}

func (h *joinObservingHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Message == "Joining in-flight operation" {
		h.joined <- struct{}{}
	}
	return h.Handler.Handle(ctx, r)
}

func contextObservingJoins(t *testing.T) (context.Context, chan struct{}) {
	t.Helper()

	joined := make(chan struct{}, 16)
	handler := &joinObservingHandler{
		Handler: slog.NewJSONHandler(io.Discard, nil),
		joined:  joined,
	}
	return logging.AddToContext(t.Context(), slog.New(handler)), joined
}

func entryCount[T any](d *Deduper[T]) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.inflight)
}

func unreachableCreate(t *testing.T) func() (string, error) {
	return func() (string, error) {
		t.Error("create invoked for a call that should have joined")
		return "", nil
	}
}

func TestDeduplicateConcurrentCallsShareResult(t *testing.T) {
	t.Parallel()

	d := New[string]()
	ctx, joined := contextObservingJoins(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	var invocations atomic.Int32

	leaderResult := make(chan string, 1)
	go func() {
		value, err := d.Deduplicate(ctx, "user-1", func() (string, error) {
			invocations.Add(1)
			close(entered)
			<-release
			return "stats", nil
		})
		assert.NoError(t, err)
		leaderResult <- value
	}()

	<-entered

	waiterResult := make(chan string, 1)
	go func() {
		value, err := d.Deduplicate(ctx, "user-1", unreachableCreate(t))
		assert.NoError(t, err)
		waiterResult <- value
	}()

	<-joined
	close(release)

	assert.Equal(t, "stats", <-leaderResult)
	assert.Equal(t, "stats", <-waiterResult)
	assert.EqualValues(t, 1, invocations.Load())
	assert.Equal(t, 0, entryCount(d))
}

func TestDeduplicateConcurrentCallsShareError(t *testing.T) {
	t.Parallel()

	d := New[string]()
	ctx, joined := contextObservingJoins(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	boom := errors.New("boom")

	leaderErr := make(chan error, 1)
	go func() {
		_, err := d.Deduplicate(ctx, "user-1", func() (string, error) {
			close(entered)
			<-release
			return "", boom
		})
		leaderErr <- err
	}()

	<-entered

	waiterErr := make(chan error, 1)
	go func() {
		_, err := d.Deduplicate(ctx, "user-1", unreachableCreate(t))
		waiterErr <- err
	}()

	<-joined
	close(release)

	require.ErrorIs(t, <-leaderErr, boom)
	require.ErrorIs(t, <-waiterErr, boom)
	assert.Equal(t, 0, entryCount(d))
}

func TestDeduplicateRemovesEntryOnSettlement(t *testing.T) {
	t.Parallel()

	d := New[string]()

	_, err := d.Deduplicate(t.Context(), "ok", func() (string, error) {
		return "fine", nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, entryCount(d))

	_, err = d.Deduplicate(t.Context(), "broken", func() (string, error) {
		return "", errors.New("boom")
	})
	require.Error(t, err)
	assert.Equal(t, 0, entryCount(d))
}

func TestClearEmptiesTableWithoutSettling(t *testing.T) {
	t.Parallel()

	d := New[string]()

	entered := make(chan struct{})
	release := make(chan struct{})

	leaderResult := make(chan string, 1)
	go func() {
		value, err := d.Deduplicate(t.Context(), "user-1", func() (string, error) {
			close(entered)
			<-release
			return "survived", nil
		})
		assert.NoError(t, err)
		leaderResult <- value
	}()

	<-entered
	require.Equal(t, 1, entryCount(d))

	d.Clear()
	assert.Equal(t, 0, entryCount(d))

	// The cleared operation keeps running and still settles for its caller.
	close(release)
	assert.Equal(t, "survived", <-leaderResult)
	assert.Equal(t, 0, entryCount(d))
}

func TestSettlingOldOperationKeepsSuccessorEntry(t *testing.T) {
	t.Parallel()

	d := New[string]()
	ctx, joined := contextObservingJoins(t)

	enteredOld := make(chan struct{})
	releaseOld := make(chan struct{})
	oldResult := make(chan string, 1)
	go func() {
		value, err := d.Deduplicate(ctx, "user-1", func() (string, error) {
			close(enteredOld)
			<-releaseOld
			return "stale", nil
		})
		assert.NoError(t, err)
		oldResult <- value
	}()

	<-enteredOld
	d.Clear()

	enteredNew := make(chan struct{})
	releaseNew := make(chan struct{})
	newResult := make(chan string, 1)
	go func() {
		value, err := d.Deduplicate(ctx, "user-1", func() (string, error) {
			close(enteredNew)
			<-releaseNew
			return "fresh", nil
		})
		assert.NoError(t, err)
		newResult <- value
	}()

	<-enteredNew

	// The old operation settles while a successor is registered under the
	// same key. Removal is identity-guarded, so the successor entry stays.
	close(releaseOld)
	assert.Equal(t, "stale", <-oldResult)
	require.Equal(t, 1, entryCount(d))

	waiterResult := make(chan string, 1)
	go func() {
		value, err := d.Deduplicate(ctx, "user-1", unreachableCreate(t))
		assert.NoError(t, err)
		waiterResult <- value
	}()

	<-joined
	close(releaseNew)

	assert.Equal(t, "fresh", <-newResult)
	assert.Equal(t, "fresh", <-waiterResult)
	assert.Equal(t, 0, entryCount(d))
}

func TestWokenWaiterRecallStartsFresh(t *testing.T) {
	t.Parallel()

	// The entry leaves the table before waiters wake, so a waiter calling
	// again right after receiving the outcome can never re-join the settled
	// operation. Its second call either runs a fresh create or coalesces
	// with another second call. The interleaving at settlement cannot be
	// forced from outside, so hammer it.
	const waiters = 8
	const attempts = 3000

	d := New[string]()

	for range attempts {
		ctx, joined := contextObservingJoins(t)

		entered := make(chan struct{})
		release := make(chan struct{})

		leaderResult := make(chan string, 1)
		go func() {
			value, err := d.Deduplicate(ctx, "user-1", func() (string, error) {
				close(entered)
				<-release
				return "old", nil
			})
			assert.NoError(t, err)
			leaderResult <- value
		}()

		<-entered

		recallResults := make(chan string, waiters)
		for range waiters {
			go func() {
				first, err := d.Deduplicate(ctx, "user-1", unreachableCreate(t))
				assert.NoError(t, err)
				assert.Equal(t, "old", first)

				second, err := d.Deduplicate(ctx, "user-1", func() (string, error) {
					return "new", nil
				})
				assert.NoError(t, err)
				recallResults <- second
			}()
		}

		for range waiters {
			<-joined
		}
		close(release)

		assert.Equal(t, "old", <-leaderResult)
		for range waiters {
			require.Equal(t, "new", <-recallResults)
		}
	}

	assert.Equal(t, 0, entryCount(d))
}

func TestDeduplicateWaiterDetachesOnContextCancel(t *testing.T) {
	t.Parallel()

	d := New[string]()
	ctx, joined := contextObservingJoins(t)

	entered := make(chan struct{})
	release := make(chan struct{})

	leaderResult := make(chan string, 1)
	go func() {
		value, err := d.Deduplicate(t.Context(), "user-1", func() (string, error) {
			close(entered)
			<-release
			return "late", nil
		})
		assert.NoError(t, err)
		leaderResult <- value
	}()

	<-entered

	waiterCtx, cancel := context.WithCancel(ctx)
	waiterErr := make(chan error, 1)
	go func() {
		_, err := d.Deduplicate(waiterCtx, "user-1", unreachableCreate(t))
		waiterErr <- err
	}()

	<-joined
	cancel()
	require.ErrorIs(t, <-waiterErr, context.Canceled)

	// Detaching a waiter does not cancel the underlying operation.
	close(release)
	assert.Equal(t, "late", <-leaderResult)
}

func TestDeduplicatePanicReleasesWaiters(t *testing.T) {
	t.Parallel()

	d := New[string]()
	ctx, joined := contextObservingJoins(t)

	entered := make(chan struct{})
	release := make(chan struct{})

	panicked := make(chan any, 1)
	go func() {
		defer func() {
			panicked <- recover()
		}()
		_, _ = d.Deduplicate(ctx, "user-1", func() (string, error) {
			close(entered)
			<-release
			panic("create exploded")
		})
	}()

	<-entered

	waiterErr := make(chan error, 1)
	go func() {
		_, err := d.Deduplicate(ctx, "user-1", unreachableCreate(t))
		waiterErr <- err
	}()

	<-joined
	close(release)

	assert.Equal(t, "create exploded", <-panicked)
	require.ErrorIs(t, <-waiterErr, ErrAborted)
	assert.Equal(t, 0, entryCount(d))
}

func TestForgetDropsOnlyThatKey(t *testing.T) {
	t.Parallel()

	d := New[string]()

	entered := make(chan struct{}, 2)
	release := make(chan struct{})
	results := make(chan error, 2)

	for _, key := range []string{"user-1", "user-2"} {
		go func() {
			_, err := d.Deduplicate(t.Context(), key, func() (string, error) {
				entered <- struct{}{}
				<-release
				return key, nil
			})
			results <- err
		}()
	}

	<-entered
	<-entered
	require.Equal(t, 2, entryCount(d))

	d.Forget("user-1")
	assert.Equal(t, 1, entryCount(d))

	d.Forget("never-registered")
	assert.Equal(t, 1, entryCount(d))

	close(release)
	assert.NoError(t, <-results)
	assert.NoError(t, <-results)
}
