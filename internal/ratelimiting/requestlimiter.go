package ratelimiting

import (
	"context"
	"slices"
	"sync"
	"time"
)

// slidingWindowLimiter allows at most capacity operations to start within
// any window, and at most capacity operations to run concurrently. Callers
// past the limit wait for the window to free up rather than failing.
type slidingWindowLimiter struct {
	capacity int
	window   time.Duration
	now      func() time.Time
	after    func(time.Duration) <-chan time.Time

	slots   chan struct{}
	history []time.Time
	mu      sync.Mutex
}

func NewSlidingWindowLimiter(
	capacity int,
	window time.Duration,
	now func() time.Time,
	after func(time.Duration) <-chan time.Time,
) *slidingWindowLimiter {
	slots := make(chan struct{}, capacity)
	for i := 0; i < capacity; i++ {
		slots <- struct{}{}
	}

	// Seed the history so that the first capacity operations start
	// without waiting.
	history := make([]time.Time, capacity)
	expired := now().Add(-window)
	for i := range history {
		history[i] = expired
	}

	return &slidingWindowLimiter{
		capacity: capacity,
		window:   window,
		now:      now,
		after:    after,

		slots:   slots,
		history: history,
	}
}

func insertByTime(arr []time.Time, t time.Time) []time.Time {
	i, _ := slices.BinarySearchFunc(arr, t, func(a, b time.Time) int {
		return a.Compare(b)
	})
	return slices.Insert(arr, i, t)
}

// Limit runs operation once the window allows it, or returns false without
// running it if ctx is cancelled first, or if ctx carries a deadline that
// would expire before the wait plus maxOperationTime has passed.
func (l *slidingWindowLimiter) Limit(ctx context.Context, maxOperationTime time.Duration, operation func()) bool {
	return l.LimitCancelable(ctx, maxOperationTime, func() bool {
		operation()
		return true
	})
}

// LimitCancelable is Limit for operations that may decline to run after
// the wait. An operation returning false does not count against the window.
func (l *slidingWindowLimiter) LimitCancelable(ctx context.Context, maxOperationTime time.Duration, operation func() bool) bool {
	return l.run(ctx, func(ctx context.Context, wait time.Duration) bool {
		deadline, ok := ctx.Deadline()
		if !ok {
			return true
		}

		needed := wait + maxOperationTime
		untilDeadline := deadline.Sub(l.now())
		return needed <= untilDeadline
	}, operation)
}

func (l *slidingWindowLimiter) run(ctx context.Context, shouldProceed func(ctx context.Context, wait time.Duration) bool, operation func() bool) bool {
	select {
	case <-l.slots:
		defer func() {
			l.slots <- struct{}{}
		}()
	case <-ctx.Done():
		return false
	}

	oldest, ok := l.takeOldest(ctx, shouldProceed)
	if !ok {
		return false
	}
	// The taken entry must be restored if the operation never runs,
	// otherwise the history would shrink below capacity.
	toRestore := oldest
	defer func() {
		l.insert(toRestore)
	}()

	if wait := l.timeUntilFree(oldest); wait > 0 {
		select {
		case <-ctx.Done():
			return false
		case <-l.after(wait):
		}
	}

	if !operation() {
		return false
	}

	toRestore = l.now()
	return true
}

func (l *slidingWindowLimiter) timeUntilFree(oldest time.Time) time.Duration {
	elapsed := l.now().Sub(oldest)
	return l.window - elapsed
}

func (l *slidingWindowLimiter) insert(finishedAt time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.history = insertByTime(l.history, finishedAt)
}

func (l *slidingWindowLimiter) takeOldest(ctx context.Context, shouldProceed func(context.Context, time.Duration) bool) (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	oldest := l.history[0]
	wait := l.timeUntilFree(oldest)
	if !shouldProceed(ctx, wait) {
		return time.Time{}, false
	}

	l.history = l.history[1:]
	return oldest, true
}
