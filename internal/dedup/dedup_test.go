package dedup_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trackboard/internal/dedup"
)

func TestDeduplicateReturnsCreateResult(t *testing.T) {
	t.Parallel()

	d := dedup.New[int]()

	calls := 0
	create := func() (int, error) {
		calls++
		return 42, nil
	}

	value, err := d.Deduplicate(t.Context(), "user-1", create)
	require.NoError(t, err)
	assert.Equal(t, 42, value)
	assert.Equal(t, 1, calls)

	// The first operation settled, so a sequential call runs create again.
	value, err = d.Deduplicate(t.Context(), "user-1", create)
	require.NoError(t, err)
	assert.Equal(t, 42, value)
	assert.Equal(t, 2, calls)
}

func TestDeduplicatePropagatesError(t *testing.T) {
	t.Parallel()

	d := dedup.New[string]()

	boom := errors.New("boom")
	value, err := d.Deduplicate(t.Context(), "user-1", func() (string, error) {
		return "", boom
	})
	require.ErrorIs(t, err, boom)
	assert.Empty(t, value)

	// A failed operation is removed on settlement, so the next call starts
	// fresh instead of reusing the failure.
	value, err = d.Deduplicate(t.Context(), "user-1", func() (string, error) {
		return "recovered", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "recovered", value)
}

func TestDeduplicateDistinctKeysRunIndependently(t *testing.T) {
	t.Parallel()

	d := dedup.New[string]()

	entered := make(chan struct{})
	release := make(chan struct{})

	firstResult := make(chan string, 1)
	go func() {
		value, err := d.Deduplicate(t.Context(), "user-1", func() (string, error) {
			close(entered)
			<-release
			return "first", nil
		})
		assert.NoError(t, err)
		firstResult <- value
	}()

	<-entered

	// A different key must not join the pending operation for "user-1".
	value, err := d.Deduplicate(t.Context(), "user-2", func() (string, error) {
		return "second", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "second", value)

	close(release)
	assert.Equal(t, "first", <-firstResult)
}

func TestClearStartsNewOperationWhilePending(t *testing.T) {
	t.Parallel()

	d := dedup.New[string]()

	entered := make(chan struct{})
	release := make(chan struct{})

	oldResult := make(chan string, 1)
	go func() {
		value, err := d.Deduplicate(t.Context(), "user-1", func() (string, error) {
			close(entered)
			<-release
			return "old", nil
		})
		assert.NoError(t, err)
		oldResult <- value
	}()

	<-entered
	d.Clear()

	// The old operation is still pending, but Clear forgot it, so this call
	// must run its own create instead of joining.
	value, err := d.Deduplicate(t.Context(), "user-1", func() (string, error) {
		return "new", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "new", value)

	// The cleared operation still runs to completion for its own caller.
	close(release)
	assert.Equal(t, "old", <-oldResult)
}

func TestForgetStartsNewOperationWhilePending(t *testing.T) {
	t.Parallel()

	d := dedup.New[string]()

	entered := make(chan struct{})
	release := make(chan struct{})

	oldResult := make(chan string, 1)
	go func() {
		value, err := d.Deduplicate(t.Context(), "user-1", func() (string, error) {
			close(entered)
			<-release
			return "old", nil
		})
		assert.NoError(t, err)
		oldResult <- value
	}()

	<-entered
	d.Forget("user-1")

	value, err := d.Deduplicate(t.Context(), "user-1", func() (string, error) {
		return "new", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "new", value)

	close(release)
	assert.Equal(t, "old", <-oldResult)
}
