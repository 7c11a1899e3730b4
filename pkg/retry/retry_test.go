package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/niksmo/gallery/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTemp = errors.New("temporary")

func fastConfig(attempts int) retry.RetryConfig {
	return retry.RetryConfig{
		MaxAttempts: attempts,
		Backoff:     retry.LinearBackoff(time.Millisecond),
	}
}

func TestDoWithResult(t *testing.T) {
	t.Run("SucceedsAfterRetries", func(t *testing.T) {
		calls := 0
		got, err := retry.DoWithResult(t.Context(), fastConfig(3), func() (int, error) {
			calls++
			if calls < 3 {
				return 0, errTemp
			}
			return 42, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 42, got)
		assert.Equal(t, 3, calls)
	})

	t.Run("ReturnsLastError", func(t *testing.T) {
		calls := 0
		_, err := retry.DoWithResult(t.Context(), fastConfig(2), func() (int, error) {
			calls++
			return 1, errTemp
		})
		require.ErrorIs(t, err, errTemp)
		assert.Equal(t, 2, calls)
	})

	t.Run("NonRetryableErrorIsReturned", func(t *testing.T) {
		errFatal := errors.New("fatal")
		c := fastConfig(5)
		c.ShouldRetry = func(err error) bool { return !errors.Is(err, errFatal) }

		calls := 0
		got, err := retry.DoWithResult(t.Context(), c, func() (int, error) {
			calls++
			return 7, errFatal
		})
		require.ErrorIs(t, err, errFatal)
		assert.Zero(t, got)
		assert.Equal(t, 1, calls)
	})

	t.Run("ZeroAttemptsRunsOnce", func(t *testing.T) {
		calls := 0
		err := retry.Do(t.Context(), retry.RetryConfig{}, func() error {
			calls++
			return errTemp
		})
		require.ErrorIs(t, err, errTemp)
		assert.Equal(t, 1, calls)
	})

	t.Run("CanceledContext", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		err := retry.Do(ctx, fastConfig(3), func() error { return nil })
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("CanceledWhileWaiting", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		c := retry.RetryConfig{MaxAttempts: 3, Backoff: retry.LinearBackoff(time.Hour)}
		err := retry.Do(ctx, c, func() error {
			cancel()
			return errTemp
		})
		require.ErrorIs(t, err, context.Canceled)
		require.ErrorIs(t, err, errTemp)
	})
}

func TestExponentialBackoff(t *testing.T) {
	b := retry.ExponentialBackoff(10 * time.Millisecond)
	for attempt := 1; attempt <= 4; attempt++ {
		base := (1 << attempt) * 10 * time.Millisecond
		got := b(attempt)
		assert.GreaterOrEqual(t, got, base)
		assert.LessOrEqual(t, got, base+base/2)
	}
	assert.Zero(t, retry.ExponentialBackoff(0)(1))
}
