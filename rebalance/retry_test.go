package rebalance_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/shelfbalance/stock-rebalancer-go/rebalance"
)

func Test_RetryWithExponentialBackoff_Success_NoRetries(t *testing.T) {
	ctx := context.Background()
	callCount := 0

	fn := func(_ context.Context) error {
		callCount++
		return nil // Success on the first attempt
	}

	err := rebalance.RetryWithExponentialBackoff(ctx, fn)

	assert.NoError(t, err)
	assert.Equal(t, 1, callCount)
}

func Test_RetryWithExponentialBackoff_RetryOnTransferConflict(t *testing.T) {
	ctx := context.Background()
	callCount := 0

	fn := func(_ context.Context) error {
		callCount++
		if callCount < 3 {
			return rebalance.ErrTransferConflict // Fail twice
		}
		return nil // Success on the third attempt
	}

	err := rebalance.RetryWithExponentialBackoff(ctx, fn,
		rebalance.WithBaseDelay(time.Millisecond))

	assert.NoError(t, err)
	assert.Equal(t, 3, callCount)
}

func Test_RetryWithExponentialBackoff_FailsFast_OnNonRetryableError(t *testing.T) {
	ctx := context.Background()
	callCount := 0
	permanent := errors.New("something broke for good")

	fn := func(_ context.Context) error {
		callCount++
		return permanent
	}

	err := rebalance.RetryWithExponentialBackoff(ctx, fn)

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, callCount)
}

func Test_RetryWithExponentialBackoff_FailsFast_OnValidationErrors(t *testing.T) {
	ctx := context.Background()

	for _, validationErr := range []error{
		rebalance.ErrSourceInsufficient,
		rebalance.ErrDestinationFull,
		rebalance.ErrLibraryNotFound,
	} {
		callCount := 0
		fn := func(_ context.Context) error {
			callCount++
			return validationErr
		}

		err := rebalance.RetryWithExponentialBackoff(ctx, fn)

		assert.ErrorIs(t, err, validationErr)
		assert.Equal(t, 1, callCount)
	}
}

func Test_RetryWithExponentialBackoff_ReturnsLastError_WhenAttemptsExhausted(t *testing.T) {
	ctx := context.Background()
	callCount := 0

	fn := func(_ context.Context) error {
		callCount++
		return rebalance.ErrTransferConflict
	}

	err := rebalance.RetryWithExponentialBackoff(ctx, fn,
		rebalance.WithMaxAttempts(3),
		rebalance.WithBaseDelay(time.Millisecond),
		rebalance.WithJitterFactor(0.0))

	assert.ErrorIs(t, err, rebalance.ErrTransferConflict)
	assert.Equal(t, 3, callCount)
}

func Test_RetryWithExponentialBackoff_StopsWaiting_WhenContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	callCount := 0

	fn := func(_ context.Context) error {
		callCount++
		cancel() // cancel while the backoff wait is pending
		return rebalance.ErrTransferConflict
	}

	err := rebalance.RetryWithExponentialBackoff(ctx, fn,
		rebalance.WithBaseDelay(50*time.Millisecond))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, callCount)
}

func Test_RetryWithExponentialBackoff_InvalidOptions(t *testing.T) {
	ctx := context.Background()
	fn := func(_ context.Context) error { return nil }

	// Test invalid max attempts
	err := rebalance.RetryWithExponentialBackoff(ctx, fn, rebalance.WithMaxAttempts(0))
	assert.ErrorIs(t, err, rebalance.ErrInvalidMaxAttempts)

	// Test negative base delay
	err = rebalance.RetryWithExponentialBackoff(ctx, fn, rebalance.WithBaseDelay(-1*time.Second))
	assert.ErrorIs(t, err, rebalance.ErrNegativeBaseDelay)

	// Test invalid jitter factor
	err = rebalance.RetryWithExponentialBackoff(ctx, fn, rebalance.WithJitterFactor(1.5))
	assert.ErrorIs(t, err, rebalance.ErrInvalidJitterFactor)
}
