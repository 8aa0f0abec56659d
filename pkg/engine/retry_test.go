package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPolicy() RetryPolicy {
	return RetryPolicy{
		MaxBuyAttempts:  3,
		MaxSellAttempts: 5,
		SellOnlyRetry:   true,
		BackoffInitial:  2 * time.Second,
		BackoffMax:      30 * time.Second,
		SlippageStepBps: 25,
		SlippageMaxBps:  300,
	}
}

// instantExecutor returns a retry executor whose backoff sleeps record their
// durations instead of waiting.
func instantExecutor(policy RetryPolicy) (*RetryExecutor, *[]time.Duration) {
	r := NewRetryExecutor(policy, nil)
	var slept []time.Duration
	r.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	return r, &slept
}

func TestMaxAttemptsSellOnlyRetry(t *testing.T) {
	r := NewRetryExecutor(testPolicy(), nil)
	assert.Equal(t, 1, r.MaxAttempts(LegBuy))
	assert.Equal(t, 5, r.MaxAttempts(LegSell))

	p := testPolicy()
	p.SellOnlyRetry = false
	r = NewRetryExecutor(p, nil)
	assert.Equal(t, 3, r.MaxAttempts(LegBuy))
	assert.Equal(t, 5, r.MaxAttempts(LegSell))
}

func TestSlippageEscalation(t *testing.T) {
	r := NewRetryExecutor(testPolicy(), nil)

	assert.Equal(t, 50, r.SlippageForAttempt(50, 1))
	assert.Equal(t, 75, r.SlippageForAttempt(50, 2))
	assert.Equal(t, 100, r.SlippageForAttempt(50, 3))

	// Cap, and never decreasing past it.
	assert.Equal(t, 300, r.SlippageForAttempt(50, 11))
	assert.Equal(t, 300, r.SlippageForAttempt(50, 50))
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	r := NewRetryExecutor(testPolicy(), nil)

	assert.Equal(t, 2*time.Second, r.backoffForAttempt(1))
	assert.Equal(t, 4*time.Second, r.backoffForAttempt(2))
	assert.Equal(t, 8*time.Second, r.backoffForAttempt(3))
	assert.Equal(t, 16*time.Second, r.backoffForAttempt(4))
	assert.Equal(t, 30*time.Second, r.backoffForAttempt(5))
	assert.Equal(t, 30*time.Second, r.backoffForAttempt(20))
}

func TestAttemptSucceedsAfterTransientFailures(t *testing.T) {
	r, slept := instantExecutor(testPolicy())

	var slippages []int
	calls := 0
	attempts, err := r.Attempt(context.Background(), LegSell, 50, func(ctx context.Context, bps int) error {
		calls++
		slippages = append(slippages, bps)
		if calls < 3 {
			return fmt.Errorf("price moved")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []int{50, 75, 100}, slippages)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, *slept)
}

func TestAttemptSellEscalatesToSuccess(t *testing.T) {
	p := testPolicy()
	p.MaxSellAttempts = 5
	p.SlippageMaxBps = 200
	r, _ := instantExecutor(p)

	var slippages []int
	calls := 0
	attempts, err := r.Attempt(context.Background(), LegSell, 50, func(ctx context.Context, bps int) error {
		calls++
		slippages = append(slippages, bps)
		if calls <= 3 {
			return fmt.Errorf("slippage exceeded")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 4, attempts)
	assert.Equal(t, []int{50, 75, 100, 125}, slippages)
}

func TestAttemptBuyGetsSingleAttempt(t *testing.T) {
	r, slept := instantExecutor(testPolicy())

	calls := 0
	attempts, err := r.Attempt(context.Background(), LegBuy, 50, func(ctx context.Context, bps int) error {
		calls++
		return fmt.Errorf("quote failed")
	})

	require.ErrorIs(t, err, ErrRetriesExhausted)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *slept, "single attempt must not back off")
}

func TestAttemptExhaustionWrapsUnderlyingError(t *testing.T) {
	r, _ := instantExecutor(testPolicy())

	underlying := errors.New("rpc timeout")
	_, err := r.Attempt(context.Background(), LegSell, 50, func(ctx context.Context, bps int) error {
		return underlying
	})

	require.ErrorIs(t, err, ErrRetriesExhausted)
	require.ErrorIs(t, err, underlying)
	assert.False(t, IsFatal(err))
}

func TestAttemptFatalAbortsImmediately(t *testing.T) {
	r, slept := instantExecutor(testPolicy())

	calls := 0
	attempts, err := r.Attempt(context.Background(), LegSell, 50, func(ctx context.Context, bps int) error {
		calls++
		return fmt.Errorf("%w: decimals look wrong", ErrSafetyViolation)
	})

	require.ErrorIs(t, err, ErrSafetyViolation)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *slept)
}

func TestAttemptStopsOnCanceledContext(t *testing.T) {
	r, _ := instantExecutor(testPolicy())

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := r.Attempt(ctx, LegSell, 50, func(ctx context.Context, bps int) error {
		calls++
		cancel()
		return fmt.Errorf("transient")
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
