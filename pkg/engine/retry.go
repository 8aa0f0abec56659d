package engine

import (
	"context"
	"fmt"
	"time"
)

// LegKind distinguishes the two halves of a cycle for retry purposes.
type LegKind string

const (
	LegBuy  LegKind = "BUY"
	LegSell LegKind = "SELL"
)

// RetryPolicy controls attempt counts, backoff, and slippage escalation.
type RetryPolicy struct {
	MaxBuyAttempts  int
	MaxSellAttempts int

	// SellOnlyRetry grants a buy leg a single attempt. A failed buy leaves
	// capital in the stable asset and can be abandoned for the slot; a
	// failed sell parks capital in a volatile asset and must be retried
	// aggressively.
	SellOnlyRetry bool

	BackoffInitial time.Duration
	BackoffMax     time.Duration

	// Each retry widens slippage tolerance by Step, capped at Max. The first
	// attempt always uses the caller-supplied base tolerance. Size is never
	// widened; repeated failure under identical parameters usually means
	// price movement exceeded tolerance.
	SlippageStepBps int
	SlippageMaxBps  int
}

// Action executes one swap attempt at the given slippage tolerance.
type Action func(ctx context.Context, slippageBps int) error

// RetryExecutor wraps a single swap attempt with bounded retry, exponential
// backoff, and escalating slippage.
type RetryExecutor struct {
	policy RetryPolicy
	logf   Logf

	// sleep is replaceable in tests; it must honor context cancellation.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryExecutor creates a retry executor with the given policy.
func NewRetryExecutor(policy RetryPolicy, logf Logf) *RetryExecutor {
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	return &RetryExecutor{
		policy: policy,
		logf:   logf,
		sleep:  sleepCtx,
	}
}

// MaxAttempts returns the attempt budget for a leg kind under the policy.
func (r *RetryExecutor) MaxAttempts(kind LegKind) int {
	if kind == LegBuy {
		if r.policy.SellOnlyRetry {
			return 1
		}
		return r.policy.MaxBuyAttempts
	}
	return r.policy.MaxSellAttempts
}

// SlippageForAttempt returns the tolerance for the 1-based attempt index.
func (r *RetryExecutor) SlippageForAttempt(baseBps, attempt int) int {
	bps := baseBps + r.policy.SlippageStepBps*(attempt-1)
	if bps > r.policy.SlippageMaxBps {
		bps = r.policy.SlippageMaxBps
	}
	return bps
}

// backoffForAttempt returns the pause after the 1-based failed attempt.
func (r *RetryExecutor) backoffForAttempt(attempt int) time.Duration {
	d := r.policy.BackoffInitial << (attempt - 1)
	if d > r.policy.BackoffMax || d <= 0 {
		d = r.policy.BackoffMax
	}
	return d
}

// Attempt runs fn up to the policy's attempt budget for the leg kind. It
// returns the number of attempts made. Safety violations and corrupt-state
// errors abort immediately without retry; on exhaustion the last underlying
// error is wrapped in ErrRetriesExhausted and the caller decides fatality.
func (r *RetryExecutor) Attempt(ctx context.Context, kind LegKind, baseSlippageBps int, fn Action) (int, error) {
	maxAttempts := r.MaxAttempts(kind)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		slippage := r.SlippageForAttempt(baseSlippageBps, attempt)

		err := fn(ctx, slippage)
		if err == nil {
			if attempt > 1 {
				r.logf("[RETRY] %s leg succeeded on attempt %d/%d at %d bps\n", kind, attempt, maxAttempts, slippage)
			}
			return attempt, nil
		}
		lastErr = err

		if IsFatal(err) {
			return attempt, err
		}
		if ctx.Err() != nil {
			return attempt, ctx.Err()
		}
		if attempt == maxAttempts {
			break
		}

		backoff := r.backoffForAttempt(attempt)
		nextSlippage := r.SlippageForAttempt(baseSlippageBps, attempt+1)
		r.logf("[RETRY] %s leg attempt %d/%d failed: %v (backoff %s, slippage %d -> %d bps)\n",
			kind, attempt, maxAttempts, err, backoff, slippage, nextSlippage)

		if err := r.sleep(ctx, backoff); err != nil {
			return attempt, err
		}
	}

	return maxAttempts, fmt.Errorf("%w: %s leg failed after %d attempts: %w",
		ErrRetriesExhausted, kind, maxAttempts, lastErr)
}

// sleepCtx pauses for d or until the context is canceled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
