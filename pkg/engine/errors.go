// Package engine implements the round-trip cycle engine: state machine,
// retry policy, scheduler, safety checks, recovery, and the run loop.
package engine

import "errors"

// Sentinel error kinds. Only the cycle machine and the retry executor raise
// fatal conditions; everything else propagates through its caller.
var (
	// ErrSafetyViolation marks conditions where continuing would risk acting
	// on corrupted assumptions about fund state: balance mismatch beyond
	// tolerance, zero sell amount, implausible buy fill. Never retried.
	ErrSafetyViolation = errors.New("safety violation")

	// ErrRetriesExhausted marks a leg that failed every granted attempt.
	ErrRetriesExhausted = errors.New("retries exhausted")

	// ErrCorruptState marks persisted state that contradicts itself, such as
	// a sell leg entered without a recorded buy amount or route.
	ErrCorruptState = errors.New("corrupt persisted state")
)

// IsFatal reports whether err must abort the run rather than skip a slot.
func IsFatal(err error) bool {
	return errors.Is(err, ErrSafetyViolation) || errors.Is(err, ErrCorruptState)
}
