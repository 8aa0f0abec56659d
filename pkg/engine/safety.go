package engine

import (
	"fmt"
	"math"

	"github.com/volcycle/volcycle/pkg/state"
)

// shortfallToleranceMultiplier encodes the 2% balance shortfall tolerance:
// a shortfall where shortfall*50 >= recorded aborts the sell. The scaled
// comparison avoids integer-division truncation misclassifying hairline
// sub-2% shortfalls.
const shortfallToleranceMultiplier = 50

// ResolveSellAmount decides how many smallest units the sell leg transacts.
// The recorded buy amount is the sole authority; the wallet's live balance is
// consulted only to absorb fee/rounding drift:
//
//   - wallet >= recorded: sell exactly recorded (never the full balance)
//   - wallet below recorded by less than 2%: sell the actual balance
//   - wallet below recorded by 2% or more: safety violation
//
// A resolved amount of zero is always a safety violation.
func ResolveSellAmount(recordedRaw, walletRaw uint64) (uint64, error) {
	if recordedRaw == 0 {
		return 0, fmt.Errorf("%w: recorded buy amount is zero", ErrSafetyViolation)
	}

	if walletRaw >= recordedRaw {
		return recordedRaw, nil
	}

	shortfall := recordedRaw - walletRaw
	if shortfall > math.MaxUint64/shortfallToleranceMultiplier ||
		shortfall*shortfallToleranceMultiplier >= recordedRaw {
		return 0, fmt.Errorf("%w: wallet balance %d short of recorded %d by %d (>= 2%%)",
			ErrSafetyViolation, walletRaw, recordedRaw, shortfall)
	}

	if walletRaw == 0 {
		return 0, fmt.Errorf("%w: resolved sell amount is zero", ErrSafetyViolation)
	}
	return walletRaw, nil
}

// CheckBuyPlausibility guards against decimal-metadata misconfiguration: if
// the UI-scaled amount received is implausibly large relative to the stable
// amount spent, the token's configured decimals are almost certainly wrong
// and every later sell would transact a garbage amount. Float arithmetic here
// is display-scale only; the raw amounts are untouched.
func CheckBuyPlausibility(spentStableRaw uint64, stableDecimals int, receivedRaw uint64, tokenDecimals int, maxUnitsPerStable float64) error {
	if maxUnitsPerStable <= 0 {
		return nil
	}
	uiSpent := float64(spentStableRaw) / pow10f(stableDecimals)
	uiReceived := float64(receivedRaw) / pow10f(tokenDecimals)
	if uiSpent <= 0 {
		return fmt.Errorf("%w: buy spent zero stable units", ErrSafetyViolation)
	}
	if uiReceived/uiSpent > maxUnitsPerStable {
		return fmt.Errorf("%w: received %.4f units for %.4f stable exceeds plausibility ceiling %.0f units per stable (suspected decimals misconfiguration)",
			ErrSafetyViolation, uiReceived, uiSpent, maxUnitsPerStable)
	}
	return nil
}

// RequireBoughtState verifies that a sell leg has the per-cycle state it
// needs. Entering a sell without a recorded route or amount means the
// persisted state is corrupt and must not be guessed around.
func RequireBoughtState(rec *state.Record) error {
	if rec.Cycle != state.StateBought {
		return fmt.Errorf("%w: sell leg entered in state %s", ErrCorruptState, rec.Cycle)
	}
	if rec.CurrentRoute == nil || rec.CurrentRoute.VolatileMint == "" {
		return fmt.Errorf("%w: sell leg has no recorded route", ErrCorruptState)
	}
	if rec.LastBuyAmountRaw == "" {
		return fmt.Errorf("%w: sell leg has no recorded buy amount", ErrCorruptState)
	}
	return nil
}

// pow10f returns 10^n as float64 for display scaling.
func pow10f(n int) float64 {
	result := 1.0
	for i := 0; i < n; i++ {
		result *= 10
	}
	return result
}
