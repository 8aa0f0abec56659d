package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/volcycle/volcycle/pkg/state"
)

func TestResolveSellAmount(t *testing.T) {
	tests := []struct {
		name     string
		recorded uint64
		wallet   uint64
		want     uint64
		wantErr  bool
	}{
		{name: "exact balance", recorded: 1000, wallet: 1000, want: 1000},
		{name: "surplus sells recorded only", recorded: 1000, wallet: 5000, want: 1000},
		{name: "drift within tolerance sells balance", recorded: 1000, wallet: 990, want: 990},
		{name: "shortfall just under 2%", recorded: 1000, wallet: 981, want: 981},
		{name: "shortfall exactly 2%", recorded: 1000, wallet: 980, wantErr: true},
		{name: "shortfall over 2%", recorded: 1000, wallet: 900, wantErr: true},
		{name: "empty wallet", recorded: 1000, wallet: 0, wantErr: true},
		{name: "zero recorded", recorded: 0, wallet: 1000, wantErr: true},
		{name: "tiny recorded tolerates nothing", recorded: 10, wallet: 9, wantErr: true},
		// The threshold must not truncate: 1/99 is 1.01%, inside tolerance.
		{name: "hairline sub-2% on small amount", recorded: 99, wallet: 98, want: 98},
		{name: "hairline sub-2% on odd amount", recorded: 101, wallet: 100, want: 100},
		{name: "huge shortfall does not overflow", recorded: 1 << 63, wallet: 1, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveSellAmount(tt.recorded, tt.wallet)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrSafetyViolation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCheckBuyPlausibility(t *testing.T) {
	// 1.5 USDC (6 decimals) for SOL (9 decimals).
	spent := uint64(1_500_000)

	// ~0.01 SOL per USDC: plausible.
	require.NoError(t, CheckBuyPlausibility(spent, 6, 15_000_000, 9, 100000))

	// Received amount interpreted with wrong decimals blows past the ceiling.
	err := CheckBuyPlausibility(spent, 6, 15_000_000, 0, 100000)
	require.ErrorIs(t, err, ErrSafetyViolation)

	// Guard disabled.
	require.NoError(t, CheckBuyPlausibility(spent, 6, 15_000_000, 0, 0))

	// Zero spent is itself a violation when the guard is on.
	err = CheckBuyPlausibility(0, 6, 15_000_000, 9, 100000)
	require.ErrorIs(t, err, ErrSafetyViolation)
}

func TestRequireBoughtState(t *testing.T) {
	good := state.Record{
		Cycle:        state.StateBought,
		CurrentRoute: &state.Route{Name: "SOL", VolatileMint: "mint"},
	}
	good.SetBuyAmountRaw(100)
	require.NoError(t, RequireBoughtState(&good))

	wrongState := state.Record{Cycle: state.StateInit}
	require.ErrorIs(t, RequireBoughtState(&wrongState), ErrCorruptState)

	noRoute := state.Record{Cycle: state.StateBought, LastBuyAmountRaw: "100"}
	require.ErrorIs(t, RequireBoughtState(&noRoute), ErrCorruptState)

	noAmount := state.Record{
		Cycle:        state.StateBought,
		CurrentRoute: &state.Route{Name: "SOL", VolatileMint: "mint"},
	}
	require.ErrorIs(t, RequireBoughtState(&noAmount), ErrCorruptState)
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(ErrSafetyViolation))
	assert.True(t, IsFatal(ErrCorruptState))
	assert.False(t, IsFatal(ErrRetriesExhausted))
	assert.False(t, IsFatal(assert.AnError))
	assert.False(t, IsFatal(nil))
}
