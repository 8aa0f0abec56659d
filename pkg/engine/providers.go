package engine

import (
	"context"
	"time"

	"github.com/volcycle/volcycle/pkg/jupiter"
)

// SwapProvider quotes swaps and builds serialized transactions.
// Implemented by jupiter.Client.
type SwapProvider interface {
	Quote(ctx context.Context, params *jupiter.QuoteParams) (*jupiter.QuoteResponse, error)
	BuildSwap(ctx context.Context, quote *jupiter.QuoteResponse, userPublicKey string) (*jupiter.SwapResponse, error)
}

// Settler submits serialized transactions and waits for confirmation.
// Implemented by solana.Client.
type Settler interface {
	Submit(ctx context.Context, txBase64 string) (string, error)
	Confirm(ctx context.Context, signature string, timeout time.Duration) error
}

// BalanceSource reads wallet balances in smallest units.
// Implemented by solana.Client.
type BalanceSource interface {
	BalanceRaw(ctx context.Context, mint string) (uint64, error)
}

// Logf is the engine's diagnostic output hook.
type Logf func(format string, args ...interface{})
