// Package jupiter provides a client for the Jupiter aggregator API on Solana.
package jupiter

import (
	"fmt"
	"strconv"
)

// QuoteParams contains the parameters for requesting a quote from Jupiter.
// Amounts are integers in the smallest unit of the input asset.
type QuoteParams struct {
	InputMint   string
	OutputMint  string
	AmountRaw   uint64
	SlippageBps int
}

// QuoteResponse contains the response from Jupiter's quote API. Amount fields
// are decimal strings of smallest-unit integers as returned by the API; use
// the accessor methods, which reject malformed values rather than trusting
// field presence.
type QuoteResponse struct {
	InputMint            string      `json:"inputMint"`
	InAmount             string      `json:"inAmount"`
	OutputMint           string      `json:"outputMint"`
	OutAmount            string      `json:"outAmount"`
	OtherAmountThreshold string      `json:"otherAmountThreshold"`
	SwapMode             string      `json:"swapMode"`
	SlippageBps          int         `json:"slippageBps"`
	PriceImpactPct       string      `json:"priceImpactPct"`
	RoutePlan            []RoutePlan `json:"routePlan"`
	ContextSlot          int64       `json:"contextSlot,omitempty"`
}

// OutAmountRaw parses the quoted output amount in smallest units.
func (q *QuoteResponse) OutAmountRaw() (uint64, error) {
	if q.OutAmount == "" {
		return 0, fmt.Errorf("quote has no outAmount")
	}
	v, err := strconv.ParseUint(q.OutAmount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed outAmount %q: %w", q.OutAmount, err)
	}
	return v, nil
}

// InAmountRaw parses the quoted input amount in smallest units.
func (q *QuoteResponse) InAmountRaw() (uint64, error) {
	if q.InAmount == "" {
		return 0, fmt.Errorf("quote has no inAmount")
	}
	v, err := strconv.ParseUint(q.InAmount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed inAmount %q: %w", q.InAmount, err)
	}
	return v, nil
}

// RoutePlan describes a single step in the swap route.
type RoutePlan struct {
	SwapInfo SwapInfo `json:"swapInfo"`
	Percent  int      `json:"percent"`
}

// SwapInfo contains details about a swap step.
type SwapInfo struct {
	AmmKey     string `json:"ammKey"`
	Label      string `json:"label"`
	InputMint  string `json:"inputMint"`
	OutputMint string `json:"outputMint"`
	InAmount   string `json:"inAmount"`
	OutAmount  string `json:"outAmount"`
	FeeAmount  string `json:"feeAmount"`
	FeeMint    string `json:"feeMint"`
}

// swapRequest is the payload for building a swap transaction.
type swapRequest struct {
	QuoteResponse             *QuoteResponse `json:"quoteResponse"`
	UserPublicKey             string         `json:"userPublicKey"`
	WrapAndUnwrapSol          bool           `json:"wrapAndUnwrapSol"`
	DynamicComputeUnitLimit   bool           `json:"dynamicComputeUnitLimit"`
	PrioritizationFeeLamports interface{}    `json:"prioritizationFeeLamports"` // "auto" or int
}

// SwapResponse contains the response from Jupiter's swap API.
type SwapResponse struct {
	SwapTransaction      string `json:"swapTransaction"` // Base64-encoded transaction
	LastValidBlockHeight int64  `json:"lastValidBlockHeight"`
}
