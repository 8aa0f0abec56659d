// Package solana provides a client for interacting with the Solana blockchain.
package solana

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// confirmPollInterval is how often Confirm re-checks signature status.
const confirmPollInterval = 2 * time.Second

// Client wraps the Solana RPC client with signing capabilities for one wallet.
type Client struct {
	rpc        *rpc.Client
	privateKey solana.PrivateKey
	publicKey  solana.PublicKey
	rpcURL     string
}

// ClientConfig contains configuration for the Solana client.
type ClientConfig struct {
	RPCURL     string // Solana RPC endpoint
	PrivateKey string // Base58 encoded private key
}

// NewClient creates a new Solana client with signing capabilities.
func NewClient(config *ClientConfig) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}

	if config.PrivateKey == "" {
		return nil, fmt.Errorf("private key is required")
	}

	rpcURL := config.RPCURL
	if rpcURL == "" {
		rpcURL = rpc.MainNetBeta_RPC
	}

	privateKey, err := solana.PrivateKeyFromBase58(config.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	return &Client{
		rpc:        rpc.New(rpcURL),
		privateKey: privateKey,
		publicKey:  privateKey.PublicKey(),
		rpcURL:     rpcURL,
	}, nil
}

// PublicKey returns the wallet's public key as a Base58 string.
func (c *Client) PublicKey() string {
	return c.publicKey.String()
}

// LamportsBalance returns the native SOL balance in lamports.
func (c *Client) LamportsBalance(ctx context.Context) (uint64, error) {
	balance, err := c.rpc.GetBalance(ctx, c.publicKey, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance.Value, nil
}

// BalanceRaw returns the wallet's balance of an SPL token in smallest units,
// summed across all token accounts for the mint. Amounts come from the raw
// integer field of the parsed account data; the UI-scaled float is never used.
func (c *Client) BalanceRaw(ctx context.Context, mintAddress string) (uint64, error) {
	mint, err := solana.PublicKeyFromBase58(mintAddress)
	if err != nil {
		return 0, fmt.Errorf("invalid mint address: %w", err)
	}

	accounts, err := c.rpc.GetTokenAccountsByOwner(
		ctx,
		c.publicKey,
		&rpc.GetTokenAccountsConfig{
			Mint: &mint,
		},
		&rpc.GetTokenAccountsOpts{
			Encoding: solana.EncodingJSONParsed,
		},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to get token accounts: %w", err)
	}

	var total uint64
	for _, account := range accounts.Value {
		raw := account.Account.Data.GetRawJSON()
		if raw == nil {
			continue
		}
		var parsed struct {
			Parsed struct {
				Info struct {
					TokenAmount struct {
						Amount string `json:"amount"`
					} `json:"tokenAmount"`
				} `json:"info"`
			} `json:"parsed"`
		}
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return 0, fmt.Errorf("failed to parse token account: %w", err)
		}
		amount, err := strconv.ParseUint(parsed.Parsed.Info.TokenAmount.Amount, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("malformed token amount %q: %w", parsed.Parsed.Info.TokenAmount.Amount, err)
		}
		total += amount
	}

	return total, nil
}

// Submit deserializes a Base64-encoded transaction, signs it, and sends it.
// Handles both legacy and versioned transactions.
func (c *Client) Submit(ctx context.Context, txBase64 string) (string, error) {
	txBytes, err := base64.StdEncoding.DecodeString(txBase64)
	if err != nil {
		return "", fmt.Errorf("failed to decode transaction: %w", err)
	}

	tx, err := solana.TransactionFromBytes(txBytes)
	if err != nil {
		return "", fmt.Errorf("failed to parse transaction: %w", err)
	}

	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if c.publicKey.Equals(key) {
			return &c.privateKey
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}

	sig, err := c.rpc.SendTransactionWithOpts(
		ctx,
		tx,
		rpc.TransactionOpts{
			SkipPreflight:       false,
			PreflightCommitment: rpc.CommitmentConfirmed,
		},
	)
	if err != nil {
		return "", fmt.Errorf("failed to send transaction: %w", err)
	}

	return sig.String(), nil
}

// Confirm polls for a transaction to reach confirmed or finalized status.
// It returns an error if the transaction failed on chain or the timeout
// elapses first.
func (c *Client) Confirm(ctx context.Context, signature string, timeout time.Duration) error {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return fmt.Errorf("invalid signature: %w", err)
	}

	ticker := time.NewTicker(confirmPollInterval)
	defer ticker.Stop()

	deadline := time.After(timeout)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return fmt.Errorf("transaction %s not confirmed within %s", signature, timeout)
		case <-ticker.C:
			statuses, err := c.rpc.GetSignatureStatuses(ctx, false, sig)
			if err != nil {
				// Transient RPC error; keep polling, the deadline bounds us.
				continue
			}
			if len(statuses.Value) == 0 || statuses.Value[0] == nil {
				continue // Not found yet
			}
			status := statuses.Value[0]
			if status.Err != nil {
				return fmt.Errorf("transaction %s failed on chain: %v", signature, status.Err)
			}
			if status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
				status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
				return nil
			}
		}
	}
}
