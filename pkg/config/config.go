// Package config provides configuration management for the volume cycler.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds the complete bot configuration. It is constructed once at
// startup and passed into every component; nothing below main reads the
// environment.
type Config struct {
	// Run settings
	TargetLegs int  `json:"target_legs"`
	WindowSec  int  `json:"window_sec"`
	DryRun     bool `json:"dry_run"`
	Verbose    bool `json:"verbose"`

	// Per-trade stable amount range, in UI units of the stable asset.
	AmountMin float64 `json:"amount_min"`
	AmountMax float64 `json:"amount_max"`

	// Scheduling
	MinDelaySec     int     `json:"min_delay_sec"`
	EstimatedExecMs int64   `json:"estimated_exec_ms"`
	SafetyFactor    float64 `json:"safety_factor"`

	// Retry policy
	MaxBuyRetries    int   `json:"max_buy_retries"`
	MaxSellRetries   int   `json:"max_sell_retries"`
	SellOnlyRetry    bool  `json:"sell_only_retry"`
	BackoffInitialMs int64 `json:"backoff_initial_ms"`
	BackoffMaxMs     int64 `json:"backoff_max_ms"`

	// Slippage
	SlippageBps     int `json:"slippage_bps"`
	SlippageStepBps int `json:"slippage_step_bps"`
	SlippageMaxBps  int `json:"slippage_max_bps"`

	// Safety
	MaxUnitsPerStable float64 `json:"max_units_per_stable"`
	MinFeeLamports    uint64  `json:"min_fee_lamports"`

	// Assets
	Stable StableSettings  `json:"stable"`
	Routes []RouteSettings `json:"routes"`

	// Wallets, executed strictly in order, one full run each.
	Wallets []WalletSettings `json:"wallets"`

	// Endpoints
	RPCURL         string `json:"rpc_url,omitempty"`
	JupiterBaseURL string `json:"jupiter_base_url,omitempty"`
	JupiterAPIKey  string `json:"jupiter_api_key,omitempty"`

	// Persistence
	StateDir string `json:"state_dir"`

	// Observability
	MetricsAddr string        `json:"metrics_addr,omitempty"`
	Slack       SlackSettings `json:"slack"`
}

// StableSettings describes the anchor asset both legs begin and end in.
type StableSettings struct {
	Symbol   string `json:"symbol"`
	Mint     string `json:"mint"`
	Decimals int    `json:"decimals"`
}

// RouteSettings describes one volatile token tradable against the stable asset.
type RouteSettings struct {
	Name     string `json:"name"`
	Mint     string `json:"mint"`
	Decimals int    `json:"decimals"`
	Enabled  bool   `json:"enabled"`
}

// WalletSettings holds one wallet's signing key.
type WalletSettings struct {
	Label      string `json:"label,omitempty"`
	PrivateKey string `json:"private_key,omitempty"` // Base58; usually injected via env
}

// SlackSettings holds Slack notification configuration.
type SlackSettings struct {
	APIToken string `json:"api_token,omitempty"`
	Channel  string `json:"channel,omitempty"`
	Enabled  bool   `json:"enabled"`
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		TargetLegs: 10,
		WindowSec:  86400, // 24 hours
		DryRun:     true,
		Verbose:    true,

		AmountMin: 1.0,
		AmountMax: 2.0,

		MinDelaySec:     30,
		EstimatedExecMs: 45000, // quote + swap + confirmation round trip
		SafetyFactor:    0.8,

		MaxBuyRetries:    3,
		MaxSellRetries:   5,
		SellOnlyRetry:    true,
		BackoffInitialMs: 2000,
		BackoffMaxMs:     30000,

		SlippageBps:     50,  // 0.5%
		SlippageStepBps: 25,  // +0.25% per retry
		SlippageMaxBps:  300, // 3% hard cap

		MaxUnitsPerStable: 100000,
		MinFeeLamports:    5_000_000, // 0.005 SOL

		Stable: StableSettings{
			Symbol:   "USDC",
			Mint:     "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
			Decimals: 6,
		},

		Routes: []RouteSettings{
			{Name: "SOL", Mint: "So11111111111111111111111111111111111111112", Decimals: 9, Enabled: true},
			{Name: "BONK", Mint: "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263", Decimals: 5, Enabled: true},
			{Name: "WIF", Mint: "EKpQGSJtjMFqKZ9KQanSqYXRcF8fBopzLHYxdM65zcjm", Decimals: 6, Enabled: false},
		},

		StateDir: "state",
	}
}

// LoadFromFile loads configuration from a JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() *Config {
	cfg := DefaultConfig()
	cfg.applyEnvOverrides()
	return cfg
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("VOLCYCLE_TARGET_LEGS"); v != "" {
		if val, err := parseInt(v); err == nil {
			c.TargetLegs = val
		}
	}
	if v := os.Getenv("VOLCYCLE_WINDOW_SEC"); v != "" {
		if val, err := parseInt(v); err == nil {
			c.WindowSec = val
		}
	}
	if v := os.Getenv("VOLCYCLE_DRY_RUN"); v != "" {
		c.DryRun = strings.ToLower(v) == "true"
	}
	if v := os.Getenv("VOLCYCLE_AMOUNT_MIN"); v != "" {
		if val, err := parseFloat(v); err == nil {
			c.AmountMin = val
		}
	}
	if v := os.Getenv("VOLCYCLE_AMOUNT_MAX"); v != "" {
		if val, err := parseFloat(v); err == nil {
			c.AmountMax = val
		}
	}
	if v := os.Getenv("VOLCYCLE_MIN_DELAY_SEC"); v != "" {
		if val, err := parseInt(v); err == nil {
			c.MinDelaySec = val
		}
	}
	if v := os.Getenv("VOLCYCLE_STATE_DIR"); v != "" {
		c.StateDir = v
	}
	if v := os.Getenv("SOLANA_RPC_URL"); v != "" {
		c.RPCURL = v
	}
	if v := os.Getenv("JUPITER_API_KEY"); v != "" {
		c.JupiterAPIKey = v
	}
	if v := os.Getenv("SLACK_API_TOKEN"); v != "" {
		c.Slack.APIToken = v
	}
	if v := os.Getenv("SLACK_CHANNEL"); v != "" {
		c.Slack.Channel = v
	}

	// Wallet keys: VOLCYCLE_WALLET_KEYS is a comma-separated list of Base58
	// private keys, appended to any wallets from the config file.
	if v := os.Getenv("VOLCYCLE_WALLET_KEYS"); v != "" {
		for i, key := range strings.Split(v, ",") {
			key = strings.TrimSpace(key)
			if key == "" {
				continue
			}
			c.Wallets = append(c.Wallets, WalletSettings{
				Label:      fmt.Sprintf("env-%d", i+1),
				PrivateKey: key,
			})
		}
	}
}

// EnabledRoutes returns only enabled routes.
func (c *Config) EnabledRoutes() []RouteSettings {
	var enabled []RouteSettings
	for _, r := range c.Routes {
		if r.Enabled {
			enabled = append(enabled, r)
		}
	}
	return enabled
}

// RouteByMint looks up a route (enabled or not) by its volatile mint.
func (c *Config) RouteByMint(mint string) (RouteSettings, bool) {
	for _, r := range c.Routes {
		if r.Mint == mint {
			return r, true
		}
	}
	return RouteSettings{}, false
}

// Window returns the run time window as a duration.
func (c *Config) Window() time.Duration {
	return time.Duration(c.WindowSec) * time.Second
}

// MinDelay returns the minimum inter-cycle delay as a duration.
func (c *Config) MinDelay() time.Duration {
	return time.Duration(c.MinDelaySec) * time.Second
}

// AmountMinRaw returns the lower bound of the per-trade stable amount in
// smallest units.
func (c *Config) AmountMinRaw() uint64 {
	return uiToRaw(c.AmountMin, c.Stable.Decimals)
}

// AmountMaxRaw returns the upper bound of the per-trade stable amount in
// smallest units.
func (c *Config) AmountMaxRaw() uint64 {
	return uiToRaw(c.AmountMax, c.Stable.Decimals)
}

// uiToRaw converts a UI amount to smallest units. This is the one place a
// float touches a fund-moving amount, and it happens once at configuration
// time.
func uiToRaw(ui float64, decimals int) uint64 {
	scale := uint64(1)
	for i := 0; i < decimals; i++ {
		scale *= 10
	}
	return uint64(ui * float64(scale))
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.TargetLegs <= 0 {
		return fmt.Errorf("target_legs must be positive")
	}
	if c.WindowSec <= 0 {
		return fmt.Errorf("window_sec must be positive")
	}
	if c.AmountMin <= 0 || c.AmountMax < c.AmountMin {
		return fmt.Errorf("amount range [%g, %g] is invalid", c.AmountMin, c.AmountMax)
	}
	if c.SafetyFactor <= 0 || c.SafetyFactor >= 1 {
		return fmt.Errorf("safety_factor must be in (0, 1)")
	}
	if c.SlippageBps <= 0 || c.SlippageStepBps < 0 || c.SlippageMaxBps < c.SlippageBps {
		return fmt.Errorf("slippage settings are inconsistent")
	}
	if c.MaxSellRetries < 1 || c.MaxBuyRetries < 1 {
		return fmt.Errorf("retry limits must be at least 1")
	}
	if c.Stable.Mint == "" || c.Stable.Decimals <= 0 {
		return fmt.Errorf("stable asset mint and decimals are required")
	}
	if len(c.EnabledRoutes()) == 0 {
		return fmt.Errorf("at least 1 route must be enabled")
	}
	for _, r := range c.EnabledRoutes() {
		if r.Mint == "" || r.Decimals <= 0 {
			return fmt.Errorf("route %s: mint and decimals are required", r.Name)
		}
		if r.Mint == c.Stable.Mint {
			return fmt.Errorf("route %s: stable asset cannot be its own counter-asset", r.Name)
		}
	}
	if len(c.Wallets) == 0 {
		return fmt.Errorf("at least 1 wallet is required")
	}
	return nil
}

// Helper functions
func parseInt(s string) (int, error) {
	var v int
	_, err := fmt.Sscanf(s, "%d", &v)
	return v, err
}

func parseFloat(s string) (float64, error) {
	var v float64
	_, err := fmt.Sscanf(s, "%f", &v)
	return v, err
}
