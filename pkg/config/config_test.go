package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Wallets = []WalletSettings{{Label: "w1", PrivateKey: "key"}}
	return cfg
}

func TestDefaultConfigIsValidWithWallet(t *testing.T) {
	cfg := DefaultConfig()
	require.Error(t, cfg.Validate(), "no wallets configured")

	cfg.Wallets = []WalletSettings{{Label: "w1"}}
	require.NoError(t, cfg.Validate())
}

func TestDefaultsAreDryRun(t *testing.T) {
	cfg := DefaultConfig()
	assert.True(t, cfg.DryRun, "live trading must be opt-in")
	assert.True(t, cfg.SellOnlyRetry)
}

func TestAmountRawConversion(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AmountMin = 1.0
	cfg.AmountMax = 2.5
	cfg.Stable.Decimals = 6

	assert.Equal(t, uint64(1_000_000), cfg.AmountMinRaw())
	assert.Equal(t, uint64(2_500_000), cfg.AmountMaxRaw())
}

func TestLoadFromFileOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"target_legs": 20,
		"dry_run": false,
		"wallets": [{"label": "main", "private_key": "abc"}]
	}`), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.TargetLegs)
	assert.False(t, cfg.DryRun)
	require.Len(t, cfg.Wallets, 1)
	assert.Equal(t, "main", cfg.Wallets[0].Label)

	// Untouched fields keep their defaults.
	assert.Equal(t, 86400, cfg.WindowSec)
	assert.Equal(t, 50, cfg.SlippageBps)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("VOLCYCLE_TARGET_LEGS", "6")
	t.Setenv("VOLCYCLE_DRY_RUN", "false")
	t.Setenv("VOLCYCLE_AMOUNT_MAX", "3.5")
	t.Setenv("SOLANA_RPC_URL", "https://rpc.example.com")
	t.Setenv("VOLCYCLE_WALLET_KEYS", "key1, key2")

	cfg := LoadFromEnv()

	assert.Equal(t, 6, cfg.TargetLegs)
	assert.False(t, cfg.DryRun)
	assert.Equal(t, 3.5, cfg.AmountMax)
	assert.Equal(t, "https://rpc.example.com", cfg.RPCURL)
	require.Len(t, cfg.Wallets, 2)
	assert.Equal(t, "key1", cfg.Wallets[0].PrivateKey)
	assert.Equal(t, "key2", cfg.Wallets[1].PrivateKey)
}

func TestEnabledRoutes(t *testing.T) {
	cfg := DefaultConfig()
	enabled := cfg.EnabledRoutes()
	require.NotEmpty(t, enabled)
	for _, r := range enabled {
		assert.True(t, r.Enabled)
	}

	// WIF ships disabled but is still resolvable by mint, so a recorded
	// position in it can be sold after a config change.
	r, ok := cfg.RouteByMint("EKpQGSJtjMFqKZ9KQanSqYXRcF8fBopzLHYxdM65zcjm")
	require.True(t, ok)
	assert.Equal(t, "WIF", r.Name)
	assert.False(t, r.Enabled)

	_, ok = cfg.RouteByMint("NotAMint")
	assert.False(t, ok)
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero target legs", func(c *Config) { c.TargetLegs = 0 }},
		{"zero window", func(c *Config) { c.WindowSec = 0 }},
		{"inverted amount range", func(c *Config) { c.AmountMin = 2; c.AmountMax = 1 }},
		{"zero amount", func(c *Config) { c.AmountMin = 0 }},
		{"safety factor at 1", func(c *Config) { c.SafetyFactor = 1.0 }},
		{"slippage cap below base", func(c *Config) { c.SlippageMaxBps = c.SlippageBps - 1 }},
		{"zero sell retries", func(c *Config) { c.MaxSellRetries = 0 }},
		{"missing stable mint", func(c *Config) { c.Stable.Mint = "" }},
		{"no enabled routes", func(c *Config) {
			for i := range c.Routes {
				c.Routes[i].Enabled = false
			}
		}},
		{"route equals stable", func(c *Config) { c.Routes[0].Mint = c.Stable.Mint }},
		{"no wallets", func(c *Config) { c.Wallets = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestWindowAndMinDelay(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WindowSec = 3600
	cfg.MinDelaySec = 45

	assert.Equal(t, "1h0m0s", cfg.Window().String())
	assert.Equal(t, "45s", cfg.MinDelay().String())
}
