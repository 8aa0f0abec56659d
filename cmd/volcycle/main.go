// Package main is the entry point for the volcycle volume-cycling bot.
// It runs configured wallets strictly in sequence, each through its own
// buy/sell cycle run, and always prints a final summary per wallet.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/volcycle/volcycle/pkg/config"
	"github.com/volcycle/volcycle/pkg/engine"
	"github.com/volcycle/volcycle/pkg/jupiter"
	"github.com/volcycle/volcycle/pkg/metrics"
	"github.com/volcycle/volcycle/pkg/notifier"
	"github.com/volcycle/volcycle/pkg/reporter"
	"github.com/volcycle/volcycle/pkg/solana"
)

var (
	configPath  = flag.String("config", "", "Path to JSON config file (optional, env-only config otherwise)")
	dryRun      = flag.Bool("dry-run", true, "Quote-only mode, no transactions are signed or sent (default true)")
	targetLegs  = flag.Int("legs", 0, "Override the target leg count")
	windowSec   = flag.Int("window-sec", 0, "Override the run window in seconds")
	metricsAddr = flag.String("metrics-addr", "", "Override the Prometheus listen address (e.g. :9090)")
	format      = flag.String("format", "text", "Summary output format: text or json")
	verbose     = flag.Bool("verbose", false, "Enable per-leg diagnostic output")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `volcycle - stable/volatile round-trip volume bot for Solana

Usage:
  volcycle [flags]

Flags:
  -config         Path to JSON config file (env vars override file values)
  -dry-run        Quote-only mode, nothing is signed or sent (default true)
  -legs           Override the target leg count
  -window-sec     Override the run window in seconds
  -metrics-addr   Prometheus listen address (e.g. :9090)
  -format         Summary output format: text or json
  -verbose        Per-leg diagnostic output

Environment Variables:
  SOLANA_RPC_URL          Solana RPC endpoint
  JUPITER_API_KEY         Jupiter API key (optional, lite tier otherwise)
  VOLCYCLE_WALLET_KEYS    Comma-separated Base58 wallet private keys
  VOLCYCLE_STATE_DIR      Directory for per-wallet state files
  SLACK_API_TOKEN         Slack bot token for notifications
  SLACK_CHANNEL           Slack channel for notifications

To execute real swaps, run with -dry-run=false.

`)
	}

	flag.Parse()

	// Best effort; a missing .env is not an error.
	_ = godotenv.Load()

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFromFile(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg = config.LoadFromEnv()
	}

	// Explicitly set flags win over both file and environment.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "dry-run":
			cfg.DryRun = *dryRun
		case "legs":
			cfg.TargetLegs = *targetLegs
		case "window-sec":
			cfg.WindowSec = *windowSec
		case "metrics-addr":
			cfg.MetricsAddr = *metricsAddr
		case "verbose":
			cfg.Verbose = *verbose
		}
	})

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	outputFormat := reporter.OutputFormat(*format)
	if outputFormat != reporter.FormatText && outputFormat != reporter.FormatJSON {
		fmt.Fprintf(os.Stderr, "Invalid format %q: must be text or json\n", *format)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\n[MAIN] shutdown requested, finishing current leg...")
		cancel()
	}()

	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(cfg.MetricsAddr); err != nil {
				fmt.Fprintf(os.Stderr, "[MAIN] metrics server error: %v\n", err)
			}
		}()
		fmt.Printf("[MAIN] metrics listening on %s\n", cfg.MetricsAddr)
	}

	rep := reporter.NewReporter(os.Stdout, outputFormat, cfg.Verbose)
	logf := engine.Logf(rep.Logf)
	slack := notifier.NewSlackNotifier(&notifier.SlackConfig{
		APIToken: cfg.Slack.APIToken,
		Channel:  cfg.Slack.Channel,
		Enabled:  cfg.Slack.Enabled,
	})

	jup := jupiter.NewClient(&jupiter.ClientConfig{
		BaseURL: cfg.JupiterBaseURL,
		APIKey:  cfg.JupiterAPIKey,
	})

	mode := "LIVE"
	if cfg.DryRun {
		mode = "DRY RUN"
	}
	fmt.Printf("[MAIN] %s: %d wallets, %d legs each, window %s, stable %s\n",
		mode, len(cfg.Wallets), cfg.TargetLegs, cfg.Window(), cfg.Stable.Symbol)

	exitCode := 0
	for i, w := range cfg.Wallets {
		if ctx.Err() != nil {
			fmt.Printf("[MAIN] shutdown before wallet %d/%d, remaining wallets skipped\n", i+1, len(cfg.Wallets))
			break
		}

		if err := runWallet(ctx, cfg, w, jup, rep, slack, logf); err != nil {
			exitCode = 1
			if ctx.Err() == nil {
				fmt.Fprintf(os.Stderr, "[MAIN] wallet %d/%d stopped on fatal error: %v\n", i+1, len(cfg.Wallets), err)
			}
		}
	}

	os.Exit(exitCode)
}

// runWallet drives one wallet through a complete run and always reports a
// summary, whatever the outcome.
func runWallet(ctx context.Context, cfg *config.Config, w config.WalletSettings,
	jup *jupiter.Client, rep *reporter.Reporter, slack *notifier.SlackNotifier, logf engine.Logf) error {

	var settler engine.Settler
	var balances engine.BalanceSource
	pubkey := w.Label

	if !cfg.DryRun || w.PrivateKey != "" {
		sol, err := solana.NewClient(&solana.ClientConfig{
			RPCURL:     cfg.RPCURL,
			PrivateKey: w.PrivateKey,
		})
		if err != nil {
			return fmt.Errorf("wallet %s: %w", w.Label, err)
		}
		pubkey = sol.PublicKey()
		settler = sol
		balances = sol

		if !cfg.DryRun {
			if err := checkFeeBalance(ctx, sol, cfg.MinFeeLamports); err != nil {
				return fmt.Errorf("wallet %s: %w", pubkey, err)
			}
		}
	}
	if pubkey == "" {
		pubkey = "dry-run-wallet"
	}

	fmt.Printf("[MAIN] starting run for wallet %s\n", pubkey)
	if err := slack.NotifyRunStart(pubkey, cfg.TargetLegs, cfg.Window(), cfg.DryRun); err != nil {
		fmt.Fprintf(os.Stderr, "[MAIN] slack notification failed: %v\n", err)
	}

	retry := engine.NewRetryExecutor(engine.RetryPolicy{
		MaxBuyAttempts:  cfg.MaxBuyRetries,
		MaxSellAttempts: cfg.MaxSellRetries,
		SellOnlyRetry:   cfg.SellOnlyRetry,
		BackoffInitial:  time.Duration(cfg.BackoffInitialMs) * time.Millisecond,
		BackoffMax:      time.Duration(cfg.BackoffMaxMs) * time.Millisecond,
		SlippageStepBps: cfg.SlippageStepBps,
		SlippageMaxBps:  cfg.SlippageMaxBps,
	}, logf)

	machine, err := engine.NewMachine(engine.MachineConfig{
		Config:          cfg,
		WalletPublicKey: pubkey,
		StatePath:       statePath(cfg.StateDir, pubkey),
		Swaps:           jup,
		Settler:         settler,
		Balances:        balances,
		Retry:           retry,
		Logf:            logf,
	})
	if err != nil {
		return fmt.Errorf("wallet %s: %w", pubkey, err)
	}

	sched := engine.NewScheduler(engine.SchedulerConfig{
		TargetLegs:    cfg.TargetLegs,
		Window:        cfg.Window(),
		MinDelay:      cfg.MinDelay(),
		EstimatedExec: time.Duration(cfg.EstimatedExecMs) * time.Millisecond,
		SafetyFactor:  cfg.SafetyFactor,
	}, nil, rand.New(rand.NewSource(time.Now().UnixNano())), logf)

	recovery := engine.NewRecoveryManager(machine, logf)
	loop := engine.NewRunLoop(cfg, machine, sched, recovery, logf)

	summary, runErr := loop.Run(ctx)

	rep.ReportSummary(summary, cfg.Stable.Symbol, cfg.Stable.Decimals)
	if err := slack.NotifyRunSummary(summary); err != nil {
		fmt.Fprintf(os.Stderr, "[MAIN] slack notification failed: %v\n", err)
	}
	if runErr != nil {
		if err := slack.NotifyFatal(pubkey, runErr); err != nil {
			fmt.Fprintf(os.Stderr, "[MAIN] slack notification failed: %v\n", err)
		}
	}
	return runErr
}

// checkFeeBalance verifies the wallet holds enough SOL to pay transaction
// fees for a full run before any capital moves.
func checkFeeBalance(ctx context.Context, sol *solana.Client, minLamports uint64) error {
	bal, err := sol.LamportsBalance(ctx)
	if err != nil {
		return fmt.Errorf("read SOL balance: %w", err)
	}
	if bal < minLamports {
		return fmt.Errorf("insufficient SOL for fees: have %d lamports, need %d", bal, minLamports)
	}
	return nil
}

// statePath derives the per-wallet state file path. Each wallet has its own
// file so runs never share progress.
func statePath(dir, pubkey string) string {
	if dir == "" {
		dir = "state"
	}
	return filepath.Join(dir, fmt.Sprintf("cycle-%s.json", pubkey))
}
