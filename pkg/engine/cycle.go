package engine

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/volcycle/volcycle/pkg/config"
	"github.com/volcycle/volcycle/pkg/jupiter"
	"github.com/volcycle/volcycle/pkg/metrics"
	"github.com/volcycle/volcycle/pkg/state"
)

// confirmTimeout bounds the wait for on-chain confirmation of one swap.
const confirmTimeout = 60 * time.Second

// MachineConfig contains the collaborators for a cycle machine.
type MachineConfig struct {
	Config          *config.Config
	WalletPublicKey string
	StatePath       string
	Swaps           SwapProvider
	Settler         Settler
	Balances        BalanceSource
	Retry           *RetryExecutor
	Logf            Logf
	Now             func() time.Time
	Rand            *rand.Rand
}

// Machine owns the persisted progress record and applies cycle transitions.
// It is the only writer of the state file; every completed leg is persisted
// before the next leg is attempted, which is the crash-safety contract.
type Machine struct {
	cfg       *config.Config
	wallet    string
	statePath string
	swaps     SwapProvider
	settler   Settler
	balances  BalanceSource
	retry     *RetryExecutor
	logf      Logf
	now       func() time.Time
	rnd       *rand.Rand

	rec    state.Record
	loaded bool
}

// NewMachine creates a machine and loads any persisted record at StatePath.
func NewMachine(mc MachineConfig) (*Machine, error) {
	if mc.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if mc.Swaps == nil || mc.Retry == nil {
		return nil, fmt.Errorf("swap provider and retry executor are required")
	}
	if mc.Logf == nil {
		mc.Logf = func(string, ...interface{}) {}
	}
	if mc.Now == nil {
		mc.Now = time.Now
	}
	if mc.Rand == nil {
		mc.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	m := &Machine{
		cfg:       mc.Config,
		wallet:    mc.WalletPublicKey,
		statePath: mc.StatePath,
		swaps:     mc.Swaps,
		settler:   mc.Settler,
		balances:  mc.Balances,
		retry:     mc.Retry,
		logf:      mc.Logf,
		now:       mc.Now,
		rnd:       mc.Rand,
	}

	rec, found, err := state.Load(mc.StatePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	if found {
		m.rec = rec
		m.loaded = true
	} else {
		m.rec = state.Record{Cycle: state.StateInit}
	}
	return m, nil
}

// Record returns a copy of the current progress record.
func (m *Machine) Record() state.Record {
	return m.rec
}

// Loaded reports whether a persisted record existed at startup.
func (m *Machine) Loaded() bool {
	return m.loaded
}

// Progress returns the scheduler's view of the run.
func (m *Machine) Progress() Progress {
	return Progress{
		Cycle:         m.rec.Cycle,
		CompletedLegs: m.rec.CompletedLegs,
		StartTime:     time.UnixMilli(m.rec.StartTimeMs),
	}
}

// BeginFreshRun resets progress for a brand-new run: legs to zero, start time
// to now, state to INIT. This is the only path that resets the leg counter.
func (m *Machine) BeginFreshRun(runID string) error {
	m.rec = state.Record{
		RunID:       runID,
		StartTimeMs: m.now().UnixMilli(),
		Cycle:       state.StateInit,
	}
	if err := m.persist(); err != nil {
		return fmt.Errorf("persist fresh run: %w", err)
	}
	metrics.SetCompletedLegs(0)
	metrics.SetCycleState(string(state.StateInit))
	return nil
}

// ExecuteBuy spends a randomly sized stable amount for a randomly chosen
// route's volatile asset. On success the record moves to BOUGHT carrying the
// route and the received amount, and is persisted before returning.
func (m *Machine) ExecuteBuy(ctx context.Context) error {
	if m.rec.Cycle == state.StateSold {
		m.ResetToInit()
	}
	if m.rec.Cycle != state.StateInit {
		return fmt.Errorf("%w: buy leg entered in state %s", ErrCorruptState, m.rec.Cycle)
	}

	route := m.pickRoute()
	amountRaw := m.randAmountRaw()

	m.logf("[BUY] %s: spending %s %s on %s\n",
		m.shortWallet(), FormatUnits(amountRaw, m.cfg.Stable.Decimals), m.cfg.Stable.Symbol, route.Name)

	var receivedRaw uint64
	var txRef string

	_, err := m.retry.Attempt(ctx, LegBuy, m.cfg.SlippageBps, func(ctx context.Context, slippageBps int) error {
		metrics.RetryAttempt("buy")
		out, ref, err := m.swapLeg(ctx, m.cfg.Stable.Mint, route.Mint, amountRaw, slippageBps)
		if err != nil {
			return err
		}
		if err := CheckBuyPlausibility(amountRaw, m.cfg.Stable.Decimals, out, route.Decimals, m.cfg.MaxUnitsPerStable); err != nil {
			return err
		}
		receivedRaw = out
		txRef = ref
		return nil
	})
	if err != nil {
		metrics.LegCompleted("buy", "failed")
		return err
	}

	m.rec.Cycle = state.StateBought
	m.rec.CurrentRoute = &state.Route{Name: route.Name, VolatileMint: route.Mint}
	m.rec.SetBuyAmountRaw(receivedRaw)
	m.rec.LastBuyTxRef = txRef
	m.rec.LastBuyTimeMs = m.now().UnixMilli()
	m.rec.CompletedLegs++

	if err := m.persist(); err != nil {
		return fmt.Errorf("persist after buy leg: %w", err)
	}

	metrics.LegCompleted("buy", "ok")
	metrics.SetCompletedLegs(m.rec.CompletedLegs)
	metrics.SetCycleState(string(state.StateBought))
	m.logf("[BUY] %s: received %s %s (tx %s, leg %d/%d)\n",
		m.shortWallet(), FormatUnits(receivedRaw, route.Decimals), route.Name, txRef, m.rec.CompletedLegs, m.cfg.TargetLegs)
	return nil
}

// ExecuteSell sells the recorded buy amount of the current route back to the
// stable asset. The recorded amount is the sole authority for sizing; the
// live wallet balance only absorbs sub-2% drift. On success the record moves
// to SOLD with the per-cycle fields cleared, and is persisted.
func (m *Machine) ExecuteSell(ctx context.Context) error {
	if err := RequireBoughtState(&m.rec); err != nil {
		return err
	}

	recordedRaw, err := m.rec.BuyAmountRaw()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptState, err)
	}

	route, ok := m.cfg.RouteByMint(m.rec.CurrentRoute.VolatileMint)
	if !ok {
		return fmt.Errorf("%w: recorded route %s is not configured", ErrCorruptState, m.rec.CurrentRoute.VolatileMint)
	}

	// The balance read and amount resolution sit inside the retried action:
	// a transient RPC failure while holding the volatile asset must be
	// retried, not abort the run. Safety violations still abort immediately.
	_, err = m.retry.Attempt(ctx, LegSell, m.cfg.SlippageBps, func(ctx context.Context, slippageBps int) error {
		metrics.RetryAttempt("sell")

		walletRaw := recordedRaw
		if !m.cfg.DryRun {
			var err error
			walletRaw, err = m.balances.BalanceRaw(ctx, route.Mint)
			if err != nil {
				return fmt.Errorf("read %s balance: %w", route.Name, err)
			}
		}

		sellRaw, err := ResolveSellAmount(recordedRaw, walletRaw)
		if err != nil {
			return err
		}
		if sellRaw != recordedRaw {
			m.logf("[SELL] %s: wallet holds %d of recorded %d, selling actual balance (drift within tolerance)\n",
				m.shortWallet(), walletRaw, recordedRaw)
		}

		m.logf("[SELL] %s: selling %s %s\n", m.shortWallet(), FormatUnits(sellRaw, route.Decimals), route.Name)
		_, _, err = m.swapLeg(ctx, route.Mint, m.cfg.Stable.Mint, sellRaw, slippageBps)
		return err
	})
	if err != nil {
		metrics.LegCompleted("sell", "failed")
		return err
	}

	m.rec.Cycle = state.StateSold
	m.rec.CurrentRoute = nil
	m.rec.LastBuyAmountRaw = ""
	m.rec.CompletedLegs++

	if err := m.persist(); err != nil {
		return fmt.Errorf("persist after sell leg: %w", err)
	}

	metrics.LegCompleted("sell", "ok")
	metrics.CycleCompleted()
	metrics.SetCompletedLegs(m.rec.CompletedLegs)
	metrics.SetCycleState(string(state.StateSold))
	m.logf("[SELL] %s: round trip complete (leg %d/%d)\n", m.shortWallet(), m.rec.CompletedLegs, m.cfg.TargetLegs)
	return nil
}

// ResetToInit performs the logical SOLD -> INIT reset before the next buy.
// No I/O: the persisted record is superseded by the next leg's commit.
func (m *Machine) ResetToInit() {
	if m.rec.Cycle == state.StateSold {
		m.rec.Cycle = state.StateInit
		metrics.SetCycleState(string(state.StateInit))
	}
}

// swapLeg performs one quote -> swap -> submit -> confirm attempt and returns
// the quoted output amount and transaction reference. In dry-run mode it
// stops after the quote.
func (m *Machine) swapLeg(ctx context.Context, inputMint, outputMint string, amountRaw uint64, slippageBps int) (uint64, string, error) {
	quote, err := m.swaps.Quote(ctx, &jupiter.QuoteParams{
		InputMint:   inputMint,
		OutputMint:  outputMint,
		AmountRaw:   amountRaw,
		SlippageBps: slippageBps,
	})
	if err != nil {
		return 0, "", fmt.Errorf("quote: %w", err)
	}

	outRaw, err := quote.OutAmountRaw()
	if err != nil {
		return 0, "", fmt.Errorf("quote: %w", err)
	}

	if m.cfg.DryRun {
		return outRaw, "dry-run", nil
	}

	swap, err := m.swaps.BuildSwap(ctx, quote, m.wallet)
	if err != nil {
		return 0, "", fmt.Errorf("build swap: %w", err)
	}

	sig, err := m.settler.Submit(ctx, swap.SwapTransaction)
	if err != nil {
		return 0, "", fmt.Errorf("submit: %w", err)
	}

	if err := m.settler.Confirm(ctx, sig, confirmTimeout); err != nil {
		return 0, "", fmt.Errorf("confirm: %w", err)
	}

	return outRaw, sig, nil
}

// persist writes the record; the write completes before the next leg runs.
func (m *Machine) persist() error {
	return state.Save(m.statePath, m.rec)
}

// pickRoute chooses a random enabled route.
func (m *Machine) pickRoute() config.RouteSettings {
	routes := m.cfg.EnabledRoutes()
	return routes[m.rnd.Intn(len(routes))]
}

// randAmountRaw draws a stable amount uniformly from the configured range,
// in smallest units.
func (m *Machine) randAmountRaw() uint64 {
	min := m.cfg.AmountMinRaw()
	max := m.cfg.AmountMaxRaw()
	if max <= min {
		return min
	}
	return min + uint64(m.rnd.Int63n(int64(max-min)+1))
}

// shortWallet abbreviates the wallet address for log lines.
func (m *Machine) shortWallet() string {
	if len(m.wallet) <= 8 {
		return m.wallet
	}
	return m.wallet[:4] + ".." + m.wallet[len(m.wallet)-4:]
}

// FormatUnits renders a raw amount in UI units for display only.
func FormatUnits(raw uint64, decimals int) string {
	return fmt.Sprintf("%.4f", float64(raw)/pow10f(decimals))
}
