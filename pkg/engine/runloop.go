package engine

import (
	"context"
	"errors"
	"time"

	"github.com/volcycle/volcycle/pkg/config"
	"github.com/volcycle/volcycle/pkg/metrics"
	"github.com/volcycle/volcycle/pkg/state"
)

// Summary is the mandatory finalization report for one wallet's run. It is
// produced on normal completion, interruption, and fatal error alike.
type Summary struct {
	RunID  string
	Wallet string

	CompletedLegs int
	Cycles        int
	SkippedBuys   int

	StartedAt  time.Time
	Duration   time.Duration
	FinalState state.CycleState

	Interrupted bool
	Err         error

	// Best-effort balance snapshot, zero when unavailable.
	StableBalanceRaw uint64
}

// RunLoop ties the scheduler, cycle machine, and recovery manager together
// for one wallet. Cancellation is cooperative and only observed at iteration
// boundaries and inside the discretionary delay, never mid-leg.
type RunLoop struct {
	cfg      *config.Config
	machine  *Machine
	sched    *Scheduler
	recovery *RecoveryManager
	logf     Logf

	sleep func(ctx context.Context, d time.Duration) error
}

// NewRunLoop creates the run loop for one wallet.
func NewRunLoop(cfg *config.Config, m *Machine, sched *Scheduler, rec *RecoveryManager, logf Logf) *RunLoop {
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	return &RunLoop{
		cfg:      cfg,
		machine:  m,
		sched:    sched,
		recovery: rec,
		logf:     logf,
		sleep:    sleepCtx,
	}
}

// Run executes the wallet's run until the leg target is met, the context is
// canceled, or a fatal condition surfaces. A Summary is always returned,
// alongside the fatal error if one occurred.
func (l *RunLoop) Run(ctx context.Context) (*Summary, error) {
	started := time.Now()
	summary := &Summary{
		Wallet:    l.machine.wallet,
		StartedAt: started,
	}

	finalize := func(err error) (*Summary, error) {
		rec := l.machine.Record()
		summary.RunID = rec.RunID
		summary.CompletedLegs = rec.CompletedLegs
		summary.FinalState = rec.Cycle
		summary.Duration = time.Since(started)
		summary.Err = err
		l.snapshotBalances(summary)
		switch {
		case err != nil:
			metrics.RunFinished("fatal")
		case summary.Interrupted:
			metrics.RunFinished("interrupted")
		default:
			metrics.RunFinished("complete")
		}
		return summary, err
	}

	// Settle any position a previous process left behind, then start fresh.
	// The recovery sell is a leg like any other: once entered it runs to
	// completion, so cancellation is checked only before it starts.
	if ctx.Err() != nil {
		summary.Interrupted = true
		return finalize(nil)
	}
	if err := l.recovery.Recover(context.WithoutCancel(ctx)); err != nil {
		return finalize(err)
	}

	for {
		// Cancellation is observed here and in the delay below only.
		if ctx.Err() != nil {
			summary.Interrupted = true
			return finalize(nil)
		}

		rec := l.machine.Record()
		if rec.CompletedLegs >= l.cfg.TargetLegs {
			l.logf("[RUN] %s: target of %d legs reached\n", l.machine.shortWallet(), l.cfg.TargetLegs)
			return finalize(nil)
		}

		if delay := l.sched.Delay(l.machine.Progress()); delay > 0 {
			l.logf("[RUN] %s: next cycle in %s\n", l.machine.shortWallet(), delay.Round(time.Second))
			if err := l.sleep(ctx, delay); err != nil {
				summary.Interrupted = true
				return finalize(nil)
			}
		}

		// Once a leg starts it runs to completion: an interrupt observed
		// between submit and confirm would abandon a transaction that may
		// still land on-chain, stranding inventory with no persisted trace.
		legCtx := context.WithoutCancel(ctx)

		if err := l.machine.ExecuteBuy(legCtx); err != nil {
			if l.buySkippable(err) {
				summary.SkippedBuys++
				metrics.LegCompleted("buy", "skipped")
				l.logf("[RUN] %s: buy slot skipped (%v), capital still in %s\n",
					l.machine.shortWallet(), err, l.cfg.Stable.Symbol)
				// A skipped slot still pauses: without a floor a dead quote
				// service turns the loop into a tight hammer on the API.
				if pause := time.Duration(l.cfg.BackoffInitialMs) * time.Millisecond; pause > 0 {
					if err := l.sleep(ctx, pause); err != nil {
						summary.Interrupted = true
						return finalize(nil)
					}
				}
				continue
			}
			return finalize(err)
		}

		// The sell must always follow a successful buy; holding the volatile
		// asset through a shutdown would strand inventory.
		if err := l.machine.ExecuteSell(legCtx); err != nil {
			return finalize(err)
		}
		summary.Cycles++

		l.machine.ResetToInit()
	}
}

// buySkippable reports whether a failed buy abandons the slot instead of
// aborting the run. Only exhausted single-attempt buys under sell-only retry
// qualify: capital never left the stable asset, so nothing is at risk.
func (l *RunLoop) buySkippable(err error) bool {
	return l.cfg.SellOnlyRetry && errors.Is(err, ErrRetriesExhausted) && !IsFatal(err)
}

// snapshotBalances records ending balances on a best-effort basis; a failed
// read never blocks finalization.
func (l *RunLoop) snapshotBalances(summary *Summary) {
	if l.cfg.DryRun || l.machine.balances == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	bal, err := l.machine.balances.BalanceRaw(ctx, l.cfg.Stable.Mint)
	if err != nil {
		l.logf("[RUN] %s: balance snapshot failed: %v\n", l.machine.shortWallet(), err)
		return
	}
	summary.StableBalanceRaw = bal
}
