package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/volcycle/volcycle/pkg/state"
)

// RecoveryManager settles any position left dangling by a crash before a
// fresh run begins.
type RecoveryManager struct {
	machine *Machine
	logf    Logf
}

// NewRecoveryManager creates a recovery manager for the machine.
func NewRecoveryManager(m *Machine, logf Logf) *RecoveryManager {
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	return &RecoveryManager{machine: m, logf: logf}
}

// Recover inspects the persisted state loaded at startup. If the previous
// process died holding the volatile asset (state BOUGHT), exactly one sell
// leg is driven through the machine before anything else. Either way a fresh
// run then begins: counter to zero, start time to now, new run ID.
func (r *RecoveryManager) Recover(ctx context.Context) error {
	rec := r.machine.Record()

	if r.machine.Loaded() && rec.Cycle == state.StateBought {
		r.logf("[RECOVERY] interrupted cycle found: holding %s of %s from tx %s, selling before fresh run\n",
			rec.LastBuyAmountRaw, rec.CurrentRoute.Name, rec.LastBuyTxRef)
		if err := r.machine.ExecuteSell(ctx); err != nil {
			return fmt.Errorf("recovery sell: %w", err)
		}
		r.logf("[RECOVERY] position settled\n")
	}

	return r.machine.BeginFreshRun(uuid.NewString())
}
