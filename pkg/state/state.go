// Package state persists cycle progress between process runs.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// SchemaVersion tags the on-disk record format. A record carrying any other
// version is treated as if no record existed.
const SchemaVersion = 1

// CycleState is the position of the engine within a buy/sell round trip.
type CycleState string

const (
	// StateInit means no leg of the current cycle has executed.
	StateInit CycleState = "INIT"

	// StateBought means the buy leg completed and the wallet holds the
	// volatile asset; CurrentRoute and LastBuyAmountRaw must be set.
	StateBought CycleState = "BOUGHT"

	// StateSold means the sell leg completed and the wallet is back in the
	// stable asset.
	StateSold CycleState = "SOLD"
)

// Valid reports whether s is one of the recognized cycle states.
func (s CycleState) Valid() bool {
	switch s {
	case StateInit, StateBought, StateSold:
		return true
	}
	return false
}

// Route identifies a traded token pair against the stable asset.
// Identity is the volatile mint address.
type Route struct {
	Name         string `json:"name"`
	VolatileMint string `json:"volatile_mint"`
}

// Record is the durable, single-writer snapshot of run progress. It is
// written immediately after every completed leg; that write is the recovery
// commit point.
type Record struct {
	Version       int        `json:"version"`
	RunID         string     `json:"run_id,omitempty"`
	CompletedLegs int        `json:"completed_legs"`
	StartTimeMs   int64      `json:"start_time_ms"`
	Cycle         CycleState `json:"cycle_state"`

	// Set iff Cycle == StateBought.
	CurrentRoute     *Route `json:"current_route,omitempty"`
	LastBuyAmountRaw string `json:"last_buy_amount_raw,omitempty"`

	// Diagnostic only; never used for control flow.
	LastBuyTxRef  string `json:"last_buy_tx_ref,omitempty"`
	LastBuyTimeMs int64  `json:"last_buy_time_ms,omitempty"`
}

// ErrInvariant indicates a record whose fields contradict its cycle state.
var ErrInvariant = errors.New("state invariant violated")

// CheckInvariant verifies that route and buy amount are present exactly when
// the cycle state is BOUGHT.
func (r *Record) CheckInvariant() error {
	if !r.Cycle.Valid() {
		return fmt.Errorf("%w: unknown cycle state %q", ErrInvariant, r.Cycle)
	}
	bought := r.Cycle == StateBought
	hasRoute := r.CurrentRoute != nil && r.CurrentRoute.VolatileMint != ""
	hasAmount := r.LastBuyAmountRaw != ""
	if bought != hasRoute || bought != hasAmount {
		return fmt.Errorf("%w: state=%s route=%v amount=%q", ErrInvariant, r.Cycle, hasRoute, r.LastBuyAmountRaw)
	}
	return nil
}

// BuyAmountRaw parses the recorded buy amount in smallest units.
func (r *Record) BuyAmountRaw() (uint64, error) {
	if r.LastBuyAmountRaw == "" {
		return 0, fmt.Errorf("no buy amount recorded")
	}
	v, err := strconv.ParseUint(r.LastBuyAmountRaw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse buy amount %q: %w", r.LastBuyAmountRaw, err)
	}
	return v, nil
}

// SetBuyAmountRaw records the buy amount as a decimal string.
func (r *Record) SetBuyAmountRaw(v uint64) {
	r.LastBuyAmountRaw = strconv.FormatUint(v, 10)
}

// Load reads a record from path. A missing file or a record with an
// unrecognized schema version yields found=false with no error.
func Load(path string) (Record, bool, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("read state %s: %w", path, err)
	}

	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return Record{}, false, fmt.Errorf("parse state %s: %w", path, err)
	}
	if rec.Version != SchemaVersion {
		return Record{}, false, nil
	}
	if err := rec.CheckInvariant(); err != nil {
		return Record{}, false, fmt.Errorf("state %s: %w", path, err)
	}
	return rec, true, nil
}

// Save atomically writes the record to path. The write must complete before
// the next leg is attempted; callers treat a failed save as fatal.
func Save(path string, rec Record) error {
	rec.Version = SchemaVersion
	if err := rec.CheckInvariant(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
