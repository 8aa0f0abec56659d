// Package reporter provides operator-facing output for cycle runs.
package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/volcycle/volcycle/pkg/engine"
	"github.com/volcycle/volcycle/pkg/state"
)

// OutputFormat specifies the output format for the final summary.
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

// Reporter outputs leg diagnostics and run summaries.
type Reporter struct {
	output  io.Writer
	format  OutputFormat
	verbose bool
}

// NewReporter creates a new reporter.
func NewReporter(output io.Writer, format OutputFormat, verbose bool) *Reporter {
	if output == nil {
		output = os.Stdout
	}
	return &Reporter{output: output, format: format, verbose: verbose}
}

// Logf writes a diagnostic line. Suppressed unless verbose.
func (r *Reporter) Logf(format string, args ...interface{}) {
	if !r.verbose {
		return
	}
	fmt.Fprintf(r.output, format, args...)
}

// ReportSummary emits the mandatory finalization summary for one wallet run.
func (r *Reporter) ReportSummary(s *engine.Summary, stableSymbol string, stableDecimals int) {
	switch r.format {
	case FormatJSON:
		r.reportJSON(s, stableSymbol, stableDecimals)
	default:
		r.reportText(s, stableSymbol, stableDecimals)
	}
}

// reportText outputs the summary in human-readable form.
func (r *Reporter) reportText(s *engine.Summary, stableSymbol string, stableDecimals int) {
	outcome := "COMPLETE"
	if s.Err != nil {
		outcome = "FATAL"
	} else if s.Interrupted {
		outcome = "INTERRUPTED"
	}

	fmt.Fprintln(r.output)
	fmt.Fprintln(r.output, strings.Repeat("=", 60))
	fmt.Fprintf(r.output, "RUN %s: %s\n", outcome, s.Wallet)
	fmt.Fprintf(r.output, "  Run ID:         %s\n", s.RunID)
	fmt.Fprintf(r.output, "  Legs completed: %d\n", s.CompletedLegs)
	fmt.Fprintf(r.output, "  Round trips:    %d\n", s.Cycles)
	if s.SkippedBuys > 0 {
		fmt.Fprintf(r.output, "  Skipped buys:   %d\n", s.SkippedBuys)
	}
	fmt.Fprintf(r.output, "  Final state:    %s\n", s.FinalState)
	fmt.Fprintf(r.output, "  Duration:       %s\n", s.Duration.Round(time.Second))
	if s.StableBalanceRaw > 0 {
		fmt.Fprintf(r.output, "  %s balance:   %s\n", stableSymbol, engine.FormatUnits(s.StableBalanceRaw, stableDecimals))
	}
	if s.Err != nil {
		fmt.Fprintf(r.output, "  Error:          %v\n", s.Err)
	}
	fmt.Fprintln(r.output, strings.Repeat("=", 60))
	fmt.Fprintln(r.output)
}

// summaryJSON is the machine-readable summary shape.
type summaryJSON struct {
	RunID         string           `json:"run_id"`
	Wallet        string           `json:"wallet"`
	Outcome       string           `json:"outcome"`
	CompletedLegs int              `json:"completed_legs"`
	Cycles        int              `json:"cycles"`
	SkippedBuys   int              `json:"skipped_buys"`
	FinalState    state.CycleState `json:"final_state"`
	DurationSec   float64          `json:"duration_sec"`
	StableBalance string           `json:"stable_balance,omitempty"`
	Error         string           `json:"error,omitempty"`
}

// reportJSON outputs the summary as one JSON object per line.
func (r *Reporter) reportJSON(s *engine.Summary, stableSymbol string, stableDecimals int) {
	out := summaryJSON{
		RunID:         s.RunID,
		Wallet:        s.Wallet,
		Outcome:       "complete",
		CompletedLegs: s.CompletedLegs,
		Cycles:        s.Cycles,
		SkippedBuys:   s.SkippedBuys,
		FinalState:    s.FinalState,
		DurationSec:   s.Duration.Seconds(),
	}
	if s.Err != nil {
		out.Outcome = "fatal"
		out.Error = s.Err.Error()
	} else if s.Interrupted {
		out.Outcome = "interrupted"
	}
	if s.StableBalanceRaw > 0 {
		out.StableBalance = engine.FormatUnits(s.StableBalanceRaw, stableDecimals)
	}

	enc := json.NewEncoder(r.output)
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode summary: %v\n", err)
	}
}
