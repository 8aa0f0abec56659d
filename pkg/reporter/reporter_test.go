package reporter

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/volcycle/volcycle/pkg/engine"
	"github.com/volcycle/volcycle/pkg/state"
)

func sampleSummary() *engine.Summary {
	return &engine.Summary{
		RunID:            "run-42",
		Wallet:           "Wallet111",
		CompletedLegs:    10,
		Cycles:           5,
		Duration:         90 * time.Minute,
		FinalState:       state.StateInit,
		StableBalanceRaw: 12_345_678,
	}
}

func TestReportSummaryText(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf, FormatText, false)
	r.ReportSummary(sampleSummary(), "USDC", 6)

	out := buf.String()
	assert.Contains(t, out, "RUN COMPLETE: Wallet111")
	assert.Contains(t, out, "Legs completed: 10")
	assert.Contains(t, out, "Round trips:    5")
	assert.Contains(t, out, "12.3457")
	assert.NotContains(t, out, "Skipped buys")
}

func TestReportSummaryTextFatal(t *testing.T) {
	s := sampleSummary()
	s.Err = errors.New("state file unreadable")
	s.FinalState = state.StateBought

	var buf bytes.Buffer
	r := NewReporter(&buf, FormatText, false)
	r.ReportSummary(s, "USDC", 6)

	out := buf.String()
	assert.Contains(t, out, "RUN FATAL")
	assert.Contains(t, out, "state file unreadable")
	assert.Contains(t, out, "BOUGHT")
}

func TestReportSummaryJSON(t *testing.T) {
	s := sampleSummary()
	s.SkippedBuys = 2
	s.Interrupted = true

	var buf bytes.Buffer
	r := NewReporter(&buf, FormatJSON, false)
	r.ReportSummary(s, "USDC", 6)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))

	assert.Equal(t, "run-42", got["run_id"])
	assert.Equal(t, "interrupted", got["outcome"])
	assert.Equal(t, float64(10), got["completed_legs"])
	assert.Equal(t, float64(2), got["skipped_buys"])
	assert.Equal(t, float64(5400), got["duration_sec"])
	assert.Equal(t, "12.3457", got["stable_balance"])
	assert.NotContains(t, got, "error")
}

func TestLogfSuppressedUnlessVerbose(t *testing.T) {
	var buf bytes.Buffer

	quiet := NewReporter(&buf, FormatText, false)
	quiet.Logf("leg detail %d\n", 1)
	assert.Empty(t, buf.String())

	loud := NewReporter(&buf, FormatText, true)
	loud.Logf("leg detail %d\n", 2)
	assert.Contains(t, buf.String(), "leg detail 2")
}
