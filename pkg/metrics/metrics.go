// Package metrics exposes Prometheus instrumentation for the cycle engine.
//
// Primary metrics:
//   - volcycle_legs_total{kind,result}    – legs executed (kind: buy|sell; result: ok|failed|skipped)
//   - volcycle_retry_attempts_total{kind} – individual swap attempts, including retries
//   - volcycle_cycles_total               – completed buy+sell round trips
//   - volcycle_completed_legs             – completed legs of the current run (gauge)
//   - volcycle_cycle_state{state}         – current state indicator (0/1 per labeled series)
//   - volcycle_runs_total{result}         – wallet runs by outcome (complete|interrupted|fatal)
//
// Registered in init() and served by the HTTP handler started in main at
// /metrics when a metrics address is configured.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	mtxLegs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "volcycle_legs_total",
			Help: "Legs executed by kind and result",
		},
		[]string{"kind", "result"},
	)

	mtxRetryAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "volcycle_retry_attempts_total",
			Help: "Swap attempts including retries",
		},
		[]string{"kind"},
	)

	mtxCycles = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "volcycle_cycles_total",
			Help: "Completed buy+sell round trips",
		},
	)

	mtxCompletedLegs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "volcycle_completed_legs",
			Help: "Completed legs of the current run",
		},
	)

	// Two labeled series flipped between 0/1 keep dashboards simple.
	mtxCycleState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "volcycle_cycle_state",
			Help: "Current cycle state indicator (one labeled series per state)",
		},
		[]string{"state"},
	)

	mtxRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "volcycle_runs_total",
			Help: "Wallet runs by outcome",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(
		mtxLegs,
		mtxRetryAttempts,
		mtxCycles,
		mtxCompletedLegs,
		mtxCycleState,
		mtxRuns,
	)
}

// LegCompleted records a leg outcome.
func LegCompleted(kind, result string) {
	mtxLegs.WithLabelValues(kind, result).Inc()
}

// RetryAttempt records one swap attempt.
func RetryAttempt(kind string) {
	mtxRetryAttempts.WithLabelValues(kind).Inc()
}

// CycleCompleted records a finished round trip.
func CycleCompleted() {
	mtxCycles.Inc()
}

// SetCompletedLegs updates the completed-legs gauge.
func SetCompletedLegs(n int) {
	mtxCompletedLegs.Set(float64(n))
}

// SetCycleState flips the state indicator series.
func SetCycleState(current string) {
	for _, s := range []string{"INIT", "BOUGHT", "SOLD"} {
		v := 0.0
		if s == current {
			v = 1.0
		}
		mtxCycleState.WithLabelValues(s).Set(v)
	}
}

// RunFinished records a wallet run outcome.
func RunFinished(result string) {
	mtxRuns.WithLabelValues(result).Inc()
}

// Serve starts the /metrics HTTP listener on addr. It blocks, so callers run
// it in a goroutine; errors are returned for the caller to log.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
