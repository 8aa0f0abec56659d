package engine

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/volcycle/volcycle/pkg/state"
)

func testSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		TargetLegs:    10,
		Window:        24 * time.Hour,
		MinDelay:      30 * time.Second,
		EstimatedExec: 45 * time.Second,
		SafetyFactor:  0.8,
	}
}

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestDelayZeroWhileHoldingVolatile(t *testing.T) {
	s := NewScheduler(testSchedulerConfig(), nil, nil, nil)

	d := s.Delay(Progress{Cycle: state.StateBought, CompletedLegs: 1, StartTime: time.Now()})
	assert.Equal(t, time.Duration(0), d)
}

func TestDelayZeroWhenTargetReached(t *testing.T) {
	s := NewScheduler(testSchedulerConfig(), nil, nil, nil)

	d := s.Delay(Progress{Cycle: state.StateInit, CompletedLegs: 10, StartTime: time.Now()})
	assert.Equal(t, time.Duration(0), d)

	d = s.Delay(Progress{Cycle: state.StateInit, CompletedLegs: 12, StartTime: time.Now()})
	assert.Equal(t, time.Duration(0), d)
}

func TestDelayZeroPastDeadline(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start.Add(25 * time.Hour)
	s := NewScheduler(testSchedulerConfig(), fixedNow(now), nil, nil)

	d := s.Delay(Progress{Cycle: state.StateInit, CompletedLegs: 2, StartTime: start})
	assert.Equal(t, time.Duration(0), d)
}

func TestDelayZeroWhenExecReserveConsumesWindow(t *testing.T) {
	cfg := testSchedulerConfig()
	cfg.EstimatedExec = 2 * time.Hour

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	// 5 remaining cycles * 2h reserve exceeds the 8h left in the window.
	now := start.Add(16 * time.Hour)
	s := NewScheduler(cfg, fixedNow(now), nil, nil)

	d := s.Delay(Progress{Cycle: state.StateInit, CompletedLegs: 0, StartTime: start})
	assert.Equal(t, time.Duration(0), d)
}

func TestDelayWithinComputedBounds(t *testing.T) {
	cfg := testSchedulerConfig()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start.Add(time.Hour)
	rnd := rand.New(rand.NewSource(42))
	s := NewScheduler(cfg, fixedNow(now), rnd, nil)

	p := Progress{Cycle: state.StateInit, CompletedLegs: 4, StartTime: start}

	// 6 legs left -> 3 cycles; 23h remain; reserve 3*45s; the 0.8 factor
	// bounds the draw well below the per-cycle allocation.
	remaining := 23 * time.Hour
	reserve := 3 * cfg.EstimatedExec
	maxDelay := time.Duration(float64((remaining - reserve) / 3) * cfg.SafetyFactor)

	for i := 0; i < 200; i++ {
		d := s.Delay(p)
		assert.GreaterOrEqual(t, d, cfg.MinDelay)
		assert.LessOrEqual(t, d, maxDelay)
	}
}

func TestDelayOddRemainingLegsRoundsCyclesUp(t *testing.T) {
	cfg := testSchedulerConfig()
	cfg.MinDelay = 0

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start.Add(time.Hour)
	rnd := rand.New(rand.NewSource(7))
	s := NewScheduler(cfg, fixedNow(now), rnd, nil)

	// 5 legs left counts as 3 cycles, not 2: the in-flight cycle's sell
	// still needs execution time.
	p := Progress{Cycle: state.StateInit, CompletedLegs: 5, StartTime: start}
	maxFor3 := time.Duration(float64((23*time.Hour - 3*cfg.EstimatedExec) / 3) * cfg.SafetyFactor)

	for i := 0; i < 200; i++ {
		assert.LessOrEqual(t, s.Delay(p), maxFor3)
	}
}

func TestDelayZeroWhenMaxBelowMinDelay(t *testing.T) {
	cfg := testSchedulerConfig()
	cfg.MinDelay = 10 * time.Minute

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	// 20 minutes left for 5 cycles: max delay lands under the floor.
	now := start.Add(cfg.Window - 20*time.Minute)
	s := NewScheduler(cfg, fixedNow(now), nil, nil)

	d := s.Delay(Progress{Cycle: state.StateInit, CompletedLegs: 0, StartTime: start})
	assert.Equal(t, time.Duration(0), d)
}
