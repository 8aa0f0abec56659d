package engine

import (
	"math/rand"
	"time"

	"github.com/volcycle/volcycle/pkg/state"
)

// Progress is the scheduler's view of the run.
type Progress struct {
	Cycle         state.CycleState
	CompletedLegs int
	StartTime     time.Time
}

// SchedulerConfig holds the pacing parameters.
type SchedulerConfig struct {
	TargetLegs int
	Window     time.Duration
	MinDelay   time.Duration

	// EstimatedExec is the fixed per-cycle execution-time estimate covering
	// network round trips and confirmation latency.
	EstimatedExec time.Duration

	// SafetyFactor (< 1) reserves margin against estimate error. The delay
	// is recomputed from scratch every cycle, so errors self-correct rather
	// than compound.
	SafetyFactor float64
}

// Scheduler computes the discretionary delay before the next cycle from the
// remaining time budget and remaining work.
type Scheduler struct {
	cfg  SchedulerConfig
	now  func() time.Time
	rnd  *rand.Rand
	logf Logf
}

// NewScheduler creates a scheduler. now and rnd may be nil, in which case
// wall-clock time and a time-seeded source are used.
func NewScheduler(cfg SchedulerConfig, now func() time.Time, rnd *rand.Rand, logf Logf) *Scheduler {
	if now == nil {
		now = time.Now
	}
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	return &Scheduler{cfg: cfg, now: now, rnd: rnd, logf: logf}
}

// Delay returns the non-negative pause before the next leg.
//
// Holding the volatile asset is risk, so BOUGHT always yields zero: the sell
// happens immediately. Otherwise the remaining window is divided across the
// remaining cycles, with a reserve for execution overhead, and a uniform draw
// is taken from [MinDelay, maxDelay].
func (s *Scheduler) Delay(p Progress) time.Duration {
	if p.Cycle == state.StateBought {
		return 0
	}

	remainingLegs := s.cfg.TargetLegs - p.CompletedLegs
	if remainingLegs <= 0 {
		return 0
	}

	deadline := p.StartTime.Add(s.cfg.Window)
	remainingTime := deadline.Sub(s.now())
	if remainingTime <= 0 {
		s.logf("[SCHED] behind schedule: %d legs remain past the window deadline, running flat out\n", remainingLegs)
		return 0
	}

	remainingCycles := (remainingLegs + 1) / 2

	safeWindow := remainingTime - s.cfg.EstimatedExec*time.Duration(remainingCycles)
	if safeWindow <= 0 {
		s.logf("[SCHED] no slack: %s remain for %d cycles of ~%s each, running flat out\n",
			remainingTime.Round(time.Second), remainingCycles, s.cfg.EstimatedExec)
		return 0
	}

	avgAllocated := safeWindow / time.Duration(remainingCycles)
	maxDelay := time.Duration(float64(avgAllocated) * s.cfg.SafetyFactor)
	if maxDelay < s.cfg.MinDelay {
		return 0
	}

	span := int64(maxDelay - s.cfg.MinDelay)
	return s.cfg.MinDelay + time.Duration(s.rnd.Int63n(span+1))
}
