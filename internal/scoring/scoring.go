// Package scoring computes a task's numeric priority score and tier.
// Score is a pure function of the task and the evaluation time: no I/O,
// no state, so it can run in parallel fan-outs without locks.
package scoring

import (
	"time"

	"github.com/marcus/dayshift/internal/tasks"
)

// Tier thresholds on the [0,1] score.
const (
	criticalThreshold = 0.8
	highThreshold     = 0.6
	mediumThreshold   = 0.4
	lowThreshold      = 0.2
)

// Weights blends the four normalized components. They should sum to 1;
// Normalize rescales them if they don't.
type Weights struct {
	Urgency    float64
	Importance float64
	Effort     float64
	Domain     float64
}

// Config tunes the scoring curve. All knobs come from configuration, not
// hard-coded business logic.
type Config struct {
	Weights Weights

	// DomainWeights maps each domain to a multiplier in [0,1].
	DomainWeights map[tasks.Domain]float64

	// TypicalDurationMin anchors the effort component: tasks shorter
	// than this get a quick-win boost.
	TypicalDurationMin int

	// ProximityHorizonDays is the window over which the due-date
	// proximity bonus ramps from 0 to full.
	ProximityHorizonDays int
}

// DefaultConfig returns the default scoring configuration.
func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			Urgency:    0.35,
			Importance: 0.40,
			Effort:     0.10,
			Domain:     0.15,
		},
		DomainWeights: map[tasks.Domain]float64{
			tasks.DomainFamily:   1.0,
			tasks.DomainJob:      0.9,
			tasks.DomainCompany:  0.9,
			tasks.DomainHome:     0.8,
			tasks.DomainPersonal: 0.7,
		},
		TypicalDurationMin:   30,
		ProximityHorizonDays: 7,
	}
}

// Normalize rescales the weights to sum to 1. A zero weight set falls
// back to the defaults.
func (w Weights) Normalize() Weights {
	sum := w.Urgency + w.Importance + w.Effort + w.Domain
	if sum <= 0 {
		return DefaultConfig().Weights
	}
	return Weights{
		Urgency:    w.Urgency / sum,
		Importance: w.Importance / sum,
		Effort:     w.Effort / sum,
		Domain:     w.Domain / sum,
	}
}

// Score maps a task and an evaluation time to a score in [0,1] and a
// priority tier. Deterministic: identical inputs yield identical output.
// Overdue tasks always land at tier high or above.
func Score(t *tasks.Task, now time.Time, cfg Config) (float64, tasks.Priority) {
	w := cfg.Weights.Normalize()

	score := w.Urgency*urgencyComponent(t, now, cfg) +
		w.Importance*importanceComponent(t) +
		w.Effort*effortComponent(t, cfg) +
		w.Domain*domainComponent(t, cfg)

	score = clamp01(score)
	tier := tierFor(score)

	if t.Overdue(now) && tierRank(tier) < tierRank(tasks.PriorityHigh) {
		tier = tasks.PriorityHigh
	}
	return score, tier
}

// urgencyComponent is urgency/5 boosted by due-date proximity. The bonus
// ramps linearly over the configured horizon and saturates the component
// at 1.0 once the task is overdue, so it is monotonically non-decreasing
// as the due date approaches.
func urgencyComponent(t *tasks.Task, now time.Time, cfg Config) float64 {
	base := clamp01(float64(clampScale(t.Urgency)) / 5.0)
	if t.DueDate == nil {
		return base
	}

	horizon := cfg.ProximityHorizonDays
	if horizon <= 0 {
		horizon = DefaultConfig().ProximityHorizonDays
	}

	until := t.DueDate.Sub(now)
	if until <= 0 {
		return 1.0 // overdue saturates
	}

	horizonHours := float64(horizon) * 24.0
	proximity := clamp01(1.0 - until.Hours()/horizonHours)
	return clamp01(base + (1.0-base)*proximity)
}

func importanceComponent(t *tasks.Task) float64 {
	return clamp01(float64(clampScale(t.Importance)) / 5.0)
}

// effortComponent rewards short tasks: typical/(typical+duration), which
// is 0.5 at the typical duration and approaches 1 for very quick tasks.
// Tasks without an estimate score the neutral 0.5.
func effortComponent(t *tasks.Task, cfg Config) float64 {
	typical := cfg.TypicalDurationMin
	if typical <= 0 {
		typical = DefaultConfig().TypicalDurationMin
	}
	if t.EstimatedDurationMin <= 0 {
		return 0.5
	}
	return float64(typical) / float64(typical+t.EstimatedDurationMin)
}

func domainComponent(t *tasks.Task, cfg Config) float64 {
	if w, ok := cfg.DomainWeights[t.Domain]; ok {
		return clamp01(w)
	}
	return 0.8
}

func tierFor(score float64) tasks.Priority {
	switch {
	case score >= criticalThreshold:
		return tasks.PriorityCritical
	case score >= highThreshold:
		return tasks.PriorityHigh
	case score >= mediumThreshold:
		return tasks.PriorityMedium
	case score >= lowThreshold:
		return tasks.PriorityLow
	default:
		return tasks.PrioritySomeday
	}
}

func tierRank(p tasks.Priority) int {
	switch p {
	case tasks.PriorityCritical:
		return 5
	case tasks.PriorityHigh:
		return 4
	case tasks.PriorityMedium:
		return 3
	case tasks.PriorityLow:
		return 2
	default:
		return 1
	}
}

// UrgencyFromDue buckets a due date into the 1-5 urgency scale, used
// when creating tasks from parsed captures that carry no explicit
// urgency. No due date maps to a middling 2.
func UrgencyFromDue(due *time.Time, now time.Time) int {
	if due == nil {
		return 2
	}
	days := int(due.Sub(now).Hours() / 24)
	switch {
	case days <= 0:
		return 5
	case days == 1:
		return 4
	case days <= 3:
		return 3
	case days <= 7:
		return 2
	default:
		return 1
	}
}

// ImportanceFromTier maps a priority hint back to the 1-5 importance
// scale.
func ImportanceFromTier(p tasks.Priority) int {
	return tierRank(p)
}

func clampScale(v int) int {
	if v < 1 {
		return 1
	}
	if v > 5 {
		return 5
	}
	return v
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
