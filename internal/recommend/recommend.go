// Package recommend answers "what should I do right now": it filters
// candidate tasks against the user's current context, scores them in
// parallel, and returns a ranked short list with human-readable reasons.
package recommend

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/marcus/dayshift/internal/logging"
	"github.com/marcus/dayshift/internal/scoring"
	"github.com/marcus/dayshift/internal/tasks"
)

// Context describes the user's situation at recommendation time.
type Context struct {
	Now              time.Time
	AvailableMinutes int    // 0 = unconstrained
	Energy           string // low, normal, high; empty = normal
	Location         string
}

// Recommendation is one ranked pick.
type Recommendation struct {
	Task   *tasks.Task
	Score  float64
	Tier   tasks.Priority
	Reason string
}

// Result is the full answer. An empty candidate set yields an empty
// list and a summary, never an error.
type Result struct {
	Recommendations []Recommendation
	Summary         string
}

// Config tunes the engine.
type Config struct {
	TopK                   int
	EnergyPenalty          float64 // applied to demanding tasks when energy is low
	LocationPenalty        float64 // applied when a task names a different location
	MissingEstimatePenalty float64 // applied under a time constraint with no estimate
}

// DefaultConfig returns the default recommendation tuning.
func DefaultConfig() Config {
	return Config{
		TopK:                   3,
		EnergyPenalty:          0.05,
		LocationPenalty:        0.05,
		MissingEstimatePenalty: 0.05,
	}
}

// Engine ranks tasks for the current moment.
type Engine struct {
	cfg     Config
	scoring scoring.Config
	logger  *logging.Logger
}

// New creates a recommendation engine.
func New(cfg Config, sc scoring.Config) *Engine {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultConfig().TopK
	}
	return &Engine{
		cfg:     cfg,
		scoring: sc,
		logger:  logging.Component("recommend"),
	}
}

// Recommend ranks the candidates for the given context. Scoring is pure,
// so the fan-out needs no locks beyond the result slice indexing.
func (e *Engine) Recommend(candidates []*tasks.Task, rctx Context) Result {
	if rctx.Now.IsZero() {
		rctx.Now = time.Now()
	}

	eligible := e.filter(candidates, rctx)
	if len(eligible) == 0 {
		return Result{Summary: e.emptySummary(len(candidates), rctx)}
	}

	recs := make([]Recommendation, len(eligible))
	var wg sync.WaitGroup
	for i, t := range eligible {
		wg.Add(1)
		go func(i int, t *tasks.Task) {
			defer wg.Done()
			score, tier := scoring.Score(t, rctx.Now, e.scoring)
			score -= e.penalties(t, rctx)
			if score < 0 {
				score = 0
			}
			recs[i] = Recommendation{
				Task:   t,
				Score:  score,
				Tier:   tier,
				Reason: e.reason(t, rctx),
			}
		}(i, t)
	}
	wg.Wait()

	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Score != recs[j].Score {
			return recs[i].Score > recs[j].Score
		}
		di, dj := recs[i].Task.DueDate, recs[j].Task.DueDate
		switch {
		case di != nil && dj != nil && !di.Equal(*dj):
			return di.Before(*dj)
		case di != nil && dj == nil:
			return true
		case di == nil && dj != nil:
			return false
		}
		return recs[i].Task.CreatedAt.Before(recs[j].Task.CreatedAt)
	})

	if len(recs) > e.cfg.TopK {
		recs = recs[:e.cfg.TopK]
	}

	e.logger.DebugCtx("recommendation computed", map[string]any{
		"candidates": len(candidates),
		"eligible":   len(eligible),
		"returned":   len(recs),
	})

	return Result{
		Recommendations: recs,
		Summary:         e.summary(recs, rctx),
	}
}

// filter drops terminal tasks and anything that cannot fit the
// available window. Tasks without an estimate stay in, penalized later.
func (e *Engine) filter(candidates []*tasks.Task, rctx Context) []*tasks.Task {
	var out []*tasks.Task
	for _, t := range candidates {
		if t.Status.IsTerminal() {
			continue
		}
		if rctx.AvailableMinutes > 0 && t.EstimatedDurationMin > rctx.AvailableMinutes {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (e *Engine) penalties(t *tasks.Task, rctx Context) float64 {
	var p float64
	if rctx.Energy == "low" && t.Importance >= 4 {
		p += e.cfg.EnergyPenalty
	}
	if rctx.AvailableMinutes > 0 && t.EstimatedDurationMin == 0 {
		p += e.cfg.MissingEstimatePenalty
	}
	if rctx.Location != "" && t.RequiresCalendarBlock && rctx.Location != "home" && t.Domain == tasks.DomainHome {
		p += e.cfg.LocationPenalty
	}
	return p
}

func (e *Engine) reason(t *tasks.Task, rctx Context) string {
	var parts []string
	if t.Overdue(rctx.Now) {
		parts = append(parts, "overdue")
	} else if t.DueDate != nil {
		hours := t.DueDate.Sub(rctx.Now).Hours()
		if hours < 24 {
			parts = append(parts, fmt.Sprintf("due in %dh", int(hours)))
		} else {
			parts = append(parts, fmt.Sprintf("due in %dd", int(hours/24)))
		}
	}
	if t.EstimatedDurationMin > 0 && t.EstimatedDurationMin <= 15 {
		parts = append(parts, "quick win")
	}
	if t.Importance >= 4 {
		parts = append(parts, fmt.Sprintf("high importance (%s)", t.Domain))
	}
	if len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("next up in %s", t.Domain))
	}
	return strings.Join(parts, ", ")
}

func (e *Engine) summary(recs []Recommendation, rctx Context) string {
	if len(recs) == 0 {
		return e.emptySummary(0, rctx)
	}
	top := recs[0]
	return fmt.Sprintf("%d suggestion(s); start with %q (%s)", len(recs), top.Task.Title, top.Reason)
}

func (e *Engine) emptySummary(candidates int, rctx Context) string {
	if candidates == 0 {
		return "nothing on the list right now"
	}
	if rctx.AvailableMinutes > 0 {
		return fmt.Sprintf("nothing fits the %d minutes available", rctx.AvailableMinutes)
	}
	return "no eligible tasks right now"
}
