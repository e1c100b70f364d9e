package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/marcus/dayshift/internal/orchestrator"
	"github.com/marcus/dayshift/internal/tasks"
)

// PlanningAgent proposes calendar slots for a task around existing
// commitments. It never books anything; the service layer decides.
type PlanningAgent struct {
	inv Invoker
	cfg Config
}

// NewPlanningAgent creates the planning agent.
func NewPlanningAgent(inv Invoker, cfg Config) *PlanningAgent {
	return &PlanningAgent{inv: inv, cfg: cfg}
}

const planningSystem = `You are a scheduling assistant. You propose realistic time slots for tasks around existing calendar commitments. You never double-book.`

type planningWire struct {
	Slots []struct {
		Start      string  `json:"start"`
		End        string  `json:"end"`
		Reason     string  `json:"reason"`
		Confidence float64 `json:"confidence"`
	} `json:"slots"`
	Reasoning string   `json:"reasoning"`
	Conflicts []string `json:"conflicts"`
}

func planningPrompt(t *tasks.Task, busy []tasks.TimeSlot, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Current time: %s\n", now.Format(time.RFC3339))
	fmt.Fprintf(&b, "Task: %s\n", t.Title)
	if t.Description != "" {
		fmt.Fprintf(&b, "Detail: %s\n", t.Description)
	}
	if t.DueDate != nil {
		fmt.Fprintf(&b, "Due: %s\n", t.DueDate.Format(time.RFC3339))
	}
	if t.EstimatedDurationMin > 0 {
		fmt.Fprintf(&b, "Estimated duration: %d minutes\n", t.EstimatedDurationMin)
	}

	b.WriteString("\nExisting commitments:\n")
	if len(busy) == 0 {
		b.WriteString("(none)\n")
	}
	for _, slot := range busy {
		fmt.Fprintf(&b, "- %s to %s: %s\n",
			slot.Start.Format(time.RFC3339), slot.End.Format(time.RFC3339), slot.Reason)
	}

	b.WriteString(`
Propose up to 3 slots. Respond with a JSON object:
{
  "slots": [
    {"start": "RFC3339", "end": "RFC3339", "reason": "why this slot fits", "confidence": 0.9}
  ],
  "reasoning": "one paragraph",
  "conflicts": ["anything that makes scheduling hard"]
}

Rules:
- Slots must not overlap existing commitments.
- Slots must start after the current time.
- If a due date exists, slots must end before it.`)
	return b.String()
}

// Plan proposes slots for a task. Unlike capture there is no degraded
// path: a scheduling proposal the model never saw is worse than none.
func (a *PlanningAgent) Plan(ctx context.Context, t *tasks.Task, busy []tasks.TimeSlot, now time.Time) (*tasks.PlanningResult, error) {
	if now.IsZero() {
		now = time.Now()
	}

	req := a.cfg.request(planningSystem, planningPrompt(t, busy, now))
	res, err := a.inv.Invoke(ctx, orchestrator.Invocation{
		Agent:   orchestrator.AgentPlanning,
		Request: req,
		Validate: func(output string) error {
			var w planningWire
			if err := decodeJSON(output, &w); err != nil {
				return err
			}
			return validatePlanningWire(&w, now)
		},
		Repair: repairFor(req),
	})
	if err != nil {
		return nil, err
	}

	var wire planningWire
	if err := decodeJSON(res.Output, &wire); err != nil {
		return nil, err
	}

	out := &tasks.PlanningResult{
		Reasoning: wire.Reasoning,
		Conflicts: wire.Conflicts,
	}
	for _, s := range wire.Slots {
		start, _ := parseWhen(s.Start)
		end, _ := parseWhen(s.End)
		out.Slots = append(out.Slots, tasks.TimeSlot{
			Start:      start,
			End:        end,
			Reason:     s.Reason,
			Confidence: clamp01(s.Confidence),
		})
	}
	return out, nil
}

func validatePlanningWire(w *planningWire, now time.Time) error {
	if len(w.Slots) == 0 {
		return fmt.Errorf("no slots proposed")
	}
	for i, s := range w.Slots {
		start, err := parseWhen(s.Start)
		if err != nil {
			return fmt.Errorf("slot %d start: %w", i, err)
		}
		end, err := parseWhen(s.End)
		if err != nil {
			return fmt.Errorf("slot %d end: %w", i, err)
		}
		if !end.After(start) {
			return fmt.Errorf("slot %d: end not after start", i)
		}
		if start.Before(now) {
			return fmt.Errorf("slot %d: starts in the past", i)
		}
	}
	return nil
}
