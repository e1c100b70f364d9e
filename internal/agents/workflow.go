package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/marcus/dayshift/internal/orchestrator"
	"github.com/marcus/dayshift/internal/tasks"
)

// WorkflowAgent breaks a task into typed actions. When the model is
// unavailable it falls back to a deterministic keyword-driven plan so a
// task is never left without next steps.
type WorkflowAgent struct {
	inv Invoker
	cfg Config
}

// NewWorkflowAgent creates the workflow agent.
func NewWorkflowAgent(inv Invoker, cfg Config) *WorkflowAgent {
	return &WorkflowAgent{inv: inv, cfg: cfg}
}

// WorkflowResult pairs generated actions with the plan's reasoning.
type WorkflowResult struct {
	Actions []tasks.Action
	Plan    tasks.ActionPlan
}

const workflowSystem = `You break tasks into small concrete next actions. Every action has exactly one type from a fixed vocabulary.`

type workflowWire struct {
	Actions []struct {
		Type   string `json:"type"`
		Label  string `json:"label"`
		Detail string `json:"detail"`
	} `json:"actions"`
	Reasoning string `json:"reasoning"`
}

func workflowPrompt(t *tasks.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n", t.Title)
	if t.Description != "" {
		fmt.Fprintf(&b, "Detail: %s\n", t.Description)
	}
	fmt.Fprintf(&b, "Domain: %s\n", t.Domain)
	b.WriteString(`
Break this into 2-6 ordered actions. Respond with a JSON object:
{
  "actions": [
    {"type": "research|purchase|email|call|book|delegate|schedule|remind|track|decide|photo|checklist", "label": "short imperative", "detail": "optional detail"}
  ],
  "reasoning": "one sentence on the ordering"
}`)
	return b.String()
}

// GenerateActions produces a typed action plan for the task.
func (a *WorkflowAgent) GenerateActions(ctx context.Context, t *tasks.Task) (*WorkflowResult, error) {
	req := a.cfg.request(workflowSystem, workflowPrompt(t))
	res, err := a.inv.Invoke(ctx, orchestrator.Invocation{
		Agent:   orchestrator.AgentWorkflow,
		Request: req,
		Validate: func(output string) error {
			var w workflowWire
			if err := decodeJSON(output, &w); err != nil {
				return err
			}
			return validateWorkflowWire(&w)
		},
		Repair: repairFor(req),
	})

	var aue *orchestrator.AgentUnavailableError
	if errors.As(err, &aue) {
		return fallbackActions(t), nil
	}
	if err != nil {
		return nil, err
	}

	var wire workflowWire
	if err := decodeJSON(res.Output, &wire); err != nil {
		return nil, err
	}

	out := &WorkflowResult{
		Plan: tasks.ActionPlan{Reasoning: wire.Reasoning},
	}
	for i, act := range wire.Actions {
		out.Actions = append(out.Actions, tasks.Action{
			ID:         uuid.NewString(),
			Type:       tasks.ActionType(act.Type),
			Label:      strings.TrimSpace(act.Label),
			Detail:     strings.TrimSpace(act.Detail),
			Status:     tasks.ActionPending,
			OrderIndex: i,
		})
	}
	return out, nil
}

func validateWorkflowWire(w *workflowWire) error {
	if len(w.Actions) == 0 {
		return fmt.Errorf("no actions returned")
	}
	for i, act := range w.Actions {
		if !tasks.ValidActionType(tasks.ActionType(act.Type)) {
			return fmt.Errorf("action %d: unknown type %q", i, act.Type)
		}
		if strings.TrimSpace(act.Label) == "" {
			return fmt.Errorf("action %d: empty label", i)
		}
	}
	return nil
}

// keyword to action type, checked in order. First match wins per
// keyword; multiple keywords can each contribute an action.
var actionKeywords = []struct {
	words []string
	typ   tasks.ActionType
	label string
}{
	{[]string{"email", "reply", "respond"}, tasks.ActionEmail, "Draft the email"},
	{[]string{"call", "phone", "ring"}, tasks.ActionCall, "Make the call"},
	{[]string{"buy", "order", "purchase"}, tasks.ActionPurchase, "Make the purchase"},
	{[]string{"book", "appointment", "reserve", "vaccine", "doctor", "dentist"}, tasks.ActionBook, "Book the appointment"},
	{[]string{"research", "compare", "find", "look into"}, tasks.ActionResearch, "Research options"},
	{[]string{"schedule", "meeting", "plan with"}, tasks.ActionSchedule, "Schedule it"},
	{[]string{"decide", "choose", "pick"}, tasks.ActionDecide, "Make the decision"},
}

// fallbackActions is the deterministic degraded plan: keyword scan over
// the task text, with a generic checklist when nothing matches.
func fallbackActions(t *tasks.Task) *WorkflowResult {
	text := strings.ToLower(t.Title + " " + t.Description)

	var acts []tasks.Action
	for _, kw := range actionKeywords {
		for _, word := range kw.words {
			if strings.Contains(text, word) {
				acts = append(acts, tasks.Action{
					ID:         uuid.NewString(),
					Type:       kw.typ,
					Label:      kw.label,
					Status:     tasks.ActionPending,
					OrderIndex: len(acts),
				})
				break
			}
		}
	}

	if len(acts) == 0 {
		acts = append(acts, tasks.Action{
			ID:         uuid.NewString(),
			Type:       tasks.ActionChecklist,
			Label:      "Break down: " + t.Title,
			Status:     tasks.ActionPending,
			OrderIndex: 0,
		})
	}
	acts = append(acts, tasks.Action{
		ID:         uuid.NewString(),
		Type:       tasks.ActionRemind,
		Label:      "Review progress",
		Status:     tasks.ActionPending,
		OrderIndex: len(acts),
	})

	return &WorkflowResult{
		Actions: acts,
		Plan: tasks.ActionPlan{
			Reasoning: "generated from task keywords while the assistant was unavailable",
			Degraded:  true,
		},
	}
}
