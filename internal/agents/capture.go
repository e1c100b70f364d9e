package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/marcus/dayshift/internal/orchestrator"
	"github.com/marcus/dayshift/internal/scoring"
	"github.com/marcus/dayshift/internal/tasks"
)

// CaptureContext carries situational hints into parsing.
type CaptureContext struct {
	Location string
	Now      time.Time
}

// ParsedTask is one task extracted from an utterance.
type ParsedTask struct {
	Title                 string
	Description           string
	Domain                tasks.Domain
	DueDate               *time.Time
	EstimatedDurationMin  int
	RequiresCalendarBlock bool
	Importance            int
	Urgency               int
	Subtasks              []string
}

// CaptureResult is the parsed form of one capture. An empty Tasks slice
// is a valid outcome: the transcript contained nothing actionable.
type CaptureResult struct {
	Tasks      []ParsedTask
	Summary    string
	Confidence float64
	Degraded   bool
}

// CaptureAgent turns free-form voice or text captures into structured
// tasks. A single utterance can produce several tasks.
type CaptureAgent struct {
	inv Invoker
	cfg Config
}

// NewCaptureAgent creates the capture agent.
func NewCaptureAgent(inv Invoker, cfg Config) *CaptureAgent {
	return &CaptureAgent{inv: inv, cfg: cfg}
}

const captureSystem = `You are a task capture assistant for a busy parent juggling family, home, a day job, a side company, and personal errands. You turn raw transcripts into structured tasks. Split distinct obligations into separate tasks.`

type captureWire struct {
	Tasks []struct {
		Title                 string   `json:"title"`
		Description           string   `json:"description"`
		Domain                string   `json:"domain"`
		DueDate               string   `json:"due_date"`
		EstimatedDurationMin  int      `json:"estimated_duration_min"`
		RequiresCalendarBlock bool     `json:"requires_calendar_block"`
		Importance            int      `json:"importance"`
		Urgency               int      `json:"urgency"`
		Confidence            float64  `json:"confidence"`
		Subtasks              []string `json:"subtasks"`
	} `json:"tasks"`
	Summary    string  `json:"summary"`
	Confidence float64 `json:"confidence"`
}

func capturePrompt(transcript string, cctx CaptureContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Current time: %s\n", cctx.Now.Format(time.RFC3339))
	if cctx.Location != "" {
		fmt.Fprintf(&b, "Current location: %s\n", cctx.Location)
	}
	fmt.Fprintf(&b, `
Transcript:
%q

Extract every distinct task. Respond with a JSON object:
{
  "tasks": [
    {
      "title": "short imperative title",
      "description": "extra detail, may be empty",
      "domain": "family|home|job|company|personal",
      "due_date": "RFC3339 timestamp or empty if none stated",
      "estimated_duration_min": 0,
      "requires_calendar_block": false,
      "importance": 3,
      "urgency": 3,
      "confidence": 0.9,
      "subtasks": ["optional smaller step"]
    }
  ],
  "summary": "one sentence summarizing what was captured",
  "confidence": 0.9
}

Rules:
- importance and urgency are 1-5.
- requires_calendar_block is true for anything needing a reserved time slot (appointments, meetings, focused work).
- estimated_duration_min is 0 when you cannot estimate.
- subtasks lists smaller steps within one task; omit it when a task has none.
- Never invent tasks not present in the transcript.
- When the transcript contains nothing actionable, return an empty tasks array.`, transcript)
	return b.String()
}

// Parse extracts tasks from a transcript. On agent failure it degrades
// to a single low-confidence task carrying the raw transcript so the
// capture is never lost.
func (a *CaptureAgent) Parse(ctx context.Context, transcript string, cctx CaptureContext) (*CaptureResult, error) {
	if strings.TrimSpace(transcript) == "" {
		return nil, fmt.Errorf("empty transcript")
	}
	if cctx.Now.IsZero() {
		cctx.Now = time.Now()
	}

	req := a.cfg.request(captureSystem, capturePrompt(transcript, cctx))
	var wire captureWire
	res, err := a.inv.Invoke(ctx, orchestrator.Invocation{
		Agent:   orchestrator.AgentCapture,
		Request: req,
		Validate: func(output string) error {
			var w captureWire
			if err := decodeJSON(output, &w); err != nil {
				return err
			}
			return validateCaptureWire(&w)
		},
		Repair: repairFor(req),
	})

	var aue *orchestrator.AgentUnavailableError
	if errors.As(err, &aue) {
		return degradedCapture(transcript), nil
	}
	if err != nil {
		return nil, err
	}

	if err := decodeJSON(res.Output, &wire); err != nil {
		return nil, err
	}
	return captureFromWire(&wire, cctx.Now)
}

// validateCaptureWire checks each extracted task. An empty task list is
// valid: a transcript with nothing actionable still yields a retained
// zero-task session.
func validateCaptureWire(w *captureWire) error {
	for i, t := range w.Tasks {
		if strings.TrimSpace(t.Title) == "" {
			return fmt.Errorf("task %d: empty title", i)
		}
		if !tasks.ValidDomain(tasks.Domain(t.Domain)) {
			return fmt.Errorf("task %d: unknown domain %q", i, t.Domain)
		}
		if t.DueDate != "" {
			if _, err := parseWhen(t.DueDate); err != nil {
				return fmt.Errorf("task %d: %w", i, err)
			}
		}
	}
	return nil
}

func captureFromWire(w *captureWire, now time.Time) (*CaptureResult, error) {
	out := &CaptureResult{
		Summary:    w.Summary,
		Confidence: clamp01(w.Confidence),
	}
	for _, t := range w.Tasks {
		pt := ParsedTask{
			Title:                 strings.TrimSpace(t.Title),
			Description:           strings.TrimSpace(t.Description),
			Domain:                tasks.Domain(t.Domain),
			EstimatedDurationMin:  t.EstimatedDurationMin,
			RequiresCalendarBlock: t.RequiresCalendarBlock,
			Importance:            clampScale(t.Importance, 3),
			Urgency:               clampScale(t.Urgency, 0),
		}
		for _, st := range t.Subtasks {
			if st = strings.TrimSpace(st); st != "" {
				pt.Subtasks = append(pt.Subtasks, st)
			}
		}
		if t.DueDate != "" {
			due, err := parseWhen(t.DueDate)
			if err != nil {
				return nil, err
			}
			pt.DueDate = &due
		}
		if pt.Urgency == 0 {
			pt.Urgency = scoring.UrgencyFromDue(pt.DueDate, now)
		}
		out.Tasks = append(out.Tasks, pt)
	}
	return out, nil
}

// degradedCapture keeps the capture alive when the model is down: one
// task holding the raw transcript, flagged for manual triage.
func degradedCapture(transcript string) *CaptureResult {
	title := truncate(strings.TrimSpace(transcript), 77)
	return &CaptureResult{
		Tasks: []ParsedTask{{
			Title:       title,
			Description: transcript,
			Domain:      tasks.DomainPersonal,
			Importance:  3,
			Urgency:     2,
		}},
		Summary:    "captured without parsing; assistant unavailable",
		Confidence: 0.2,
		Degraded:   true,
	}
}

func clampScale(v, fallback int) int {
	if v < 1 || v > 5 {
		return fallback
	}
	return v
}
