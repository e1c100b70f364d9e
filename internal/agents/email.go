package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/marcus/dayshift/internal/orchestrator"
	"github.com/marcus/dayshift/internal/tasks"
)

// EmailAgent drafts emails for email-type tasks. Drafts are attached to
// the task as artifacts; nothing is ever sent.
type EmailAgent struct {
	inv Invoker
	cfg Config
}

// NewEmailAgent creates the email agent.
func NewEmailAgent(inv Invoker, cfg Config) *EmailAgent {
	return &EmailAgent{inv: inv, cfg: cfg}
}

const emailSystem = `You draft emails on behalf of a busy parent. Match the requested tone, keep it short, and never fabricate facts the task does not state.`

type emailWire struct {
	Subject    string   `json:"subject"`
	Body       string   `json:"body"`
	Recipients []string `json:"recipients"`
	Tone       string   `json:"tone"`
	Confidence float64  `json:"confidence"`
}

func emailPrompt(t *tasks.Task, instructions string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n", t.Title)
	if t.Description != "" {
		fmt.Fprintf(&b, "Detail: %s\n", t.Description)
	}
	if instructions != "" {
		fmt.Fprintf(&b, "Extra instructions: %s\n", instructions)
	}
	b.WriteString(`
Draft the email. Respond with a JSON object:
{
  "subject": "subject line",
  "body": "full email body",
  "recipients": ["name or address if the task states one"],
  "tone": "friendly|formal|firm",
  "confidence": 0.9
}`)
	return b.String()
}

// Draft produces an email draft for the task.
func (a *EmailAgent) Draft(ctx context.Context, t *tasks.Task, instructions string) (*tasks.EmailDraft, error) {
	req := a.cfg.request(emailSystem, emailPrompt(t, instructions))
	res, err := a.inv.Invoke(ctx, orchestrator.Invocation{
		Agent:   orchestrator.AgentEmail,
		Request: req,
		Validate: func(output string) error {
			var w emailWire
			if err := decodeJSON(output, &w); err != nil {
				return err
			}
			if strings.TrimSpace(w.Subject) == "" {
				return fmt.Errorf("empty subject")
			}
			if strings.TrimSpace(w.Body) == "" {
				return fmt.Errorf("empty body")
			}
			return nil
		},
		Repair: repairFor(req),
	})
	if err != nil {
		return nil, err
	}

	var wire emailWire
	if err := decodeJSON(res.Output, &wire); err != nil {
		return nil, err
	}
	return &tasks.EmailDraft{
		Subject:    strings.TrimSpace(wire.Subject),
		Body:       wire.Body,
		Recipients: wire.Recipients,
		Tone:       wire.Tone,
		Confidence: clamp01(wire.Confidence),
	}, nil
}
