package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/marcus/dayshift/internal/orchestrator"
	"github.com/marcus/dayshift/internal/tasks"
)

// ResearchAgent compares options for decision-support tasks. It
// recommends; it never purchases or books.
type ResearchAgent struct {
	inv Invoker
	cfg Config
}

// NewResearchAgent creates the research agent.
func NewResearchAgent(inv Invoker, cfg Config) *ResearchAgent {
	return &ResearchAgent{inv: inv, cfg: cfg}
}

const researchSystem = `You are a research assistant. You compare concrete options with honest pros and cons and make a single recommendation. You only present options; you never take action.`

type researchWire struct {
	Options []struct {
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Pros        []string `json:"pros"`
		Cons        []string `json:"cons"`
		PriceRange  string   `json:"price_range"`
		Rating      float64  `json:"rating"`
		URL         string   `json:"url"`
		Recommended bool     `json:"recommended"`
	} `json:"options"`
	Summary        string `json:"summary"`
	Recommendation string `json:"recommendation"`
}

func researchPrompt(query string, t *tasks.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Research question: %s\n", query)
	if t != nil {
		fmt.Fprintf(&b, "For task: %s\n", t.Title)
		if t.Description != "" {
			fmt.Fprintf(&b, "Context: %s\n", t.Description)
		}
	}
	b.WriteString(`
Compare 2-5 options. Respond with a JSON object:
{
  "options": [
    {
      "title": "option name",
      "description": "what it is",
      "pros": ["..."],
      "cons": ["..."],
      "price_range": "$ to $$$ or empty",
      "rating": 4.2,
      "url": "link if known, else empty",
      "recommended": false
    }
  ],
  "summary": "comparison in two sentences",
  "recommendation": "which option and why"
}

Mark exactly one option recommended.`)
	return b.String()
}

// Research compares options for a query, optionally in the context of a
// task.
func (a *ResearchAgent) Research(ctx context.Context, query string, t *tasks.Task) (*tasks.ResearchOptions, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty research query")
	}

	req := a.cfg.request(researchSystem, researchPrompt(query, t))
	res, err := a.inv.Invoke(ctx, orchestrator.Invocation{
		Agent:   orchestrator.AgentResearch,
		Request: req,
		Validate: func(output string) error {
			var w researchWire
			if err := decodeJSON(output, &w); err != nil {
				return err
			}
			if len(w.Options) == 0 {
				return fmt.Errorf("no options returned")
			}
			for i, opt := range w.Options {
				if strings.TrimSpace(opt.Title) == "" {
					return fmt.Errorf("option %d: empty title", i)
				}
			}
			return nil
		},
		Repair: repairFor(req),
	})
	if err != nil {
		return nil, err
	}

	var wire researchWire
	if err := decodeJSON(res.Output, &wire); err != nil {
		return nil, err
	}

	out := &tasks.ResearchOptions{
		Query:          query,
		Summary:        wire.Summary,
		Recommendation: wire.Recommendation,
	}
	for _, opt := range wire.Options {
		out.Options = append(out.Options, tasks.ResearchOption{
			Title:       opt.Title,
			Description: opt.Description,
			Pros:        opt.Pros,
			Cons:        opt.Cons,
			PriceRange:  opt.PriceRange,
			Rating:      opt.Rating,
			URL:         opt.URL,
			Recommended: opt.Recommended,
		})
	}
	return out, nil
}
