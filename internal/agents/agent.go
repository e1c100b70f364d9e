// Package agents holds the five LLM agents: capture, planning, email,
// research, and workflow. Agents build prompts and validate outputs; the
// orchestrator owns retries, timeouts, and the interaction log. Every
// agent that can degrade does so deterministically rather than failing
// the user's request.
package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/marcus/dayshift/internal/orchestrator"
	"github.com/marcus/dayshift/internal/provider"
)

// Config tunes all agents.
type Config struct {
	Model       string
	Temperature float32
	MaxTokens   int
}

// DefaultConfig returns the default agent tuning. Low temperature keeps
// structured outputs stable.
func DefaultConfig() Config {
	return Config{
		Temperature: 0.1,
		MaxTokens:   2048,
	}
}

// Invoker is the orchestrator surface agents depend on.
type Invoker interface {
	Invoke(ctx context.Context, inv orchestrator.Invocation) (orchestrator.Result, error)
}

func (c Config) request(system, prompt string) provider.Request {
	return provider.Request{
		Model:        c.Model,
		System:       system,
		Prompt:       prompt,
		Temperature:  c.Temperature,
		MaxTokens:    c.MaxTokens,
		JSONResponse: true,
	}
}

// repairFor builds the single corrective re-prompt used when a model
// answers with something that fails schema validation.
func repairFor(base provider.Request) func(output string, cause error) provider.Request {
	return func(output string, cause error) provider.Request {
		req := base
		req.Prompt = fmt.Sprintf(
			"Your previous response could not be parsed: %v\n\nPrevious response:\n%s\n\nOriginal request:\n%s\n\nRespond again with ONLY the JSON object, no prose and no code fences.",
			cause, truncate(output, 2000), base.Prompt)
		return req
	}
}

// decodeJSON strips code fences some models wrap around JSON, then
// unmarshals into v.
func decodeJSON(output string, v any) error {
	cleaned := strings.TrimSpace(output)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		if idx := strings.LastIndex(cleaned, "```"); idx >= 0 {
			cleaned = cleaned[:idx]
		}
		cleaned = strings.TrimSpace(cleaned)
	}
	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		return fmt.Errorf("parsing agent output: %w", err)
	}
	return nil
}

// parseWhen accepts the timestamp shapes models actually produce.
func parseWhen(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04",
		"2006-01-02 15:04",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// truncate shortens s to at most max bytes plus an ellipsis, backing up
// so a multibyte rune is never cut in half.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
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
