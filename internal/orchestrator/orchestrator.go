// Package orchestrator drives LLM agent invocations: per-attempt
// timeouts, bounded retries with backoff, one schema-repair re-prompt,
// and an append-only interaction log with one record per provider
// attempt. Agents supply prompts and validators; the orchestrator owns
// everything between "call the model" and "trust the output".
package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marcus/dayshift/internal/db"
	"github.com/marcus/dayshift/internal/logging"
	"github.com/marcus/dayshift/internal/provider"
)

// AgentKind names the agent on whose behalf an invocation runs.
type AgentKind string

const (
	AgentCapture  AgentKind = "capture"
	AgentPlanning AgentKind = "planning"
	AgentEmail    AgentKind = "email"
	AgentResearch AgentKind = "research"
	AgentWorkflow AgentKind = "workflow"
)

// AgentUnavailableError means every attempt failed. Callers holding a
// degraded fallback should use it now.
type AgentUnavailableError struct {
	Agent    AgentKind
	Attempts int
	Err      error
}

func (e *AgentUnavailableError) Error() string {
	return fmt.Sprintf("agent %s unavailable after %d attempts: %v", e.Agent, e.Attempts, e.Err)
}

func (e *AgentUnavailableError) Unwrap() error { return e.Err }

// Invocation is one agent request.
type Invocation struct {
	Agent     AgentKind
	RequestID string // empty generates one; duplicates coalesce in flight and replay recent results
	Request   provider.Request

	// Validate checks the raw output against the agent's schema. A nil
	// Validate accepts any output.
	Validate func(output string) error

	// Repair builds a corrective re-prompt from invalid output. Used at
	// most once per invocation. Nil disables the repair pass.
	Repair func(output string, cause error) provider.Request
}

// Result is a successful invocation outcome.
type Result struct {
	Output   string
	Attempts int
	Repaired bool
}

// InteractionLog records provider attempts. db.InteractionStore
// implements it.
type InteractionLog interface {
	Append(rec *db.Interaction) error
}

// Config tunes retry behavior.
type Config struct {
	Timeout    time.Duration // per provider attempt
	MaxRetries int           // retries after the first attempt
	Backoff    time.Duration // base for exponential backoff
	ResultTTL  time.Duration // how long completed results answer duplicate request ids
}

// DefaultConfig returns the default orchestrator tuning.
func DefaultConfig() Config {
	return Config{
		Timeout:    30 * time.Second,
		MaxRetries: 2,
		Backoff:    150 * time.Millisecond,
		ResultTTL:  time.Minute,
	}
}

type call struct {
	done chan struct{}
	res  Result
	err  error
}

type cachedResult struct {
	res     Result
	expires time.Time
}

// Orchestrator coordinates agent invocations against one provider.
type Orchestrator struct {
	provider provider.Provider
	log      InteractionLog
	cfg      Config
	logger   *logging.Logger

	mu       sync.Mutex
	inflight map[string]*call
	results  map[string]cachedResult
}

// New creates an orchestrator.
func New(p provider.Provider, log InteractionLog, cfg Config) *Orchestrator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultConfig().Backoff
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = DefaultConfig().ResultTTL
	}
	return &Orchestrator{
		provider: p,
		log:      log,
		cfg:      cfg,
		logger:   logging.Component("orchestrator"),
		inflight: make(map[string]*call),
		results:  make(map[string]cachedResult),
	}
}

// Invoke runs one agent invocation to completion. Calls repeating a
// request id coalesce onto a single provider exchange: concurrent
// duplicates wait for the in-flight call, and a duplicate arriving
// within ResultTTL of a success replays the cached result instead of
// spending another provider call. The interaction log is written before
// Invoke returns, win or lose.
func (o *Orchestrator) Invoke(ctx context.Context, inv Invocation) (Result, error) {
	if inv.RequestID == "" {
		inv.RequestID = uuid.NewString()
	}

	o.mu.Lock()
	if cached, ok := o.results[inv.RequestID]; ok {
		if time.Now().Before(cached.expires) {
			o.mu.Unlock()
			return cached.res, nil
		}
		delete(o.results, inv.RequestID)
	}
	if existing, ok := o.inflight[inv.RequestID]; ok {
		o.mu.Unlock()
		select {
		case <-existing.done:
			return existing.res, existing.err
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}
	c := &call{done: make(chan struct{})}
	o.inflight[inv.RequestID] = c
	o.mu.Unlock()

	c.res, c.err = o.run(ctx, inv)
	close(c.done)

	o.mu.Lock()
	delete(o.inflight, inv.RequestID)
	if c.err == nil {
		o.sweepExpired()
		o.results[inv.RequestID] = cachedResult{res: c.res, expires: time.Now().Add(o.cfg.ResultTTL)}
	}
	o.mu.Unlock()

	return c.res, c.err
}

// sweepExpired drops stale cached results. Caller holds o.mu.
func (o *Orchestrator) sweepExpired() {
	now := time.Now()
	for id, cached := range o.results {
		if !now.Before(cached.expires) {
			delete(o.results, id)
		}
	}
}

func (o *Orchestrator) run(ctx context.Context, inv Invocation) (Result, error) {
	digest := digestOf(inv.Request.Prompt)
	attempt := 0
	var lastErr error

	for retry := 0; retry <= o.cfg.MaxRetries; retry++ {
		if retry > 0 {
			backoff := o.cfg.Backoff * time.Duration(1<<(retry-1))
			select {
			case <-ctx.Done():
				return Result{}, o.unavailable(inv, attempt, ctx.Err())
			case <-time.After(backoff):
			}
		}

		attempt++
		output, err := o.attempt(ctx, inv, inv.Request, attempt, digest)
		if err != nil {
			lastErr = err
			if errors.Is(err, context.Canceled) {
				return Result{}, o.unavailable(inv, attempt, err)
			}
			continue
		}

		if inv.Validate == nil {
			return Result{Output: output, Attempts: attempt}, nil
		}
		verr := inv.Validate(output)
		if verr == nil {
			return Result{Output: output, Attempts: attempt}, nil
		}

		// One repair re-prompt for schema failures, then give up on
		// this invocation rather than burning transport retries on a
		// model that answers but answers wrong.
		if inv.Repair == nil {
			return Result{}, o.unavailable(inv, attempt, verr)
		}
		attempt++
		repaired, rerr := o.attempt(ctx, inv, inv.Repair(output, verr), attempt, digest)
		if rerr != nil {
			return Result{}, o.unavailable(inv, attempt, rerr)
		}
		if verr = inv.Validate(repaired); verr != nil {
			return Result{}, o.unavailable(inv, attempt, verr)
		}
		return Result{Output: repaired, Attempts: attempt, Repaired: true}, nil
	}

	return Result{}, o.unavailable(inv, attempt, lastErr)
}

// attempt runs one provider call under the per-attempt timeout and logs
// exactly one interaction record for it.
func (o *Orchestrator) attempt(ctx context.Context, inv Invocation, req provider.Request, attempt int, digest string) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := o.provider.Complete(attemptCtx, req)
	latency := time.Since(start)

	rec := &db.Interaction{
		ID:          uuid.NewString(),
		AgentKind:   string(inv.Agent),
		RequestID:   inv.RequestID,
		InputDigest: digest,
		LatencyMS:   latency.Milliseconds(),
		Attempt:     attempt,
		CreatedAt:   time.Now(),
	}
	if err != nil {
		rec.Error = err.Error()
	} else {
		rec.Success = true
		rec.Output = resp.Content
	}
	if lerr := o.log.Append(rec); lerr != nil {
		o.logger.ErrorCtx("interaction log write failed", map[string]any{
			"agent": string(inv.Agent),
			"error": lerr.Error(),
		})
	}

	if err != nil {
		o.logger.WarnCtx("provider attempt failed", map[string]any{
			"agent":      string(inv.Agent),
			"request_id": inv.RequestID,
			"attempt":    attempt,
			"error":      err.Error(),
		})
		return "", err
	}

	o.logger.DebugCtx("provider attempt succeeded", map[string]any{
		"agent":      string(inv.Agent),
		"request_id": inv.RequestID,
		"attempt":    attempt,
		"latency_ms": latency.Milliseconds(),
	})
	return resp.Content, nil
}

func (o *Orchestrator) unavailable(inv Invocation, attempts int, err error) error {
	o.logger.ErrorCtx("agent unavailable", map[string]any{
		"agent":      string(inv.Agent),
		"request_id": inv.RequestID,
		"attempts":   attempts,
		"error":      fmt.Sprint(err),
	})
	return &AgentUnavailableError{Agent: inv.Agent, Attempts: attempts, Err: err}
}

func digestOf(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:8])
}
