// Package service is the application facade: every user-facing
// operation (capture, recommend, plan, schedule, draft, research, task
// CRUD) goes through Assistant. Input validation happens here, before
// any provider call spends money or time.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/marcus/dayshift/internal/agents"
	"github.com/marcus/dayshift/internal/calendar"
	"github.com/marcus/dayshift/internal/lifecycle"
	"github.com/marcus/dayshift/internal/logging"
	"github.com/marcus/dayshift/internal/recommend"
	"github.com/marcus/dayshift/internal/scoring"
	"github.com/marcus/dayshift/internal/tasks"
)

// ValidationError rejects bad input before any agent is invoked.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Narrow agent surfaces so tests can stub them.
type captureParser interface {
	Parse(ctx context.Context, transcript string, cctx agents.CaptureContext) (*agents.CaptureResult, error)
}

type planner interface {
	Plan(ctx context.Context, t *tasks.Task, busy []tasks.TimeSlot, now time.Time) (*tasks.PlanningResult, error)
}

type emailDrafter interface {
	Draft(ctx context.Context, t *tasks.Task, instructions string) (*tasks.EmailDraft, error)
}

type researcher interface {
	Research(ctx context.Context, query string, t *tasks.Task) (*tasks.ResearchOptions, error)
}

type actionGenerator interface {
	GenerateActions(ctx context.Context, t *tasks.Task) (*agents.WorkflowResult, error)
}

type transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

// Deps wires the assistant's collaborators.
type Deps struct {
	Repo        tasks.Repository
	Capture     captureParser
	Planner     planner
	Email       emailDrafter
	Research    researcher
	Workflow    actionGenerator
	Transcriber transcriber
	Calendar    calendar.Calendar // nil disables calendar features
	Engine      *recommend.Engine
	Scoring     scoring.Config
	OwnerID     string
	Now         func() time.Time // nil uses time.Now
}

// Assistant is the application facade.
type Assistant struct {
	repo        tasks.Repository
	ctrl        *lifecycle.Controller
	capture     captureParser
	planner     planner
	email       emailDrafter
	research    researcher
	workflow    actionGenerator
	transcriber transcriber
	calendar    calendar.Calendar
	engine      *recommend.Engine
	scoring     scoring.Config
	ownerID     string
	now         func() time.Time
	logger      *logging.Logger
}

// New creates the assistant.
func New(d Deps) *Assistant {
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Assistant{
		repo:        d.Repo,
		ctrl:        lifecycle.NewController(d.Repo),
		capture:     d.Capture,
		planner:     d.Planner,
		email:       d.Email,
		research:    d.Research,
		workflow:    d.Workflow,
		transcriber: d.Transcriber,
		calendar:    d.Calendar,
		engine:      d.Engine,
		scoring:     d.Scoring,
		ownerID:     d.OwnerID,
		now:         d.Now,
		logger:      logging.Component("service"),
	}
}

// CaptureRequest is one capture: raw audio, a transcript, or typed text.
type CaptureRequest struct {
	Transcript string
	Audio      []byte
	Source     tasks.Source
	Location   string
}

// CaptureOutcome reports what a capture produced.
type CaptureOutcome struct {
	Session  *tasks.CaptureSession
	Tasks    []*tasks.Task
	Degraded bool
}

// CaptureAndParse transcribes (if needed), parses the transcript into
// tasks, and commits the session and its tasks atomically. Even when
// the parsing agent is down the capture survives as a degraded task.
func (a *Assistant) CaptureAndParse(ctx context.Context, req CaptureRequest) (*CaptureOutcome, error) {
	transcript := strings.TrimSpace(req.Transcript)
	if transcript == "" && len(req.Audio) == 0 {
		return nil, &ValidationError{Field: "transcript", Reason: "empty capture"}
	}
	if req.Source == "" {
		req.Source = tasks.SourceText
	}

	now := a.now()
	if transcript == "" {
		if a.transcriber == nil {
			return nil, &ValidationError{Field: "audio", Reason: "no transcriber configured"}
		}
		var err error
		transcript, err = a.transcriber.Transcribe(ctx, req.Audio, "")
		if err != nil {
			return nil, fmt.Errorf("transcribing capture: %w", err)
		}
		req.Source = tasks.SourceVoice
	}

	parsed, err := a.capture.Parse(ctx, transcript, agents.CaptureContext{
		Location: req.Location,
		Now:      now,
	})
	if err != nil {
		return nil, err
	}

	session := &tasks.CaptureSession{
		ID:         uuid.NewString(),
		OwnerID:    a.ownerID,
		Transcript: transcript,
		Source:     req.Source,
		Location:   req.Location,
		Summary:    parsed.Summary,
		Confidence: parsed.Confidence,
		CreatedAt:  now,
	}

	spawned := make([]*tasks.Task, 0, len(parsed.Tasks))
	for _, pt := range parsed.Tasks {
		t := &tasks.Task{
			ID:                    uuid.NewString(),
			OwnerID:               a.ownerID,
			Title:                 pt.Title,
			Description:           pt.Description,
			Domain:                pt.Domain,
			Status:                tasks.StatusParsed,
			Importance:            pt.Importance,
			Urgency:               pt.Urgency,
			DueDate:               pt.DueDate,
			EstimatedDurationMin:  pt.EstimatedDurationMin,
			RequiresCalendarBlock: pt.RequiresCalendarBlock,
			Source:                req.Source,
			CreatedAt:             now,
			UpdatedAt:             now,
		}
		for i, st := range pt.Subtasks {
			t.SubTasks = append(t.SubTasks, tasks.SubTask{
				ID:         uuid.NewString(),
				Title:      st,
				OrderIndex: i,
			})
		}
		t.PriorityScore, t.Priority = scoring.Score(t, now, a.scoring)
		spawned = append(spawned, t)
	}

	if err := a.repo.CreateCaptureSession(session, spawned); err != nil {
		return nil, err
	}

	a.logger.InfoCtx("capture parsed", map[string]any{
		"session_id": session.ID,
		"tasks":      len(spawned),
		"degraded":   parsed.Degraded,
	})

	return &CaptureOutcome{Session: session, Tasks: spawned, Degraded: parsed.Degraded}, nil
}

// RecommendNow ranks open tasks for the current context. Freshly parsed
// tasks are triaged on their first scoring pass here.
func (a *Assistant) RecommendNow(ctx context.Context, rctx recommend.Context) (recommend.Result, error) {
	if rctx.Now.IsZero() {
		rctx.Now = a.now()
	}

	open, err := a.repo.List(a.ownerID, tasks.ListFilter{NonTerminal: true})
	if err != nil {
		return recommend.Result{}, err
	}

	candidates := make([]*tasks.Task, 0, len(open))
	for _, t := range open {
		switch t.Status {
		case tasks.StatusCaptured:
			continue // not parsed yet, nothing to recommend
		case tasks.StatusParsed:
			t, err = a.triage(t, rctx.Now)
			if err != nil {
				return recommend.Result{}, err
			}
		}
		candidates = append(candidates, t)
	}

	return a.engine.Recommend(candidates, rctx), nil
}

// triage scores a parsed task and advances it to triaged.
func (a *Assistant) triage(t *tasks.Task, now time.Time) (*tasks.Task, error) {
	t.PriorityScore, t.Priority = scoring.Score(t, now, a.scoring)

	updated, err := a.ctrl.Transition(t.ID, tasks.StatusTriaged, lifecycle.ActorSystem)
	if err != nil {
		return nil, err
	}
	updated.PriorityScore, updated.Priority = t.PriorityScore, t.Priority
	updated.UpdatedAt = now
	if err := a.repo.Upsert(updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// GenerateActions breaks a task into typed actions and records the plan
// as an artifact. A degraded plan is still a plan.
func (a *Assistant) GenerateActions(ctx context.Context, taskID string) (*tasks.Task, error) {
	t, err := a.repo.Get(taskID)
	if err != nil {
		return nil, err
	}
	if t.Status.IsTerminal() {
		return nil, &ValidationError{Field: "task", Reason: "task is closed"}
	}

	res, err := a.workflow.GenerateActions(ctx, t)
	if err != nil {
		return nil, err
	}

	t.Actions = res.Actions
	if err := t.AttachArtifact(tasks.Artifact{
		Kind:      tasks.ArtifactActionPlan,
		CreatedAt: a.now(),
		Plan:      &res.Plan,
	}); err != nil {
		return nil, err
	}
	t.UpdatedAt = a.now()
	if err := a.repo.Upsert(t); err != nil {
		return nil, err
	}
	return t, nil
}

// DraftEmail drafts an email for the task and attaches it. Nothing is
// sent.
func (a *Assistant) DraftEmail(ctx context.Context, taskID, instructions string) (*tasks.EmailDraft, error) {
	t, err := a.repo.Get(taskID)
	if err != nil {
		return nil, err
	}

	draft, err := a.email.Draft(ctx, t, instructions)
	if err != nil {
		return nil, err
	}

	if err := t.AttachArtifact(tasks.Artifact{
		Kind:      tasks.ArtifactEmailDraft,
		CreatedAt: a.now(),
		Email:     draft,
	}); err != nil {
		return nil, err
	}
	t.UpdatedAt = a.now()
	if err := a.repo.Upsert(t); err != nil {
		return nil, err
	}
	return draft, nil
}

// Research compares options for a query. With a task id the result is
// attached to the task.
func (a *Assistant) Research(ctx context.Context, query, taskID string) (*tasks.ResearchOptions, error) {
	if strings.TrimSpace(query) == "" {
		return nil, &ValidationError{Field: "query", Reason: "empty query"}
	}

	var t *tasks.Task
	if taskID != "" {
		var err error
		t, err = a.repo.Get(taskID)
		if err != nil {
			return nil, err
		}
	}

	opts, err := a.research.Research(ctx, query, t)
	if err != nil {
		return nil, err
	}

	if t != nil {
		if err := t.AttachArtifact(tasks.Artifact{
			Kind:      tasks.ArtifactResearch,
			CreatedAt: a.now(),
			Research:  opts,
		}); err != nil {
			return nil, err
		}
		t.UpdatedAt = a.now()
		if err := a.repo.Upsert(t); err != nil {
			return nil, err
		}
	}
	return opts, nil
}

// PlanTask asks the planning agent for slots around existing calendar
// commitments and moves the task to planned.
func (a *Assistant) PlanTask(ctx context.Context, taskID string) (*tasks.PlanningResult, error) {
	t, err := a.repo.Get(taskID)
	if err != nil {
		return nil, err
	}
	if t.Status != tasks.StatusTriaged {
		return nil, &ValidationError{Field: "task", Reason: fmt.Sprintf("cannot plan a %s task", t.Status)}
	}

	now := a.now()
	var busy []tasks.TimeSlot
	if a.calendar != nil {
		horizon := now.AddDate(0, 0, 7)
		if t.DueDate != nil && t.DueDate.Before(horizon) {
			horizon = *t.DueDate
		}
		events, err := a.calendar.Events(ctx, now, horizon)
		if err != nil {
			a.logger.WarnCtx("calendar unavailable for planning", map[string]any{"error": err.Error()})
		} else {
			busy = calendar.BusySlots(events)
		}
	}

	plan, err := a.planner.Plan(ctx, t, busy, now)
	if err != nil {
		return nil, err
	}

	updated, err := a.ctrl.Transition(taskID, tasks.StatusPlanned, lifecycle.ActorAgent)
	if err != nil {
		return nil, err
	}
	if err := updated.AttachArtifact(tasks.Artifact{
		Kind:      tasks.ArtifactPlanning,
		CreatedAt: now,
		Planning:  plan,
	}); err != nil {
		return nil, err
	}
	updated.UpdatedAt = now
	if err := a.repo.Upsert(updated); err != nil {
		return nil, err
	}
	return plan, nil
}

// ScheduleTask commits one proposed slot: it books a calendar block
// when the task needs one and moves the task to scheduled.
func (a *Assistant) ScheduleTask(ctx context.Context, taskID string, slotIndex int) (*tasks.Task, error) {
	t, err := a.repo.Get(taskID)
	if err != nil {
		return nil, err
	}

	art, ok := t.LatestArtifact(tasks.ArtifactPlanning)
	if !ok || art.Planning == nil {
		return nil, &ValidationError{Field: "task", Reason: "no planning proposal to schedule"}
	}
	if slotIndex < 0 || slotIndex >= len(art.Planning.Slots) {
		return nil, &ValidationError{Field: "slot", Reason: fmt.Sprintf("slot %d out of range", slotIndex)}
	}
	slot := art.Planning.Slots[slotIndex]

	if t.RequiresCalendarBlock && a.calendar != nil {
		ev, err := a.calendar.CreateBlock(ctx, t.Title, slot.Start, slot.End)
		if err != nil {
			return nil, fmt.Errorf("booking calendar block: %w", err)
		}
		t.LinkedEventID = ev.ID
	}

	updated, err := a.ctrl.Transition(taskID, tasks.StatusScheduled, lifecycle.ActorSystem)
	if err != nil {
		return nil, err
	}
	updated.LinkedEventID = t.LinkedEventID
	updated.UpdatedAt = a.now()
	if err := a.repo.Upsert(updated); err != nil {
		return nil, err
	}
	return updated, nil
}
