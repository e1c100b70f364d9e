package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/marcus/dayshift/internal/lifecycle"
	"github.com/marcus/dayshift/internal/scoring"
	"github.com/marcus/dayshift/internal/tasks"
)

// CreateTaskParams describes a manually entered task.
type CreateTaskParams struct {
	Title                 string
	Description           string
	Domain                tasks.Domain
	DueDate               *time.Time
	EstimatedDurationMin  int
	RequiresCalendarBlock bool
	Importance            int
	Urgency               int
}

// CreateTask adds a task directly. Manual tasks skip the capture
// pipeline and enter triaged with their score already computed.
func (a *Assistant) CreateTask(p CreateTaskParams) (*tasks.Task, error) {
	if strings.TrimSpace(p.Title) == "" {
		return nil, &ValidationError{Field: "title", Reason: "empty title"}
	}
	if !tasks.ValidDomain(p.Domain) {
		return nil, &ValidationError{Field: "domain", Reason: fmt.Sprintf("unknown domain %q", p.Domain)}
	}
	if p.Importance != 0 && (p.Importance < 1 || p.Importance > 5) {
		return nil, &ValidationError{Field: "importance", Reason: "must be 1-5"}
	}
	if p.Urgency != 0 && (p.Urgency < 1 || p.Urgency > 5) {
		return nil, &ValidationError{Field: "urgency", Reason: "must be 1-5"}
	}
	if p.EstimatedDurationMin < 0 {
		return nil, &ValidationError{Field: "duration", Reason: "negative duration"}
	}

	now := a.now()
	if p.Importance == 0 {
		p.Importance = 3
	}
	if p.Urgency == 0 {
		p.Urgency = scoring.UrgencyFromDue(p.DueDate, now)
	}

	t := &tasks.Task{
		ID:                    uuid.NewString(),
		OwnerID:               a.ownerID,
		Title:                 strings.TrimSpace(p.Title),
		Description:           strings.TrimSpace(p.Description),
		Domain:                p.Domain,
		Status:                tasks.StatusTriaged,
		Importance:            p.Importance,
		Urgency:               p.Urgency,
		DueDate:               p.DueDate,
		EstimatedDurationMin:  p.EstimatedDurationMin,
		RequiresCalendarBlock: p.RequiresCalendarBlock,
		Source:                tasks.SourceManual,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	t.PriorityScore, t.Priority = scoring.Score(t, now, a.scoring)

	if err := a.repo.Upsert(t); err != nil {
		return nil, err
	}
	return t, nil
}

// GetTask returns one task.
func (a *Assistant) GetTask(id string) (*tasks.Task, error) {
	return a.repo.Get(id)
}

// ListTasks returns the owner's tasks matching the filter, with score
// caches refreshed for display.
func (a *Assistant) ListTasks(f tasks.ListFilter) ([]*tasks.Task, error) {
	list, err := a.repo.List(a.ownerID, f)
	if err != nil {
		return nil, err
	}
	now := a.now()
	for _, t := range list {
		if !t.Status.IsTerminal() {
			t.PriorityScore, t.Priority = scoring.Score(t, now, a.scoring)
		}
	}
	return list, nil
}

// UpdateTaskParams carries optional field updates; nil means unchanged.
type UpdateTaskParams struct {
	Title                 *string
	Description           *string
	Domain                *tasks.Domain
	DueDate               *time.Time
	ClearDueDate          bool
	EstimatedDurationMin  *int
	RequiresCalendarBlock *bool
	Importance            *int
	Urgency               *int
}

// UpdateTask applies field edits and rescores.
func (a *Assistant) UpdateTask(id string, p UpdateTaskParams) (*tasks.Task, error) {
	t, err := a.repo.Get(id)
	if err != nil {
		return nil, err
	}

	if p.Title != nil {
		if strings.TrimSpace(*p.Title) == "" {
			return nil, &ValidationError{Field: "title", Reason: "empty title"}
		}
		t.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		t.Description = strings.TrimSpace(*p.Description)
	}
	if p.Domain != nil {
		if !tasks.ValidDomain(*p.Domain) {
			return nil, &ValidationError{Field: "domain", Reason: fmt.Sprintf("unknown domain %q", *p.Domain)}
		}
		t.Domain = *p.Domain
	}
	if p.ClearDueDate {
		t.DueDate = nil
	} else if p.DueDate != nil {
		t.DueDate = p.DueDate
	}
	if p.EstimatedDurationMin != nil {
		if *p.EstimatedDurationMin < 0 {
			return nil, &ValidationError{Field: "duration", Reason: "negative duration"}
		}
		t.EstimatedDurationMin = *p.EstimatedDurationMin
	}
	if p.RequiresCalendarBlock != nil {
		t.RequiresCalendarBlock = *p.RequiresCalendarBlock
	}
	if p.Importance != nil {
		if *p.Importance < 1 || *p.Importance > 5 {
			return nil, &ValidationError{Field: "importance", Reason: "must be 1-5"}
		}
		t.Importance = *p.Importance
	}
	if p.Urgency != nil {
		if *p.Urgency < 1 || *p.Urgency > 5 {
			return nil, &ValidationError{Field: "urgency", Reason: "must be 1-5"}
		}
		t.Urgency = *p.Urgency
	}

	now := a.now()
	t.UpdatedAt = now
	t.PriorityScore, t.Priority = scoring.Score(t, now, a.scoring)

	if err := a.repo.Upsert(t); err != nil {
		return nil, err
	}
	return t, nil
}

// DeleteTask removes a task outright. Cancel is usually the better
// move; delete exists for mistakes.
func (a *Assistant) DeleteTask(id string) error {
	return a.repo.Delete(id)
}

// StartTask moves a task to in_progress on the user's behalf.
func (a *Assistant) StartTask(id string) (*tasks.Task, error) {
	return a.ctrl.Transition(id, tasks.StatusInProgress, lifecycle.ActorUser)
}

// CompleteTask marks an in-progress task done.
func (a *Assistant) CompleteTask(id string) (*tasks.Task, error) {
	return a.ctrl.Transition(id, tasks.StatusDone, lifecycle.ActorUser)
}

// CancelTask cancels a task from any non-terminal state.
func (a *Assistant) CancelTask(id string) (*tasks.Task, error) {
	return a.ctrl.Transition(id, tasks.StatusCancelled, lifecycle.ActorUser)
}

// CompleteAction marks one action done and returns the task.
func (a *Assistant) CompleteAction(taskID, actionID string) (*tasks.Task, error) {
	t, err := a.repo.Get(taskID)
	if err != nil {
		return nil, err
	}

	now := a.now()
	found := false
	for i := range t.Actions {
		if t.Actions[i].ID == actionID {
			t.Actions[i].Status = tasks.ActionDone
			t.Actions[i].CompletedAt = &now
			found = true
			break
		}
	}
	if !found {
		return nil, &ValidationError{Field: "action", Reason: fmt.Sprintf("no action %s on task", actionID)}
	}

	t.UpdatedAt = now
	if err := a.repo.Upsert(t); err != nil {
		return nil, err
	}
	return t, nil
}

// ImportCalendar turns upcoming calendar events into tasks, skipping
// events already imported. Returns the created tasks.
func (a *Assistant) ImportCalendar(ctx context.Context, from, to time.Time) ([]*tasks.Task, error) {
	if a.calendar == nil {
		return nil, &ValidationError{Field: "calendar", Reason: "no calendar configured"}
	}
	if !to.After(from) {
		return nil, &ValidationError{Field: "window", Reason: "end not after start"}
	}

	events, err := a.calendar.Events(ctx, from, to)
	if err != nil {
		return nil, err
	}

	existing, err := a.repo.List(a.ownerID, tasks.ListFilter{})
	if err != nil {
		return nil, err
	}
	linked := make(map[string]bool, len(existing))
	for _, t := range existing {
		if t.LinkedEventID != "" {
			linked[t.LinkedEventID] = true
		}
	}

	now := a.now()
	var created []*tasks.Task
	for _, ev := range events {
		if ev.ID == "" || linked[ev.ID] || strings.TrimSpace(ev.Title) == "" {
			continue
		}
		start := ev.Start
		t := &tasks.Task{
			ID:                    uuid.NewString(),
			OwnerID:               a.ownerID,
			Title:                 "Prepare for: " + ev.Title,
			Description:           fmt.Sprintf("Calendar event at %s", ev.Start.Format(time.RFC3339)),
			Domain:                tasks.DomainPersonal,
			Status:                tasks.StatusTriaged,
			Importance:            3,
			Urgency:               scoring.UrgencyFromDue(&start, now),
			DueDate:               &start,
			RequiresCalendarBlock: false,
			Source:                tasks.SourceCalendarImport,
			LinkedEventID:         ev.ID,
			CreatedAt:             now,
			UpdatedAt:             now,
		}
		t.PriorityScore, t.Priority = scoring.Score(t, now, a.scoring)
		if err := a.repo.Upsert(t); err != nil {
			return created, err
		}
		created = append(created, t)
	}

	a.logger.InfoCtx("calendar imported", map[string]any{
		"events": len(events),
		"tasks":  len(created),
	})
	return created, nil
}
