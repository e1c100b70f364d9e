// Package templates stamps recurring tasks out of stored blueprints.
// Templates with a cron expression get their own schedule; the rest are
// swept hourly against their frequency.
package templates

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/marcus/dayshift/internal/db"
	"github.com/marcus/dayshift/internal/logging"
	"github.com/marcus/dayshift/internal/tasks"
)

// Store is the template persistence surface. db.TemplateStore
// implements it.
type Store interface {
	Upsert(t *db.Template) error
	Get(id string) (*db.Template, error)
	ListActive(ownerID string) ([]*db.Template, error)
	MarkGenerated(id string, at time.Time) error
}

// Engine generates tasks from recurring templates.
type Engine struct {
	store   Store
	repo    tasks.Repository
	ownerID string
	cron    *cron.Cron
	logger  *logging.Logger
}

// New creates a template engine.
func New(store Store, repo tasks.Repository, ownerID string) *Engine {
	return &Engine{
		store:   store,
		repo:    repo,
		ownerID: ownerID,
		cron:    cron.New(),
		logger:  logging.Component("templates"),
	}
}

// Start registers cron entries and begins the scheduler. Templates with
// an explicit cron expression fire on it; everything else is covered by
// the hourly frequency sweep.
func (e *Engine) Start() error {
	if _, err := e.cron.AddFunc("@hourly", func() {
		if _, err := e.GenerateDue(time.Now()); err != nil {
			e.logger.Err(err).Msg("template sweep failed")
		}
	}); err != nil {
		return fmt.Errorf("registering sweep: %w", err)
	}

	active, err := e.store.ListActive(e.ownerID)
	if err != nil {
		return err
	}
	for _, tpl := range active {
		if tpl.CronExpression == "" {
			continue
		}
		id := tpl.ID
		if _, err := e.cron.AddFunc(tpl.CronExpression, func() {
			if err := e.generateNow(id, time.Now()); err != nil {
				e.logger.ErrorCtx("template generation failed", map[string]any{
					"template_id": id,
					"error":       err.Error(),
				})
			}
		}); err != nil {
			return fmt.Errorf("registering template %s (%q): %w", tpl.ID, tpl.CronExpression, err)
		}
	}

	e.cron.Start()
	e.logger.InfoCtx("template engine started", map[string]any{"templates": len(active)})
	return nil
}

// Stop halts the scheduler and waits for running jobs.
func (e *Engine) Stop() {
	ctx := e.cron.Stop()
	<-ctx.Done()
}

// GenerateDue sweeps frequency-based templates and generates a task for
// each one whose interval has elapsed. Returns how many were generated.
func (e *Engine) GenerateDue(now time.Time) (int, error) {
	active, err := e.store.ListActive(e.ownerID)
	if err != nil {
		return 0, err
	}

	generated := 0
	for _, tpl := range active {
		if tpl.CronExpression != "" {
			continue // cron-driven templates fire on their own schedule
		}
		if !frequencyDue(tpl, now) {
			continue
		}
		if err := e.generate(tpl, now); err != nil {
			return generated, err
		}
		generated++
	}
	return generated, nil
}

// generateNow re-reads one template and generates from it, used by
// cron-driven entries so deactivation takes effect without a restart.
func (e *Engine) generateNow(id string, now time.Time) error {
	active, err := e.store.ListActive(e.ownerID)
	if err != nil {
		return err
	}
	for _, tpl := range active {
		if tpl.ID == id {
			return e.generate(tpl, now)
		}
	}
	return nil // deactivated since registration
}

func (e *Engine) generate(tpl *db.Template, now time.Time) error {
	actions := make([]tasks.Action, len(tpl.Actions))
	for i, act := range tpl.Actions {
		actions[i] = act
		actions[i].ID = uuid.NewString()
		actions[i].Status = tasks.ActionPending
		actions[i].CompletedAt = nil
	}

	task := &tasks.Task{
		ID:         uuid.NewString(),
		OwnerID:    tpl.OwnerID,
		Title:      tpl.Title,
		Domain:     tpl.Domain,
		Status:     tasks.StatusTriaged,
		Importance: 3,
		Urgency:    2,
		Priority:   tasks.PriorityMedium,
		Source:     tasks.SourceTemplate,
		Actions:    actions,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := e.repo.Upsert(task); err != nil {
		return fmt.Errorf("creating task from template %s: %w", tpl.ID, err)
	}
	if err := e.store.MarkGenerated(tpl.ID, now); err != nil {
		return err
	}

	e.logger.InfoCtx("task generated from template", map[string]any{
		"template_id": tpl.ID,
		"task_id":     task.ID,
		"title":       tpl.Title,
	})
	return nil
}

// frequencyDue reports whether a frequency-based template's interval has
// elapsed. A small slack keeps hourly sweeps from skipping a period when
// the previous generation ran late in the hour.
func frequencyDue(tpl *db.Template, now time.Time) bool {
	if tpl.LastGenerated == nil {
		return true
	}
	elapsed := now.Sub(*tpl.LastGenerated)
	switch tpl.Frequency {
	case "daily":
		return elapsed >= 23*time.Hour
	case "weekly":
		return elapsed >= 7*24*time.Hour-time.Hour
	case "monthly":
		return elapsed >= 28*24*time.Hour-time.Hour
	default:
		return false
	}
}

// SeedDefaults installs the starter templates on first run. Templates
// already present, including ones the user deactivated, are left alone.
func SeedDefaults(store Store, ownerID string, now time.Time) error {
	defaults := []*db.Template{
		{
			ID:        "default-weekly-review",
			OwnerID:   ownerID,
			Title:     "Weekly review",
			Domain:    tasks.DomainPersonal,
			Frequency: "weekly",
			Actions: []tasks.Action{
				{Type: tasks.ActionChecklist, Label: "Review open tasks", OrderIndex: 0},
				{Type: tasks.ActionDecide, Label: "Pick next week's priorities", OrderIndex: 1},
			},
			Active:    true,
			CreatedAt: now,
		},
		{
			ID:        "default-meal-plan",
			OwnerID:   ownerID,
			Title:     "Plan meals for the week",
			Domain:    tasks.DomainHome,
			Frequency: "weekly",
			Actions: []tasks.Action{
				{Type: tasks.ActionDecide, Label: "Pick dinners", OrderIndex: 0},
				{Type: tasks.ActionPurchase, Label: "Order groceries", OrderIndex: 1},
			},
			Active:    true,
			CreatedAt: now,
		},
		{
			ID:        "default-monthly-finances",
			OwnerID:   ownerID,
			Title:     "Monthly finance check",
			Domain:    tasks.DomainCompany,
			Frequency: "monthly",
			Actions: []tasks.Action{
				{Type: tasks.ActionTrack, Label: "Reconcile accounts", OrderIndex: 0},
				{Type: tasks.ActionChecklist, Label: "Review subscriptions", OrderIndex: 1},
			},
			Active:    true,
			CreatedAt: now,
		},
	}

	for _, tpl := range defaults {
		if _, err := store.Get(tpl.ID); err == nil {
			continue
		} else if !errors.Is(err, tasks.ErrNotFound) {
			return err
		}
		if err := store.Upsert(tpl); err != nil {
			return fmt.Errorf("seeding template %s: %w", tpl.ID, err)
		}
	}
	return nil
}
