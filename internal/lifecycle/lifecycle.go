// Package lifecycle enforces the task status state machine: which
// transitions are legal and which actor (user or agent) may trigger them.
// Transitions run under per-task optimistic concurrency through the
// repository's compare-and-set status update.
package lifecycle

import (
	"fmt"

	"github.com/marcus/dayshift/internal/logging"
	"github.com/marcus/dayshift/internal/tasks"
)

// Actor identifies who is requesting a transition.
type Actor string

const (
	ActorUser   Actor = "user"
	ActorAgent  Actor = "agent"
	ActorSystem Actor = "system" // automatic triggers, e.g. first score assignment
)

// InvalidTransitionError names the rejected source/target pair. The
// task's state is left unchanged.
type InvalidTransitionError struct {
	From  tasks.Status
	To    tasks.Status
	Actor Actor
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s (actor %s)", e.From, e.To, e.Actor)
}

// transition table: for each source status, the legal targets and the
// actors allowed to trigger them.
var transitions = map[tasks.Status]map[tasks.Status][]Actor{
	tasks.StatusCaptured: {
		tasks.StatusParsed:    {ActorAgent},
		tasks.StatusCancelled: {ActorUser},
	},
	tasks.StatusParsed: {
		tasks.StatusTriaged:   {ActorSystem, ActorUser},
		tasks.StatusCancelled: {ActorUser},
	},
	tasks.StatusTriaged: {
		tasks.StatusPlanned:    {ActorAgent, ActorUser},
		tasks.StatusInProgress: {ActorUser},
		tasks.StatusCancelled:  {ActorUser},
	},
	tasks.StatusPlanned: {
		tasks.StatusScheduled:  {ActorSystem, ActorAgent},
		tasks.StatusInProgress: {ActorUser},
		tasks.StatusCancelled:  {ActorUser},
	},
	tasks.StatusScheduled: {
		tasks.StatusInProgress: {ActorUser},
		tasks.StatusCancelled:  {ActorUser},
	},
	tasks.StatusInProgress: {
		tasks.StatusDone:      {ActorUser},
		tasks.StatusCancelled: {ActorUser},
	},
	// done and cancelled are terminal: no outgoing transitions.
}

// Allowed reports whether the actor may move a task from one status to
// another. Pure table lookup, no I/O.
func Allowed(from, to tasks.Status, actor Actor) bool {
	targets, ok := transitions[from]
	if !ok {
		return false
	}
	actors, ok := targets[to]
	if !ok {
		return false
	}
	for _, a := range actors {
		if a == actor {
			return true
		}
	}
	return false
}

// Check returns an InvalidTransitionError if the transition is illegal.
func Check(from, to tasks.Status, actor Actor) error {
	if !Allowed(from, to, actor) {
		return &InvalidTransitionError{From: from, To: to, Actor: actor}
	}
	return nil
}

// Controller applies validated transitions against the repository.
type Controller struct {
	repo   tasks.Repository
	logger *logging.Logger
}

// NewController creates a lifecycle controller.
func NewController(repo tasks.Repository) *Controller {
	return &Controller{
		repo:   repo,
		logger: logging.Component("lifecycle"),
	}
}

// Transition moves a task to the target status on behalf of the actor.
// The underlying update is a compare-and-set on the status read here; a
// concurrent change surfaces as tasks.ErrConcurrentModification and the
// caller should re-read and retry.
func (c *Controller) Transition(id string, to tasks.Status, actor Actor) (*tasks.Task, error) {
	task, err := c.repo.Get(id)
	if err != nil {
		return nil, err
	}

	if err := Check(task.Status, to, actor); err != nil {
		return nil, err
	}

	if err := c.repo.UpdateStatus(id, task.Status, to); err != nil {
		return nil, err
	}

	c.logger.InfoCtx("transition applied", map[string]any{
		"task_id": id,
		"from":    string(task.Status),
		"to":      string(to),
		"actor":   string(actor),
	})

	task.Status = to
	return task, nil
}
