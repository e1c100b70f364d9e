// Package tasks defines the core task data model and the repository
// contract the rest of dayshift is built on. A task moves through a fixed
// lifecycle (see internal/lifecycle) and carries typed agent artifacts
// rather than a free-form metadata map.
package tasks

import (
	"errors"
	"time"
)

// Domain is a fixed life-area tag used for weighting and filtering.
type Domain string

const (
	DomainFamily   Domain = "family"
	DomainHome     Domain = "home"
	DomainJob      Domain = "job"
	DomainCompany  Domain = "company"
	DomainPersonal Domain = "personal"
)

// Domains lists all valid domains.
func Domains() []Domain {
	return []Domain{DomainFamily, DomainHome, DomainJob, DomainCompany, DomainPersonal}
}

// ValidDomain reports whether d is one of the fixed domains.
func ValidDomain(d Domain) bool {
	switch d {
	case DomainFamily, DomainHome, DomainJob, DomainCompany, DomainPersonal:
		return true
	}
	return false
}

// Status is a task's lifecycle state.
type Status string

const (
	StatusCaptured   Status = "captured"
	StatusParsed     Status = "parsed"
	StatusTriaged    Status = "triaged"
	StatusPlanned    Status = "planned"
	StatusScheduled  Status = "scheduled"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusCancelled  Status = "cancelled"
)

// IsTerminal reports whether s accepts no outgoing transitions.
func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusCancelled
}

// Priority is the discrete tier derived from the numeric priority score.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
	PrioritySomeday  Priority = "someday"
)

// Source records how a task entered the system.
type Source string

const (
	SourceVoice          Source = "voice"
	SourceText           Source = "text"
	SourceCalendarImport Source = "calendar-import"
	SourceManual         Source = "manual"
	SourceTemplate       Source = "template"
)

// SubTask is a small ordered child item with its own completion state.
type SubTask struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Done       bool   `json:"done"`
	OrderIndex int    `json:"order_index"`
}

// ActionType classifies a discrete step in a task's action plan.
type ActionType string

const (
	ActionResearch  ActionType = "research"
	ActionPurchase  ActionType = "purchase"
	ActionEmail     ActionType = "email"
	ActionCall      ActionType = "call"
	ActionBook      ActionType = "book"
	ActionDelegate  ActionType = "delegate"
	ActionSchedule  ActionType = "schedule"
	ActionRemind    ActionType = "remind"
	ActionTrack     ActionType = "track"
	ActionDecide    ActionType = "decide"
	ActionPhoto     ActionType = "photo"
	ActionChecklist ActionType = "checklist"
)

// ValidActionType reports whether t is a known action type.
func ValidActionType(t ActionType) bool {
	switch t {
	case ActionResearch, ActionPurchase, ActionEmail, ActionCall, ActionBook,
		ActionDelegate, ActionSchedule, ActionRemind, ActionTrack,
		ActionDecide, ActionPhoto, ActionChecklist:
		return true
	}
	return false
}

// ActionStatus tracks progress of a single action.
type ActionStatus string

const (
	ActionPending    ActionStatus = "pending"
	ActionInProgress ActionStatus = "in_progress"
	ActionDone       ActionStatus = "done"
	ActionSkipped    ActionStatus = "skipped"
)

// Action is one typed step of an agent-generated plan for a task.
type Action struct {
	ID          string       `json:"id"`
	Type        ActionType   `json:"type"`
	Label       string       `json:"label"`
	Status      ActionStatus `json:"status"`
	OrderIndex  int          `json:"order_index"`
	AssignedTo  string       `json:"assigned_to,omitempty"`
	Detail      string       `json:"detail,omitempty"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}

// Task is the central entity.
type Task struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`

	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Domain      Domain `json:"domain"`

	Status Status `json:"status"`

	// Prioritization inputs. Priority and PriorityScore are derived
	// caches for display; internal/scoring recomputes them from current
	// inputs and they are never a source of truth.
	Importance    int      `json:"importance"` // 1-5
	Urgency       int      `json:"urgency"`    // 1-5
	Priority      Priority `json:"priority"`
	PriorityScore float64  `json:"priority_score"`

	DueDate               *time.Time `json:"due_date,omitempty"`
	EstimatedDurationMin  int        `json:"estimated_duration_min,omitempty"` // 0 = unknown
	RequiresCalendarBlock bool       `json:"requires_calendar_block"`

	Source    Source    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CaptureSessionID string `json:"capture_session_id,omitempty"`
	LinkedEventID    string `json:"linked_event_id,omitempty"`

	SubTasks  []SubTask  `json:"subtasks,omitempty"`
	Actions   []Action   `json:"actions,omitempty"`
	Artifacts []Artifact `json:"artifacts,omitempty"`
}

// Overdue reports whether the task has a due date in the past.
func (t *Task) Overdue(now time.Time) bool {
	return t.DueDate != nil && t.DueDate.Before(now)
}

// CaptureSession records one parsing request and what it produced.
// Immutable after creation except for the spawned task ids.
type CaptureSession struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"owner_id"`
	Transcript string    `json:"transcript"`
	Source     Source    `json:"source"`
	Location   string    `json:"location,omitempty"`
	Summary    string    `json:"summary,omitempty"`
	Confidence float64   `json:"confidence"`
	TaskIDs    []string  `json:"task_ids"`
	CreatedAt  time.Time `json:"created_at"`
}

// Sentinel errors shared by repository implementations.
var (
	// ErrNotFound indicates an unknown task or session id.
	ErrNotFound = errors.New("not found")

	// ErrConcurrentModification indicates an optimistic-lock conflict:
	// the task's status changed between read and write. Callers should
	// re-read and retry.
	ErrConcurrentModification = errors.New("concurrent modification")
)

// ListFilter narrows List results. Zero values mean "no filter".
type ListFilter struct {
	Status      Status
	Domain      Domain
	NonTerminal bool // only tasks whose status is not done/cancelled
	DueBefore   *time.Time
	Limit       int
	Offset      int
}

// Repository is the durable task record store the core depends on.
// Implementations must make CreateCaptureSession atomic: the session row
// and its spawned tasks all commit or none do.
type Repository interface {
	Get(id string) (*Task, error)
	List(ownerID string, f ListFilter) ([]*Task, error)
	Upsert(t *Task) error
	Delete(id string) error

	// UpdateStatus transitions a task's status only if it still equals
	// from, returning ErrConcurrentModification otherwise.
	UpdateStatus(id string, from, to Status) error

	CreateCaptureSession(s *CaptureSession, spawned []*Task) error
	GetCaptureSession(id string) (*CaptureSession, error)
}
