package tasks

import (
	"encoding/json"
	"fmt"
	"time"
)

// ArtifactKind discriminates the typed payloads agents attach to a task.
type ArtifactKind string

const (
	ArtifactPlanning   ArtifactKind = "planning"
	ArtifactEmailDraft ArtifactKind = "email_draft"
	ArtifactResearch   ArtifactKind = "research"
	ArtifactActionPlan ArtifactKind = "action_plan"
	ArtifactNotes      ArtifactKind = "notes"
)

// TimeSlot is a proposed calendar window.
type TimeSlot struct {
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Reason     string    `json:"reason,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
}

// PlanningResult is the Planning agent's proposal for a task.
type PlanningResult struct {
	Slots     []TimeSlot `json:"slots"`
	Reasoning string     `json:"reasoning,omitempty"`
	Conflicts []string   `json:"conflicts,omitempty"`
}

// EmailDraft is the Email agent's output. It is never sent by the core.
type EmailDraft struct {
	Subject    string   `json:"subject"`
	Body       string   `json:"body"`
	Recipients []string `json:"recipients,omitempty"`
	Tone       string   `json:"tone,omitempty"`
	Confidence float64  `json:"confidence,omitempty"`
}

// ResearchOption is one candidate in a decision-support comparison.
type ResearchOption struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Pros        []string `json:"pros,omitempty"`
	Cons        []string `json:"cons,omitempty"`
	PriceRange  string   `json:"price_range,omitempty"`
	Rating      float64  `json:"rating,omitempty"`
	URL         string   `json:"url,omitempty"`
	Recommended bool     `json:"recommended,omitempty"`
}

// ResearchOptions is the Research agent's output for a query.
type ResearchOptions struct {
	Query          string           `json:"query"`
	Options        []ResearchOption `json:"options"`
	Summary        string           `json:"summary,omitempty"`
	Recommendation string           `json:"recommendation,omitempty"`
}

// ActionPlan is the Workflow agent's reasoning record. The actions
// themselves live on Task.Actions; the plan keeps the why.
type ActionPlan struct {
	Reasoning string `json:"reasoning,omitempty"`
	Degraded  bool   `json:"degraded,omitempty"` // produced by the deterministic fallback
}

// Artifact is a tagged union: exactly one payload field is set, selected
// by Kind. Scoring and recommendation never look inside payloads, which
// keeps them decoupled from agent-specific shapes.
type Artifact struct {
	Kind      ArtifactKind `json:"kind"`
	CreatedAt time.Time    `json:"created_at"`

	Planning *PlanningResult  `json:"planning,omitempty"`
	Email    *EmailDraft      `json:"email,omitempty"`
	Research *ResearchOptions `json:"research,omitempty"`
	Plan     *ActionPlan      `json:"plan,omitempty"`
	Notes    string           `json:"notes,omitempty"`
}

// Validate checks that the payload matches the declared kind.
func (a *Artifact) Validate() error {
	switch a.Kind {
	case ArtifactPlanning:
		if a.Planning == nil {
			return fmt.Errorf("artifact %s: missing planning payload", a.Kind)
		}
	case ArtifactEmailDraft:
		if a.Email == nil {
			return fmt.Errorf("artifact %s: missing email payload", a.Kind)
		}
	case ArtifactResearch:
		if a.Research == nil {
			return fmt.Errorf("artifact %s: missing research payload", a.Kind)
		}
	case ArtifactActionPlan:
		if a.Plan == nil {
			return fmt.Errorf("artifact %s: missing plan payload", a.Kind)
		}
	case ArtifactNotes:
	default:
		return fmt.Errorf("unknown artifact kind %q", a.Kind)
	}
	return nil
}

// AttachArtifact appends an artifact to the task, stamping its creation
// time if unset.
func (t *Task) AttachArtifact(a Artifact) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	t.Artifacts = append(t.Artifacts, a)
	return nil
}

// LatestArtifact returns the most recent artifact of the given kind.
func (t *Task) LatestArtifact(kind ArtifactKind) (Artifact, bool) {
	for i := len(t.Artifacts) - 1; i >= 0; i-- {
		if t.Artifacts[i].Kind == kind {
			return t.Artifacts[i], true
		}
	}
	return Artifact{}, false
}

// MarshalArtifacts serializes artifacts for storage.
func MarshalArtifacts(arts []Artifact) ([]byte, error) {
	if len(arts) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(arts)
}

// UnmarshalArtifacts deserializes artifacts from storage.
func UnmarshalArtifacts(data []byte) ([]Artifact, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var arts []Artifact
	if err := json.Unmarshal(data, &arts); err != nil {
		return nil, fmt.Errorf("parsing artifacts: %w", err)
	}
	return arts, nil
}
