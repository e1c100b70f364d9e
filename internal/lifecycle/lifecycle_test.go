package lifecycle

import (
	"errors"
	"testing"
	"time"

	"github.com/marcus/dayshift/internal/tasks"
)

func TestAllowedTransitions(t *testing.T) {
	cases := []struct {
		name  string
		from  tasks.Status
		to    tasks.Status
		actor Actor
		want  bool
	}{
		{"agent parses capture", tasks.StatusCaptured, tasks.StatusParsed, ActorAgent, true},
		{"user cannot parse", tasks.StatusCaptured, tasks.StatusParsed, ActorUser, false},
		{"system triages after scoring", tasks.StatusParsed, tasks.StatusTriaged, ActorSystem, true},
		{"user triages manually", tasks.StatusParsed, tasks.StatusTriaged, ActorUser, true},
		{"agent plans triaged task", tasks.StatusTriaged, tasks.StatusPlanned, ActorAgent, true},
		{"user starts triaged task directly", tasks.StatusTriaged, tasks.StatusInProgress, ActorUser, true},
		{"agent cannot start work", tasks.StatusTriaged, tasks.StatusInProgress, ActorAgent, false},
		{"system schedules planned task", tasks.StatusPlanned, tasks.StatusScheduled, ActorSystem, true},
		{"user starts scheduled task", tasks.StatusScheduled, tasks.StatusInProgress, ActorUser, true},
		{"user completes", tasks.StatusInProgress, tasks.StatusDone, ActorUser, true},
		{"agent cannot complete", tasks.StatusInProgress, tasks.StatusDone, ActorAgent, false},
		{"no skipping to done", tasks.StatusTriaged, tasks.StatusDone, ActorUser, false},
		{"no backwards move", tasks.StatusPlanned, tasks.StatusTriaged, ActorUser, false},
		{"user cancels anywhere", tasks.StatusScheduled, tasks.StatusCancelled, ActorUser, true},
		{"done is terminal", tasks.StatusDone, tasks.StatusInProgress, ActorUser, false},
		{"cancelled is terminal", tasks.StatusCancelled, tasks.StatusTriaged, ActorUser, false},
		{"no self transition", tasks.StatusTriaged, tasks.StatusTriaged, ActorUser, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Allowed(tc.from, tc.to, tc.actor); got != tc.want {
				t.Errorf("Allowed(%s, %s, %s) = %v, want %v", tc.from, tc.to, tc.actor, got, tc.want)
			}
		})
	}
}

func TestTerminalStatesHaveNoOutgoing(t *testing.T) {
	all := []tasks.Status{
		tasks.StatusCaptured, tasks.StatusParsed, tasks.StatusTriaged,
		tasks.StatusPlanned, tasks.StatusScheduled, tasks.StatusInProgress,
		tasks.StatusDone, tasks.StatusCancelled,
	}
	actors := []Actor{ActorUser, ActorAgent, ActorSystem}

	for _, from := range []tasks.Status{tasks.StatusDone, tasks.StatusCancelled} {
		for _, to := range all {
			for _, actor := range actors {
				if Allowed(from, to, actor) {
					t.Errorf("terminal %s allows %s -> %s by %s", from, from, to, actor)
				}
			}
		}
	}
}

func TestCheckReturnsTypedError(t *testing.T) {
	err := Check(tasks.StatusDone, tasks.StatusInProgress, ActorUser)
	var ite *InvalidTransitionError
	if !errors.As(err, &ite) {
		t.Fatalf("err = %v, want *InvalidTransitionError", err)
	}
	if ite.From != tasks.StatusDone || ite.To != tasks.StatusInProgress || ite.Actor != ActorUser {
		t.Errorf("error fields = %+v", ite)
	}
}

// memRepo is a minimal in-memory repository for controller tests.
type memRepo struct {
	tasks map[string]*tasks.Task
}

func newMemRepo(ts ...*tasks.Task) *memRepo {
	m := &memRepo{tasks: make(map[string]*tasks.Task)}
	for _, task := range ts {
		m.tasks[task.ID] = task
	}
	return m
}

func (m *memRepo) Get(id string) (*tasks.Task, error) {
	t, ok := m.tasks[id]
	if !ok {
		return nil, tasks.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memRepo) List(string, tasks.ListFilter) ([]*tasks.Task, error) { return nil, nil }

func (m *memRepo) Upsert(t *tasks.Task) error {
	cp := *t
	m.tasks[t.ID] = &cp
	return nil
}

func (m *memRepo) Delete(id string) error {
	delete(m.tasks, id)
	return nil
}

func (m *memRepo) UpdateStatus(id string, from, to tasks.Status) error {
	t, ok := m.tasks[id]
	if !ok {
		return tasks.ErrNotFound
	}
	if t.Status != from {
		return tasks.ErrConcurrentModification
	}
	t.Status = to
	return nil
}

func (m *memRepo) CreateCaptureSession(*tasks.CaptureSession, []*tasks.Task) error { return nil }
func (m *memRepo) GetCaptureSession(string) (*tasks.CaptureSession, error) {
	return nil, tasks.ErrNotFound
}

func TestControllerTransition(t *testing.T) {
	repo := newMemRepo(&tasks.Task{
		ID:        "t1",
		OwnerID:   "marcus",
		Title:     "Plan offsite",
		Status:    tasks.StatusTriaged,
		CreatedAt: time.Now(),
	})
	ctrl := NewController(repo)

	got, err := ctrl.Transition("t1", tasks.StatusPlanned, ActorAgent)
	if err != nil {
		t.Fatalf("Transition failed: %v", err)
	}
	if got.Status != tasks.StatusPlanned {
		t.Errorf("returned status = %s, want planned", got.Status)
	}

	stored, _ := repo.Get("t1")
	if stored.Status != tasks.StatusPlanned {
		t.Errorf("stored status = %s, want planned", stored.Status)
	}
}

func TestControllerRejectsIllegalTransitionAndLeavesStateUnchanged(t *testing.T) {
	repo := newMemRepo(&tasks.Task{ID: "t1", Status: tasks.StatusTriaged})
	ctrl := NewController(repo)

	_, err := ctrl.Transition("t1", tasks.StatusDone, ActorUser)
	var ite *InvalidTransitionError
	if !errors.As(err, &ite) {
		t.Fatalf("err = %v, want *InvalidTransitionError", err)
	}

	stored, _ := repo.Get("t1")
	if stored.Status != tasks.StatusTriaged {
		t.Errorf("status changed on rejected transition: %s", stored.Status)
	}
}

// staleRepo returns an outdated status from Get so the subsequent
// compare-and-set loses.
type staleRepo struct {
	*memRepo
	staleStatus tasks.Status
}

func (r *staleRepo) Get(id string) (*tasks.Task, error) {
	t, err := r.memRepo.Get(id)
	if err != nil {
		return nil, err
	}
	t.Status = r.staleStatus
	return t, nil
}

func TestControllerSurfacesConcurrentModification(t *testing.T) {
	repo := &staleRepo{
		memRepo:     newMemRepo(&tasks.Task{ID: "t1", Status: tasks.StatusInProgress}),
		staleStatus: tasks.StatusTriaged,
	}
	ctrl := NewController(repo)

	_, err := ctrl.Transition("t1", tasks.StatusPlanned, ActorAgent)
	if !errors.Is(err, tasks.ErrConcurrentModification) {
		t.Errorf("err = %v, want ErrConcurrentModification", err)
	}
}

func TestControllerUnknownTask(t *testing.T) {
	ctrl := NewController(newMemRepo())
	if _, err := ctrl.Transition("ghost", tasks.StatusDone, ActorUser); !errors.Is(err, tasks.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
