package templates

import (
	"errors"
	"testing"
	"time"

	"github.com/marcus/dayshift/internal/db"
	"github.com/marcus/dayshift/internal/tasks"
)

var testNow = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

type memStore struct {
	templates map[string]*db.Template
}

func newMemStore(tpls ...*db.Template) *memStore {
	m := &memStore{templates: make(map[string]*db.Template)}
	for _, tpl := range tpls {
		cp := *tpl
		m.templates[tpl.ID] = &cp
	}
	return m
}

func (m *memStore) Upsert(t *db.Template) error {
	cp := *t
	m.templates[t.ID] = &cp
	return nil
}

func (m *memStore) Get(id string) (*db.Template, error) {
	t, ok := m.templates[id]
	if !ok {
		return nil, tasks.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memStore) ListActive(ownerID string) ([]*db.Template, error) {
	var out []*db.Template
	for _, t := range m.templates {
		if t.OwnerID == ownerID && t.Active {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) MarkGenerated(id string, at time.Time) error {
	t, ok := m.templates[id]
	if !ok {
		return tasks.ErrNotFound
	}
	t.LastGenerated = &at
	return nil
}

type memRepo struct {
	tasks []*tasks.Task
}

func (m *memRepo) Get(string) (*tasks.Task, error)                  { return nil, tasks.ErrNotFound }
func (m *memRepo) List(string, tasks.ListFilter) ([]*tasks.Task, error) { return nil, nil }
func (m *memRepo) Upsert(t *tasks.Task) error {
	cp := *t
	m.tasks = append(m.tasks, &cp)
	return nil
}
func (m *memRepo) Delete(string) error                               { return nil }
func (m *memRepo) UpdateStatus(string, tasks.Status, tasks.Status) error { return nil }
func (m *memRepo) CreateCaptureSession(*tasks.CaptureSession, []*tasks.Task) error {
	return errors.New("not implemented")
}
func (m *memRepo) GetCaptureSession(string) (*tasks.CaptureSession, error) {
	return nil, tasks.ErrNotFound
}

func weeklyTemplate(id string, last *time.Time) *db.Template {
	return &db.Template{
		ID:        id,
		OwnerID:   "marcus",
		Title:     "Weekly review",
		Domain:    tasks.DomainPersonal,
		Frequency: "weekly",
		Actions: []tasks.Action{
			{Type: tasks.ActionChecklist, Label: "Review open tasks", OrderIndex: 0},
		},
		LastGenerated: last,
		Active:        true,
		CreatedAt:     testNow.Add(-30 * 24 * time.Hour),
	}
}

func TestGenerateDueFirstRun(t *testing.T) {
	store := newMemStore(weeklyTemplate("tpl1", nil))
	repo := &memRepo{}
	engine := New(store, repo, "marcus")

	n, err := engine.GenerateDue(testNow)
	if err != nil {
		t.Fatalf("GenerateDue failed: %v", err)
	}
	if n != 1 || len(repo.tasks) != 1 {
		t.Fatalf("generated %d tasks, want 1", len(repo.tasks))
	}

	task := repo.tasks[0]
	if task.Source != tasks.SourceTemplate {
		t.Errorf("source = %s, want template", task.Source)
	}
	if task.Status != tasks.StatusTriaged {
		t.Errorf("status = %s, want triaged", task.Status)
	}
	if len(task.Actions) != 1 || task.Actions[0].ID == "" {
		t.Errorf("actions not stamped with fresh ids: %+v", task.Actions)
	}

	got, _ := store.Get("tpl1")
	if got.LastGenerated == nil || !got.LastGenerated.Equal(testNow) {
		t.Errorf("last generated = %v", got.LastGenerated)
	}
}

func TestGenerateDueRespectsInterval(t *testing.T) {
	recent := testNow.Add(-24 * time.Hour)
	store := newMemStore(weeklyTemplate("tpl1", &recent))
	repo := &memRepo{}
	engine := New(store, repo, "marcus")

	n, err := engine.GenerateDue(testNow)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 || len(repo.tasks) != 0 {
		t.Errorf("generated %d tasks one day into a weekly interval", n)
	}

	weekAgo := testNow.Add(-8 * 24 * time.Hour)
	store = newMemStore(weeklyTemplate("tpl1", &weekAgo))
	engine = New(store, repo, "marcus")
	n, err = engine.GenerateDue(testNow)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("generated %d tasks a week later, want 1", n)
	}
}

func TestGenerateDueSkipsCronDrivenTemplates(t *testing.T) {
	tpl := weeklyTemplate("tpl1", nil)
	tpl.CronExpression = "0 17 * * FRI"
	store := newMemStore(tpl)
	repo := &memRepo{}

	n, err := New(store, repo, "marcus").GenerateDue(testNow)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("sweep generated from a cron-driven template")
	}
}

func TestGenerateDueSkipsInactive(t *testing.T) {
	tpl := weeklyTemplate("tpl1", nil)
	tpl.Active = false
	store := newMemStore(tpl)

	n, err := New(store, &memRepo{}, "marcus").GenerateDue(testNow)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Error("generated from an inactive template")
	}
}

func TestSeedDefaultsDoesNotOverwrite(t *testing.T) {
	store := newMemStore()
	if err := SeedDefaults(store, "marcus", testNow); err != nil {
		t.Fatalf("SeedDefaults failed: %v", err)
	}
	if len(store.templates) != 3 {
		t.Fatalf("seeded %d templates, want 3", len(store.templates))
	}

	// Deactivate one and re-seed: it must stay off.
	store.templates["default-weekly-review"].Active = false
	if err := SeedDefaults(store, "marcus", testNow.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	if store.templates["default-weekly-review"].Active {
		t.Error("re-seeding reactivated a template the user turned off")
	}
}

func TestFrequencyDue(t *testing.T) {
	cases := []struct {
		name      string
		frequency string
		elapsed   time.Duration
		want      bool
	}{
		{"daily due", "daily", 24 * time.Hour, true},
		{"daily slack", "daily", 23 * time.Hour, true},
		{"daily not due", "daily", 12 * time.Hour, false},
		{"weekly due", "weekly", 7 * 24 * time.Hour, true},
		{"weekly not due", "weekly", 3 * 24 * time.Hour, false},
		{"monthly due", "monthly", 30 * 24 * time.Hour, true},
		{"monthly not due", "monthly", 10 * 24 * time.Hour, false},
		{"unknown frequency never due", "fortnightly", 100 * 24 * time.Hour, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			last := testNow.Add(-tc.elapsed)
			tpl := &db.Template{Frequency: tc.frequency, LastGenerated: &last}
			if got := frequencyDue(tpl, testNow); got != tc.want {
				t.Errorf("frequencyDue(%s, %v) = %v, want %v", tc.frequency, tc.elapsed, got, tc.want)
			}
		})
	}
}
