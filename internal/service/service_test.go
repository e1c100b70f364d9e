package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/marcus/dayshift/internal/agents"
	"github.com/marcus/dayshift/internal/calendar"
	"github.com/marcus/dayshift/internal/recommend"
	"github.com/marcus/dayshift/internal/scoring"
	"github.com/marcus/dayshift/internal/tasks"
)

var testNow = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

// memRepo is an in-memory tasks.Repository for facade tests.
type memRepo struct {
	tasks    map[string]*tasks.Task
	sessions map[string]*tasks.CaptureSession
}

func newMemRepo() *memRepo {
	return &memRepo{
		tasks:    make(map[string]*tasks.Task),
		sessions: make(map[string]*tasks.CaptureSession),
	}
}

func (m *memRepo) Get(id string) (*tasks.Task, error) {
	t, ok := m.tasks[id]
	if !ok {
		return nil, tasks.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memRepo) List(ownerID string, f tasks.ListFilter) ([]*tasks.Task, error) {
	var out []*tasks.Task
	for _, t := range m.tasks {
		if t.OwnerID != ownerID {
			continue
		}
		if f.NonTerminal && t.Status.IsTerminal() {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memRepo) Upsert(t *tasks.Task) error {
	cp := *t
	m.tasks[t.ID] = &cp
	return nil
}

func (m *memRepo) Delete(id string) error {
	if _, ok := m.tasks[id]; !ok {
		return tasks.ErrNotFound
	}
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

func (m *memRepo) CreateCaptureSession(s *tasks.CaptureSession, spawned []*tasks.Task) error {
	if _, ok := m.sessions[s.ID]; ok {
		return errors.New("duplicate session")
	}
	ids := make([]string, 0, len(spawned))
	for _, t := range spawned {
		ids = append(ids, t.ID)
	}
	s.TaskIDs = ids
	cp := *s
	m.sessions[s.ID] = &cp
	for _, t := range spawned {
		t.CaptureSessionID = s.ID
		tc := *t
		m.tasks[t.ID] = &tc
	}
	return nil
}

func (m *memRepo) GetCaptureSession(id string) (*tasks.CaptureSession, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, tasks.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

// Fake agents.

type fakeCapture struct {
	result *agents.CaptureResult
	err    error
}

func (f *fakeCapture) Parse(context.Context, string, agents.CaptureContext) (*agents.CaptureResult, error) {
	return f.result, f.err
}

type fakePlanner struct {
	plan    *tasks.PlanningResult
	err     error
	gotBusy []tasks.TimeSlot
}

func (f *fakePlanner) Plan(_ context.Context, _ *tasks.Task, busy []tasks.TimeSlot, _ time.Time) (*tasks.PlanningResult, error) {
	f.gotBusy = busy
	return f.plan, f.err
}

type fakeEmail struct{ draft *tasks.EmailDraft }

func (f *fakeEmail) Draft(context.Context, *tasks.Task, string) (*tasks.EmailDraft, error) {
	return f.draft, nil
}

type fakeResearch struct{ opts *tasks.ResearchOptions }

func (f *fakeResearch) Research(context.Context, string, *tasks.Task) (*tasks.ResearchOptions, error) {
	return f.opts, nil
}

type fakeWorkflow struct{ result *agents.WorkflowResult }

func (f *fakeWorkflow) GenerateActions(context.Context, *tasks.Task) (*agents.WorkflowResult, error) {
	return f.result, nil
}

type fakeTranscriber struct{ text string }

func (f *fakeTranscriber) Transcribe(context.Context, []byte, string) (string, error) {
	return f.text, nil
}

// fakeCalendar records created blocks.
type fakeCalendar struct {
	events  []calendar.Event
	created []calendar.Event
}

func (f *fakeCalendar) Events(context.Context, time.Time, time.Time) ([]calendar.Event, error) {
	return f.events, nil
}

func (f *fakeCalendar) CreateBlock(_ context.Context, title string, start, end time.Time) (calendar.Event, error) {
	ev := calendar.Event{ID: "ev-" + title, Title: title, Start: start, End: end}
	f.created = append(f.created, ev)
	return ev, nil
}

func (f *fakeCalendar) DeleteEvent(context.Context, string) error { return nil }

func newAssistant(repo *memRepo, mutate func(*Deps)) *Assistant {
	d := Deps{
		Repo:    repo,
		Capture: &fakeCapture{},
		Planner: &fakePlanner{},
		Email:   &fakeEmail{},
		Research: &fakeResearch{
			opts: &tasks.ResearchOptions{Query: "q", Options: []tasks.ResearchOption{{Title: "a"}}},
		},
		Workflow: &fakeWorkflow{},
		Engine:   recommend.New(recommend.DefaultConfig(), scoring.DefaultConfig()),
		Scoring:  scoring.DefaultConfig(),
		OwnerID:  "marcus",
		Now:      func() time.Time { return testNow },
	}
	if mutate != nil {
		mutate(&d)
	}
	return New(d)
}

func TestCaptureAndParseCreatesSessionAndTasks(t *testing.T) {
	repo := newMemRepo()
	due := testNow.Add(72 * time.Hour)
	capture := &fakeCapture{result: &agents.CaptureResult{
		Tasks: []agents.ParsedTask{
			{Title: "Book vaccines", Domain: tasks.DomainFamily, DueDate: &due, Importance: 5, Urgency: 4, RequiresCalendarBlock: true},
			{Title: "Schedule accountant", Domain: tasks.DomainJob, Importance: 4, Urgency: 3, RequiresCalendarBlock: true},
		},
		Summary:    "two appointments",
		Confidence: 0.9,
	}}
	a := newAssistant(repo, func(d *Deps) { d.Capture = capture })

	out, err := a.CaptureAndParse(context.Background(), CaptureRequest{
		Transcript: "book vaccines and schedule the accountant",
		Source:     tasks.SourceText,
	})
	if err != nil {
		t.Fatalf("CaptureAndParse failed: %v", err)
	}
	if len(out.Tasks) != 2 {
		t.Fatalf("got %d tasks, want 2", len(out.Tasks))
	}
	for _, task := range out.Tasks {
		if task.Status != tasks.StatusParsed {
			t.Errorf("task status = %s, want parsed", task.Status)
		}
		if task.CaptureSessionID != out.Session.ID {
			t.Errorf("task not linked to session")
		}
		if task.PriorityScore == 0 {
			t.Errorf("task not scored")
		}
	}
	if len(out.Session.TaskIDs) != 2 {
		t.Errorf("session task ids = %v", out.Session.TaskIDs)
	}

	stored, err := repo.GetCaptureSession(out.Session.ID)
	if err != nil || stored.Transcript == "" {
		t.Errorf("session not persisted: %v", err)
	}
}

func TestCaptureAndParseRetainsEmptySession(t *testing.T) {
	repo := newMemRepo()
	capture := &fakeCapture{result: &agents.CaptureResult{
		Summary:    "nothing actionable detected",
		Confidence: 0.9,
	}}
	a := newAssistant(repo, func(d *Deps) { d.Capture = capture })

	out, err := a.CaptureAndParse(context.Background(), CaptureRequest{
		Transcript: "just thinking out loud",
		Source:     tasks.SourceText,
	})
	if err != nil {
		t.Fatalf("CaptureAndParse failed: %v", err)
	}
	if len(out.Tasks) != 0 {
		t.Fatalf("got %d tasks, want 0", len(out.Tasks))
	}

	stored, err := repo.GetCaptureSession(out.Session.ID)
	if err != nil {
		t.Fatalf("session not persisted: %v", err)
	}
	if len(stored.TaskIDs) != 0 {
		t.Errorf("session task ids = %v", stored.TaskIDs)
	}
	if stored.Transcript != "just thinking out loud" {
		t.Errorf("transcript = %q", stored.Transcript)
	}
}

func TestCaptureAndParseSpawnsSubtasks(t *testing.T) {
	repo := newMemRepo()
	capture := &fakeCapture{result: &agents.CaptureResult{
		Tasks: []agents.ParsedTask{{
			Title:    "Organize school fair stall",
			Domain:   tasks.DomainFamily,
			Subtasks: []string{"Confirm pitch with the PTA", "Buy supplies"},
		}},
		Confidence: 0.9,
	}}
	a := newAssistant(repo, func(d *Deps) { d.Capture = capture })

	out, err := a.CaptureAndParse(context.Background(), CaptureRequest{
		Transcript: "organize the school fair stall",
		Source:     tasks.SourceText,
	})
	if err != nil {
		t.Fatalf("CaptureAndParse failed: %v", err)
	}
	got := out.Tasks[0].SubTasks
	if len(got) != 2 {
		t.Fatalf("subtasks = %+v", got)
	}
	for i, st := range got {
		if st.ID == "" {
			t.Errorf("subtask %d missing id", i)
		}
		if st.OrderIndex != i {
			t.Errorf("subtask %d order = %d", i, st.OrderIndex)
		}
		if st.Done {
			t.Errorf("subtask %d already done", i)
		}
	}
	if got[0].Title != "Confirm pitch with the PTA" {
		t.Errorf("subtask title = %q", got[0].Title)
	}
}

func TestCaptureAndParseRejectsEmpty(t *testing.T) {
	a := newAssistant(newMemRepo(), nil)

	_, err := a.CaptureAndParse(context.Background(), CaptureRequest{})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
}

func TestCaptureAndParseTranscribesAudio(t *testing.T) {
	repo := newMemRepo()
	capture := &fakeCapture{result: &agents.CaptureResult{
		Tasks:      []agents.ParsedTask{{Title: "Buy milk", Domain: tasks.DomainHome}},
		Confidence: 0.8,
	}}
	a := newAssistant(repo, func(d *Deps) {
		d.Capture = capture
		d.Transcriber = &fakeTranscriber{text: "buy milk"}
	})

	out, err := a.CaptureAndParse(context.Background(), CaptureRequest{Audio: []byte{1, 2, 3}})
	if err != nil {
		t.Fatalf("CaptureAndParse failed: %v", err)
	}
	if out.Session.Source != tasks.SourceVoice {
		t.Errorf("source = %s, want voice", out.Session.Source)
	}
	if out.Session.Transcript != "buy milk" {
		t.Errorf("transcript = %q", out.Session.Transcript)
	}
}

func TestRecommendNowTriagesParsedTasks(t *testing.T) {
	repo := newMemRepo()
	repo.tasks["p1"] = &tasks.Task{
		ID: "p1", OwnerID: "marcus", Title: "Parsed task",
		Domain: tasks.DomainFamily, Status: tasks.StatusParsed,
		Importance: 4, Urgency: 3, CreatedAt: testNow.Add(-time.Hour),
	}
	repo.tasks["c1"] = &tasks.Task{
		ID: "c1", OwnerID: "marcus", Title: "Raw capture",
		Domain: tasks.DomainPersonal, Status: tasks.StatusCaptured,
		CreatedAt: testNow.Add(-time.Hour),
	}
	a := newAssistant(repo, nil)

	res, err := a.RecommendNow(context.Background(), recommend.Context{Now: testNow})
	if err != nil {
		t.Fatalf("RecommendNow failed: %v", err)
	}
	if len(res.Recommendations) != 1 {
		t.Fatalf("got %d recommendations, want 1 (captured excluded)", len(res.Recommendations))
	}
	if res.Recommendations[0].Task.ID != "p1" {
		t.Errorf("recommended %s", res.Recommendations[0].Task.ID)
	}

	stored, _ := repo.Get("p1")
	if stored.Status != tasks.StatusTriaged {
		t.Errorf("parsed task not auto-triaged: %s", stored.Status)
	}
	if stored.PriorityScore == 0 {
		t.Error("score cache not persisted")
	}
}

func TestRecommendNowEmptyIsNotAnError(t *testing.T) {
	a := newAssistant(newMemRepo(), nil)

	res, err := a.RecommendNow(context.Background(), recommend.Context{Now: testNow})
	if err != nil {
		t.Fatalf("RecommendNow failed: %v", err)
	}
	if len(res.Recommendations) != 0 || res.Summary == "" {
		t.Errorf("result = %+v", res)
	}
}

func TestGenerateActionsAttachesPlanArtifact(t *testing.T) {
	repo := newMemRepo()
	repo.tasks["t1"] = &tasks.Task{
		ID: "t1", OwnerID: "marcus", Title: "Organize party",
		Domain: tasks.DomainFamily, Status: tasks.StatusTriaged,
	}
	wf := &fakeWorkflow{result: &agents.WorkflowResult{
		Actions: []tasks.Action{{ID: "a1", Type: tasks.ActionResearch, Label: "Compare venues", Status: tasks.ActionPending}},
		Plan:    tasks.ActionPlan{Reasoning: "research first"},
	}}
	a := newAssistant(repo, func(d *Deps) { d.Workflow = wf })

	got, err := a.GenerateActions(context.Background(), "t1")
	if err != nil {
		t.Fatalf("GenerateActions failed: %v", err)
	}
	if len(got.Actions) != 1 {
		t.Errorf("actions = %+v", got.Actions)
	}
	if _, ok := got.LatestArtifact(tasks.ArtifactActionPlan); !ok {
		t.Error("action plan artifact missing")
	}

	stored, _ := repo.Get("t1")
	if len(stored.Actions) != 1 {
		t.Error("actions not persisted")
	}
}

func TestGenerateActionsRejectsClosedTask(t *testing.T) {
	repo := newMemRepo()
	repo.tasks["t1"] = &tasks.Task{ID: "t1", OwnerID: "marcus", Status: tasks.StatusDone}
	a := newAssistant(repo, nil)

	_, err := a.GenerateActions(context.Background(), "t1")
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("err = %v, want *ValidationError", err)
	}
}

func TestDraftEmailAttachesArtifact(t *testing.T) {
	repo := newMemRepo()
	repo.tasks["t1"] = &tasks.Task{ID: "t1", OwnerID: "marcus", Title: "Reply to school", Status: tasks.StatusTriaged}
	a := newAssistant(repo, func(d *Deps) {
		d.Email = &fakeEmail{draft: &tasks.EmailDraft{Subject: "Re: forms", Body: "Hi"}}
	})

	draft, err := a.DraftEmail(context.Background(), "t1", "")
	if err != nil {
		t.Fatalf("DraftEmail failed: %v", err)
	}
	if draft.Subject != "Re: forms" {
		t.Errorf("draft = %+v", draft)
	}

	stored, _ := repo.Get("t1")
	art, ok := stored.LatestArtifact(tasks.ArtifactEmailDraft)
	if !ok || art.Email.Subject != "Re: forms" {
		t.Error("email artifact not persisted")
	}
}

func TestPlanTaskMovesToPlannedWithBusySlots(t *testing.T) {
	repo := newMemRepo()
	repo.tasks["t1"] = &tasks.Task{
		ID: "t1", OwnerID: "marcus", Title: "Tax prep",
		Domain: tasks.DomainCompany, Status: tasks.StatusTriaged,
		RequiresCalendarBlock: true,
	}
	planner := &fakePlanner{plan: &tasks.PlanningResult{
		Slots: []tasks.TimeSlot{{Start: testNow.Add(24 * time.Hour), End: testNow.Add(25 * time.Hour)}},
	}}
	cal := &fakeCalendar{events: []calendar.Event{
		{ID: "e1", Title: "standup", Start: testNow.Add(time.Hour), End: testNow.Add(2 * time.Hour)},
	}}
	a := newAssistant(repo, func(d *Deps) {
		d.Planner = planner
		d.Calendar = cal
	})

	plan, err := a.PlanTask(context.Background(), "t1")
	if err != nil {
		t.Fatalf("PlanTask failed: %v", err)
	}
	if len(plan.Slots) != 1 {
		t.Errorf("plan = %+v", plan)
	}
	if len(planner.gotBusy) != 1 || planner.gotBusy[0].Reason != "standup" {
		t.Errorf("busy slots not passed: %+v", planner.gotBusy)
	}

	stored, _ := repo.Get("t1")
	if stored.Status != tasks.StatusPlanned {
		t.Errorf("status = %s, want planned", stored.Status)
	}
	if _, ok := stored.LatestArtifact(tasks.ArtifactPlanning); !ok {
		t.Error("planning artifact missing")
	}
}

func TestPlanTaskRejectsWrongStatus(t *testing.T) {
	repo := newMemRepo()
	repo.tasks["t1"] = &tasks.Task{ID: "t1", OwnerID: "marcus", Status: tasks.StatusInProgress}
	a := newAssistant(repo, nil)

	_, err := a.PlanTask(context.Background(), "t1")
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("err = %v, want *ValidationError", err)
	}
}

func TestScheduleTaskBooksBlockAndLinksEvent(t *testing.T) {
	repo := newMemRepo()
	slot := tasks.TimeSlot{Start: testNow.Add(24 * time.Hour), End: testNow.Add(25 * time.Hour)}
	task := &tasks.Task{
		ID: "t1", OwnerID: "marcus", Title: "Tax prep",
		Status: tasks.StatusPlanned, RequiresCalendarBlock: true,
	}
	_ = task.AttachArtifact(tasks.Artifact{
		Kind:     tasks.ArtifactPlanning,
		Planning: &tasks.PlanningResult{Slots: []tasks.TimeSlot{slot}},
	})
	repo.tasks["t1"] = task
	cal := &fakeCalendar{}
	a := newAssistant(repo, func(d *Deps) { d.Calendar = cal })

	got, err := a.ScheduleTask(context.Background(), "t1", 0)
	if err != nil {
		t.Fatalf("ScheduleTask failed: %v", err)
	}
	if got.Status != tasks.StatusScheduled {
		t.Errorf("status = %s, want scheduled", got.Status)
	}
	if got.LinkedEventID == "" {
		t.Error("linked event id not set")
	}
	if len(cal.created) != 1 || !cal.created[0].Start.Equal(slot.Start) {
		t.Errorf("calendar blocks = %+v", cal.created)
	}
}

func TestScheduleTaskWithoutPlanFails(t *testing.T) {
	repo := newMemRepo()
	repo.tasks["t1"] = &tasks.Task{ID: "t1", OwnerID: "marcus", Status: tasks.StatusPlanned}
	a := newAssistant(repo, nil)

	_, err := a.ScheduleTask(context.Background(), "t1", 0)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("err = %v, want *ValidationError", err)
	}
}

func TestCreateTaskValidatesAndScores(t *testing.T) {
	a := newAssistant(newMemRepo(), nil)

	if _, err := a.CreateTask(CreateTaskParams{Title: " ", Domain: tasks.DomainHome}); err == nil {
		t.Error("expected error for empty title")
	}
	if _, err := a.CreateTask(CreateTaskParams{Title: "x", Domain: "work"}); err == nil {
		t.Error("expected error for bad domain")
	}
	if _, err := a.CreateTask(CreateTaskParams{Title: "x", Domain: tasks.DomainHome, Importance: 9}); err == nil {
		t.Error("expected error for importance out of range")
	}

	got, err := a.CreateTask(CreateTaskParams{Title: "Fix the gate", Domain: tasks.DomainHome})
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if got.Status != tasks.StatusTriaged || got.Source != tasks.SourceManual {
		t.Errorf("task = %+v", got)
	}
	if got.PriorityScore <= 0 || got.Priority == "" {
		t.Error("score cache not set")
	}
}

func TestUpdateTaskRescores(t *testing.T) {
	repo := newMemRepo()
	a := newAssistant(repo, nil)
	created, err := a.CreateTask(CreateTaskParams{Title: "Renew insurance", Domain: tasks.DomainHome, Importance: 2})
	if err != nil {
		t.Fatal(err)
	}

	imp := 5
	updated, err := a.UpdateTask(created.ID, UpdateTaskParams{Importance: &imp})
	if err != nil {
		t.Fatalf("UpdateTask failed: %v", err)
	}
	if updated.PriorityScore <= created.PriorityScore {
		t.Errorf("score did not rise: %v -> %v", created.PriorityScore, updated.PriorityScore)
	}
}

func TestCompleteAction(t *testing.T) {
	repo := newMemRepo()
	repo.tasks["t1"] = &tasks.Task{
		ID: "t1", OwnerID: "marcus", Status: tasks.StatusInProgress,
		Actions: []tasks.Action{{ID: "a1", Type: tasks.ActionCall, Label: "Call dentist", Status: tasks.ActionPending}},
	}
	a := newAssistant(repo, nil)

	got, err := a.CompleteAction("t1", "a1")
	if err != nil {
		t.Fatalf("CompleteAction failed: %v", err)
	}
	if got.Actions[0].Status != tasks.ActionDone || got.Actions[0].CompletedAt == nil {
		t.Errorf("action = %+v", got.Actions[0])
	}

	if _, err := a.CompleteAction("t1", "nope"); err == nil {
		t.Error("expected error for unknown action")
	}
}

func TestImportCalendarSkipsAlreadyLinked(t *testing.T) {
	repo := newMemRepo()
	repo.tasks["existing"] = &tasks.Task{
		ID: "existing", OwnerID: "marcus", Status: tasks.StatusTriaged, LinkedEventID: "e1",
	}
	cal := &fakeCalendar{events: []calendar.Event{
		{ID: "e1", Title: "dentist", Start: testNow.Add(24 * time.Hour), End: testNow.Add(25 * time.Hour)},
		{ID: "e2", Title: "school play", Start: testNow.Add(48 * time.Hour), End: testNow.Add(50 * time.Hour)},
	}}
	a := newAssistant(repo, func(d *Deps) { d.Calendar = cal })

	created, err := a.ImportCalendar(context.Background(), testNow, testNow.AddDate(0, 0, 7))
	if err != nil {
		t.Fatalf("ImportCalendar failed: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("created %d tasks, want 1", len(created))
	}
	if created[0].LinkedEventID != "e2" || created[0].Source != tasks.SourceCalendarImport {
		t.Errorf("task = %+v", created[0])
	}
	if created[0].DueDate == nil {
		t.Error("due date not set from event start")
	}
}

func TestLifecycleShortcuts(t *testing.T) {
	repo := newMemRepo()
	repo.tasks["t1"] = &tasks.Task{ID: "t1", OwnerID: "marcus", Status: tasks.StatusTriaged}
	a := newAssistant(repo, nil)

	if _, err := a.StartTask("t1"); err != nil {
		t.Fatalf("StartTask failed: %v", err)
	}
	if _, err := a.CompleteTask("t1"); err != nil {
		t.Fatalf("CompleteTask failed: %v", err)
	}
	stored, _ := repo.Get("t1")
	if stored.Status != tasks.StatusDone {
		t.Errorf("status = %s, want done", stored.Status)
	}

	if _, err := a.CancelTask("t1"); err == nil {
		t.Error("expected cancel of done task to fail")
	}
}
