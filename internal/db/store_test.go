package db

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/marcus/dayshift/internal/tasks"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func testTask(id string) *tasks.Task {
	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	return &tasks.Task{
		ID:         id,
		OwnerID:    "marcus",
		Title:      "Renew passport",
		Domain:     tasks.DomainPersonal,
		Status:     tasks.StatusTriaged,
		Importance: 4,
		Urgency:    3,
		Priority:   tasks.PriorityMedium,
		Source:     tasks.SourceManual,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	d := openTestDB(t)

	if err := Migrate(d.SQL()); err != nil {
		t.Fatalf("second Migrate failed: %v", err)
	}

	version, err := CurrentVersion(d.SQL())
	if err != nil {
		t.Fatal(err)
	}
	if version != len(migrations) {
		t.Errorf("version = %d, want %d", version, len(migrations))
	}
}

func TestUpsertAndGetRoundtrip(t *testing.T) {
	store := NewTaskStore(openTestDB(t))

	due := time.Date(2025, 6, 5, 17, 0, 0, 0, time.UTC)
	task := testTask("t1")
	task.DueDate = &due
	task.EstimatedDurationMin = 45
	task.RequiresCalendarBlock = true
	task.SubTasks = []tasks.SubTask{{ID: "s1", Title: "Find photos", OrderIndex: 0}}
	task.Actions = []tasks.Action{{ID: "a1", Type: tasks.ActionBook, Label: "Book appointment", Status: tasks.ActionPending}}
	if err := task.AttachArtifact(tasks.Artifact{Kind: tasks.ArtifactNotes, Notes: "bring old passport"}); err != nil {
		t.Fatal(err)
	}

	if err := store.Upsert(task); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := store.Get("t1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Title != task.Title || got.Domain != task.Domain || got.Status != task.Status {
		t.Errorf("roundtrip mismatch: got %+v", got)
	}
	if got.DueDate == nil || !got.DueDate.Equal(due) {
		t.Errorf("due date = %v, want %v", got.DueDate, due)
	}
	if !got.RequiresCalendarBlock {
		t.Error("requires_calendar_block lost")
	}
	if len(got.SubTasks) != 1 || got.SubTasks[0].Title != "Find photos" {
		t.Errorf("subtasks = %+v", got.SubTasks)
	}
	if len(got.Actions) != 1 || got.Actions[0].Type != tasks.ActionBook {
		t.Errorf("actions = %+v", got.Actions)
	}
	if len(got.Artifacts) != 1 || got.Artifacts[0].Kind != tasks.ArtifactNotes {
		t.Errorf("artifacts = %+v", got.Artifacts)
	}
}

func TestGetUnknownReturnsNotFound(t *testing.T) {
	store := NewTaskStore(openTestDB(t))

	if _, err := store.Get("nope"); !errors.Is(err, tasks.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUpsertUpdatesExistingRow(t *testing.T) {
	store := NewTaskStore(openTestDB(t))

	task := testTask("t1")
	if err := store.Upsert(task); err != nil {
		t.Fatal(err)
	}

	task.Title = "Renew passport urgently"
	task.Status = tasks.StatusInProgress
	if err := store.Upsert(task); err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}

	got, err := store.Get("t1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Renew passport urgently" || got.Status != tasks.StatusInProgress {
		t.Errorf("update not applied: %+v", got)
	}
}

func TestListFilters(t *testing.T) {
	store := NewTaskStore(openTestDB(t))

	due := time.Date(2025, 6, 3, 12, 0, 0, 0, time.UTC)
	a := testTask("a")
	a.Status = tasks.StatusTriaged
	a.Domain = tasks.DomainJob
	a.DueDate = &due
	b := testTask("b")
	b.Status = tasks.StatusDone
	c := testTask("c")
	c.Domain = tasks.DomainFamily
	c.CreatedAt = a.CreatedAt.Add(time.Minute)
	for _, task := range []*tasks.Task{a, b, c} {
		if err := store.Upsert(task); err != nil {
			t.Fatal(err)
		}
	}

	got, err := store.List("marcus", tasks.ListFilter{NonTerminal: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("NonTerminal: got %d tasks, want 2", len(got))
	}
	if got[0].ID != "a" || got[1].ID != "c" {
		t.Errorf("order = %s, %s, want a, c", got[0].ID, got[1].ID)
	}

	got, err = store.List("marcus", tasks.ListFilter{Domain: tasks.DomainFamily})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "c" {
		t.Errorf("Domain filter: got %+v", got)
	}

	cutoff := due.Add(time.Hour)
	got, err = store.List("marcus", tasks.ListFilter{DueBefore: &cutoff})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "a" {
		t.Errorf("DueBefore filter: got %+v", got)
	}

	got, err = store.List("someone-else", tasks.ListFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("owner isolation broken: got %d tasks", len(got))
	}
}

func TestDelete(t *testing.T) {
	store := NewTaskStore(openTestDB(t))

	if err := store.Upsert(testTask("t1")); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete("t1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get("t1"); !errors.Is(err, tasks.ErrNotFound) {
		t.Errorf("task still present after delete: %v", err)
	}
	if err := store.Delete("t1"); !errors.Is(err, tasks.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestUpdateStatusCompareAndSet(t *testing.T) {
	store := NewTaskStore(openTestDB(t))

	task := testTask("t1")
	task.Status = tasks.StatusTriaged
	if err := store.Upsert(task); err != nil {
		t.Fatal(err)
	}

	if err := store.UpdateStatus("t1", tasks.StatusTriaged, tasks.StatusInProgress); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	got, err := store.Get("t1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != tasks.StatusInProgress {
		t.Errorf("status = %s, want in_progress", got.Status)
	}

	// Stale from-status loses the race.
	err = store.UpdateStatus("t1", tasks.StatusTriaged, tasks.StatusDone)
	if !errors.Is(err, tasks.ErrConcurrentModification) {
		t.Errorf("err = %v, want ErrConcurrentModification", err)
	}

	err = store.UpdateStatus("missing", tasks.StatusTriaged, tasks.StatusDone)
	if !errors.Is(err, tasks.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestCreateCaptureSessionAtomic(t *testing.T) {
	store := NewTaskStore(openTestDB(t))

	session := &tasks.CaptureSession{
		ID:         "cs1",
		OwnerID:    "marcus",
		Transcript: "book vaccines and email the accountant",
		Source:     tasks.SourceVoice,
		Confidence: 0.9,
		CreatedAt:  time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC),
	}
	spawned := []*tasks.Task{testTask("t1"), testTask("t2")}

	if err := store.CreateCaptureSession(session, spawned); err != nil {
		t.Fatalf("CreateCaptureSession failed: %v", err)
	}

	got, err := store.GetCaptureSession("cs1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.TaskIDs) != 2 {
		t.Errorf("task ids = %v, want 2", got.TaskIDs)
	}
	for _, id := range []string{"t1", "t2"} {
		task, err := store.Get(id)
		if err != nil {
			t.Fatalf("spawned task %s missing: %v", id, err)
		}
		if task.CaptureSessionID != "cs1" {
			t.Errorf("task %s session id = %q", id, task.CaptureSessionID)
		}
	}

	// Re-inserting the same session id must fail and leave no new tasks.
	err = store.CreateCaptureSession(session, []*tasks.Task{testTask("t3")})
	if err == nil {
		t.Fatal("expected duplicate session insert to fail")
	}
	if _, err := store.Get("t3"); !errors.Is(err, tasks.ErrNotFound) {
		t.Errorf("t3 committed despite failed session: %v", err)
	}
}

func TestInteractionStoreAppendAndQuery(t *testing.T) {
	store := NewInteractionStore(openTestDB(t))

	base := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	records := []*Interaction{
		{ID: "i1", AgentKind: "capture", RequestID: "r1", Attempt: 1, Success: false, Error: "timeout", CreatedAt: base},
		{ID: "i2", AgentKind: "capture", RequestID: "r1", Attempt: 2, Success: true, Output: `{"tasks":[]}`, LatencyMS: 420, CreatedAt: base.Add(time.Second)},
	}
	for _, rec := range records {
		if err := store.Append(rec); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	recent, err := store.Recent(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 {
		t.Fatalf("Recent: got %d records, want 2", len(recent))
	}
	if recent[0].ID != "i2" {
		t.Errorf("Recent order: first = %s, want i2", recent[0].ID)
	}

	byReq, err := store.ByRequest("r1")
	if err != nil {
		t.Fatal(err)
	}
	if len(byReq) != 2 || byReq[0].Attempt != 1 || byReq[1].Attempt != 2 {
		t.Errorf("ByRequest: got %+v", byReq)
	}
	if byReq[0].Success || byReq[0].Error != "timeout" {
		t.Errorf("failed attempt not recorded: %+v", byReq[0])
	}
}

func TestTemplateStoreLifecycle(t *testing.T) {
	store := NewTemplateStore(openTestDB(t))

	tpl := &Template{
		ID:             "tpl1",
		OwnerID:        "marcus",
		Title:          "Weekly review",
		Domain:         tasks.DomainPersonal,
		Frequency:      "weekly",
		CronExpression: "0 17 * * FRI",
		Actions:        []tasks.Action{{ID: "a1", Type: tasks.ActionChecklist, Label: "Review inbox", Status: tasks.ActionPending}},
		Active:         true,
		CreatedAt:      time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC),
	}
	if err := store.Upsert(tpl); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	active, err := store.ListActive("marcus")
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 || active[0].CronExpression != "0 17 * * FRI" {
		t.Errorf("ListActive: got %+v", active)
	}
	if len(active[0].Actions) != 1 || active[0].Actions[0].Type != tasks.ActionChecklist {
		t.Errorf("template actions lost: %+v", active[0].Actions)
	}

	at := time.Date(2025, 6, 6, 17, 0, 0, 0, time.UTC)
	if err := store.MarkGenerated("tpl1", at); err != nil {
		t.Fatal(err)
	}
	got, err := store.Get("tpl1")
	if err != nil {
		t.Fatal(err)
	}
	if got.LastGenerated == nil || !got.LastGenerated.Equal(at) {
		t.Errorf("last generated = %v, want %v", got.LastGenerated, at)
	}

	if err := store.Deactivate("tpl1"); err != nil {
		t.Fatal(err)
	}
	active, err = store.ListActive("marcus")
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 0 {
		t.Errorf("deactivated template still listed: %+v", active)
	}
}
