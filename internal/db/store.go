package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/marcus/dayshift/internal/tasks"
)

// TaskStore implements tasks.Repository on top of SQLite.
type TaskStore struct {
	db *DB
}

// NewTaskStore creates a task store backed by the given database.
func NewTaskStore(d *DB) *TaskStore {
	return &TaskStore{db: d}
}

const taskColumns = `id, owner_id, title, description, domain, status,
	importance, urgency, priority, priority_score, due_date,
	estimated_duration_min, requires_calendar_block, source,
	capture_session_id, linked_event_id, subtasks, actions, artifacts,
	created_at, updated_at`

// Get returns the task with the given id, or tasks.ErrNotFound.
func (s *TaskStore) Get(id string) (*tasks.Task, error) {
	row := s.db.sql.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, tasks.ErrNotFound)
	}
	return t, err
}

// List returns tasks for an owner matching the filter, oldest first.
func (s *TaskStore) List(ownerID string, f tasks.ListFilter) ([]*tasks.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE owner_id = ?`
	args := []any{ownerID}

	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	if f.NonTerminal {
		query += ` AND status NOT IN (?, ?)`
		args = append(args, string(tasks.StatusDone), string(tasks.StatusCancelled))
	}
	if f.Domain != "" {
		query += ` AND domain = ?`
		args = append(args, string(f.Domain))
	}
	if f.DueBefore != nil {
		query += ` AND due_date IS NOT NULL AND due_date < ?`
		args = append(args, formatTime(*f.DueBefore))
	}

	query += ` ORDER BY created_at ASC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
		if f.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, f.Offset)
		}
	}

	rows, err := s.db.sql.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	defer rows.Close()

	var out []*tasks.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Upsert inserts or replaces a task row.
func (s *TaskStore) Upsert(t *tasks.Task) error {
	return s.upsertTx(s.db.sql, t)
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func (s *TaskStore) upsertTx(ex execer, t *tasks.Task) error {
	subtasks, err := json.Marshal(orEmpty(t.SubTasks))
	if err != nil {
		return fmt.Errorf("marshal subtasks: %w", err)
	}
	actions, err := json.Marshal(orEmpty(t.Actions))
	if err != nil {
		return fmt.Errorf("marshal actions: %w", err)
	}
	artifacts, err := tasks.MarshalArtifacts(t.Artifacts)
	if err != nil {
		return fmt.Errorf("marshal artifacts: %w", err)
	}

	var due any
	if t.DueDate != nil {
		due = formatTime(*t.DueDate)
	}

	_, err = ex.Exec(`INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			domain = excluded.domain,
			status = excluded.status,
			importance = excluded.importance,
			urgency = excluded.urgency,
			priority = excluded.priority,
			priority_score = excluded.priority_score,
			due_date = excluded.due_date,
			estimated_duration_min = excluded.estimated_duration_min,
			requires_calendar_block = excluded.requires_calendar_block,
			source = excluded.source,
			capture_session_id = excluded.capture_session_id,
			linked_event_id = excluded.linked_event_id,
			subtasks = excluded.subtasks,
			actions = excluded.actions,
			artifacts = excluded.artifacts,
			updated_at = excluded.updated_at`,
		t.ID, t.OwnerID, t.Title, t.Description, string(t.Domain), string(t.Status),
		t.Importance, t.Urgency, string(t.Priority), t.PriorityScore, due,
		t.EstimatedDurationMin, boolInt(t.RequiresCalendarBlock), string(t.Source),
		t.CaptureSessionID, t.LinkedEventID, string(subtasks), string(actions), string(artifacts),
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upserting task %s: %w", t.ID, err)
	}
	return nil
}

// Delete removes a task. Unknown ids return tasks.ErrNotFound.
func (s *TaskStore) Delete(id string) error {
	res, err := s.db.sql.Exec(`DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting task %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("task %s: %w", id, tasks.ErrNotFound)
	}
	return nil
}

// UpdateStatus moves a task from one status to another only if the
// stored status still equals from (optimistic concurrency).
func (s *TaskStore) UpdateStatus(id string, from, to tasks.Status) error {
	res, err := s.db.sql.Exec(
		`UPDATE tasks SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), formatTime(time.Now()), id, string(from))
	if err != nil {
		return fmt.Errorf("updating status of %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Distinguish a missing task from a lost race.
		var exists int
		row := s.db.sql.QueryRow(`SELECT COUNT(*) FROM tasks WHERE id = ?`, id)
		if err := row.Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return fmt.Errorf("task %s: %w", id, tasks.ErrNotFound)
		}
		return fmt.Errorf("task %s status changed since read: %w", id, tasks.ErrConcurrentModification)
	}
	return nil
}

// CreateCaptureSession writes the session and its spawned tasks in a
// single transaction: all rows commit or none do.
func (s *TaskStore) CreateCaptureSession(cs *tasks.CaptureSession, spawned []*tasks.Task) error {
	tx, err := s.db.sql.Begin()
	if err != nil {
		return fmt.Errorf("begin capture session: %w", err)
	}

	ids := make([]string, 0, len(spawned))
	for _, t := range spawned {
		ids = append(ids, t.ID)
	}
	cs.TaskIDs = ids

	taskIDs, err := json.Marshal(ids)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("marshal task ids: %w", err)
	}

	_, err = tx.Exec(`INSERT INTO capture_sessions
		(id, owner_id, transcript, source, location, summary, confidence, task_ids, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cs.ID, cs.OwnerID, cs.Transcript, string(cs.Source), cs.Location,
		cs.Summary, cs.Confidence, string(taskIDs), formatTime(cs.CreatedAt))
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("inserting capture session: %w", err)
	}

	for _, t := range spawned {
		t.CaptureSessionID = cs.ID
		if err := s.upsertTx(tx, t); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit capture session: %w", err)
	}
	return nil
}

// GetCaptureSession returns a capture session by id.
func (s *TaskStore) GetCaptureSession(id string) (*tasks.CaptureSession, error) {
	row := s.db.sql.QueryRow(`SELECT id, owner_id, transcript, source, location,
		summary, confidence, task_ids, created_at
		FROM capture_sessions WHERE id = ?`, id)

	var cs tasks.CaptureSession
	var source, taskIDs, createdAt string
	err := row.Scan(&cs.ID, &cs.OwnerID, &cs.Transcript, &source, &cs.Location,
		&cs.Summary, &cs.Confidence, &taskIDs, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("capture session %s: %w", id, tasks.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scanning capture session: %w", err)
	}

	cs.Source = tasks.Source(source)
	if err := json.Unmarshal([]byte(taskIDs), &cs.TaskIDs); err != nil {
		return nil, fmt.Errorf("parsing task ids: %w", err)
	}
	cs.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	return &cs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*tasks.Task, error) {
	var t tasks.Task
	var domain, status, priority, source string
	var due sql.NullString
	var requiresBlock int
	var subtasks, actions, artifacts string
	var createdAt, updatedAt string

	err := row.Scan(&t.ID, &t.OwnerID, &t.Title, &t.Description, &domain, &status,
		&t.Importance, &t.Urgency, &priority, &t.PriorityScore, &due,
		&t.EstimatedDurationMin, &requiresBlock, &source,
		&t.CaptureSessionID, &t.LinkedEventID, &subtasks, &actions, &artifacts,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	t.Domain = tasks.Domain(domain)
	t.Status = tasks.Status(status)
	t.Priority = tasks.Priority(priority)
	t.Source = tasks.Source(source)
	t.RequiresCalendarBlock = requiresBlock != 0

	if due.Valid {
		d, err := parseTime(due.String)
		if err != nil {
			return nil, err
		}
		t.DueDate = &d
	}

	if err := json.Unmarshal([]byte(subtasks), &t.SubTasks); err != nil {
		return nil, fmt.Errorf("parsing subtasks: %w", err)
	}
	if err := json.Unmarshal([]byte(actions), &t.Actions); err != nil {
		return nil, fmt.Errorf("parsing actions: %w", err)
	}
	t.Artifacts, err = tasks.UnmarshalArtifacts([]byte(artifacts))
	if err != nil {
		return nil, err
	}

	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing time %q: %w", s, err)
	}
	return t, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
