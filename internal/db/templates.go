package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/marcus/dayshift/internal/tasks"
)

// Template is a recurring task blueprint. The templates engine stamps
// tasks out of it on a cron schedule.
type Template struct {
	ID             string         `json:"id"`
	OwnerID        string         `json:"owner_id"`
	Title          string         `json:"title"`
	Domain         tasks.Domain   `json:"domain"`
	Frequency      string         `json:"frequency"` // daily, weekly, monthly
	CronExpression string         `json:"cron_expression,omitempty"`
	Actions        []tasks.Action `json:"actions,omitempty"`
	LastGenerated  *time.Time     `json:"last_generated,omitempty"`
	Active         bool           `json:"active"`
	CreatedAt      time.Time      `json:"created_at"`
}

// TemplateStore persists recurring templates.
type TemplateStore struct {
	db *DB
}

// NewTemplateStore creates a template store.
func NewTemplateStore(d *DB) *TemplateStore {
	return &TemplateStore{db: d}
}

// Upsert inserts or replaces a template.
func (s *TemplateStore) Upsert(t *Template) error {
	actions, err := json.Marshal(orEmpty(t.Actions))
	if err != nil {
		return fmt.Errorf("marshal template actions: %w", err)
	}

	var last any
	if t.LastGenerated != nil {
		last = formatTime(*t.LastGenerated)
	}

	_, err = s.db.sql.Exec(`INSERT INTO recurring_templates
		(id, owner_id, title, domain, frequency, cron_expression, actions, last_generated, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			domain = excluded.domain,
			frequency = excluded.frequency,
			cron_expression = excluded.cron_expression,
			actions = excluded.actions,
			last_generated = excluded.last_generated,
			active = excluded.active`,
		t.ID, t.OwnerID, t.Title, string(t.Domain), t.Frequency, t.CronExpression,
		string(actions), last, boolInt(t.Active), formatTime(t.CreatedAt))
	if err != nil {
		return fmt.Errorf("upserting template %s: %w", t.ID, err)
	}
	return nil
}

// Get returns a template by id.
func (s *TemplateStore) Get(id string) (*Template, error) {
	row := s.db.sql.QueryRow(`SELECT id, owner_id, title, domain, frequency,
		cron_expression, actions, last_generated, active, created_at
		FROM recurring_templates WHERE id = ?`, id)
	t, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("template %s: %w", id, tasks.ErrNotFound)
	}
	return t, err
}

// ListActive returns the owner's active templates, oldest first.
func (s *TemplateStore) ListActive(ownerID string) ([]*Template, error) {
	rows, err := s.db.sql.Query(`SELECT id, owner_id, title, domain, frequency,
		cron_expression, actions, last_generated, active, created_at
		FROM recurring_templates WHERE owner_id = ? AND active = 1
		ORDER BY created_at ASC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing templates: %w", err)
	}
	defer rows.Close()

	var out []*Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// MarkGenerated records the time a template last produced a task.
func (s *TemplateStore) MarkGenerated(id string, at time.Time) error {
	res, err := s.db.sql.Exec(`UPDATE recurring_templates SET last_generated = ? WHERE id = ?`,
		formatTime(at), id)
	if err != nil {
		return fmt.Errorf("marking template %s generated: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("template %s: %w", id, tasks.ErrNotFound)
	}
	return nil
}

// Deactivate turns a template off without deleting its history.
func (s *TemplateStore) Deactivate(id string) error {
	res, err := s.db.sql.Exec(`UPDATE recurring_templates SET active = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deactivating template %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("template %s: %w", id, tasks.ErrNotFound)
	}
	return nil
}

func scanTemplate(row rowScanner) (*Template, error) {
	var t Template
	var domain, actions, createdAt string
	var last sql.NullString
	var active int

	err := row.Scan(&t.ID, &t.OwnerID, &t.Title, &domain, &t.Frequency,
		&t.CronExpression, &actions, &last, &active, &createdAt)
	if err != nil {
		return nil, err
	}

	t.Domain = tasks.Domain(domain)
	t.Active = active != 0

	if err := json.Unmarshal([]byte(actions), &t.Actions); err != nil {
		return nil, fmt.Errorf("parsing template actions: %w", err)
	}
	if last.Valid {
		lg, err := parseTime(last.String)
		if err != nil {
			return nil, err
		}
		t.LastGenerated = &lg
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &t, nil
}
