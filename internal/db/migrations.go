package db

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
)

// Migration represents a single schema change.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema: tasks, capture_sessions, ai_interactions, recurring_templates",
		SQL:         migration001SQL,
	},
	{
		Version:     2,
		Description: "add linked_event_id to tasks",
		SQL:         migration002SQL,
	},
}

const migration001SQL = `
CREATE TABLE tasks (
    id                      TEXT PRIMARY KEY,
    owner_id                TEXT NOT NULL,
    title                   TEXT NOT NULL,
    description             TEXT NOT NULL DEFAULT '',
    domain                  TEXT NOT NULL,
    status                  TEXT NOT NULL,
    importance              INTEGER NOT NULL DEFAULT 3,
    urgency                 INTEGER NOT NULL DEFAULT 3,
    priority                TEXT NOT NULL DEFAULT 'medium',
    priority_score          REAL NOT NULL DEFAULT 0,
    due_date                DATETIME,
    estimated_duration_min  INTEGER NOT NULL DEFAULT 0,
    requires_calendar_block INTEGER NOT NULL DEFAULT 0,
    source                  TEXT NOT NULL DEFAULT 'manual',
    capture_session_id      TEXT NOT NULL DEFAULT '',
    subtasks                TEXT NOT NULL DEFAULT '[]',
    actions                 TEXT NOT NULL DEFAULT '[]',
    artifacts               TEXT NOT NULL DEFAULT '[]',
    created_at              DATETIME NOT NULL,
    updated_at              DATETIME NOT NULL
);

CREATE INDEX idx_tasks_owner_status ON tasks(owner_id, status);
CREATE INDEX idx_tasks_owner_due ON tasks(owner_id, due_date);

CREATE TABLE capture_sessions (
    id          TEXT PRIMARY KEY,
    owner_id    TEXT NOT NULL,
    transcript  TEXT NOT NULL,
    source      TEXT NOT NULL,
    location    TEXT NOT NULL DEFAULT '',
    summary     TEXT NOT NULL DEFAULT '',
    confidence  REAL NOT NULL DEFAULT 0,
    task_ids    TEXT NOT NULL DEFAULT '[]',
    created_at  DATETIME NOT NULL
);

CREATE INDEX idx_capture_sessions_owner ON capture_sessions(owner_id, created_at DESC);

CREATE TABLE ai_interactions (
    id           TEXT PRIMARY KEY,
    agent_kind   TEXT NOT NULL,
    request_id   TEXT NOT NULL DEFAULT '',
    input_digest TEXT NOT NULL DEFAULT '',
    output       TEXT NOT NULL DEFAULT '',
    success      INTEGER NOT NULL DEFAULT 0,
    error        TEXT NOT NULL DEFAULT '',
    latency_ms   INTEGER NOT NULL DEFAULT 0,
    attempt      INTEGER NOT NULL DEFAULT 1,
    created_at   DATETIME NOT NULL
);

CREATE INDEX idx_ai_interactions_time ON ai_interactions(created_at DESC);

CREATE TABLE recurring_templates (
    id              TEXT PRIMARY KEY,
    owner_id        TEXT NOT NULL,
    title           TEXT NOT NULL,
    domain          TEXT NOT NULL,
    frequency       TEXT NOT NULL,
    cron_expression TEXT NOT NULL DEFAULT '',
    actions         TEXT NOT NULL DEFAULT '[]',
    last_generated  DATETIME,
    active          INTEGER NOT NULL DEFAULT 1,
    created_at      DATETIME NOT NULL
);

CREATE INDEX idx_recurring_templates_owner ON recurring_templates(owner_id, active);
`

const migration002SQL = `
ALTER TABLE tasks ADD COLUMN linked_event_id TEXT NOT NULL DEFAULT '';
`

// Migrate runs all pending migrations inside transactions.
func Migrate(db *sql.DB) error {
	if db == nil {
		return errors.New("db is nil")
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY, applied_at DATETIME)`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}

	currentVersion, err := CurrentVersion(db)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", migration.Version, err)
		}

		if _, err := tx.Exec(migration.SQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %d: %w", migration.Version, err)
		}

		if _, err := tx.Exec(`INSERT INTO schema_version (version, applied_at) VALUES (?, CURRENT_TIMESTAMP)`, migration.Version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", migration.Version, err)
		}

		log.Printf("db: applied migration %d: %s", migration.Version, migration.Description)
		currentVersion = migration.Version
	}

	return nil
}

// CurrentVersion returns the current schema version (0 if no migrations applied).
func CurrentVersion(db *sql.DB) (int, error) {
	if db == nil {
		return 0, errors.New("db is nil")
	}

	row := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`)
	var version int
	if err := row.Scan(&version); err != nil {
		return 0, fmt.Errorf("query schema_version: %w", err)
	}
	return version, nil
}
