package db

import (
	"fmt"
	"time"
)

// Interaction is one record in the append-only AI interaction log. Every
// provider attempt gets its own record, including failed ones.
type Interaction struct {
	ID          string    `json:"id"`
	AgentKind   string    `json:"agent_kind"`
	RequestID   string    `json:"request_id,omitempty"`
	InputDigest string    `json:"input_digest,omitempty"`
	Output      string    `json:"output,omitempty"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
	LatencyMS   int64     `json:"latency_ms"`
	Attempt     int       `json:"attempt"`
	CreatedAt   time.Time `json:"created_at"`
}

// InteractionStore persists AI interaction records.
type InteractionStore struct {
	db *DB
}

// NewInteractionStore creates an interaction store.
func NewInteractionStore(d *DB) *InteractionStore {
	return &InteractionStore{db: d}
}

// Append writes one interaction record.
func (s *InteractionStore) Append(rec *Interaction) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := s.db.sql.Exec(`INSERT INTO ai_interactions
		(id, agent_kind, request_id, input_digest, output, success, error, latency_ms, attempt, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.AgentKind, rec.RequestID, rec.InputDigest, rec.Output,
		boolInt(rec.Success), rec.Error, rec.LatencyMS, rec.Attempt,
		formatTime(rec.CreatedAt))
	if err != nil {
		return fmt.Errorf("appending interaction: %w", err)
	}
	return nil
}

// Recent returns the newest interaction records, most recent first.
func (s *InteractionStore) Recent(limit int) ([]*Interaction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.sql.Query(`SELECT id, agent_kind, request_id, input_digest,
		output, success, error, latency_ms, attempt, created_at
		FROM ai_interactions ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing interactions: %w", err)
	}
	defer rows.Close()

	var out []*Interaction
	for rows.Next() {
		var rec Interaction
		var success int
		var createdAt string
		if err := rows.Scan(&rec.ID, &rec.AgentKind, &rec.RequestID, &rec.InputDigest,
			&rec.Output, &success, &rec.Error, &rec.LatencyMS, &rec.Attempt, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning interaction: %w", err)
		}
		rec.Success = success != 0
		if rec.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// ByRequest returns all attempts recorded for one request id, oldest first.
func (s *InteractionStore) ByRequest(requestID string) ([]*Interaction, error) {
	rows, err := s.db.sql.Query(`SELECT id, agent_kind, request_id, input_digest,
		output, success, error, latency_ms, attempt, created_at
		FROM ai_interactions WHERE request_id = ? ORDER BY attempt ASC`, requestID)
	if err != nil {
		return nil, fmt.Errorf("listing interactions for request %s: %w", requestID, err)
	}
	defer rows.Close()

	var out []*Interaction
	for rows.Next() {
		var rec Interaction
		var success int
		var createdAt string
		if err := rows.Scan(&rec.ID, &rec.AgentKind, &rec.RequestID, &rec.InputDigest,
			&rec.Output, &success, &rec.Error, &rec.LatencyMS, &rec.Attempt, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning interaction: %w", err)
		}
		rec.Success = success != 0
		if rec.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}
