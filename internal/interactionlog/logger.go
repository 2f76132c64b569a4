// Package interactionlog persists small per-turn pipeline metadata to an
// append-only SQLite store. Only text, intent, action identifiers, generated
// query text, explanations and a response summary are recorded, never
// result rows or chart payloads. A failing log never fails the request.
package interactionlog

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Record is the metadata persisted for one processed turn.
type Record struct {
	TurnID          string
	ConversationID  string
	RawText         string
	CorrectedText   string
	EffectiveText   string
	Intent          string
	ActionSequence  []string
	SQLText         string
	Explanation     string
	ResponseType    string
	ResponseItems   int
	Status          string
}

// ErrorRecord is the structured record for a handler execution failure.
// This is the only place a soft error becomes a permanent, inspectable row.
type ErrorRecord struct {
	TurnID        string
	Action        string
	EffectiveText string
	SQLText       string
	Kind          string
	Message       string
}

// Logger is the append-only metadata sink.
type Logger struct {
	db     *sql.DB
	logger *zap.Logger
}

// New opens (and if needed creates) the interaction log at path.
func New(path string, logger *zap.Logger) (*Logger, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open interaction log: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS interactions (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		turn_id         TEXT NOT NULL,
		conversation_id TEXT,
		raw_text        TEXT,
		corrected_text  TEXT,
		effective_text  TEXT,
		intent          TEXT,
		action_sequence TEXT,
		sql_text        TEXT,
		explanation     TEXT,
		response_type   TEXT,
		response_items  INTEGER,
		status          TEXT,
		created_at      DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_interactions_turn ON interactions(turn_id);
	CREATE INDEX IF NOT EXISTS idx_interactions_conversation ON interactions(conversation_id);

	CREATE TABLE IF NOT EXISTS interaction_errors (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		turn_id        TEXT,
		action         TEXT,
		effective_text TEXT,
		sql_text       TEXT,
		error_kind     TEXT,
		message        TEXT,
		created_at     DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create interaction log schema: %w", err)
	}

	return &Logger{db: db, logger: logger}, nil
}

// Log appends one interaction record. Failures are logged and swallowed so
// the user-facing request never fails because of the log.
func (l *Logger) Log(rec Record) {
	_, err := l.db.Exec(
		`INSERT INTO interactions
		 (turn_id, conversation_id, raw_text, corrected_text, effective_text,
		  intent, action_sequence, sql_text, explanation, response_type,
		  response_items, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.TurnID, rec.ConversationID, rec.RawText, rec.CorrectedText,
		rec.EffectiveText, rec.Intent, strings.Join(rec.ActionSequence, ","),
		rec.SQLText, rec.Explanation, rec.ResponseType, rec.ResponseItems,
		rec.Status)
	if err != nil {
		l.logger.Warn("failed to log interaction",
			zap.String("turn_id", rec.TurnID), zap.Error(err))
	}
}

// LogError appends one handler-failure record. Same log-and-continue
// contract as Log.
func (l *Logger) LogError(rec ErrorRecord) {
	_, err := l.db.Exec(
		`INSERT INTO interaction_errors
		 (turn_id, action, effective_text, sql_text, error_kind, message)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.TurnID, rec.Action, rec.EffectiveText, rec.SQLText, rec.Kind, rec.Message)
	if err != nil {
		l.logger.Warn("failed to log handler error",
			zap.String("turn_id", rec.TurnID), zap.Error(err))
	}
}

// Recent returns the newest records up to limit, for inspection tooling.
func (l *Logger) Recent(limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.Query(
		`SELECT turn_id, conversation_id, raw_text, corrected_text,
		        effective_text, intent, action_sequence, sql_text,
		        explanation, response_type, response_items, status
		 FROM interactions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var actions string
		if err := rows.Scan(&rec.TurnID, &rec.ConversationID, &rec.RawText,
			&rec.CorrectedText, &rec.EffectiveText, &rec.Intent, &actions,
			&rec.SQLText, &rec.Explanation, &rec.ResponseType,
			&rec.ResponseItems, &rec.Status); err != nil {
			continue
		}
		if actions != "" {
			rec.ActionSequence = strings.Split(actions, ",")
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// RecentErrors returns the newest error records up to limit.
func (l *Logger) RecentErrors(limit int) ([]ErrorRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.Query(
		`SELECT turn_id, action, effective_text, sql_text, error_kind, message
		 FROM interaction_errors ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []ErrorRecord
	for rows.Next() {
		var rec ErrorRecord
		if err := rows.Scan(&rec.TurnID, &rec.Action, &rec.EffectiveText,
			&rec.SQLText, &rec.Kind, &rec.Message); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close closes the underlying database.
func (l *Logger) Close() error {
	return l.db.Close()
}
