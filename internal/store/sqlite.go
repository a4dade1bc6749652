// Package store provides storage backends for ZapDesk.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/ZapDesk/ZapDesk/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN is a file path to the SQLite database file. If the directory
// doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) SaveFlow(flow models.Flow) error {
	if flow.ID == "" {
		return models.ErrEmptyFlowID
	}
	now := time.Now()
	if flow.CreatedAt.IsZero() {
		flow.CreatedAt = now
	}
	flow.UpdatedAt = now

	definition, err := json.Marshal(flow)
	if err != nil {
		return fmt.Errorf("failed to marshal flow %s: %w", flow.ID, err)
	}

	_, err = s.db.Exec(`INSERT INTO flows (id, name, definition, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, definition = excluded.definition, updated_at = excluded.updated_at`,
		flow.ID, flow.Name, string(definition), flow.CreatedAt, flow.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveFlow failed", "error", err, "flowID", flow.ID)
		return fmt.Errorf("failed to save flow %s: %w", flow.ID, err)
	}
	slog.Debug("SQLiteStore SaveFlow succeeded", "flowID", flow.ID, "steps", len(flow.Steps))
	return nil
}

func (s *SQLiteStore) GetFlow(id string) (*models.Flow, error) {
	var definition string
	err := s.db.QueryRow(`SELECT definition FROM flows WHERE id = ?`, id).Scan(&definition)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("flow not found: %s", id)
	}
	if err != nil {
		slog.Error("SQLiteStore GetFlow failed", "error", err, "flowID", id)
		return nil, fmt.Errorf("failed to get flow %s: %w", id, err)
	}

	var flow models.Flow
	if err := json.Unmarshal([]byte(definition), &flow); err != nil {
		return nil, fmt.Errorf("failed to unmarshal flow %s: %w", id, err)
	}
	return &flow, nil
}

func (s *SQLiteStore) ListFlows() ([]models.Flow, error) {
	rows, err := s.db.Query(`SELECT definition FROM flows ORDER BY id`)
	if err != nil {
		slog.Error("SQLiteStore ListFlows query failed", "error", err)
		return nil, fmt.Errorf("failed to query flows: %w", err)
	}
	defer rows.Close()

	var flows []models.Flow
	for rows.Next() {
		var definition string
		if err := rows.Scan(&definition); err != nil {
			return nil, fmt.Errorf("failed to scan flow row: %w", err)
		}
		var flow models.Flow
		if err := json.Unmarshal([]byte(definition), &flow); err != nil {
			return nil, fmt.Errorf("failed to unmarshal flow row: %w", err)
		}
		flows = append(flows, flow)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate flow rows: %w", err)
	}
	slog.Debug("SQLiteStore ListFlows succeeded", "count", len(flows))
	return flows, nil
}

func (s *SQLiteStore) DeleteFlow(id string) error {
	_, err := s.db.Exec(`DELETE FROM flows WHERE id = ?`, id)
	if err != nil {
		slog.Error("SQLiteStore DeleteFlow failed", "error", err, "flowID", id)
		return fmt.Errorf("failed to delete flow %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) SaveCursor(cursor models.ExecutionCursor) error {
	data, err := json.Marshal(cursor.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal cursor data for %s: %w", cursor.ConversationID, err)
	}

	_, err = s.db.Exec(`INSERT INTO cursors (conversation_id, flow_id, step_index, data, has_ended, outcome, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET flow_id = excluded.flow_id, step_index = excluded.step_index,
			data = excluded.data, has_ended = excluded.has_ended, outcome = excluded.outcome, updated_at = excluded.updated_at`,
		cursor.ConversationID, cursor.FlowID, cursor.StepIndex, string(data), cursor.HasEnded, string(cursor.Outcome), cursor.CreatedAt, cursor.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveCursor failed", "error", err, "conversationID", cursor.ConversationID)
		return fmt.Errorf("failed to save cursor for %s: %w", cursor.ConversationID, err)
	}
	slog.Debug("SQLiteStore SaveCursor succeeded", "conversationID", cursor.ConversationID, "stepIndex", cursor.StepIndex)
	return nil
}

func scanCursor(scan func(dest ...interface{}) error) (models.ExecutionCursor, error) {
	var c models.ExecutionCursor
	var data, outcome string
	if err := scan(&c.ConversationID, &c.FlowID, &c.StepIndex, &data, &c.HasEnded, &outcome, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return c, err
	}
	c.Outcome = models.Outcome(outcome)
	if err := json.Unmarshal([]byte(data), &c.Data); err != nil {
		return c, fmt.Errorf("failed to unmarshal cursor data: %w", err)
	}
	return c, nil
}

const cursorColumns = `conversation_id, flow_id, step_index, data, has_ended, outcome, created_at, updated_at`

func (s *SQLiteStore) GetCursor(conversationID string) (*models.ExecutionCursor, error) {
	row := s.db.QueryRow(`SELECT `+cursorColumns+` FROM cursors WHERE conversation_id = ?`, conversationID)
	cursor, err := scanCursor(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("cursor not found: %s", conversationID)
	}
	if err != nil {
		slog.Error("SQLiteStore GetCursor failed", "error", err, "conversationID", conversationID)
		return nil, fmt.Errorf("failed to get cursor for %s: %w", conversationID, err)
	}
	return &cursor, nil
}

func (s *SQLiteStore) ListActiveCursors() ([]models.ExecutionCursor, error) {
	rows, err := s.db.Query(`SELECT ` + cursorColumns + ` FROM cursors WHERE has_ended = 0 ORDER BY conversation_id`)
	if err != nil {
		slog.Error("SQLiteStore ListActiveCursors query failed", "error", err)
		return nil, fmt.Errorf("failed to query active cursors: %w", err)
	}
	defer rows.Close()

	var cursors []models.ExecutionCursor
	for rows.Next() {
		cursor, err := scanCursor(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cursor row: %w", err)
		}
		cursors = append(cursors, cursor)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cursor rows: %w", err)
	}
	slog.Debug("SQLiteStore ListActiveCursors succeeded", "count", len(cursors))
	return cursors, nil
}

func (s *SQLiteStore) DeleteCursor(conversationID string) error {
	_, err := s.db.Exec(`DELETE FROM cursors WHERE conversation_id = ?`, conversationID)
	if err != nil {
		return fmt.Errorf("failed to delete cursor for %s: %w", conversationID, err)
	}
	return nil
}

func (s *SQLiteStore) SaveTrigger(trigger models.Trigger) error {
	if err := trigger.Validate(); err != nil {
		return err
	}
	keywords, err := json.Marshal(trigger.Keywords)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger keywords: %w", err)
	}
	required, err := json.Marshal(trigger.RequiredWords)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger required words: %w", err)
	}
	excluded, err := json.Marshal(trigger.ExcludedWords)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger excluded words: %w", err)
	}

	_, err = s.db.Exec(`INSERT INTO triggers (id, name, keywords, required_words, excluded_words, use_fuzzy_match, response, enabled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, keywords = excluded.keywords,
			required_words = excluded.required_words, excluded_words = excluded.excluded_words,
			use_fuzzy_match = excluded.use_fuzzy_match, response = excluded.response, enabled = excluded.enabled`,
		trigger.ID, trigger.Name, string(keywords), string(required), string(excluded), trigger.UseFuzzyMatch, trigger.Response, trigger.Enabled)
	if err != nil {
		slog.Error("SQLiteStore SaveTrigger failed", "error", err, "triggerID", trigger.ID)
		return fmt.Errorf("failed to save trigger %s: %w", trigger.ID, err)
	}
	return nil
}

func (s *SQLiteStore) ListTriggers() ([]models.Trigger, error) {
	rows, err := s.db.Query(`SELECT id, name, keywords, required_words, excluded_words, use_fuzzy_match, response, enabled FROM triggers ORDER BY id`)
	if err != nil {
		slog.Error("SQLiteStore ListTriggers query failed", "error", err)
		return nil, fmt.Errorf("failed to query triggers: %w", err)
	}
	defer rows.Close()

	var triggers []models.Trigger
	for rows.Next() {
		var t models.Trigger
		var keywords, required, excluded string
		if err := rows.Scan(&t.ID, &t.Name, &keywords, &required, &excluded, &t.UseFuzzyMatch, &t.Response, &t.Enabled); err != nil {
			return nil, fmt.Errorf("failed to scan trigger row: %w", err)
		}
		if err := json.Unmarshal([]byte(keywords), &t.Keywords); err != nil {
			return nil, fmt.Errorf("failed to unmarshal trigger keywords: %w", err)
		}
		if err := json.Unmarshal([]byte(required), &t.RequiredWords); err != nil {
			return nil, fmt.Errorf("failed to unmarshal trigger required words: %w", err)
		}
		if err := json.Unmarshal([]byte(excluded), &t.ExcludedWords); err != nil {
			return nil, fmt.Errorf("failed to unmarshal trigger excluded words: %w", err)
		}
		triggers = append(triggers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate trigger rows: %w", err)
	}
	return triggers, nil
}

func (s *SQLiteStore) DeleteTrigger(id string) error {
	_, err := s.db.Exec(`DELETE FROM triggers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete trigger %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) SaveQuickReply(reply models.QuickReply) error {
	if reply.ID == "" {
		return models.ErrEmptyQuickReplyID
	}
	_, err := s.db.Exec(`INSERT INTO quick_replies (id, label, reply_text, position)
		VALUES (?, ?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM quick_replies))
		ON CONFLICT(id) DO UPDATE SET label = excluded.label, reply_text = excluded.reply_text`,
		reply.ID, reply.Label, reply.Text)
	if err != nil {
		slog.Error("SQLiteStore SaveQuickReply failed", "error", err, "id", reply.ID)
		return fmt.Errorf("failed to save quick reply %s: %w", reply.ID, err)
	}
	return nil
}

func (s *SQLiteStore) ListQuickReplies() ([]models.QuickReply, error) {
	rows, err := s.db.Query(`SELECT id, label, reply_text FROM quick_replies ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query quick replies: %w", err)
	}
	defer rows.Close()

	var replies []models.QuickReply
	for rows.Next() {
		var r models.QuickReply
		if err := rows.Scan(&r.ID, &r.Label, &r.Text); err != nil {
			return nil, fmt.Errorf("failed to scan quick reply row: %w", err)
		}
		replies = append(replies, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate quick reply rows: %w", err)
	}
	return replies, nil
}

func (s *SQLiteStore) DeleteQuickReply(id string) error {
	_, err := s.db.Exec(`DELETE FROM quick_replies WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete quick reply %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) GetSettings() (models.Settings, error) {
	var payload string
	err := s.db.QueryRow(`SELECT payload FROM settings WHERE id = 1`).Scan(&payload)
	if err == sql.ErrNoRows {
		return models.DefaultSettings(), nil
	}
	if err != nil {
		return models.Settings{}, fmt.Errorf("failed to get settings: %w", err)
	}
	var settings models.Settings
	if err := json.Unmarshal([]byte(payload), &settings); err != nil {
		return models.Settings{}, fmt.Errorf("failed to unmarshal settings: %w", err)
	}
	return settings, nil
}

func (s *SQLiteStore) SaveSettings(settings models.Settings) error {
	payload, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	_, err = s.db.Exec(`INSERT INTO settings (id, payload) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET payload = excluded.payload`, string(payload))
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("SQLiteStore closing database connection")
	return s.db.Close()
}
