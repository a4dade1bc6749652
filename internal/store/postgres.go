// Package store provides storage backends for ZapDesk.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/ZapDesk/ZapDesk/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants.
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) SaveFlow(flow models.Flow) error {
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

	_, err = s.db.Exec(`INSERT INTO flows (id, name, definition, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, definition = EXCLUDED.definition, updated_at = EXCLUDED.updated_at`,
		flow.ID, flow.Name, string(definition), flow.CreatedAt, flow.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveFlow failed", "error", err, "flowID", flow.ID)
		return fmt.Errorf("failed to save flow %s: %w", flow.ID, err)
	}
	slog.Debug("PostgresStore SaveFlow succeeded", "flowID", flow.ID, "steps", len(flow.Steps))
	return nil
}

func (s *PostgresStore) GetFlow(id string) (*models.Flow, error) {
	var definition string
	err := s.db.QueryRow(`SELECT definition FROM flows WHERE id = $1`, id).Scan(&definition)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("flow not found: %s", id)
	}
	if err != nil {
		slog.Error("PostgresStore GetFlow failed", "error", err, "flowID", id)
		return nil, fmt.Errorf("failed to get flow %s: %w", id, err)
	}

	var flow models.Flow
	if err := json.Unmarshal([]byte(definition), &flow); err != nil {
		return nil, fmt.Errorf("failed to unmarshal flow %s: %w", id, err)
	}
	return &flow, nil
}

func (s *PostgresStore) ListFlows() ([]models.Flow, error) {
	rows, err := s.db.Query(`SELECT definition FROM flows ORDER BY id`)
	if err != nil {
		slog.Error("PostgresStore ListFlows query failed", "error", err)
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
	return flows, nil
}

func (s *PostgresStore) DeleteFlow(id string) error {
	_, err := s.db.Exec(`DELETE FROM flows WHERE id = $1`, id)
	if err != nil {
		slog.Error("PostgresStore DeleteFlow failed", "error", err, "flowID", id)
		return fmt.Errorf("failed to delete flow %s: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) SaveCursor(cursor models.ExecutionCursor) error {
	data, err := json.Marshal(cursor.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal cursor data for %s: %w", cursor.ConversationID, err)
	}

	_, err = s.db.Exec(`INSERT INTO cursors (conversation_id, flow_id, step_index, data, has_ended, outcome, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (conversation_id) DO UPDATE SET flow_id = EXCLUDED.flow_id, step_index = EXCLUDED.step_index,
			data = EXCLUDED.data, has_ended = EXCLUDED.has_ended, outcome = EXCLUDED.outcome, updated_at = EXCLUDED.updated_at`,
		cursor.ConversationID, cursor.FlowID, cursor.StepIndex, string(data), cursor.HasEnded, string(cursor.Outcome), cursor.CreatedAt, cursor.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveCursor failed", "error", err, "conversationID", cursor.ConversationID)
		return fmt.Errorf("failed to save cursor for %s: %w", cursor.ConversationID, err)
	}
	return nil
}

func (s *PostgresStore) GetCursor(conversationID string) (*models.ExecutionCursor, error) {
	row := s.db.QueryRow(`SELECT `+cursorColumns+` FROM cursors WHERE conversation_id = $1`, conversationID)
	cursor, err := scanCursor(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("cursor not found: %s", conversationID)
	}
	if err != nil {
		slog.Error("PostgresStore GetCursor failed", "error", err, "conversationID", conversationID)
		return nil, fmt.Errorf("failed to get cursor for %s: %w", conversationID, err)
	}
	return &cursor, nil
}

func (s *PostgresStore) ListActiveCursors() ([]models.ExecutionCursor, error) {
	rows, err := s.db.Query(`SELECT ` + cursorColumns + ` FROM cursors WHERE has_ended = FALSE ORDER BY conversation_id`)
	if err != nil {
		slog.Error("PostgresStore ListActiveCursors query failed", "error", err)
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
	return cursors, nil
}

func (s *PostgresStore) DeleteCursor(conversationID string) error {
	_, err := s.db.Exec(`DELETE FROM cursors WHERE conversation_id = $1`, conversationID)
	if err != nil {
		return fmt.Errorf("failed to delete cursor for %s: %w", conversationID, err)
	}
	return nil
}

func (s *PostgresStore) SaveTrigger(trigger models.Trigger) error {
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
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, keywords = EXCLUDED.keywords,
			required_words = EXCLUDED.required_words, excluded_words = EXCLUDED.excluded_words,
			use_fuzzy_match = EXCLUDED.use_fuzzy_match, response = EXCLUDED.response, enabled = EXCLUDED.enabled`,
		trigger.ID, trigger.Name, string(keywords), string(required), string(excluded), trigger.UseFuzzyMatch, trigger.Response, trigger.Enabled)
	if err != nil {
		slog.Error("PostgresStore SaveTrigger failed", "error", err, "triggerID", trigger.ID)
		return fmt.Errorf("failed to save trigger %s: %w", trigger.ID, err)
	}
	return nil
}

func (s *PostgresStore) ListTriggers() ([]models.Trigger, error) {
	rows, err := s.db.Query(`SELECT id, name, keywords, required_words, excluded_words, use_fuzzy_match, response, enabled FROM triggers ORDER BY id`)
	if err != nil {
		slog.Error("PostgresStore ListTriggers query failed", "error", err)
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

func (s *PostgresStore) DeleteTrigger(id string) error {
	_, err := s.db.Exec(`DELETE FROM triggers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete trigger %s: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) SaveQuickReply(reply models.QuickReply) error {
	if reply.ID == "" {
		return models.ErrEmptyQuickReplyID
	}
	_, err := s.db.Exec(`INSERT INTO quick_replies (id, label, reply_text, position)
		VALUES ($1, $2, $3, (SELECT COALESCE(MAX(position), 0) + 1 FROM quick_replies))
		ON CONFLICT (id) DO UPDATE SET label = EXCLUDED.label, reply_text = EXCLUDED.reply_text`,
		reply.ID, reply.Label, reply.Text)
	if err != nil {
		slog.Error("PostgresStore SaveQuickReply failed", "error", err, "id", reply.ID)
		return fmt.Errorf("failed to save quick reply %s: %w", reply.ID, err)
	}
	return nil
}

func (s *PostgresStore) ListQuickReplies() ([]models.QuickReply, error) {
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

func (s *PostgresStore) DeleteQuickReply(id string) error {
	_, err := s.db.Exec(`DELETE FROM quick_replies WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete quick reply %s: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) GetSettings() (models.Settings, error) {
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

func (s *PostgresStore) SaveSettings(settings models.Settings) error {
	payload, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	_, err = s.db.Exec(`INSERT INTO settings (id, payload) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload`, string(payload))
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("PostgresStore closing database connection")
	return s.db.Close()
}
