// Package store provides storage backends for ZapDesk.
//
// It includes an in-memory store for tests and development plus
// SQLite and PostgreSQL backed stores for production use.
package store

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ZapDesk/ZapDesk/internal/models"
)

// Store defines the persistence operations ZapDesk needs: flow
// definitions, execution cursors, keyword triggers, the quick reply
// catalog and host settings.
type Store interface {
	SaveFlow(flow models.Flow) error
	GetFlow(id string) (*models.Flow, error)
	ListFlows() ([]models.Flow, error)
	DeleteFlow(id string) error

	SaveCursor(cursor models.ExecutionCursor) error
	GetCursor(conversationID string) (*models.ExecutionCursor, error)
	ListActiveCursors() ([]models.ExecutionCursor, error)
	DeleteCursor(conversationID string) error

	SaveTrigger(trigger models.Trigger) error
	ListTriggers() ([]models.Trigger, error)
	DeleteTrigger(id string) error

	SaveQuickReply(reply models.QuickReply) error
	ListQuickReplies() ([]models.QuickReply, error)
	DeleteQuickReply(id string) error

	GetSettings() (models.Settings, error)
	SaveSettings(settings models.Settings) error

	Close() error
}

// DetectDSNType determines the database driver from a DSN string.
// Postgres DSNs use a URL scheme or key=value form; everything else is
// treated as an SQLite file path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite3"
}

// InMemoryStore keeps everything in maps. Quick replies remember their
// insertion order so suggestion ties resolve deterministically.
type InMemoryStore struct {
	mu           sync.RWMutex
	flows        map[string]models.Flow
	cursors      map[string]models.ExecutionCursor
	triggers     map[string]models.Trigger
	quickReplies []models.QuickReply
	settings     *models.Settings
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		flows:    make(map[string]models.Flow),
		cursors:  make(map[string]models.ExecutionCursor),
		triggers: make(map[string]models.Trigger),
	}
}

func (s *InMemoryStore) SaveFlow(flow models.Flow) error {
	if flow.ID == "" {
		return models.ErrEmptyFlowID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.flows[flow.ID]; ok {
		flow.CreatedAt = existing.CreatedAt
	} else if flow.CreatedAt.IsZero() {
		flow.CreatedAt = time.Now()
	}
	flow.UpdatedAt = time.Now()
	s.flows[flow.ID] = flow
	return nil
}

func (s *InMemoryStore) GetFlow(id string) (*models.Flow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	flow, ok := s.flows[id]
	if !ok {
		return nil, fmt.Errorf("flow not found: %s", id)
	}
	copied := flow
	return &copied, nil
}

func (s *InMemoryStore) ListFlows() ([]models.Flow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	flows := make([]models.Flow, 0, len(s.flows))
	for _, flow := range s.flows {
		flows = append(flows, flow)
	}
	sort.Slice(flows, func(i, j int) bool { return flows[i].ID < flows[j].ID })
	return flows, nil
}

func (s *InMemoryStore) DeleteFlow(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.flows, id)
	return nil
}

func (s *InMemoryStore) SaveCursor(cursor models.ExecutionCursor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors[cursor.ConversationID] = cursor
	return nil
}

func (s *InMemoryStore) GetCursor(conversationID string) (*models.ExecutionCursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cursor, ok := s.cursors[conversationID]
	if !ok {
		return nil, fmt.Errorf("cursor not found: %s", conversationID)
	}
	copied := cursor
	return &copied, nil
}

func (s *InMemoryStore) ListActiveCursors() ([]models.ExecutionCursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var active []models.ExecutionCursor
	for _, cursor := range s.cursors {
		if !cursor.HasEnded {
			active = append(active, cursor)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].ConversationID < active[j].ConversationID })
	return active, nil
}

func (s *InMemoryStore) DeleteCursor(conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cursors, conversationID)
	return nil
}

func (s *InMemoryStore) SaveTrigger(trigger models.Trigger) error {
	if err := trigger.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.triggers[trigger.ID] = trigger
	return nil
}

func (s *InMemoryStore) ListTriggers() ([]models.Trigger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	triggers := make([]models.Trigger, 0, len(s.triggers))
	for _, trigger := range s.triggers {
		triggers = append(triggers, trigger)
	}
	sort.Slice(triggers, func(i, j int) bool { return triggers[i].ID < triggers[j].ID })
	return triggers, nil
}

func (s *InMemoryStore) DeleteTrigger(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.triggers, id)
	return nil
}

func (s *InMemoryStore) SaveQuickReply(reply models.QuickReply) error {
	if reply.ID == "" {
		return models.ErrEmptyQuickReplyID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.quickReplies {
		if existing.ID == reply.ID {
			s.quickReplies[i] = reply
			return nil
		}
	}
	s.quickReplies = append(s.quickReplies, reply)
	return nil
}

func (s *InMemoryStore) ListQuickReplies() ([]models.QuickReply, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.QuickReply, len(s.quickReplies))
	copy(out, s.quickReplies)
	return out, nil
}

func (s *InMemoryStore) DeleteQuickReply(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.quickReplies {
		if existing.ID == id {
			s.quickReplies = append(s.quickReplies[:i], s.quickReplies[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *InMemoryStore) GetSettings() (models.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.settings == nil {
		return models.DefaultSettings(), nil
	}
	return *s.settings, nil
}

func (s *InMemoryStore) SaveSettings(settings models.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = &settings
	return nil
}

func (s *InMemoryStore) Close() error {
	return nil
}
