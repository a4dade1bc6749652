package flow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ZapDesk/ZapDesk/internal/models"
)

// FlowLoader fetches a flow definition by ID.
type FlowLoader interface {
	GetFlow(id string) (*models.Flow, error)
}

// Engine manages live sessions across conversations. It hands each
// inbound message to the right session, starting new ones on demand.
type Engine struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	loader   FlowLoader
	sink     Sink
	timer    Timer
	saver    CursorSaver
	settings models.Settings
}

// NewEngine creates a flow engine.
func NewEngine(loader FlowLoader, sink Sink, timer Timer, saver CursorSaver, settings models.Settings) *Engine {
	slog.Debug("Creating flow engine", "autoHandoffSeconds", settings.AutoHandoffSeconds)
	return &Engine{
		sessions: make(map[string]*Session),
		loader:   loader,
		sink:     sink,
		timer:    timer,
		saver:    saver,
		settings: settings,
	}
}

// StartFlow begins the given flow for a conversation, replacing any
// previous session for that conversation.
func (e *Engine) StartFlow(ctx context.Context, conversationID, flowID string) error {
	flow, err := e.loader.GetFlow(flowID)
	if err != nil {
		return fmt.Errorf("failed to load flow %s: %w", flowID, err)
	}
	if err := flow.Validate(); err != nil {
		return fmt.Errorf("flow %s failed validation: %w", flowID, err)
	}

	session := NewSession(flow, conversationID, e.sink, e.timer, e.saver, e.settings)

	e.mu.Lock()
	if prev, ok := e.sessions[conversationID]; ok {
		slog.Debug("Engine.StartFlow: replacing existing session", "conversationID", conversationID)
		prev.cancelTimersLocked()
	}
	e.sessions[conversationID] = session
	e.mu.Unlock()

	slog.Info("Engine.StartFlow: session created", "conversationID", conversationID, "flowID", flowID)
	return session.Start(ctx)
}

// HandleIncoming routes a customer message to its session. It reports
// whether a session consumed the message so callers can fall back to
// trigger matching.
func (e *Engine) HandleIncoming(ctx context.Context, conversationID, text string) (bool, error) {
	e.mu.RLock()
	session, ok := e.sessions[conversationID]
	e.mu.RUnlock()

	if !ok {
		slog.Debug("Engine.HandleIncoming: no session for conversation", "conversationID", conversationID)
		return false, nil
	}
	if session.HasEnded() {
		slog.Debug("Engine.HandleIncoming: session ended, not consuming", "conversationID", conversationID)
		return false, nil
	}

	return true, session.HandleReply(ctx, text)
}

// Restart resets the conversation's session back to the first step.
func (e *Engine) Restart(ctx context.Context, conversationID string) error {
	e.mu.RLock()
	session, ok := e.sessions[conversationID]
	e.mu.RUnlock()

	if !ok {
		return fmt.Errorf("no session for conversation %s", conversationID)
	}
	return session.Restart(ctx)
}

// EndSession terminates and drops a conversation's session.
func (e *Engine) EndSession(conversationID string, outcome models.Outcome) error {
	e.mu.Lock()
	session, ok := e.sessions[conversationID]
	if ok {
		delete(e.sessions, conversationID)
	}
	e.mu.Unlock()

	if !ok {
		return nil
	}
	return session.End(outcome)
}

// Session returns the live session for a conversation, nil when none
// exists.
func (e *Engine) Session(conversationID string) *Session {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sessions[conversationID]
}

// ActiveSessions reports the number of conversations with a live session.
func (e *Engine) ActiveSessions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.sessions)
}

// Stop cancels all timers and discards every session. Cursors stay in
// the store so RecoverSessions can rebuild state on the next start.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	slog.Info("Engine.Stop: shutting down", "activeSessions", len(e.sessions))
	for _, session := range e.sessions {
		session.cancelTimersLocked()
	}
	e.sessions = make(map[string]*Session)
}

// cancelTimersLocked acquires the session lock and cancels its timers.
func (s *Session) cancelTimersLocked() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelTimers()
}
