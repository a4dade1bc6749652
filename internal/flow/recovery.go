package flow

import (
	"fmt"
	"log/slog"

	"github.com/ZapDesk/ZapDesk/internal/models"
)

// CursorLister fetches the cursors of conversations that were still in
// progress when the process last exited.
type CursorLister interface {
	ListActiveCursors() ([]models.ExecutionCursor, error)
}

// RecoverSessions rebuilds sessions for every active cursor in the
// store and re-arms their inactivity timers. Cursors whose flow no
// longer exists are left alone and logged.
func (e *Engine) RecoverSessions(lister CursorLister) (int, error) {
	cursors, err := lister.ListActiveCursors()
	if err != nil {
		return 0, fmt.Errorf("failed to list active cursors: %w", err)
	}

	slog.Info("Engine.RecoverSessions: starting recovery", "activeCursors", len(cursors))

	recovered := 0
	for _, cursor := range cursors {
		if cursor.HasEnded {
			continue
		}

		flow, err := e.loader.GetFlow(cursor.FlowID)
		if err != nil {
			slog.Warn("Engine.RecoverSessions: flow missing, skipping cursor", "conversationID", cursor.ConversationID, "flowID", cursor.FlowID, "error", err)
			continue
		}
		if cursor.StepIndex < 0 || cursor.StepIndex >= len(flow.Steps) {
			slog.Warn("Engine.RecoverSessions: cursor step out of range, skipping", "conversationID", cursor.ConversationID, "stepIndex", cursor.StepIndex)
			continue
		}

		session := ResumeSession(flow, cursor, e.sink, e.timer, e.saver, e.settings)

		e.mu.Lock()
		e.sessions[cursor.ConversationID] = session
		e.mu.Unlock()

		step := &flow.Steps[cursor.StepIndex]
		if step.Waits() {
			session.mu.Lock()
			session.armTimers()
			session.mu.Unlock()
		}

		recovered++
		slog.Debug("Engine.RecoverSessions: session recovered", "conversationID", cursor.ConversationID, "flowID", cursor.FlowID, "stepIndex", cursor.StepIndex)
	}

	slog.Info("Engine.RecoverSessions: recovery complete", "recovered", recovered)
	return recovered, nil
}
