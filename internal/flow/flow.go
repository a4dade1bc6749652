// Package flow provides the turn-by-turn interpreter for ZapDesk
// conversation flows: it walks a flow graph against a live conversation,
// enforcing input validation, auto-chaining and inactivity timeouts.
package flow

import (
	"context"
	"time"

	"github.com/ZapDesk/ZapDesk/internal/models"
)

// Sink delivers outbound bot turns to the surrounding chat transport.
// Delivery is best-effort: the interpreter logs failures and never
// retries or rolls back collected data.
type Sink interface {
	Emit(ctx context.Context, conversationID string, msg models.BotMessage) error
}

// Timer defines the interface for scheduling delayed actions. All
// interpreter timers go through it so tests can inject a fake clock.
type Timer interface {
	// ScheduleAfter schedules fn to run once after delay.
	ScheduleAfter(delay time.Duration, fn func()) (string, error)

	// ScheduleRepeating schedules fn to run on every interval tick
	// until cancelled.
	ScheduleRepeating(interval time.Duration, fn func()) (string, error)

	// Cancel cancels a scheduled function by ID. Cancelling an unknown
	// ID is a no-op.
	Cancel(id string) error

	// Stop cancels all scheduled functions.
	Stop()
}

// CursorSaver persists cursor snapshots after interpreter mutations.
type CursorSaver interface {
	SaveCursor(cursor models.ExecutionCursor) error
}
