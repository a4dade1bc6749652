package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ZapDesk/ZapDesk/internal/models"
)

// Session drives one conversation through a flow. All entry points
// (Start, HandleReply, Restart, timeout firing) serialize on a single
// mutex so concurrent events for the same conversation never interleave.
type Session struct {
	mu       sync.Mutex
	flow     *models.Flow
	cursor   models.ExecutionCursor
	sink     Sink
	timer    Timer
	saver    CursorSaver
	settings models.Settings

	handoffTimerID   string
	countdownTimerID string
	remainingSeconds int
	timerGeneration  uint64
	started          bool
}

// NewSession creates a session bound to a flow and a conversation.
func NewSession(flow *models.Flow, conversationID string, sink Sink, timer Timer, saver CursorSaver, settings models.Settings) *Session {
	return &Session{
		flow:     flow,
		cursor:   models.NewExecutionCursor(conversationID, flow.ID),
		sink:     sink,
		timer:    timer,
		saver:    saver,
		settings: settings,
	}
}

// ResumeSession rebuilds a session around a persisted cursor, used when
// recovering conversations after a restart.
func ResumeSession(flow *models.Flow, cursor models.ExecutionCursor, sink Sink, timer Timer, saver CursorSaver, settings models.Settings) *Session {
	return &Session{
		flow:     flow,
		cursor:   cursor,
		sink:     sink,
		timer:    timer,
		saver:    saver,
		settings: settings,
		started:  cursor.StepIndex != models.StepIndexNotStarted,
	}
}

// Cursor returns a copy of the session's execution cursor.
func (s *Session) Cursor() models.ExecutionCursor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// HasEnded reports whether the conversation reached a terminal state.
func (s *Session) HasEnded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor.HasEnded
}

// Start begins the flow at its first step. Starting an already started
// session is a no-op.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		slog.Debug("Session.Start: already started", "conversationID", s.cursor.ConversationID)
		return nil
	}
	s.started = true
	slog.Info("Session.Start: beginning flow", "conversationID", s.cursor.ConversationID, "flowID", s.flow.ID)

	if len(s.flow.Steps) == 0 {
		slog.Warn("Session.Start: flow has no steps, completing immediately", "flowID", s.flow.ID)
		return s.complete(ctx, true)
	}

	if s.flow.WelcomeText != "" && s.flow.Steps[0].Type != models.StepTypeWelcome {
		s.emit(ctx, models.TextMessage(s.flow.WelcomeText))
	}

	return s.runFrom(ctx, 0)
}

// HandleReply processes an inbound customer message against the step the
// conversation is waiting on. Replies to ended or unstarted sessions are
// ignored.
func (s *Session) HandleReply(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		slog.Debug("Session.HandleReply: session not started, ignoring", "conversationID", s.cursor.ConversationID)
		return nil
	}
	if s.cursor.HasEnded {
		slog.Debug("Session.HandleReply: session ended, ignoring", "conversationID", s.cursor.ConversationID, "outcome", s.cursor.Outcome)
		return nil
	}
	if s.cursor.StepIndex < 0 || s.cursor.StepIndex >= len(s.flow.Steps) {
		slog.Warn("Session.HandleReply: cursor out of range, ignoring", "conversationID", s.cursor.ConversationID, "stepIndex", s.cursor.StepIndex)
		return nil
	}

	s.cancelTimers()

	step := &s.flow.Steps[s.cursor.StepIndex]
	slog.Debug("Session.HandleReply: processing reply", "conversationID", s.cursor.ConversationID, "stepID", step.ID, "stepType", step.Type)

	if !ValidateInput(text, step.Validation) {
		slog.Debug("Session.HandleReply: validation failed", "conversationID", s.cursor.ConversationID, "stepID", step.ID, "validation", step.Validation)
		prompt := step.ErrorPrompt
		if prompt == "" {
			prompt = "Desculpe, não entendi. Pode tentar novamente?"
		}
		s.emit(ctx, models.TextMessage(prompt))
		s.armTimers()
		return s.persist()
	}

	key := s.flow.FieldKey(s.cursor.StepIndex)
	if key != "" {
		s.cursor.Record(key, strings.TrimSpace(text))
	}

	next := s.resolveNext(step, text)
	return s.runFrom(ctx, next)
}

// Restart clears collected data and runs the flow from the top again.
func (s *Session) Restart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	slog.Info("Session.Restart", "conversationID", s.cursor.ConversationID, "flowID", s.flow.ID)
	s.cancelTimers()
	s.cursor.Reset()
	s.started = true

	if len(s.flow.Steps) == 0 {
		return s.complete(ctx, true)
	}
	return s.runFrom(ctx, 0)
}

// End terminates the session with the given outcome and stops its timers.
func (s *Session) End(outcome models.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cursor.HasEnded {
		return nil
	}
	s.cancelTimers()
	s.cursor.Terminate(outcome)
	slog.Info("Session.End", "conversationID", s.cursor.ConversationID, "outcome", outcome)
	return s.persist()
}

// handleTimeout fires when the inactivity window elapses. It is
// idempotent: a timeout racing a reply that already ended or advanced
// the session does nothing. The generation check discards firings from
// timers that were cancelled and re-armed while this call waited on
// the lock.
func (s *Session) handleTimeout(generation uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if generation != s.timerGeneration {
		slog.Debug("Session.handleTimeout: stale timer, skipping", "conversationID", s.cursor.ConversationID, "generation", generation)
		return
	}
	if s.cursor.HasEnded {
		slog.Debug("Session.handleTimeout: session already ended, skipping", "conversationID", s.cursor.ConversationID)
		return
	}

	slog.Info("Session.handleTimeout: inactivity timeout, handing off", "conversationID", s.cursor.ConversationID, "flowID", s.flow.ID)
	s.cancelTimers()

	ctx := context.Background()
	if s.settings.AutoHandoffMessage != "" {
		s.emit(ctx, models.SystemMessage(s.settings.AutoHandoffMessage))
	}
	if s.flow.EndText != "" {
		s.emit(ctx, models.TextMessage(s.renderPrompt(s.flow.EndText)))
	}
	s.cursor.Terminate(models.OutcomeHandoff)
	if err := s.persist(); err != nil {
		slog.Error("Session.handleTimeout: failed to persist cursor", "conversationID", s.cursor.ConversationID, "error", err)
	}
}

// runFrom advances the session starting at index, auto-chaining through
// consecutive skipWait steps. The hop count is capped at the number of
// steps in the flow so a skipWait cycle cannot spin forever.
func (s *Session) runFrom(ctx context.Context, index int) error {
	hops := 0
	maxHops := len(s.flow.Steps)

	for {
		if index == stepIndexEnd || index < 0 || index >= len(s.flow.Steps) {
			return s.complete(ctx, true)
		}

		step := &s.flow.Steps[index]
		s.cursor.StepIndex = index
		slog.Debug("Session.runFrom: entering step", "conversationID", s.cursor.ConversationID, "stepID", step.ID, "stepType", step.Type, "hops", hops)

		s.emitStep(ctx, step)

		if step.Type == models.StepTypeEnd {
			return s.complete(ctx, false)
		}

		if step.Waits() {
			s.armTimers()
			return s.persist()
		}

		hops++
		if hops >= maxHops {
			slog.Warn("Session.runFrom: skipWait hop cap reached, completing", "conversationID", s.cursor.ConversationID, "flowID", s.flow.ID, "hops", hops)
			return s.complete(ctx, true)
		}
		index = s.resolveNext(step, "")
	}
}

const stepIndexEnd = -2

// resolveNext picks the index of the next step after a reply. Route
// conditions match first by substring against the lowercased reply,
// then DefaultNext applies, then END. Dangling targets resolve to END.
func (s *Session) resolveNext(step *models.Step, reply string) int {
	target := ""
	normalized := strings.ToLower(strings.TrimSpace(reply))

	if normalized != "" {
		for _, route := range step.Routes {
			cond := strings.ToLower(strings.TrimSpace(route.Condition))
			if cond != "" && strings.Contains(normalized, cond) {
				target = route.Target
				slog.Debug("Session.resolveNext: route matched", "conversationID", s.cursor.ConversationID, "stepID", step.ID, "condition", route.Condition, "target", target)
				break
			}
		}
	}
	if target == "" {
		target = step.DefaultNext
	}
	if target == "" || target == models.EndTarget {
		return stepIndexEnd
	}

	idx := s.flow.StepIndex(target)
	if idx < 0 {
		slog.Warn("Session.resolveNext: dangling target, ending flow", "conversationID", s.cursor.ConversationID, "stepID", step.ID, "target", target)
		return stepIndexEnd
	}
	return idx
}

// complete marks the session as completed. The farewell flag controls
// whether the flow's closing text is sent: callers that just emitted an
// end step's prompt pass false, since EndText mirrors that prompt and
// the customer would see the farewell twice.
func (s *Session) complete(ctx context.Context, farewell bool) error {
	if s.cursor.HasEnded {
		return s.persist()
	}
	if farewell && s.flow.EndText != "" {
		s.emit(ctx, models.TextMessage(s.renderPrompt(s.flow.EndText)))
	}
	s.cancelTimers()
	s.cursor.Terminate(models.OutcomeCompleted)
	slog.Info("Session.complete: flow completed", "conversationID", s.cursor.ConversationID, "flowID", s.flow.ID, "collectedFields", len(s.cursor.Data))
	return s.persist()
}

// emitStep sends the step's prompt, as media when the step carries a
// media URL.
func (s *Session) emitStep(ctx context.Context, step *models.Step) {
	if step.Type.IsMedia() && step.MediaURL != "" {
		s.emit(ctx, models.MediaMessage(models.MediaMessageKind(step.Type), step.MediaURL, step.Prompt))
		return
	}
	if step.Prompt != "" {
		s.emit(ctx, models.TextMessage(s.renderPrompt(step.Prompt)))
	}
}

// renderPrompt substitutes {{field}} placeholders with collected data.
func (s *Session) renderPrompt(prompt string) string {
	if !strings.Contains(prompt, "{{") {
		return prompt
	}
	out := prompt
	for field, value := range s.cursor.Data {
		out = strings.ReplaceAll(out, "{{"+field+"}}", value)
	}
	return out
}

// emit sends a message through the sink. Delivery failures are logged
// and otherwise ignored: the flow state has already advanced and there
// is no rollback. Typing-delay pacing belongs to the sink; blocking
// here would hold the session lock and stall the inactivity timers.
func (s *Session) emit(ctx context.Context, msg models.BotMessage) {
	if err := s.sink.Emit(ctx, s.cursor.ConversationID, msg); err != nil {
		slog.Error("Session.emit: failed to deliver message", "conversationID", s.cursor.ConversationID, "kind", msg.Kind, "error", err)
	}
}

// timeoutSeconds resolves the inactivity window for this session: the
// flow's own timeout when set, otherwise the global auto-handoff
// setting. Zero or negative disables the timeout.
func (s *Session) timeoutSeconds() int {
	if s.flow.InactivityTimeoutSeconds > 0 {
		return s.flow.InactivityTimeoutSeconds
	}
	return s.settings.AutoHandoffSeconds
}

// armTimers schedules the one-shot handoff timer plus a once-per-second
// countdown tick for the step the session is now waiting on.
func (s *Session) armTimers() {
	seconds := s.timeoutSeconds()
	if seconds <= 0 {
		slog.Debug("Session.armTimers: inactivity timeout disabled", "conversationID", s.cursor.ConversationID)
		return
	}

	s.remainingSeconds = seconds
	s.timerGeneration++
	generation := s.timerGeneration

	id, err := s.timer.ScheduleAfter(time.Duration(seconds)*time.Second, func() {
		s.handleTimeout(generation)
	})
	if err != nil {
		slog.Error("Session.armTimers: failed to schedule handoff timer", "conversationID", s.cursor.ConversationID, "error", err)
		return
	}
	s.handoffTimerID = id

	tickID, err := s.timer.ScheduleRepeating(time.Second, s.countdownTick)
	if err != nil {
		slog.Error("Session.armTimers: failed to schedule countdown", "conversationID", s.cursor.ConversationID, "error", err)
	} else {
		s.countdownTimerID = tickID
	}

	slog.Debug("Session.armTimers: timers armed", "conversationID", s.cursor.ConversationID, "seconds", seconds, "handoffTimerID", s.handoffTimerID)
}

func (s *Session) countdownTick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.remainingSeconds > 0 {
		s.remainingSeconds--
	}
}

// RemainingSeconds reports how many seconds are left before the
// inactivity handoff fires, zero when no timer is armed.
func (s *Session) RemainingSeconds() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handoffTimerID == "" {
		return 0
	}
	return s.remainingSeconds
}

// cancelTimers stops both the handoff timer and the countdown tick.
// The two always arm and cancel as a pair.
func (s *Session) cancelTimers() {
	if s.handoffTimerID != "" {
		if err := s.timer.Cancel(s.handoffTimerID); err != nil {
			slog.Debug("Session.cancelTimers: cancel handoff failed", "conversationID", s.cursor.ConversationID, "error", err)
		}
		s.handoffTimerID = ""
	}
	if s.countdownTimerID != "" {
		if err := s.timer.Cancel(s.countdownTimerID); err != nil {
			slog.Debug("Session.cancelTimers: cancel countdown failed", "conversationID", s.cursor.ConversationID, "error", err)
		}
		s.countdownTimerID = ""
	}
	s.remainingSeconds = 0
	s.timerGeneration++
}

func (s *Session) persist() error {
	if s.saver == nil {
		return nil
	}
	s.cursor.UpdatedAt = time.Now()
	if err := s.saver.SaveCursor(s.cursor); err != nil {
		return fmt.Errorf("failed to save cursor for %s: %w", s.cursor.ConversationID, err)
	}
	return nil
}
