package messaging

import (
	"context"
	"log/slog"
	"time"

	"github.com/ZapDesk/ZapDesk/internal/models"
)

// ServiceSink adapts a messaging Service to the delivery interface the
// flow interpreter emits through. Media kinds route through SendMedia,
// everything else goes out as text. Typing-delay pacing happens here,
// on the delivery side, so the interpreter never sleeps while holding
// its session lock.
type ServiceSink struct {
	service       Service
	typingDelayMs int
}

// NewServiceSink creates a sink backed by the given messaging service.
func NewServiceSink(service Service) *ServiceSink {
	return &ServiceSink{service: service}
}

// SetTypingDelay sets a pacing delay applied before each delivery.
func (s *ServiceSink) SetTypingDelay(ms int) {
	s.typingDelayMs = ms
}

// Emit delivers one bot message to a conversation.
func (s *ServiceSink) Emit(ctx context.Context, conversationID string, msg models.BotMessage) error {
	if s.typingDelayMs > 0 {
		select {
		case <-time.After(time.Duration(s.typingDelayMs) * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	switch msg.Kind {
	case models.MessageKindImage, models.MessageKindVideo, models.MessageKindAudio, models.MessageKindDocument:
		slog.Debug("ServiceSink emitting media message", "to", conversationID, "kind", msg.Kind)
		return s.service.SendMedia(ctx, conversationID, msg.Text, msg.MediaURL)
	default:
		slog.Debug("ServiceSink emitting text message", "to", conversationID, "kind", msg.Kind)
		return s.service.SendMessage(ctx, conversationID, msg.Text)
	}
}
