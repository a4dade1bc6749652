package messaging

import (
	"context"
	"testing"

	"github.com/ZapDesk/ZapDesk/internal/models"
	"github.com/ZapDesk/ZapDesk/internal/twiliowhatsapp"
)

// stubRouter marks every message as consumed or not.
type stubRouter struct {
	consume  bool
	received []string
}

func (s *stubRouter) HandleIncoming(ctx context.Context, conversationID, text string) (bool, error) {
	s.received = append(s.received, text)
	return s.consume, nil
}

// stubSource serves fixed triggers and quick replies.
type stubSource struct {
	triggers []models.Trigger
	replies  []models.QuickReply
}

func (s *stubSource) ListTriggers() ([]models.Trigger, error)        { return s.triggers, nil }
func (s *stubSource) ListQuickReplies() ([]models.QuickReply, error) { return s.replies, nil }
func (s *stubSource) GetSettings() (models.Settings, error)          { return models.DefaultSettings(), nil }

func newHandlerFixture(router *stubRouter, source *stubSource) (*ResponseHandler, *twiliowhatsapp.MockClient) {
	mock := twiliowhatsapp.NewMockClient()
	service := NewTwilioService(mock)
	return NewResponseHandler(service, router, source), mock
}

func TestResponseHandlerSessionConsumesFirst(t *testing.T) {
	router := &stubRouter{consume: true}
	source := &stubSource{triggers: []models.Trigger{{
		ID: "t1", Keywords: []string{"orçamento"}, Response: "Segue o orçamento!", Enabled: true,
	}}}
	handler, mock := newHandlerFixture(router, source)

	err := handler.ProcessResponse(context.Background(), models.Response{From: "5511987654321", Body: "quero um orçamento"})
	if err != nil {
		t.Fatalf("ProcessResponse failed: %v", err)
	}
	if len(router.received) != 1 {
		t.Fatalf("expected router to receive the message, got %v", router.received)
	}
	if len(mock.SentMessages) != 0 {
		t.Errorf("expected no outbound message when session consumed, got %v", mock.SentMessages)
	}
}

func TestResponseHandlerTriggerMatch(t *testing.T) {
	router := &stubRouter{consume: false}
	source := &stubSource{triggers: []models.Trigger{{
		ID: "t1", Keywords: []string{"orçamento"}, Response: "Segue o orçamento!", Enabled: true,
	}}}
	handler, mock := newHandlerFixture(router, source)

	err := handler.ProcessResponse(context.Background(), models.Response{From: "5511987654321", Body: "Quero um ORÇAMENTO por favor"})
	if err != nil {
		t.Fatalf("ProcessResponse failed: %v", err)
	}
	if len(mock.SentMessages) != 1 || mock.SentMessages[0].Body != "Segue o orçamento!" {
		t.Errorf("expected trigger response, got %v", mock.SentMessages)
	}
}

func TestResponseHandlerQuickReplySuggestion(t *testing.T) {
	router := &stubRouter{consume: false}
	source := &stubSource{replies: []models.QuickReply{
		{ID: "q1", Label: "horário", Text: "Atendemos das 9h às 18h."},
	}}
	handler, mock := newHandlerFixture(router, source)

	// One typo away from the catalog label.
	err := handler.ProcessResponse(context.Background(), models.Response{From: "5511987654321", Body: "horariu"})
	if err != nil {
		t.Fatalf("ProcessResponse failed: %v", err)
	}
	if len(mock.SentMessages) != 1 || mock.SentMessages[0].Body != "Atendemos das 9h às 18h." {
		t.Errorf("expected quick reply text, got %v", mock.SentMessages)
	}
}

func TestResponseHandlerDefaultMessage(t *testing.T) {
	router := &stubRouter{consume: false}
	handler, mock := newHandlerFixture(router, &stubSource{})
	handler.SetDefaultMessage("Já te respondo!")

	err := handler.ProcessResponse(context.Background(), models.Response{From: "5511987654321", Body: "mensagem sem par"})
	if err != nil {
		t.Fatalf("ProcessResponse failed: %v", err)
	}
	if len(mock.SentMessages) != 1 || mock.SentMessages[0].Body != "Já te respondo!" {
		t.Errorf("expected default message, got %v", mock.SentMessages)
	}
}

func TestResponseHandlerDropsInvalidSender(t *testing.T) {
	router := &stubRouter{consume: false}
	handler, mock := newHandlerFixture(router, &stubSource{})

	err := handler.ProcessResponse(context.Background(), models.Response{From: "???", Body: "oi"})
	if err != nil {
		t.Fatalf("ProcessResponse failed: %v", err)
	}
	if len(router.received) != 0 || len(mock.SentMessages) != 0 {
		t.Error("expected invalid sender to be dropped silently")
	}
}

func TestResponseHandlerDisabledTriggerFallsThrough(t *testing.T) {
	router := &stubRouter{consume: false}
	source := &stubSource{triggers: []models.Trigger{{
		ID: "t1", Keywords: []string{"orçamento"}, Response: "Segue!", Enabled: false,
	}}}
	handler, mock := newHandlerFixture(router, source)
	handler.SetDefaultMessage("fallback")

	err := handler.ProcessResponse(context.Background(), models.Response{From: "5511987654321", Body: "quero um orçamento"})
	if err != nil {
		t.Fatalf("ProcessResponse failed: %v", err)
	}
	if len(mock.SentMessages) != 1 || mock.SentMessages[0].Body != "fallback" {
		t.Errorf("expected fallback for disabled trigger, got %v", mock.SentMessages)
	}
}
