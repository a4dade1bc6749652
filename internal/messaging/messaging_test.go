package messaging

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/ZapDesk/ZapDesk/internal/models"
	"github.com/ZapDesk/ZapDesk/internal/twiliowhatsapp"
	"github.com/ZapDesk/ZapDesk/internal/whatsapp"
)

var (
	_ Service = (*WhatsAppService)(nil)
	_ Service = (*TwilioService)(nil)
)

func TestWhatsAppServiceValidateRecipient(t *testing.T) {
	service := NewWhatsAppService(whatsapp.NewMockClient())

	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"+55 (11) 98765-4321", "5511987654321", false},
		{"5511987654321", "5511987654321", false},
		{"", "", true},
		{"abc", "", true},
		{"12345", "", true},
	}
	for _, tc := range cases {
		got, err := service.ValidateAndCanonicalizeRecipient(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("expected error for %q", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("unexpected error for %q: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ValidateAndCanonicalizeRecipient(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestWhatsAppServiceSendEmitsReceipt(t *testing.T) {
	service := NewWhatsAppService(whatsapp.NewMockClient())

	if err := service.SendMessage(context.Background(), "5511987654321", "Olá!"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	select {
	case receipt := <-service.Receipts():
		if receipt.To != "5511987654321" || receipt.Status != models.StatusTypeSent {
			t.Errorf("unexpected receipt %+v", receipt)
		}
	default:
		t.Fatal("expected a sent receipt")
	}
}

func TestTwilioServiceSendMedia(t *testing.T) {
	mock := twiliowhatsapp.NewMockClient()
	service := NewTwilioService(mock)

	err := service.SendMedia(context.Background(), "+5511987654321", "Catálogo", "https://example.com/c.pdf")
	if err != nil {
		t.Fatalf("SendMedia failed: %v", err)
	}
	if len(mock.MediaMessages) != 1 {
		t.Fatalf("expected one media message, got %d", len(mock.MediaMessages))
	}
	sent := mock.MediaMessages[0]
	if sent.To != "5511987654321" || sent.MediaURL != "https://example.com/c.pdf" {
		t.Errorf("unexpected media message %+v", sent)
	}

	if err := service.SendMedia(context.Background(), "+5511987654321", "Catálogo", ""); err == nil {
		t.Error("expected error for empty media URL")
	}
}

func TestTwilioServiceStoppedRejectsSends(t *testing.T) {
	service := NewTwilioService(twiliowhatsapp.NewMockClient())
	if err := service.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := service.SendMessage(context.Background(), "5511987654321", "oi"); err != ErrServiceStopped {
		t.Errorf("expected ErrServiceStopped, got %v", err)
	}
	// Stop is idempotent.
	if err := service.Stop(); err != nil {
		t.Errorf("second Stop failed: %v", err)
	}
}

func TestTwilioWebhookHandler(t *testing.T) {
	service := NewTwilioService(twiliowhatsapp.NewMockClient())

	form := url.Values{}
	form.Set("From", "whatsapp:+5511987654321")
	form.Set("Body", "quero um orçamento")

	req := httptest.NewRequest(http.MethodPost, "/webhook/twilio", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	service.TwilioWebhookHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	select {
	case response := <-service.Responses():
		if response.Body != "quero um orçamento" {
			t.Errorf("unexpected response body %q", response.Body)
		}
		if response.From != "whatsapp:+5511987654321" {
			t.Errorf("unexpected response sender %q", response.From)
		}
	default:
		t.Fatal("expected response to be emitted")
	}
}

func TestTwilioWebhookHandlerRejectsMissingFields(t *testing.T) {
	service := NewTwilioService(twiliowhatsapp.NewMockClient())

	req := httptest.NewRequest(http.MethodPost, "/webhook/twilio", strings.NewReader("From=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	service.TwilioWebhookHandler(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestServiceSinkDispatch(t *testing.T) {
	mock := twiliowhatsapp.NewMockClient()
	service := NewTwilioService(mock)
	sink := NewServiceSink(service)
	ctx := context.Background()

	if err := sink.Emit(ctx, "5511987654321", models.TextMessage("Olá!")); err != nil {
		t.Fatalf("Emit text failed: %v", err)
	}
	if err := sink.Emit(ctx, "5511987654321", models.MediaMessage(models.MessageKindImage, "https://example.com/i.png", "Veja")); err != nil {
		t.Fatalf("Emit media failed: %v", err)
	}
	if err := sink.Emit(ctx, "5511987654321", models.SystemMessage("Atendente a caminho")); err != nil {
		t.Fatalf("Emit system failed: %v", err)
	}

	if len(mock.SentMessages) != 2 {
		t.Errorf("expected 2 text sends, got %d", len(mock.SentMessages))
	}
	if len(mock.MediaMessages) != 1 {
		t.Errorf("expected 1 media send, got %d", len(mock.MediaMessages))
	}
}

func TestServiceSinkTypingDelayPacesDelivery(t *testing.T) {
	mock := twiliowhatsapp.NewMockClient()
	service := NewTwilioService(mock)
	sink := NewServiceSink(service)
	sink.SetTypingDelay(20)
	ctx := context.Background()

	start := time.Now()
	if err := sink.Emit(ctx, "5511987654321", models.TextMessage("um")); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}
	if err := sink.Emit(ctx, "5511987654321", models.TextMessage("dois")); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("expected at least 40ms of pacing across two sends, got %v", elapsed)
	}
	if len(mock.SentMessages) != 2 {
		t.Errorf("expected 2 sends, got %d", len(mock.SentMessages))
	}
}

func TestServiceSinkTypingDelayHonorsCancellation(t *testing.T) {
	mock := twiliowhatsapp.NewMockClient()
	service := NewTwilioService(mock)
	sink := NewServiceSink(service)
	sink.SetTypingDelay(10000)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := sink.Emit(ctx, "5511987654321", models.TextMessage("nunca")); err == nil {
		t.Fatal("expected a context error from a cancelled delivery")
	}
	if len(mock.SentMessages) != 0 {
		t.Errorf("expected no sends after cancellation, got %d", len(mock.SentMessages))
	}
}
