package twiliowhatsapp

import (
	"context"
	"testing"
)

func TestNewClientRequiresCredentials(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("TWILIO_FROM_NUMBER", "")

	if _, err := NewClient(); err == nil {
		t.Error("expected error without credentials")
	}

	if _, err := NewClient(WithAccountSID("AC123"), WithAuthToken("token")); err == nil {
		t.Error("expected error without from number")
	}

	client, err := NewClient(WithAccountSID("AC123"), WithAuthToken("token"), WithFromWhats("whatsapp:+5511999990000"))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if client.fromWhats != "whatsapp:+5511999990000" {
		t.Errorf("unexpected from number %q", client.fromWhats)
	}
}

func TestNewClientFromEnvironment(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "AC456")
	t.Setenv("TWILIO_AUTH_TOKEN", "secret")
	t.Setenv("TWILIO_FROM_NUMBER", "whatsapp:+5511888880000")

	client, err := NewClient()
	if err != nil {
		t.Fatalf("NewClient from env failed: %v", err)
	}
	if client.fromWhats != "whatsapp:+5511888880000" {
		t.Errorf("unexpected from number %q", client.fromWhats)
	}
}

func TestMockClientRecordsMessages(t *testing.T) {
	mock := NewMockClient()
	ctx := context.Background()

	if err := mock.SendMessage(ctx, "+5511999990000", "Olá!"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if err := mock.SendMediaMessage(ctx, "+5511999990000", "Catálogo", "https://example.com/c.png"); err != nil {
		t.Fatalf("SendMediaMessage failed: %v", err)
	}

	if len(mock.SentMessages) != 1 || mock.SentMessages[0].Body != "Olá!" {
		t.Errorf("unexpected sent messages: %+v", mock.SentMessages)
	}
	if len(mock.MediaMessages) != 1 || mock.MediaMessages[0].MediaURL != "https://example.com/c.png" {
		t.Errorf("unexpected media messages: %+v", mock.MediaMessages)
	}
}
