package genai

import (
	"context"
	"errors"
	"testing"
)

type fakeCompleter struct {
	reply string
	err   error
	sys   string
	user  string
}

func (f *fakeCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.sys = systemPrompt
	f.user = userPrompt
	return f.reply, f.err
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := NewClient(); !errors.Is(err, ErrDisabled) {
		t.Errorf("expected ErrDisabled, got %v", err)
	}
}

func TestDraftStepPrompt(t *testing.T) {
	fake := &fakeCompleter{reply: "Qual é o seu nome? 😊"}
	drafter := NewDrafter(fake)

	text, err := drafter.DraftStepPrompt(context.Background(), "perguntar o nome do cliente")
	if err != nil {
		t.Fatalf("DraftStepPrompt failed: %v", err)
	}
	if text != "Qual é o seu nome? 😊" {
		t.Errorf("unexpected draft %q", text)
	}
	if fake.sys == "" || fake.user == "" {
		t.Error("expected system and user prompts to be set")
	}

	if _, err := drafter.DraftStepPrompt(context.Background(), "  "); err == nil {
		t.Error("expected error for empty purpose")
	}
}

func TestDraftErrorPrompt(t *testing.T) {
	fake := &fakeCompleter{reply: "Ops! Esse e-mail não parece válido, pode conferir?"}
	drafter := NewDrafter(fake)

	text, err := drafter.DraftErrorPrompt(context.Background(), "e-mail")
	if err != nil {
		t.Fatalf("DraftErrorPrompt failed: %v", err)
	}
	if text == "" {
		t.Error("expected non-empty draft")
	}
}

func TestDrafterDisabledWithoutCompleter(t *testing.T) {
	drafter := NewDrafter(nil)
	if _, err := drafter.DraftStepPrompt(context.Background(), "x"); !errors.Is(err, ErrDisabled) {
		t.Errorf("expected ErrDisabled, got %v", err)
	}
}

func TestDrafterPropagatesErrors(t *testing.T) {
	fake := &fakeCompleter{err: errors.New("rate limited")}
	drafter := NewDrafter(fake)
	if _, err := drafter.DraftStepPrompt(context.Background(), "x"); err == nil {
		t.Error("expected error to propagate")
	}
}
