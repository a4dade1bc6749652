// Package genai provides AI-assisted copywriting for flow authors using
// the OpenAI API.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ErrDisabled is returned when no API key is configured.
var ErrDisabled = errors.New("genai client disabled: no API key configured")

const draftSystemPrompt = "Você escreve mensagens curtas e simpáticas para um chatbot de atendimento " +
	"no WhatsApp de pequenos negócios brasileiros. Responda apenas com o texto da mensagem, " +
	"sem aspas e sem explicações. Use no máximo duas frases."

// Completer is the slice of the OpenAI client the drafting helpers use.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Client wraps the OpenAI chat completion API.
type Client struct {
	client openai.Client
	model  openai.ChatModel
}

// NewClient initializes a GenAI client using the OPENAI_API_KEY
// environment variable.
func NewClient() (*Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, ErrDisabled
	}
	return &Client{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  openai.ChatModelGPT4oMini,
	}, nil
}

// Complete runs one chat completion and returns the assistant text.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
	})
	if err != nil {
		slog.Error("GenAI completion failed", "error", err)
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Drafter produces suggested prompt copy for flow steps.
type Drafter struct {
	completer Completer
}

// NewDrafter creates a Drafter on top of a Completer.
func NewDrafter(completer Completer) *Drafter {
	return &Drafter{completer: completer}
}

// DraftStepPrompt suggests the message a step should send, given the
// step's purpose described by the author.
func (d *Drafter) DraftStepPrompt(ctx context.Context, purpose string) (string, error) {
	if d.completer == nil {
		return "", ErrDisabled
	}
	if strings.TrimSpace(purpose) == "" {
		return "", fmt.Errorf("purpose cannot be empty")
	}
	user := fmt.Sprintf("Escreva a mensagem que o bot envia nesta etapa do fluxo: %s", purpose)
	text, err := d.completer.Complete(ctx, draftSystemPrompt, user)
	if err != nil {
		return "", err
	}
	slog.Debug("GenAI drafted step prompt", "purpose_length", len(purpose), "draft_length", len(text))
	return text, nil
}

// DraftErrorPrompt suggests the retry message sent when a reply fails
// validation.
func (d *Drafter) DraftErrorPrompt(ctx context.Context, fieldDescription string) (string, error) {
	if d.completer == nil {
		return "", ErrDisabled
	}
	if strings.TrimSpace(fieldDescription) == "" {
		return "", fmt.Errorf("field description cannot be empty")
	}
	user := fmt.Sprintf("Escreva uma mensagem educada pedindo para o cliente tentar de novo, "+
		"porque a resposta não parece ser um(a) %s válido(a).", fieldDescription)
	text, err := d.completer.Complete(ctx, draftSystemPrompt, user)
	if err != nil {
		return "", err
	}
	return text, nil
}
