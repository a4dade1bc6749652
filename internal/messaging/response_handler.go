// Package messaging provides response handling functionality for inbound messages.
package messaging

import (
	"context"
	"log/slog"

	"github.com/ZapDesk/ZapDesk/internal/fuzzy"
	"github.com/ZapDesk/ZapDesk/internal/models"
)

// FlowRouter is the slice of the flow engine the response handler needs:
// it reports whether a live session consumed the message.
type FlowRouter interface {
	HandleIncoming(ctx context.Context, conversationID, text string) (bool, error)
}

// TriggerSource supplies the keyword triggers and quick reply catalog
// consulted when no session consumes a message.
type TriggerSource interface {
	ListTriggers() ([]models.Trigger, error)
	ListQuickReplies() ([]models.QuickReply, error)
	GetSettings() (models.Settings, error)
}

// ResponseHandler routes incoming customer messages: an active flow
// session gets first claim, then keyword triggers, then a fuzzy quick
// reply suggestion, then the default message.
type ResponseHandler struct {
	msgService     Service
	router         FlowRouter
	source         TriggerSource
	defaultMessage string
}

// NewResponseHandler creates a new ResponseHandler.
func NewResponseHandler(msgService Service, router FlowRouter, source TriggerSource) *ResponseHandler {
	return &ResponseHandler{
		msgService:     msgService,
		router:         router,
		source:         source,
		defaultMessage: "Recebemos sua mensagem! Em breve alguém vai te responder. 🙌",
	}
}

// SetDefaultMessage overrides the fallback reply.
func (rh *ResponseHandler) SetDefaultMessage(message string) {
	rh.defaultMessage = message
}

// Start consumes the service's response channel until the context is
// cancelled or the channel closes.
func (rh *ResponseHandler) Start(ctx context.Context) {
	slog.Info("ResponseHandler starting")
	go func() {
		for {
			select {
			case <-ctx.Done():
				slog.Info("ResponseHandler stopping due to context cancellation")
				return
			case response, ok := <-rh.msgService.Responses():
				if !ok {
					slog.Info("ResponseHandler stopping, responses channel closed")
					return
				}
				if err := rh.ProcessResponse(ctx, response); err != nil {
					slog.Error("ResponseHandler failed to process response", "error", err, "from", response.From)
				}
			}
		}
	}()
}

// ProcessResponse routes one inbound message.
func (rh *ResponseHandler) ProcessResponse(ctx context.Context, response models.Response) error {
	from, err := rh.msgService.ValidateAndCanonicalizeRecipient(response.From)
	if err != nil {
		slog.Warn("ResponseHandler dropping response with invalid sender", "from", response.From, "error", err)
		return nil
	}

	slog.Debug("ResponseHandler processing response", "from", from, "body_length", len(response.Body))

	if rh.router != nil {
		consumed, err := rh.router.HandleIncoming(ctx, from, response.Body)
		if err != nil {
			return err
		}
		if consumed {
			slog.Debug("ResponseHandler message consumed by flow session", "from", from)
			return nil
		}
	}

	if reply, ok := rh.matchTrigger(response.Body); ok {
		slog.Info("ResponseHandler trigger matched", "from", from)
		return rh.msgService.SendMessage(ctx, from, reply)
	}

	if reply, ok := rh.suggestReply(response.Body); ok {
		slog.Info("ResponseHandler quick reply suggestion matched", "from", from)
		return rh.msgService.SendMessage(ctx, from, reply)
	}

	if rh.defaultMessage == "" {
		return nil
	}
	slog.Debug("ResponseHandler sending default message", "from", from)
	return rh.msgService.SendMessage(ctx, from, rh.defaultMessage)
}

// matchTrigger returns the response of the first enabled trigger whose
// rules match the message.
func (rh *ResponseHandler) matchTrigger(body string) (string, bool) {
	if rh.source == nil {
		return "", false
	}
	triggers, err := rh.source.ListTriggers()
	if err != nil {
		slog.Error("ResponseHandler failed to list triggers", "error", err)
		return "", false
	}
	for _, trigger := range triggers {
		if fuzzy.MatchTrigger(trigger, body) {
			return trigger.Response, true
		}
	}
	return "", false
}

// suggestReply looks up a close quick reply for the message.
func (rh *ResponseHandler) suggestReply(body string) (string, bool) {
	if rh.source == nil {
		return "", false
	}
	catalog, err := rh.source.ListQuickReplies()
	if err != nil {
		slog.Error("ResponseHandler failed to list quick replies", "error", err)
		return "", false
	}
	settings, err := rh.source.GetSettings()
	if err != nil {
		settings = models.DefaultSettings()
	}
	if match := fuzzy.Suggest(catalog, body, settings.SuggestionSensitivity); match != nil {
		return match.Text, true
	}
	return "", false
}
