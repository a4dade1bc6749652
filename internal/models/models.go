// Package models defines message and API types shared across ZapDesk modules.
package models

// MessageKind classifies an outbound bot message.
type MessageKind string

const (
	MessageKindText     MessageKind = "text"
	MessageKindImage    MessageKind = "image"
	MessageKindVideo    MessageKind = "video"
	MessageKindAudio    MessageKind = "audio"
	MessageKindDocument MessageKind = "document"
	// MessageKindSystem marks notices such as the handoff warning.
	MessageKindSystem MessageKind = "system"
)

// BotMessage is one outbound bot turn handed to the delivery sink.
type BotMessage struct {
	Text     string      `json:"text,omitempty"`
	Kind     MessageKind `json:"kind"`
	MediaURL string      `json:"media_url,omitempty"`
}

// TextMessage builds a plain text bot message.
func TextMessage(text string) BotMessage {
	return BotMessage{Text: text, Kind: MessageKindText}
}

// MediaMessage builds a media bot message with an optional caption.
func MediaMessage(kind MessageKind, url, caption string) BotMessage {
	return BotMessage{Text: caption, Kind: kind, MediaURL: url}
}

// SystemMessage builds a system notice message.
func SystemMessage(text string) BotMessage {
	return BotMessage{Text: text, Kind: MessageKindSystem}
}

// MediaMessageKind maps a media step type to its outbound message kind.
func MediaMessageKind(st StepType) MessageKind {
	switch st {
	case StepTypeImage:
		return MessageKindImage
	case StepTypeVideo:
		return MessageKindVideo
	case StepTypeAudio:
		return MessageKindAudio
	case StepTypeDocument:
		return MessageKindDocument
	default:
		return MessageKindText
	}
}

// StatusType represents the delivery status of a message.
type StatusType string

const (
	StatusTypeSent      StatusType = "sent"
	StatusTypeDelivered StatusType = "delivered"
	StatusTypeRead      StatusType = "read"
	StatusTypeFailed    StatusType = "failed"
)

// Receipt records a delivery status event for an outbound message.
type Receipt struct {
	To     string     `json:"to"`
	Status StatusType `json:"status"`
	Time   int64      `json:"time"`
}

// Response represents an incoming message from a conversation participant.
type Response struct {
	From string `json:"from"`
	Body string `json:"body"`
	Time int64  `json:"time"`
}

// Settings holds host-level knobs the interpreter consults.
type Settings struct {
	// AutoHandoffSeconds is the global inactivity timeout. Values <= 0
	// disable the timer for steps that do not override it.
	AutoHandoffSeconds int `json:"auto_handoff_seconds"`
	// AutoHandoffMessage is the notice sent when a conversation times out.
	AutoHandoffMessage string `json:"auto_handoff_message"`
	// TypingDelayMs paces outbound messages before each emit.
	TypingDelayMs int `json:"typing_delay_ms"`
	// SuggestionSensitivity is the max edit distance for reply suggestions.
	SuggestionSensitivity int `json:"suggestion_sensitivity"`
}

// DefaultSettings returns the settings used when the host configures nothing.
func DefaultSettings() Settings {
	return Settings{
		AutoHandoffSeconds:    300,
		AutoHandoffMessage:    "Um de nossos atendentes vai continuar essa conversa. 👩‍💻",
		TypingDelayMs:         0,
		SuggestionSensitivity: 2,
	}
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// SuccessWithMessage creates a successful API response with a message.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Message: message, Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}
