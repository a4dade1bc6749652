// Package models defines the core data structures for ZapDesk.
//
// It includes the conversation-flow graph (steps, routes), per-conversation
// execution cursors, keyword triggers, and message types shared across modules.
package models

import (
	"errors"
	"fmt"
	"time"
)

// StepType identifies what a flow step asks for or sends.
type StepType string

const (
	// StepTypeWelcome is the greeting step a flow starts from.
	StepTypeWelcome StepType = "welcome"
	// StepTypeName asks for the customer's name.
	StepTypeName StepType = "name"
	// StepTypeEmail asks for an email address.
	StepTypeEmail StepType = "email"
	// StepTypePhone asks for a phone number.
	StepTypePhone StepType = "phone"
	// StepTypeDate asks for a date.
	StepTypeDate StepType = "date"
	// StepTypeMenu presents a set of options routed via Routes.
	StepTypeMenu StepType = "menu"
	// StepTypeLocation asks for an address or location.
	StepTypeLocation StepType = "location"
	// StepTypeQuestion asks a free-form question.
	StepTypeQuestion StepType = "question"
	// StepTypeCustom is an author-defined step with no preset behavior.
	StepTypeCustom StepType = "custom"
	// StepTypeImage sends an image with an optional caption.
	StepTypeImage StepType = "image"
	// StepTypeVideo sends a video with an optional caption.
	StepTypeVideo StepType = "video"
	// StepTypeAudio sends an audio clip.
	StepTypeAudio StepType = "audio"
	// StepTypeDocument sends a document attachment.
	StepTypeDocument StepType = "document"
	// StepTypeEnd closes the conversation.
	StepTypeEnd StepType = "end"
)

// ValidationKind selects how a reply to a step is validated.
type ValidationKind string

const (
	ValidationNone   ValidationKind = "none"
	ValidationEmail  ValidationKind = "email"
	ValidationPhone  ValidationKind = "phone"
	ValidationNumber ValidationKind = "number"
	ValidationDate   ValidationKind = "date"
)

// EndTarget is the sentinel edge target that terminates a flow.
const EndTarget = "END"

// Cursor step index sentinels.
const (
	// StepIndexNotStarted marks a cursor that has not entered the flow yet.
	StepIndexNotStarted = -1
	// StepIndexEnded marks a cursor whose conversation has terminated.
	StepIndexEnded = -99
)

// Error variables for flow graph validation.
var (
	ErrEmptyFlowID       = errors.New("flow id cannot be empty")
	ErrDuplicateStepID   = errors.New("duplicate step id in flow")
	ErrUnknownStepType   = errors.New("unknown step type")
	ErrUnknownStep       = errors.New("step not found in flow")
	ErrDanglingNext      = errors.New("default next references a step that does not exist")
	ErrDanglingRoute     = errors.New("route references a step that does not exist")
	ErrEndStepHasNext    = errors.New("end step cannot have an outgoing edge")
	ErrMissingMediaURL   = errors.New("media step requires a media URL")
	ErrEmptyRouteTarget  = errors.New("route target cannot be empty")
	ErrEmptyQuickReplyID = errors.New("quick reply id cannot be empty")
)

// IsValidStepType checks if the given step type is supported.
func IsValidStepType(st StepType) bool {
	switch st {
	case StepTypeWelcome, StepTypeName, StepTypeEmail, StepTypePhone, StepTypeDate,
		StepTypeMenu, StepTypeLocation, StepTypeQuestion, StepTypeCustom,
		StepTypeImage, StepTypeVideo, StepTypeAudio, StepTypeDocument, StepTypeEnd:
		return true
	default:
		return false
	}
}

// IsMedia reports whether the step type carries a media attachment.
func (st StepType) IsMedia() bool {
	switch st {
	case StepTypeImage, StepTypeVideo, StepTypeAudio, StepTypeDocument:
		return true
	default:
		return false
	}
}

// IsValidValidationKind checks if the given validation kind is supported.
func IsValidValidationKind(vk ValidationKind) bool {
	switch vk {
	case "", ValidationNone, ValidationEmail, ValidationPhone, ValidationNumber, ValidationDate:
		return true
	default:
		return false
	}
}

// Route is a conditional edge tested against the user's last reply.
// Evaluation is first-match-wins in slice order.
type Route struct {
	Condition string `json:"condition"` // case-insensitive substring of the reply
	Target    string `json:"target"`    // step id or EndTarget
}

// Step is a node in the flow graph: one bot turn, optionally waiting for input.
type Step struct {
	ID          string         `json:"id"`
	Type        StepType       `json:"type"`
	Prompt      string         `json:"prompt"`                 // text sent to the user; caption for media steps
	FieldName   string         `json:"field_name,omitempty"`   // key the answer is stored under; step_<index> when blank
	Validation  ValidationKind `json:"validation,omitempty"`   // how the reply is checked
	ErrorPrompt string         `json:"error_prompt,omitempty"` // re-sent on validation failure
	MediaURL    string         `json:"media_url,omitempty"`    // set only for media steps
	MediaKind   StepType       `json:"media_kind,omitempty"`   // image, video, audio or document
	SkipWait    bool           `json:"skip_wait,omitempty"`    // informational step, advance automatically
	DefaultNext string         `json:"default_next,omitempty"` // step id, EndTarget, or empty
	Routes      []Route        `json:"routes,omitempty"`       // ordered conditional edges

	// Canvas layout metadata. Opaque to editor and interpreter logic.
	X float64 `json:"x,omitempty"`
	Y float64 `json:"y,omitempty"`
}

// Waits reports whether the interpreter should wait for a reply after
// announcing the step. End steps never wait.
func (s *Step) Waits() bool {
	return !s.SkipWait && s.Type != StepTypeEnd
}

// Flow is a chatbot script: a directed graph of steps with conditional routes.
type Flow struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Steps []Step `json:"steps"`

	// Derived convenience copies of the welcome/end step prompts.
	WelcomeText string `json:"welcome_text,omitempty"`
	EndText     string `json:"end_text,omitempty"`

	// InactivityTimeoutSeconds overrides the global handoff timeout when > 0.
	InactivityTimeoutSeconds int `json:"inactivity_timeout_seconds,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// StepByID returns the step with the given id, or nil if absent.
func (f *Flow) StepByID(id string) *Step {
	for i := range f.Steps {
		if f.Steps[i].ID == id {
			return &f.Steps[i]
		}
	}
	return nil
}

// StepIndex returns the position of the step with the given id, or -1.
func (f *Flow) StepIndex(id string) int {
	for i := range f.Steps {
		if f.Steps[i].ID == id {
			return i
		}
	}
	return -1
}

// HasStep reports whether a step with the given id exists in the flow.
func (f *Flow) HasStep(id string) bool {
	return f.StepIndex(id) >= 0
}

// FieldKey returns the data key a reply to step i is recorded under.
func (f *Flow) FieldKey(i int) string {
	if i < 0 || i >= len(f.Steps) {
		return ""
	}
	if name := f.Steps[i].FieldName; name != "" {
		return name
	}
	return fmt.Sprintf("step_%d", i)
}

// SyncDerivedTexts refreshes WelcomeText and EndText from the first
// welcome/end typed steps. Call after any mutation that touches prompts.
func (f *Flow) SyncDerivedTexts() {
	f.WelcomeText = ""
	f.EndText = ""
	for i := range f.Steps {
		switch f.Steps[i].Type {
		case StepTypeWelcome:
			if f.WelcomeText == "" {
				f.WelcomeText = f.Steps[i].Prompt
			}
		case StepTypeEnd:
			if f.EndText == "" {
				f.EndText = f.Steps[i].Prompt
			}
		}
	}
}

// Validate performs structural validation on the flow graph.
// Cycles and unreachable steps are legal; dangling references are not.
func (f *Flow) Validate() error {
	if f.ID == "" {
		return ErrEmptyFlowID
	}

	seen := make(map[string]bool, len(f.Steps))
	for i := range f.Steps {
		step := &f.Steps[i]
		if !IsValidStepType(step.Type) {
			return fmt.Errorf("step %s: %w: %s", step.ID, ErrUnknownStepType, step.Type)
		}
		if !IsValidValidationKind(step.Validation) {
			return fmt.Errorf("step %s: invalid validation kind %q", step.ID, step.Validation)
		}
		if seen[step.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicateStepID, step.ID)
		}
		seen[step.ID] = true
		if step.Type.IsMedia() && step.MediaURL == "" {
			return fmt.Errorf("step %s: %w", step.ID, ErrMissingMediaURL)
		}
	}

	for i := range f.Steps {
		step := &f.Steps[i]
		if step.Type == StepTypeEnd && (step.DefaultNext != "" || len(step.Routes) > 0) {
			return fmt.Errorf("step %s: %w", step.ID, ErrEndStepHasNext)
		}
		if step.DefaultNext != "" && step.DefaultNext != EndTarget && !seen[step.DefaultNext] {
			return fmt.Errorf("step %s -> %s: %w", step.ID, step.DefaultNext, ErrDanglingNext)
		}
		for _, route := range step.Routes {
			if route.Target == "" {
				return fmt.Errorf("step %s: %w", step.ID, ErrEmptyRouteTarget)
			}
			if route.Target != EndTarget && !seen[route.Target] {
				return fmt.Errorf("step %s -> %s: %w", step.ID, route.Target, ErrDanglingRoute)
			}
		}
	}

	return nil
}
