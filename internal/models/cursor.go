// Package models defines execution cursor structures for ZapDesk flows.
package models

import "time"

// Outcome records how a conversation's flow run ended.
type Outcome string

const (
	// OutcomeCompleted indicates the flow reached an end step normally.
	OutcomeCompleted Outcome = "completed"
	// OutcomeHandoff indicates the conversation timed out and was handed
	// to a human agent.
	OutcomeHandoff Outcome = "handoff"
)

// ExecutionCursor is the per-conversation execution position plus collected
// answers. It is created when a conversation starts a flow and mutated
// exclusively by the interpreter.
type ExecutionCursor struct {
	ConversationID string            `json:"conversation_id"`
	FlowID         string            `json:"flow_id"`
	StepIndex      int               `json:"step_index"` // StepIndexNotStarted, 0..n-1, or StepIndexEnded
	Data           map[string]string `json:"data,omitempty"`
	HasEnded       bool              `json:"has_ended"`
	Outcome        Outcome           `json:"outcome,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// NewExecutionCursor creates a cursor positioned before the first step.
func NewExecutionCursor(conversationID, flowID string) ExecutionCursor {
	now := time.Now()
	return ExecutionCursor{
		ConversationID: conversationID,
		FlowID:         flowID,
		StepIndex:      StepIndexNotStarted,
		Data:           make(map[string]string),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Record stores a collected answer under the given field key.
func (c *ExecutionCursor) Record(field, value string) {
	if c.Data == nil {
		c.Data = make(map[string]string)
	}
	c.Data[field] = value
	c.UpdatedAt = time.Now()
}

// Terminate marks the cursor as ended with the given outcome.
func (c *ExecutionCursor) Terminate(outcome Outcome) {
	c.StepIndex = StepIndexEnded
	c.HasEnded = true
	c.Outcome = outcome
	c.UpdatedAt = time.Now()
}

// Reset returns the cursor to the not-started position, discarding
// collected data and any previous outcome.
func (c *ExecutionCursor) Reset() {
	c.StepIndex = StepIndexNotStarted
	c.Data = make(map[string]string)
	c.HasEnded = false
	c.Outcome = ""
	c.UpdatedAt = time.Now()
}
