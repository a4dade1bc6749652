// Package models defines keyword trigger structures for ZapDesk.
package models

import "errors"

// Trigger validation errors.
var (
	ErrEmptyTriggerID       = errors.New("trigger id cannot be empty")
	ErrMissingKeywords      = errors.New("trigger requires at least one keyword")
	ErrEmptyTriggerResponse = errors.New("trigger response cannot be empty")
)

// Trigger is a keyword-based rule, separate from the flow graph, that fires
// a canned response regardless of flow position. Keywords are OR'd,
// RequiredWords are AND'd, ExcludedWords veto a match.
type Trigger struct {
	ID            string   `json:"id"`
	Name          string   `json:"name,omitempty"`
	Keywords      []string `json:"keywords"`
	RequiredWords []string `json:"required_words,omitempty"`
	ExcludedWords []string `json:"excluded_words,omitempty"`
	UseFuzzyMatch bool     `json:"use_fuzzy_match,omitempty"`
	Response      string   `json:"response"`
	Enabled       bool     `json:"enabled"`
}

// Validate checks the trigger has the fields required to ever fire.
func (t *Trigger) Validate() error {
	if t.ID == "" {
		return ErrEmptyTriggerID
	}
	if len(t.Keywords) == 0 {
		return ErrMissingKeywords
	}
	if t.Response == "" {
		return ErrEmptyTriggerResponse
	}
	return nil
}

// QuickReply is a labeled canned reply in the dashboard catalog.
// Labels drive the fuzzy suggestion engine.
type QuickReply struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Text  string `json:"text"`
}
