// Package editor provides the mutation operations for ZapDesk flow graphs.
//
// All operations work on an in-memory draft flow; persistence is the
// caller's concern. Edits are synchronous and keep the structural
// invariants of the graph: unique step ids, no dangling edge targets,
// cascading deletes.
package editor

import (
	"fmt"
	"log/slog"

	"github.com/ZapDesk/ZapDesk/internal/models"
	"github.com/google/uuid"
)

// StepPatch carries the updatable fields of a step. Nil fields are left
// untouched by UpdateStep.
type StepPatch struct {
	Prompt      *string                `json:"prompt,omitempty"`
	FieldName   *string                `json:"field_name,omitempty"`
	Validation  *models.ValidationKind `json:"validation,omitempty"`
	ErrorPrompt *string                `json:"error_prompt,omitempty"`
	MediaURL    *string                `json:"media_url,omitempty"`
	SkipWait    *bool                  `json:"skip_wait,omitempty"`
	DefaultNext *string                `json:"default_next,omitempty"`
	Routes      []models.Route         `json:"routes,omitempty"`
	X           *float64               `json:"x,omitempty"`
	Y           *float64               `json:"y,omitempty"`
}

// NewFlow creates an empty flow draft with a fresh id.
func NewFlow(name string) *models.Flow {
	flow := &models.Flow{
		ID:   uuid.NewString(),
		Name: name,
	}
	slog.Debug("editor.NewFlow created", "flowID", flow.ID, "name", name)
	return flow
}

// AddStep appends a step of the given type with type-specific defaults
// and returns it. Step ids come from a unique source so no two steps in
// a flow (or across flows) ever collide.
func AddStep(flow *models.Flow, stepType models.StepType) (*models.Step, error) {
	if !models.IsValidStepType(stepType) {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownStepType, stepType)
	}

	step := defaultStep(stepType)
	step.ID = uuid.NewString()
	flow.Steps = append(flow.Steps, step)
	flow.SyncDerivedTexts()

	slog.Debug("editor.AddStep appended", "flowID", flow.ID, "stepID", step.ID, "type", stepType)
	return &flow.Steps[len(flow.Steps)-1], nil
}

// UpdateStep merges the patch into the step with the given id. Patches
// that would introduce a dangling edge target are rejected.
func UpdateStep(flow *models.Flow, id string, patch StepPatch) error {
	step := flow.StepByID(id)
	if step == nil {
		return fmt.Errorf("%w: %s", models.ErrUnknownStep, id)
	}

	if patch.DefaultNext != nil {
		next := *patch.DefaultNext
		if next != "" && next != models.EndTarget && !flow.HasStep(next) {
			return fmt.Errorf("step %s -> %s: %w", id, next, models.ErrDanglingNext)
		}
	}
	for _, route := range patch.Routes {
		if route.Target == "" {
			return fmt.Errorf("step %s: %w", id, models.ErrEmptyRouteTarget)
		}
		if route.Target != models.EndTarget && !flow.HasStep(route.Target) {
			return fmt.Errorf("step %s -> %s: %w", id, route.Target, models.ErrDanglingRoute)
		}
	}

	if patch.Prompt != nil {
		step.Prompt = *patch.Prompt
	}
	if patch.FieldName != nil {
		step.FieldName = *patch.FieldName
	}
	if patch.Validation != nil {
		if !models.IsValidValidationKind(*patch.Validation) {
			return fmt.Errorf("step %s: invalid validation kind %q", id, *patch.Validation)
		}
		step.Validation = *patch.Validation
	}
	if patch.ErrorPrompt != nil {
		step.ErrorPrompt = *patch.ErrorPrompt
	}
	if patch.MediaURL != nil {
		step.MediaURL = *patch.MediaURL
	}
	if patch.SkipWait != nil {
		step.SkipWait = *patch.SkipWait
	}
	if patch.DefaultNext != nil {
		step.DefaultNext = *patch.DefaultNext
	}
	if patch.Routes != nil {
		step.Routes = patch.Routes
	}
	if patch.X != nil {
		step.X = *patch.X
	}
	if patch.Y != nil {
		step.Y = *patch.Y
	}

	flow.SyncDerivedTexts()
	slog.Debug("editor.UpdateStep merged", "flowID", flow.ID, "stepID", id)
	return nil
}

// DeleteStep removes the step and cascades: every DefaultNext pointing at
// it is cleared and every route aimed at it is removed from its owning
// step. Deleting an unknown id is a no-op.
func DeleteStep(flow *models.Flow, id string) {
	index := flow.StepIndex(id)
	if index < 0 {
		slog.Debug("editor.DeleteStep no-op for unknown id", "flowID", flow.ID, "stepID", id)
		return
	}

	flow.Steps = append(flow.Steps[:index], flow.Steps[index+1:]...)

	for i := range flow.Steps {
		step := &flow.Steps[i]
		if step.DefaultNext == id {
			step.DefaultNext = ""
		}
		if len(step.Routes) == 0 {
			continue
		}
		kept := step.Routes[:0]
		for _, route := range step.Routes {
			if route.Target != id {
				kept = append(kept, route)
			}
		}
		step.Routes = kept
	}

	flow.SyncDerivedTexts()
	slog.Debug("editor.DeleteStep cascaded", "flowID", flow.ID, "stepID", id)
}

// Connect sets the default next edge from source to target. Self-loops
// are syntactically legal; Lint flags them as likely-infinite loops.
func Connect(flow *models.Flow, sourceID, targetID string) error {
	source := flow.StepByID(sourceID)
	if source == nil {
		return fmt.Errorf("%w: %s", models.ErrUnknownStep, sourceID)
	}
	if targetID != models.EndTarget && !flow.HasStep(targetID) {
		return fmt.Errorf("step %s -> %s: %w", sourceID, targetID, models.ErrDanglingNext)
	}
	if source.Type == models.StepTypeEnd {
		return fmt.Errorf("step %s: %w", sourceID, models.ErrEndStepHasNext)
	}

	source.DefaultNext = targetID
	slog.Debug("editor.Connect set default next", "flowID", flow.ID, "source", sourceID, "target", targetID)
	return nil
}

// Disconnect clears the default next edge of the source step.
func Disconnect(flow *models.Flow, sourceID string) error {
	source := flow.StepByID(sourceID)
	if source == nil {
		return fmt.Errorf("%w: %s", models.ErrUnknownStep, sourceID)
	}
	source.DefaultNext = ""
	slog.Debug("editor.Disconnect cleared default next", "flowID", flow.ID, "source", sourceID)
	return nil
}

// AddRoute appends a conditional edge to the source step's route list.
// Order of insertion is evaluation order.
func AddRoute(flow *models.Flow, sourceID string, route models.Route) error {
	source := flow.StepByID(sourceID)
	if source == nil {
		return fmt.Errorf("%w: %s", models.ErrUnknownStep, sourceID)
	}
	if route.Target == "" {
		return fmt.Errorf("step %s: %w", sourceID, models.ErrEmptyRouteTarget)
	}
	if route.Target != models.EndTarget && !flow.HasStep(route.Target) {
		return fmt.Errorf("step %s -> %s: %w", sourceID, route.Target, models.ErrDanglingRoute)
	}
	if source.Type == models.StepTypeEnd {
		return fmt.Errorf("step %s: %w", sourceID, models.ErrEndStepHasNext)
	}

	source.Routes = append(source.Routes, route)
	slog.Debug("editor.AddRoute appended", "flowID", flow.ID, "source", sourceID, "target", route.Target, "condition", route.Condition)
	return nil
}

// RemoveRoute deletes the route at the given position in the source
// step's route list.
func RemoveRoute(flow *models.Flow, sourceID string, index int) error {
	source := flow.StepByID(sourceID)
	if source == nil {
		return fmt.Errorf("%w: %s", models.ErrUnknownStep, sourceID)
	}
	if index < 0 || index >= len(source.Routes) {
		return fmt.Errorf("step %s: route index %d out of range", sourceID, index)
	}

	source.Routes = append(source.Routes[:index], source.Routes[index+1:]...)
	slog.Debug("editor.RemoveRoute deleted", "flowID", flow.ID, "source", sourceID, "index", index)
	return nil
}
