package editor

import (
	"errors"
	"testing"

	"github.com/ZapDesk/ZapDesk/internal/models"
)

func buildFlow(t *testing.T) (*models.Flow, *models.Step, *models.Step, *models.Step) {
	t.Helper()
	flow := NewFlow("Atendimento")
	welcome, err := AddStep(flow, models.StepTypeWelcome)
	if err != nil {
		t.Fatalf("add welcome: %v", err)
	}
	name, err := AddStep(flow, models.StepTypeName)
	if err != nil {
		t.Fatalf("add name: %v", err)
	}
	end, err := AddStep(flow, models.StepTypeEnd)
	if err != nil {
		t.Fatalf("add end: %v", err)
	}
	return flow, welcome, name, end
}

func TestAddStepDefaults(t *testing.T) {
	flow, welcome, name, end := buildFlow(t)

	if !welcome.SkipWait {
		t.Error("welcome step should default to skip wait")
	}
	if name.FieldName != "nome_cliente" {
		t.Errorf("name step should default field nome_cliente, got %q", name.FieldName)
	}
	if end.Prompt == "" {
		t.Error("end step should carry a default farewell prompt")
	}
	if flow.WelcomeText != welcome.Prompt || flow.EndText != end.Prompt {
		t.Error("derived texts not synced after AddStep")
	}

	ids := map[string]bool{}
	for _, s := range flow.Steps {
		if ids[s.ID] {
			t.Fatalf("duplicate generated id %s", s.ID)
		}
		ids[s.ID] = true
	}
}

func TestAddStepUnknownType(t *testing.T) {
	flow := NewFlow("x")
	if _, err := AddStep(flow, "banana"); !errors.Is(err, models.ErrUnknownStepType) {
		t.Errorf("expected ErrUnknownStepType, got %v", err)
	}
}

func TestUpdateStepMerge(t *testing.T) {
	flow, _, name, end := buildFlow(t)

	prompt := "Me diga seu nome completo"
	err := UpdateStep(flow, name.ID, StepPatch{Prompt: &prompt, DefaultNext: &end.ID})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if got := flow.StepByID(name.ID); got.Prompt != prompt || got.DefaultNext != end.ID {
		t.Errorf("patch not merged: %+v", got)
	}
	// Untouched fields survive the merge.
	if got := flow.StepByID(name.ID); got.FieldName != "nome_cliente" {
		t.Errorf("unpatched field changed: %q", got.FieldName)
	}
}

func TestUpdateStepRejectsDangling(t *testing.T) {
	flow, _, name, _ := buildFlow(t)

	missing := "nope"
	err := UpdateStep(flow, name.ID, StepPatch{DefaultNext: &missing})
	if !errors.Is(err, models.ErrDanglingNext) {
		t.Errorf("expected ErrDanglingNext, got %v", err)
	}

	err = UpdateStep(flow, name.ID, StepPatch{Routes: []models.Route{{Condition: "sim", Target: "nope"}}})
	if !errors.Is(err, models.ErrDanglingRoute) {
		t.Errorf("expected ErrDanglingRoute, got %v", err)
	}
}

func TestDeleteStepCascades(t *testing.T) {
	// Hold ids, not *Step pointers: DeleteStep shifts the slice in place
	// and stale pointers would read a neighboring step.
	flow, welcome, name, end := buildFlow(t)
	welcomeID, nameID, endID := welcome.ID, name.ID, end.ID
	extra, err := AddStep(flow, models.StepTypeQuestion)
	if err != nil {
		t.Fatalf("add question: %v", err)
	}
	extraID := extra.ID

	// welcome defaults to name; extra routes to name; end untouched.
	if err := Connect(flow, welcomeID, nameID); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := AddRoute(flow, extraID, models.Route{Condition: "nome", Target: nameID}); err != nil {
		t.Fatalf("add route: %v", err)
	}
	if err := AddRoute(flow, extraID, models.Route{Condition: "fim", Target: endID}); err != nil {
		t.Fatalf("add route: %v", err)
	}

	DeleteStep(flow, nameID)

	if flow.HasStep(nameID) {
		t.Fatal("step not removed")
	}
	if got := flow.StepByID(welcomeID); got.DefaultNext != "" {
		t.Errorf("default next not cleared: %q", got.DefaultNext)
	}
	routes := flow.StepByID(extraID).Routes
	if len(routes) != 1 || routes[0].Target != endID {
		t.Errorf("route cascade wrong: %+v", routes)
	}
	if err := flow.Validate(); err != nil {
		t.Errorf("flow invalid after cascade: %v", err)
	}
}

func TestDeleteStepIdempotent(t *testing.T) {
	flow, _, _, _ := buildFlow(t)
	before := len(flow.Steps)
	DeleteStep(flow, "never-existed")
	DeleteStep(flow, "never-existed")
	if len(flow.Steps) != before {
		t.Errorf("no-op delete changed the flow")
	}
}

func TestConnectDisconnect(t *testing.T) {
	flow, welcome, name, end := buildFlow(t)

	if err := Connect(flow, welcome.ID, name.ID); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if flow.StepByID(welcome.ID).DefaultNext != name.ID {
		t.Error("connect did not set default next")
	}

	// Self-loop is legal at the data-model level.
	if err := Connect(flow, name.ID, name.ID); err != nil {
		t.Errorf("self-loop should be syntactically legal: %v", err)
	}

	if err := Connect(flow, end.ID, name.ID); !errors.Is(err, models.ErrEndStepHasNext) {
		t.Errorf("end step should reject outgoing edge, got %v", err)
	}

	if err := Disconnect(flow, welcome.ID); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if flow.StepByID(welcome.ID).DefaultNext != "" {
		t.Error("disconnect did not clear default next")
	}
}

func TestLintSelfLoopAndUnreachable(t *testing.T) {
	flow, welcome, name, end := buildFlow(t)
	if err := Connect(flow, name.ID, name.ID); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := Connect(flow, welcome.ID, name.ID); err != nil {
		t.Fatalf("connect: %v", err)
	}

	warnings := Lint(flow)
	if !hasWarning(warnings, WarnSelfLoop, name.ID) {
		t.Errorf("expected self-loop warning, got %+v", warnings)
	}
	if !hasWarning(warnings, WarnUnreachable, end.ID) {
		t.Errorf("expected unreachable warning for end step, got %+v", warnings)
	}
}

func TestLintSkipWaitCycle(t *testing.T) {
	flow := NewFlow("loop")
	a, _ := AddStep(flow, models.StepTypeWelcome)
	b, _ := AddStep(flow, models.StepTypeQuestion)
	skip := true
	if err := UpdateStep(flow, b.ID, StepPatch{SkipWait: &skip}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := Connect(flow, a.ID, b.ID); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := Connect(flow, b.ID, a.ID); err != nil {
		t.Fatalf("connect: %v", err)
	}

	warnings := Lint(flow)
	found := false
	for _, w := range warnings {
		if w.Code == WarnSkipWaitCycle {
			found = true
		}
	}
	if !found {
		t.Errorf("expected skip-wait cycle warning, got %+v", warnings)
	}
}

func TestLintCleanFlow(t *testing.T) {
	flow, welcome, name, end := buildFlow(t)
	if err := Connect(flow, welcome.ID, name.ID); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := Connect(flow, name.ID, end.ID); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if warnings := Lint(flow); len(warnings) != 0 {
		t.Errorf("clean flow should lint clean, got %+v", warnings)
	}
}

func hasWarning(warnings []Warning, code, stepID string) bool {
	for _, w := range warnings {
		if w.Code == code && w.StepID == stepID {
			return true
		}
	}
	return false
}
