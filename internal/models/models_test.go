package models

import (
	"errors"
	"testing"
)

func twoStepFlow() Flow {
	return Flow{
		ID:   "flow-1",
		Name: "Atendimento",
		Steps: []Step{
			{ID: "s1", Type: StepTypeWelcome, Prompt: "Olá! 👋", SkipWait: true, DefaultNext: "s2"},
			{ID: "s2", Type: StepTypeEnd, Prompt: "Até logo!"},
		},
	}
}

func TestFlowValidate(t *testing.T) {
	f := twoStepFlow()
	if err := f.Validate(); err != nil {
		t.Fatalf("valid flow rejected: %v", err)
	}
}

func TestFlowValidateDuplicateID(t *testing.T) {
	f := twoStepFlow()
	f.Steps = append(f.Steps, Step{ID: "s1", Type: StepTypeQuestion, Prompt: "?"})
	err := f.Validate()
	if !errors.Is(err, ErrDuplicateStepID) {
		t.Errorf("expected ErrDuplicateStepID, got %v", err)
	}
}

func TestFlowValidateDanglingNext(t *testing.T) {
	f := twoStepFlow()
	f.Steps[0].DefaultNext = "missing"
	err := f.Validate()
	if !errors.Is(err, ErrDanglingNext) {
		t.Errorf("expected ErrDanglingNext, got %v", err)
	}
}

func TestFlowValidateDanglingRoute(t *testing.T) {
	f := twoStepFlow()
	f.Steps[0].Routes = []Route{{Condition: "sim", Target: "missing"}}
	err := f.Validate()
	if !errors.Is(err, ErrDanglingRoute) {
		t.Errorf("expected ErrDanglingRoute, got %v", err)
	}
}

func TestFlowValidateEndTargetsAllowed(t *testing.T) {
	f := twoStepFlow()
	f.Steps[0].Routes = []Route{{Condition: "tchau", Target: EndTarget}}
	f.Steps[0].DefaultNext = EndTarget
	if err := f.Validate(); err != nil {
		t.Errorf("END targets should be legal: %v", err)
	}
}

func TestFlowValidateEndStepOutgoing(t *testing.T) {
	f := twoStepFlow()
	f.Steps[1].DefaultNext = "s1"
	err := f.Validate()
	if !errors.Is(err, ErrEndStepHasNext) {
		t.Errorf("expected ErrEndStepHasNext, got %v", err)
	}
}

func TestFlowValidateMediaRequiresURL(t *testing.T) {
	f := twoStepFlow()
	f.Steps = append(f.Steps, Step{ID: "s3", Type: StepTypeImage, Prompt: "veja"})
	err := f.Validate()
	if !errors.Is(err, ErrMissingMediaURL) {
		t.Errorf("expected ErrMissingMediaURL, got %v", err)
	}
}

func TestFieldKeyFallback(t *testing.T) {
	f := twoStepFlow()
	f.Steps[0].FieldName = ""
	if got := f.FieldKey(0); got != "step_0" {
		t.Errorf("expected step_0, got %q", got)
	}
	f.Steps[0].FieldName = "nome_cliente"
	if got := f.FieldKey(0); got != "nome_cliente" {
		t.Errorf("expected nome_cliente, got %q", got)
	}
	if got := f.FieldKey(99); got != "" {
		t.Errorf("out-of-range index should yield empty key, got %q", got)
	}
}

func TestSyncDerivedTexts(t *testing.T) {
	f := twoStepFlow()
	f.SyncDerivedTexts()
	if f.WelcomeText != "Olá! 👋" {
		t.Errorf("welcome text not derived: %q", f.WelcomeText)
	}
	if f.EndText != "Até logo!" {
		t.Errorf("end text not derived: %q", f.EndText)
	}
}

func TestStepWaits(t *testing.T) {
	cases := []struct {
		step Step
		want bool
	}{
		{Step{Type: StepTypeQuestion}, true},
		{Step{Type: StepTypeQuestion, SkipWait: true}, false},
		{Step{Type: StepTypeEnd}, false},
	}
	for _, c := range cases {
		if got := c.step.Waits(); got != c.want {
			t.Errorf("Waits() for %s skipWait=%v: expected %v, got %v", c.step.Type, c.step.SkipWait, c.want, got)
		}
	}
}

func TestCursorLifecycle(t *testing.T) {
	c := NewExecutionCursor("conv-1", "flow-1")
	if c.StepIndex != StepIndexNotStarted {
		t.Fatalf("new cursor should be not started, got %d", c.StepIndex)
	}

	c.Record("nome_cliente", "Maria")
	if c.Data["nome_cliente"] != "Maria" {
		t.Errorf("recorded data missing")
	}

	c.Terminate(OutcomeHandoff)
	if !c.HasEnded || c.StepIndex != StepIndexEnded || c.Outcome != OutcomeHandoff {
		t.Errorf("terminate did not mark cursor ended: %+v", c)
	}

	c.Reset()
	if c.HasEnded || c.StepIndex != StepIndexNotStarted || c.Outcome != "" || len(c.Data) != 0 {
		t.Errorf("reset did not clear cursor: %+v", c)
	}
}

func TestTriggerValidate(t *testing.T) {
	tr := Trigger{ID: "t1", Keywords: []string{"preço"}, Response: "Nossa tabela: ..."}
	if err := tr.Validate(); err != nil {
		t.Fatalf("valid trigger rejected: %v", err)
	}
	tr.Keywords = nil
	if err := tr.Validate(); !errors.Is(err, ErrMissingKeywords) {
		t.Errorf("expected ErrMissingKeywords, got %v", err)
	}
}
