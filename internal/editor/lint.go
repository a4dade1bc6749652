package editor

import (
	"fmt"

	"github.com/ZapDesk/ZapDesk/internal/models"
)

// Warning codes reported by Lint.
const (
	WarnSelfLoop      = "self_loop"
	WarnDanglingNext  = "dangling_next"
	WarnDanglingRoute = "dangling_route"
	WarnSkipWaitCycle = "skip_wait_cycle"
	WarnUnreachable   = "unreachable"
	WarnNoEndStep     = "no_end_step"
	WarnEmptyPrompt   = "empty_prompt"
)

// Warning is a non-fatal finding about a flow graph. The interpreter
// survives all of these at runtime; they flag scripts the author should
// fix before publishing.
type Warning struct {
	StepID  string `json:"step_id,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Lint inspects a flow for likely authoring mistakes: self-loops,
// dangling edge targets, skip-wait chains that never reach an end, and
// steps no edge or fallback can reach.
func Lint(flow *models.Flow) []Warning {
	var warnings []Warning

	hasEnd := false
	for i := range flow.Steps {
		step := &flow.Steps[i]
		if step.Type == models.StepTypeEnd {
			hasEnd = true
		}

		if step.DefaultNext == step.ID {
			warnings = append(warnings, Warning{
				StepID:  step.ID,
				Code:    WarnSelfLoop,
				Message: fmt.Sprintf("step %s points at itself and will loop forever without a matching route", step.ID),
			})
		}
		if step.DefaultNext != "" && step.DefaultNext != models.EndTarget && !flow.HasStep(step.DefaultNext) {
			warnings = append(warnings, Warning{
				StepID:  step.ID,
				Code:    WarnDanglingNext,
				Message: fmt.Sprintf("step %s has a default next pointing at missing step %s", step.ID, step.DefaultNext),
			})
		}
		for _, route := range step.Routes {
			if route.Target != models.EndTarget && !flow.HasStep(route.Target) {
				warnings = append(warnings, Warning{
					StepID:  step.ID,
					Code:    WarnDanglingRoute,
					Message: fmt.Sprintf("step %s has a route %q pointing at missing step %s", step.ID, route.Condition, route.Target),
				})
			}
		}
		if step.Prompt == "" && !step.Type.IsMedia() {
			warnings = append(warnings, Warning{
				StepID:  step.ID,
				Code:    WarnEmptyPrompt,
				Message: fmt.Sprintf("step %s has no prompt text", step.ID),
			})
		}
	}

	if len(flow.Steps) > 0 && !hasEnd {
		warnings = append(warnings, Warning{
			Code:    WarnNoEndStep,
			Message: "flow has no end step; conversations only finish via END edges or timeout",
		})
	}

	warnings = append(warnings, lintSkipWaitCycles(flow)...)
	warnings = append(warnings, lintUnreachable(flow)...)

	return warnings
}

// lintSkipWaitCycles walks the auto-advance chain from every skip-wait
// step. A chain longer than the step count can only mean a cycle of
// skip-wait steps that never reaches END or a waiting step.
func lintSkipWaitCycles(flow *models.Flow) []Warning {
	var warnings []Warning
	for i := range flow.Steps {
		if !flow.Steps[i].SkipWait {
			continue
		}

		current := &flow.Steps[i]
		for hops := 0; hops <= len(flow.Steps); hops++ {
			next := current.DefaultNext
			if next == "" || next == models.EndTarget {
				current = nil
				break
			}
			target := flow.StepByID(next)
			if target == nil || !target.SkipWait {
				current = nil
				break
			}
			current = target
		}
		if current != nil {
			warnings = append(warnings, Warning{
				StepID:  flow.Steps[i].ID,
				Code:    WarnSkipWaitCycle,
				Message: fmt.Sprintf("step %s starts a skip-wait chain that never reaches an end", flow.Steps[i].ID),
			})
		}
	}
	return warnings
}

// lintUnreachable flags steps no edge reaches. The first step is always
// reachable (the interpreter starts there); the linear index fallback is
// not an edge, so a step is reachable only via DefaultNext or a route.
func lintUnreachable(flow *models.Flow) []Warning {
	if len(flow.Steps) == 0 {
		return nil
	}

	reached := map[string]bool{flow.Steps[0].ID: true}
	queue := []string{flow.Steps[0].ID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		step := flow.StepByID(id)
		if step == nil {
			continue
		}
		targets := make([]string, 0, len(step.Routes)+1)
		if step.DefaultNext != "" && step.DefaultNext != models.EndTarget {
			targets = append(targets, step.DefaultNext)
		}
		for _, route := range step.Routes {
			if route.Target != models.EndTarget {
				targets = append(targets, route.Target)
			}
		}
		for _, target := range targets {
			if !reached[target] && flow.HasStep(target) {
				reached[target] = true
				queue = append(queue, target)
			}
		}
	}

	var warnings []Warning
	for i := range flow.Steps {
		if !reached[flow.Steps[i].ID] {
			warnings = append(warnings, Warning{
				StepID:  flow.Steps[i].ID,
				Code:    WarnUnreachable,
				Message: fmt.Sprintf("step %s is not reachable from the first step", flow.Steps[i].ID),
			})
		}
	}
	return warnings
}
