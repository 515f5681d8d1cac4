package flowengine

import (
	"fmt"
	"sort"
)

// Step retrieves a step by ID
func (d *WorkflowDefinition) Step(stepID string) (WorkflowStep, error) {
	for _, step := range d.Steps {
		if step.ID == stepID {
			return step, nil
		}
	}
	return WorkflowStep{}, fmt.Errorf("step %s not found in workflow %s", stepID, d.ID)
}

// OrderedSteps returns all steps sorted by order index ascending. The sort is
// stable: steps sharing an order value keep their declared position.
func (d *WorkflowDefinition) OrderedSteps() []WorkflowStep {
	steps := make([]WorkflowStep, len(d.Steps))
	copy(steps, d.Steps)
	sort.SliceStable(steps, func(i, j int) bool {
		return steps[i].Order < steps[j].Order
	})
	return steps
}

// EnabledSteps returns the ordered steps that are enabled
func (d *WorkflowDefinition) EnabledSteps() []WorkflowStep {
	var enabled []WorkflowStep
	for _, step := range d.OrderedSteps() {
		if step.Enabled {
			enabled = append(enabled, step)
		}
	}
	return enabled
}

// Validate performs structural checks the engine relies on before a run
func (d *WorkflowDefinition) Validate() error {
	if d.ID == "" {
		return NewWorkflowError(ErrCodeValidation, "workflow definition has no id")
	}
	if len(d.Steps) == 0 {
		return NewWorkflowError(ErrCodeValidation, "workflow definition has no steps")
	}

	seen := make(map[string]bool, len(d.Steps))
	for _, step := range d.Steps {
		if step.ID == "" {
			return NewWorkflowError(ErrCodeValidation, fmt.Sprintf("step %q has no id", step.Name))
		}
		if step.Type == "" {
			return NewWorkflowErrorWithStep(ErrCodeValidation, "step has no type", step.ID)
		}
		if seen[step.ID] {
			return NewWorkflowErrorWithStep(ErrCodeValidation, "duplicate step id", step.ID)
		}
		seen[step.ID] = true
	}

	return nil
}
