package builder

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	flowengine "github.com/queryflow/flowengine"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateDefinition performs struct-level validation on a workflow
// definition and its steps
func ValidateDefinition(def *flowengine.WorkflowDefinition) error {
	if err := validate.Struct(def); err != nil {
		return fmt.Errorf("definition validation failed: %w", err)
	}
	return nil
}

// ValidateStep performs struct-level validation on a single step
func ValidateStep(step flowengine.WorkflowStep) error {
	if err := validate.Struct(step); err != nil {
		return fmt.Errorf("step validation failed: %w", err)
	}
	return nil
}

// ValidateStepTypes ensures every enabled step's type is registered
func ValidateStepTypes(def *flowengine.WorkflowDefinition, registry *flowengine.Registry) error {
	for _, step := range def.EnabledSteps() {
		if !registry.Has(step.Type) {
			return fmt.Errorf("step %s uses unregistered type %s", step.ID, step.Type)
		}
	}
	return nil
}
