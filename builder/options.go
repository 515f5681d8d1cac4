package builder

import flowengine "github.com/queryflow/flowengine"

// StepOption is a functional option for configuring a step added through
// the builder
type StepOption func(*flowengine.WorkflowStep)

// WithStepDescription sets the step description
func WithStepDescription(description string) StepOption {
	return func(s *flowengine.WorkflowStep) {
		s.Description = description
	}
}

// WithConfig sets the full handler configuration map for the step
func WithConfig(config map[string]any) StepOption {
	return func(s *flowengine.WorkflowStep) {
		s.Config = config
	}
}

// WithConfigValue sets a single handler configuration key
func WithConfigValue(key string, value any) StepOption {
	return func(s *flowengine.WorkflowStep) {
		if s.Config == nil {
			s.Config = map[string]any{}
		}
		s.Config[key] = value
	}
}

// WithOrder sets an explicit order index, overriding insertion order
func WithOrder(order int) StepOption {
	return func(s *flowengine.WorkflowStep) {
		s.Order = order
	}
}

// StepDisabled marks the step as disabled; the engine records it as
// skipped without invoking its handler
func StepDisabled() StepOption {
	return func(s *flowengine.WorkflowStep) {
		s.Enabled = false
	}
}
