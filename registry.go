package flowengine

import (
	"fmt"
	"sort"
	"sync"
)

// StepHandler is the pluggable function implementing a step type's behavior.
// Handlers may read and write run variables through the StepContext and must
// tolerate re-invocation: a failed attempt can be retried.
type StepHandler func(ctx *StepContext, step WorkflowStep) (any, error)

// Registry maps a step-type identifier to its handler. It is the
// extensibility point for new step kinds and is constructed explicitly at
// process start rather than living in package-level state.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]StepHandler
}

// NewRegistry creates an empty step processor registry
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]StepHandler),
	}
}

// Register binds a handler to a step type. Re-registering a type replaces the
// previous handler.
func (r *Registry) Register(stepType string, handler StepHandler) error {
	if stepType == "" {
		return NewWorkflowError(ErrCodeValidation, "step type must not be empty")
	}
	if handler == nil {
		return NewWorkflowError(ErrCodeValidation, fmt.Sprintf("handler for step type %s must not be nil", stepType))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[stepType] = handler

	return nil
}

// Resolve returns the handler for a step type. An unregistered type yields an
// error with code UNKNOWN_STEP_TYPE; this is fatal for the step that asked,
// not for the registry.
func (r *Registry) Resolve(stepType string) (StepHandler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handler, exists := r.handlers[stepType]
	if !exists {
		return nil, NewUnknownStepTypeError(stepType)
	}
	return handler, nil
}

// Has reports whether a handler is registered for the step type
func (r *Registry) Has(stepType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.handlers[stepType]
	return exists
}

// Types returns all registered step types in sorted order
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.handlers))
	for stepType := range r.handlers {
		types = append(types, stepType)
	}
	sort.Strings(types)

	return types
}
