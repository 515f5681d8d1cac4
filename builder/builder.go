// Package builder provides a fluent API for assembling workflow
// definitions before handing them to the engine.
package builder

import (
	"fmt"
	"time"

	flowengine "github.com/queryflow/flowengine"
)

// DefinitionBuilder provides a fluent API for building workflow definitions
type DefinitionBuilder struct {
	definition *flowengine.WorkflowDefinition
	nextOrder  int
}

// NewDefinition creates a new definition builder
func NewDefinition(id, name string) *DefinitionBuilder {
	now := time.Now()
	return &DefinitionBuilder{
		definition: &flowengine.WorkflowDefinition{
			ID:        id,
			Name:      name,
			Trigger:   flowengine.TriggerManual,
			Steps:     []flowengine.WorkflowStep{},
			Enabled:   true,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

// WithDescription sets the workflow description
func (b *DefinitionBuilder) WithDescription(description string) *DefinitionBuilder {
	b.definition.Description = description
	return b
}

// WithTrigger sets the workflow trigger kind
func (b *DefinitionBuilder) WithTrigger(trigger flowengine.TriggerKind) *DefinitionBuilder {
	b.definition.Trigger = trigger
	return b
}

// Disabled marks the workflow as disabled
func (b *DefinitionBuilder) Disabled() *DefinitionBuilder {
	b.definition.Enabled = false
	return b
}

// Step appends a step to the definition. Steps execute in the order they
// are added unless an explicit order is set via WithOrder.
func (b *DefinitionBuilder) Step(id, stepType, name string, opts ...StepOption) *DefinitionBuilder {
	step := flowengine.WorkflowStep{
		ID:      id,
		Type:    stepType,
		Name:    name,
		Config:  map[string]any{},
		Enabled: true,
		Order:   b.nextOrder,
	}
	b.nextOrder++

	for _, opt := range opts {
		opt(&step)
	}

	b.definition.Steps = append(b.definition.Steps, step)
	return b
}

// Sequence appends multiple steps of the same type in order
func (b *DefinitionBuilder) Sequence(stepType string, ids ...string) *DefinitionBuilder {
	for _, id := range ids {
		b.Step(id, stepType, id)
	}
	return b
}

// Build finalizes and validates the definition
func (b *DefinitionBuilder) Build() (*flowengine.WorkflowDefinition, error) {
	if err := b.definition.Validate(); err != nil {
		return nil, fmt.Errorf("invalid workflow definition: %w", err)
	}
	if err := ValidateDefinition(b.definition); err != nil {
		return nil, fmt.Errorf("invalid workflow definition: %w", err)
	}
	return b.definition, nil
}

// MustBuild finalizes and validates the definition, panics on error
func (b *DefinitionBuilder) MustBuild() *flowengine.WorkflowDefinition {
	def, err := b.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to build workflow definition: %v", err))
	}
	return def
}
