// Package steps provides the built-in step handlers: schema validation, data
// migration, performance check, backup and notification. Handlers validate
// their own configuration, simulate their domain action and are safe to
// re-invoke on retry.
package steps

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	flowengine "github.com/queryflow/flowengine"
)

// Built-in step type identifiers
const (
	TypeSchemaValidation = "schema_validation"
	TypeDataMigration    = "data_migration"
	TypePerformanceCheck = "performance_check"
	TypeBackup           = "backup"
	TypeNotification     = "notification"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// RegisterBuiltins registers every built-in handler on the registry
func RegisterBuiltins(r *flowengine.Registry) error {
	handlers := map[string]flowengine.StepHandler{
		TypeSchemaValidation: SchemaValidation,
		TypeDataMigration:    DataMigration,
		TypePerformanceCheck: PerformanceCheck,
		TypeBackup:           Backup,
		TypeNotification:     Notification,
	}

	for stepType, handler := range handlers {
		if err := r.Register(stepType, handler); err != nil {
			return fmt.Errorf("failed to register %s: %w", stepType, err)
		}
	}

	return nil
}

// decodeConfig maps a step's configuration into a typed config struct and
// validates it
func decodeConfig(step flowengine.WorkflowStep, target any) error {
	data, err := json.Marshal(step.Config)
	if err != nil {
		return flowengine.NewStepError(flowengine.ErrCodeValidation,
			fmt.Sprintf("invalid %s config: %v", step.Type, err), 0)
	}

	if err := json.Unmarshal(data, target); err != nil {
		return flowengine.NewStepError(flowengine.ErrCodeValidation,
			fmt.Sprintf("invalid %s config: %v", step.Type, err), 0)
	}

	if err := validate.Struct(target); err != nil {
		return flowengine.NewStepError(flowengine.ErrCodeValidation,
			fmt.Sprintf("invalid %s config: %v", step.Type, err), 0)
	}

	return nil
}
