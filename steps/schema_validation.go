package steps

import (
	"fmt"
	"strings"

	flowengine "github.com/queryflow/flowengine"
)

// SchemaValidationConfig configures a schema_validation step
type SchemaValidationConfig struct {
	// Tables to validate; empty means every table the run knows about
	Tables []string `json:"tables"`
	// StrictMode fails the step when any issue is found
	StrictMode bool `json:"strictMode"`
}

// SchemaIssue describes one problem found in a table definition
type SchemaIssue struct {
	Table    string `json:"table"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// SchemaValidationResult is the output of a schema_validation step
type SchemaValidationResult struct {
	TablesChecked int           `json:"tablesChecked"`
	Issues        []SchemaIssue `json:"issues"`
	Valid         bool          `json:"valid"`
	StrictMode    bool          `json:"strictMode"`
}

// SchemaValidation checks table definitions for structural problems. The
// table list comes from the step config, falling back to the run variable
// "tables".
func SchemaValidation(ctx *flowengine.StepContext, step flowengine.WorkflowStep) (any, error) {
	var config SchemaValidationConfig
	if err := decodeConfig(step, &config); err != nil {
		return nil, err
	}

	tables := config.Tables
	if len(tables) == 0 {
		if v, ok := ctx.Var("tables"); ok {
			if names, ok := toStringSlice(v); ok {
				tables = names
			}
		}
	}

	result := SchemaValidationResult{
		TablesChecked: len(tables),
		Issues:        []SchemaIssue{},
		StrictMode:    config.StrictMode,
	}

	for _, table := range tables {
		trimmed := strings.TrimSpace(table)
		if trimmed == "" {
			result.Issues = append(result.Issues, SchemaIssue{
				Table:    table,
				Severity: "error",
				Message:  "table has an empty name",
			})
			continue
		}
		if strings.ContainsAny(trimmed, " \t") {
			result.Issues = append(result.Issues, SchemaIssue{
				Table:    table,
				Severity: "warning",
				Message:  "table name contains whitespace",
			})
		}
	}

	result.Valid = len(result.Issues) == 0

	ctx.Log(flowengine.LogLevelInfo,
		fmt.Sprintf("Validated %d tables, %d issues", result.TablesChecked, len(result.Issues)),
		map[string]any{"valid": result.Valid})

	if config.StrictMode && !result.Valid {
		return result, fmt.Errorf("schema validation found %d issues in strict mode", len(result.Issues))
	}

	return result, nil
}

func toStringSlice(v any) ([]string, bool) {
	switch values := v.(type) {
	case []string:
		return values, true
	case []any:
		names := make([]string, 0, len(values))
		for _, value := range values {
			name, ok := value.(string)
			if !ok {
				return nil, false
			}
			names = append(names, name)
		}
		return names, true
	default:
		return nil, false
	}
}
