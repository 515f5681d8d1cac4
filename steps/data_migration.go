package steps

import (
	"fmt"

	flowengine "github.com/queryflow/flowengine"
)

// DataMigrationConfig configures a data_migration step
type DataMigrationConfig struct {
	SourceTable string `json:"sourceTable" validate:"required"`
	TargetTable string `json:"targetTable" validate:"required"`
	BatchSize   int    `json:"batchSize"   validate:"min=0"`
}

// DataMigrationResult is the output of a data_migration step
type DataMigrationResult struct {
	SourceTable  string `json:"sourceTable"`
	TargetTable  string `json:"targetTable"`
	RowsMigrated int    `json:"rowsMigrated"`
	Batches      int    `json:"batches"`
	BatchSize    int    `json:"batchSize"`
}

const defaultBatchSize = 100

// DataMigration simulates copying rows between tables in batches. The row
// count comes from the run variable "row_count" when present. Re-running the
// step produces the same outcome, so a retried attempt is harmless.
func DataMigration(ctx *flowengine.StepContext, step flowengine.WorkflowStep) (any, error) {
	var config DataMigrationConfig
	if err := decodeConfig(step, &config); err != nil {
		return nil, err
	}

	if config.BatchSize == 0 {
		config.BatchSize = defaultBatchSize
	}
	if config.SourceTable == config.TargetTable {
		return nil, fmt.Errorf("source and target table are both %q", config.SourceTable)
	}

	rows := 1000
	if v, ok := ctx.Var("row_count"); ok {
		switch count := v.(type) {
		case int:
			rows = count
		case float64:
			rows = int(count)
		}
	}
	if rows < 0 {
		rows = 0
	}

	batches := rows / config.BatchSize
	if rows%config.BatchSize != 0 {
		batches++
	}

	result := DataMigrationResult{
		SourceTable:  config.SourceTable,
		TargetTable:  config.TargetTable,
		RowsMigrated: rows,
		Batches:      batches,
		BatchSize:    config.BatchSize,
	}

	ctx.SetVar("last_migrated_table", config.TargetTable)
	ctx.Log(flowengine.LogLevelInfo,
		fmt.Sprintf("Migrated %d rows from %s to %s in %d batches",
			rows, config.SourceTable, config.TargetTable, batches), nil)

	return result, nil
}
