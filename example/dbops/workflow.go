// Package dbops assembles a database maintenance workflow used by the
// example HTTP server.
package dbops

import (
	flowengine "github.com/queryflow/flowengine"
	"github.com/queryflow/flowengine/builder"
	"github.com/queryflow/flowengine/steps"
)

// NewRegistry returns a registry with all built-in step handlers registered
func NewRegistry() (*flowengine.Registry, error) {
	registry := flowengine.NewRegistry()
	if err := steps.RegisterBuiltins(registry); err != nil {
		return nil, err
	}
	return registry, nil
}

// NewMaintenanceWorkflow builds a schema-change maintenance workflow:
// validate the schema, migrate rows, check query latency, take a backup
// and notify the team.
func NewMaintenanceWorkflow() (*flowengine.WorkflowDefinition, error) {
	return builder.NewDefinition("db-maintenance", "Database Maintenance").
		WithDescription("Validates, migrates and backs up the project schema").
		WithTrigger(flowengine.TriggerSchemaChange).
		Step("validate-schema", steps.TypeSchemaValidation, "Validate Schema",
			builder.WithConfigValue("tables", []string{"users", "orders", "order_items"}),
		).
		Step("migrate-orders", steps.TypeDataMigration, "Migrate Orders",
			builder.WithConfigValue("sourceTable", "orders_v1"),
			builder.WithConfigValue("targetTable", "orders"),
			builder.WithConfigValue("batchSize", 250),
		).
		Step("check-latency", steps.TypePerformanceCheck, "Check Query Latency",
			builder.WithConfigValue("query", "SELECT * FROM orders WHERE status = 'pending'"),
			builder.WithConfigValue("thresholdMs", 750),
		).
		Step("backup", steps.TypeBackup, "Backup Database",
			builder.WithConfigValue("destination", "s3://queryflow-backups/maintenance"),
			builder.WithConfigValue("compression", "gzip"),
		).
		Step("notify", steps.TypeNotification, "Notify Team",
			builder.WithConfigValue("channel", "slack"),
			builder.WithConfigValue("target", "#db-maintenance"),
		).
		Build()
}
