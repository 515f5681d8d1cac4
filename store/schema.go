package store

import "fmt"

// DynamoDB schema constants for single-table design
const (
	// Table attributes
	AttrPK         = "PK"
	AttrSK         = "SK"
	AttrGSI1PK     = "GSI1PK"
	AttrGSI1SK     = "GSI1SK"
	AttrEntityType = "entity_type"
	AttrTTL        = "ttl"

	// Entity types
	EntityTypeExecution = "Execution"

	// Index names
	IndexWorkflowStatus = "GSI1"
)

// Execution keys: PK=EXEC#{executionID}, SK=META
func executionPK(executionID string) string {
	return fmt.Sprintf("EXEC#%s", executionID)
}

func executionSK() string {
	return "META"
}

// GSI1 groups executions of one workflow by status, sorted by creation time
func executionGSI1PK(workflowID, status string) string {
	return fmt.Sprintf("WF#%s#STATUS#%s", workflowID, status)
}

func executionGSI1SK(createdAt string) string {
	return createdAt
}
