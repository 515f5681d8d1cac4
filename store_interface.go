package flowengine

import "context"

// ExecutionStore defines the persistence boundary for execution records.
// Implementations must make repeated UpdateExecution calls with the same
// record idempotent and surface failures as errors the engine can translate
// into a failed run.
type ExecutionStore interface {
	CreateExecution(ctx context.Context, record *ExecutionRecord) error
	GetExecution(ctx context.Context, executionID string) (*ExecutionRecord, error)
	UpdateExecution(ctx context.Context, record *ExecutionRecord) error
	UpdateExecutionStatus(ctx context.Context, executionID string, status RunStatus, execErr *WorkflowError) error
	ListExecutions(ctx context.Context, filter ExecutionFilter) ([]*ExecutionRecord, error)
	DeleteExecution(ctx context.Context, executionID string) error
}

// ExecutionFilter defines filtering criteria for execution records
type ExecutionFilter struct {
	WorkflowID string
	Status     *RunStatus
	Limit      int
}
